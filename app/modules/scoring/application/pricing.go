package scoringservice

// Pricing constants.
const (
	InitialPoints = 1000
	MinPoints     = 100
	Decay         = 10
)

// Price returns the value of a task that already has solveCount solves:
//
//	max(MinPoints, InitialPoints + (MinPoints-InitialPoints)/Decay² × solveCount²)
//
// The division happens before the multiplication so historical scores
// reproduce exactly.
func Price(solveCount int) int {
	if solveCount < 0 {
		solveCount = 0
	}
	// Counts beyond Decay² are floored up front so solveCount² cannot overflow.
	if solveCount > Decay*Decay {
		return MinPoints
	}
	p := InitialPoints + (MinPoints-InitialPoints)/(Decay*Decay)*solveCount*solveCount
	if p < MinPoints {
		return MinPoints
	}
	return p
}

// AwardedPrice is what the most recent solver of a task with solveCount
// solves received. It is zero when nobody has solved the task.
func AwardedPrice(solveCount int) int {
	if solveCount <= 0 {
		return 0
	}
	return Price(solveCount - 1)
}
