package scoringservice

import (
	scoringdb "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/repositories"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

func toCompetition(c *scoringdb.Competition) scoringtypes.Competition {
	return scoringtypes.Competition{ID: c.ID, Name: c.Name}
}

func toTask(t *scoringdb.Task) scoringtypes.Task {
	return scoringtypes.Task{
		ID:            t.ID,
		CompetitionID: t.CompetitionID,
		Category:      t.Category,
		Name:          t.Name,
		Description:   t.Description,
		Flag:          t.Flag,
		Attachment:    t.Attachment,
	}
}

func toPlayer(p *scoringdb.Player) scoringtypes.Player {
	return scoringtypes.Player{ID: p.ID, Name: p.Name}
}

func toSolve(s *scoringdb.Solve) scoringtypes.Solve {
	return scoringtypes.Solve{ID: s.ID, PlayerID: s.PlayerID, TaskID: s.TaskID, CreatedAt: s.CreatedAt}
}

func rankedToSolve(s scoringdb.RankedSolve) scoringtypes.Solve {
	return scoringtypes.Solve{ID: s.ID, PlayerID: s.PlayerID, TaskID: s.TaskID, CreatedAt: s.CreatedAt}
}

func mapSlice[In any, Out any](in []In, fn func(*In) Out) []Out {
	out := make([]Out, 0, len(in))
	for i := range in {
		out = append(out, fn(&in[i]))
	}
	return out
}

// solveDeletions builds Delete events for solves that are about to be removed.
func solveDeletions(solves []scoringdb.RankedSolve) []scoringtypes.DbEvent {
	events := make([]scoringtypes.DbEvent, 0, len(solves))
	for _, s := range solves {
		events = append(events, scoringtypes.Deleted(rankedToSolve(s)))
	}
	return events
}
