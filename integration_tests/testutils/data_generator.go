package testutils

import (
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

// TestDataGenerator provides methods to create test data for integration tests
type TestDataGenerator struct {
	faker *gofakeit.Faker
	seed  int64
}

// NewTestDataGenerator creates a new test data generator with optional seed
func NewTestDataGenerator(seed ...int64) *TestDataGenerator {
	var s int64
	if len(seed) > 0 {
		s = seed[0]
	} else {
		s = time.Now().UnixNano()
	}
	return &TestDataGenerator{
		faker: gofakeit.New(uint64(s)),
		seed:  s,
	}
}

// Seed returns the seed, for reproducing a failing run.
func (g *TestDataGenerator) Seed() int64 { return g.seed }

// CompetitionName returns a plausible event name.
func (g *TestDataGenerator) CompetitionName() string {
	return g.faker.Company() + " CTF " + g.faker.Numerify("20##")
}

// Task returns a create request for competitionID. Flags carry the index so
// they are unique within a batch.
func (g *TestDataGenerator) Task(competitionID int64, index int) scoringtypes.CreateTaskRequest {
	categories := []string{"web", "pwn", "crypto", "rev", "misc", "forensics"}
	return scoringtypes.CreateTaskRequest{
		CompetitionID: competitionID,
		Category:      categories[g.faker.Number(0, len(categories)-1)],
		Name:          g.faker.HackerNoun() + " " + g.faker.Numerify("###"),
		Description:   g.faker.HackerPhrase(),
		Flag:          "flag{" + g.faker.LetterN(12) + g.faker.Numerify("-####-") + strconv.Itoa(index) + "}",
	}
}

// Players returns count players with distinct ids starting at firstID.
func (g *TestDataGenerator) Players(firstID int64, count int) []scoringtypes.Player {
	players := make([]scoringtypes.Player, count)
	for i := range players {
		players[i] = scoringtypes.Player{
			ID:   firstID + int64(i),
			Name: g.faker.Username(),
		}
	}
	return players
}
