package scoringmigrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()

func init() {
	// Each migration file registers itself; caller discovery derives the
	// migration name from that file name.
	if err := Migrations.DiscoverCaller(); err != nil {
		panic(err)
	}
}
