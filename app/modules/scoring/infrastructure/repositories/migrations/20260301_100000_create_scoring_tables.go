package scoringmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating competitions, tasks, players and solves tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS competitions (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`); err != nil {
				return fmt.Errorf("failed to create competitions table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS tasks (
					id BIGSERIAL PRIMARY KEY,
					competition_id BIGINT NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
					category TEXT NOT NULL,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					flag TEXT NOT NULL,
					attachment TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_tasks_competition_flag ON tasks(competition_id, flag);
			`); err != nil {
				return fmt.Errorf("failed to create tasks table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS players (
					id BIGINT PRIMARY KEY,
					name TEXT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`); err != nil {
				return fmt.Errorf("failed to create players table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS solves (
					id BIGSERIAL PRIMARY KEY,
					player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
					task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE UNIQUE INDEX IF NOT EXISTS uq_solves_player_task ON solves(player_id, task_id);
				CREATE INDEX IF NOT EXISTS idx_solves_task_id ON solves(task_id, id);
			`); err != nil {
				return fmt.Errorf("failed to create solves table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping scoring tables...")

		_, err := db.ExecContext(ctx, `
			DROP TABLE IF EXISTS solves;
			DROP TABLE IF EXISTS players;
			DROP TABLE IF EXISTS tasks;
			DROP TABLE IF EXISTS competitions;
		`)
		if err != nil {
			return fmt.Errorf("failed to drop scoring tables: %w", err)
		}
		return nil
	})
}
