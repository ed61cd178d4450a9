// Package commands provides CLI commands for the admin tool
package commands

import (
	"database/sql"
	"fmt"

	"studypath/internal/observability"
	contextutils "studypath/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the studypath backend.

Available commands:
  migrate   - Apply pending schema migrations
  stats     - Show database statistics`,
	}

	dbCmd.AddCommand(migrateCmd(logger, db, databaseURL))
	dbCmd.AddCommand(statsCmd(logger, db))
	return dbCmd
}

func migrateCmd(logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger.Info(ctx, "Running migrations", map[string]interface{}{"database_url": maskDatabaseURL(databaseURL)})

			manager := databaseManager(logger)
			if err := manager.RunMigrations(db); err != nil {
				return contextutils.WrapError(err, "migrations failed")
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}
}

func statsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			counts := map[string]string{
				"users":                     "SELECT COUNT(*) FROM users",
				"subjects":                  "SELECT COUNT(*) FROM subjects",
				"levels":                    "SELECT COUNT(*) FROM levels",
				"subtopics":                 "SELECT COUNT(*) FROM subtopics",
				"lessons":                   "SELECT COUNT(*) FROM lessons",
				"assessments":               "SELECT COUNT(*) FROM assessments",
				"quizzes":                   "SELECT COUNT(*) FROM quizzes",
				"quiz_attempts":             "SELECT COUNT(*) FROM quiz_attempts",
				"subtopic_question_records": "SELECT COUNT(*) FROM subtopic_question_records",
			}

			for _, table := range []string{"users", "subjects", "levels", "subtopics", "lessons", "assessments", "quizzes", "quiz_attempts", "subtopic_question_records"} {
				var count int
				if err := db.QueryRowContext(ctx, counts[table]).Scan(&count); err != nil {
					return contextutils.WrapErrorf(err, "failed to count %s", table)
				}
				fmt.Printf("%-26s %d\n", table, count)
			}
			return nil
		},
	}
}
