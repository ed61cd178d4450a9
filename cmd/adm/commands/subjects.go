package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"studypath/internal/observability"
	contextutils "studypath/internal/utils"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML shape consumed by `adm subjects seed`
type catalogFile struct {
	Subjects []struct {
		Name        string `yaml:"name"`
		Slug        string `yaml:"slug"`
		Description string `yaml:"description"`
		Levels      []struct {
			Name        string `yaml:"name"`
			Description string `yaml:"description"`
			Subtopics   []struct {
				Name        string `yaml:"name"`
				Description string `yaml:"description"`
				PromptHint  string `yaml:"prompt_hint"`
			} `yaml:"subtopics"`
		} `yaml:"levels"`
	} `yaml:"subjects"`
}

// SubjectCommands returns the subject catalog commands
func SubjectCommands(logger *observability.Logger, db *sql.DB) *cobra.Command {
	subjectsCmd := &cobra.Command{
		Use:   "subjects",
		Short: "Subject catalog commands",
		Long: `Subject catalog commands for the studypath backend.

Available commands:
  seed - Load subjects, levels and subtopics from a YAML catalog file`,
	}

	subjectsCmd.AddCommand(seedSubjectsCmd(logger, db))
	return subjectsCmd
}

func seedSubjectsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [catalog.yaml]",
		Short: "Load the subject catalog from a YAML file",
		Long:  "Load subjects, levels and subtopics from a YAML catalog file. Existing entries are updated by slug and name, new entries are created.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return contextutils.WrapError(err, "failed to read catalog file")
			}

			var catalog catalogFile
			if err := yaml.Unmarshal(data, &catalog); err != nil {
				return contextutils.WrapError(err, "failed to parse catalog file")
			}

			for _, subject := range catalog.Subjects {
				subjectID, err := upsertSubject(ctx, db, subject.Name, subject.Slug, subject.Description)
				if err != nil {
					return err
				}
				for order, level := range subject.Levels {
					levelID, err := upsertLevel(ctx, db, subjectID, level.Name, level.Description, order)
					if err != nil {
						return err
					}
					for subOrder, subtopic := range level.Subtopics {
						if err := upsertSubtopic(ctx, db, levelID, subtopic.Name, subtopic.Description, subtopic.PromptHint, subOrder); err != nil {
							return err
						}
					}
				}
				logger.Info(ctx, "Seeded subject", map[string]interface{}{"subject": subject.Name, "levels": len(subject.Levels)})
			}

			fmt.Printf("Seeded %d subjects\n", len(catalog.Subjects))
			return nil
		},
	}
}

func upsertSubject(ctx context.Context, db *sql.DB, name, slug, description string) (int, error) {
	var id int
	err := db.QueryRowContext(ctx,
		`INSERT INTO subjects (name, slug, description, created_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
		 RETURNING id`,
		name, slug, description,
	).Scan(&id)
	if err != nil {
		return 0, contextutils.WrapErrorf(err, "failed to upsert subject %s", name)
	}
	return id, nil
}

func upsertLevel(ctx context.Context, db *sql.DB, subjectID int, name, description string, orderIndex int) (int, error) {
	var id int
	err := db.QueryRowContext(ctx,
		`INSERT INTO levels (subject_id, name, description, order_index)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (subject_id, name) DO UPDATE SET description = EXCLUDED.description, order_index = EXCLUDED.order_index
		 RETURNING id`,
		subjectID, name, description, orderIndex,
	).Scan(&id)
	if err != nil {
		return 0, contextutils.WrapErrorf(err, "failed to upsert level %s", name)
	}
	return id, nil
}

func upsertSubtopic(ctx context.Context, db *sql.DB, levelID int, name, description, promptHint string, orderIndex int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO subtopics (level_id, name, description, prompt_hint, order_index)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (level_id, name) DO UPDATE SET description = EXCLUDED.description, prompt_hint = EXCLUDED.prompt_hint, order_index = EXCLUDED.order_index`,
		levelID, name, description, promptHint, orderIndex,
	)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to upsert subtopic %s", name)
	}
	return nil
}
