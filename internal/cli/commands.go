package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/erikwilensky/codecheck/internal/app"
	"github.com/erikwilensky/codecheck/internal/database"
	"github.com/erikwilensky/codecheck/internal/dto"
	"github.com/erikwilensky/codecheck/internal/service"
)

func (r *runner) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withContainer(cmd, func(_ context.Context, c *app.Container) error {
				if err := database.Migrate(c.DB); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func (r *runner) importRosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-roster <csv>",
		Short: "Import students from a name,student_id,block CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open roster: %w", err)
			}
			defer file.Close()

			return r.withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				result, err := c.Students.ImportRoster(ctx, file, service.CLIActor)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
}

func (r *runner) analyzeCmd() *cobra.Command {
	var heuristicOnly bool

	cmd := &cobra.Command{
		Use:   "analyze <submission-id>",
		Short: "Run the assessment analysis for a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return r.withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				var analysis dto.AnalysisResponse
				if heuristicOnly {
					analysis, err = c.Analyses.RunHeuristicAnalysis(ctx, id)
				} else {
					analysis, err = c.Analyses.RunAnalysis(ctx, id)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, analysis)
			})
		},
	}
	cmd.Flags().BoolVar(&heuristicOnly, "heuristic", false, "skip the generation provider and run the heuristic scorer only")
	return cmd
}

func (r *runner) quizCmd() *cobra.Command {
	var analysisID uint

	cmd := &cobra.Command{
		Use:   "quiz <submission-id>",
		Short: "Generate a comprehension quiz for a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var analysisRef *uint
			if analysisID > 0 {
				analysisRef = &analysisID
			}

			return r.withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				quiz, err := c.Quizzes.RunQuizGeneration(ctx, id, analysisRef)
				if err != nil {
					return err
				}
				return printJSON(cmd, quiz)
			})
		},
	}
	cmd.Flags().UintVar(&analysisID, "analysis", 0, "analysis to ground the questions on (defaults to the latest)")
	return cmd
}

func (r *runner) bulkQuizCmd() *cobra.Command {
	var (
		assignment string
		studentIDs []uint
		out        string
	)

	cmd := &cobra.Command{
		Use:   "bulk-quiz",
		Short: "Render one quiz packet for several students' submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				result, err := c.BulkQuizzes.Generate(ctx, dto.BulkQuizRequest{
					AssignmentName: assignment,
					StudentIDs:     studentIDs,
					GeneratedBy:    service.CLIActor.Name,
				})
				if err != nil {
					return err
				}

				if out != "" {
					file, err := c.QuizPDFs.Download(ctx, result.PDFID)
					if err != nil {
						return err
					}
					target := out
					if info, statErr := os.Stat(out); statErr == nil && info.IsDir() {
						target = filepath.Join(out, file.FileName)
					}
					if err := os.WriteFile(target, file.Data, 0o644); err != nil {
						return fmt.Errorf("write packet: %w", err)
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "packet written to %s\n", target)
				}

				return printJSON(cmd, result)
			})
		},
	}
	cmd.Flags().StringVar(&assignment, "assignment", "", "assignment name")
	cmd.Flags().UintSliceVar(&studentIDs, "students", nil, "comma separated student ids")
	cmd.Flags().StringVar(&out, "out", "", "file or directory to write the rendered PDF to")
	_ = cmd.MarkFlagRequired("assignment")
	_ = cmd.MarkFlagRequired("students")
	return cmd
}

func (r *runner) overviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Print roster and pipeline counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				summary, err := c.Overview.GetSummary(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, summary)
			})
		},
	}
}

func (r *runner) generateIDsCmd() *cobra.Command {
	var req dto.StudentSeedRequest

	cmd := &cobra.Command{
		Use:   "generate-ids <prefix>",
		Short: "Register a run of numbered student codes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Prefix = args[0]
			return r.withContainer(cmd, func(ctx context.Context, c *app.Container) error {
				result, err := c.Seed.SeedStudents(ctx, req, service.CLIActor)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	cmd.Flags().IntVar(&req.Start, "start", 1, "first number of the run")
	cmd.Flags().IntVar(&req.Count, "count", 30, "number of codes to generate")
	cmd.Flags().IntVar(&req.Block, "block", 4, "class block of the generated students (4 or 6)")
	cmd.Flags().BoolVar(&req.Approve, "approve", false, "mark generated students as approved")
	return cmd
}
