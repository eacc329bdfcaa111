// Package graph holds the commands that author the question graph with YAML graph files.
package graph

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/myrjola/flowcast/cmd/cli/clienv"
	"github.com/myrjola/flowcast/internal/errors"
	"github.com/myrjola/flowcast/internal/flow"
	"github.com/myrjola/flowcast/internal/graphfile"
	"github.com/myrjola/flowcast/internal/models"
	"github.com/myrjola/flowcast/internal/repositories"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "graph",
	Title: "Question graph",
}

// ErrFindings is returned by lint and import when the graph file has problems.
var ErrFindings = errors.NewSentinel("graph has findings")

// Commands returns new instances of the graph commands.
func Commands() []*cobra.Command {
	return []*cobra.Command{lint(), importGraph(), export()}
}

func load(path string) ([]models.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open graph file", slog.String("path", path))
	}
	defer func() {
		_ = f.Close()
	}()
	questions, err := graphfile.Load(f)
	if err != nil {
		return nil, errors.Wrap(err, "load graph file", slog.String("path", path))
	}
	return questions, nil
}

func printFindings(w io.Writer, findings []flow.Finding) {
	for _, f := range findings {
		_, _ = fmt.Fprintln(w, f)
	}
}

func lint() *cobra.Command {
	return &cobra.Command{
		Use:     "lint FILE",
		GroupID: Group.ID,
		Short:   "Check a graph file",
		Long: `Reports malformed questions, duplicate ids, references to missing questions, overlapping number rules,
routes for unknown options and questions no path reaches. Exits non-zero when anything is found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			questions, err := load(args[0])
			if err != nil {
				return err
			}
			findings := flow.Lint(questions)
			printFindings(cmd.OutOrStdout(), findings)
			if len(findings) > 0 {
				return errors.Wrap(ErrFindings, "lint", slog.Int("findings", len(findings)))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d questions, no findings\n", len(questions))
			return nil
		},
	}
}

// blocking findings would corrupt the stored graph.
func blocking(f flow.Finding) bool {
	return f.Code == flow.FindingInvalid || f.Code == flow.FindingDuplicateID
}

func importGraph() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "import FILE",
		GroupID: Group.ID,
		Short:   "Store the questions of a graph file",
		Long: `Upserts every question of the graph file. With --replace the stored questions missing from the file are
deleted. Malformed questions and duplicate ids abort the import, other findings are printed as warnings unless
--strict is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			replace, _ := cmd.Flags().GetBool("replace")
			strict, _ := cmd.Flags().GetBool("strict")
			questions, err := load(args[0])
			if err != nil {
				return err
			}
			findings := flow.Lint(questions)
			printFindings(cmd.ErrOrStderr(), findings)
			if slices.ContainsFunc(findings, blocking) || (strict && len(findings) > 0) {
				return errors.Wrap(ErrFindings, "import", slog.Int("findings", len(findings)))
			}

			ctx := cmd.Context()
			env, err := clienv.Open(ctx, cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			repo := repositories.NewQuestionRepository(env.DB, env.Logger)

			for _, q := range questions {
				if err = repo.Save(ctx, q); err != nil {
					return errors.Wrap(err, "save question")
				}
			}
			deleted := 0
			if replace {
				if deleted, err = deleteMissing(cmd, repo, questions); err != nil {
					return err
				}
			}
			env.Logger.LogAttrs(ctx, slog.LevelInfo, "imported graph",
				slog.Int("questions", len(questions)), slog.Int("deleted", deleted))
			return nil
		},
	}
	cmd.Flags().Bool("replace", false, "delete stored questions that are not in the file")
	cmd.Flags().Bool("strict", false, "abort on any finding")
	return cmd
}

func deleteMissing(cmd *cobra.Command, repo *repositories.QuestionRepository, keep []models.Question) (int, error) {
	stored, err := repo.List(cmd.Context())
	if err != nil {
		return 0, errors.Wrap(err, "list questions")
	}
	deleted := 0
	for _, q := range stored {
		if slices.ContainsFunc(keep, func(k models.Question) bool { return k.ID == q.ID }) {
			continue
		}
		if err = repo.Delete(cmd.Context(), q.ID); err != nil {
			return deleted, errors.Wrap(err, "delete question")
		}
		deleted++
	}
	return deleted, nil
}

func export() *cobra.Command {
	return &cobra.Command{
		Use:     "export",
		GroupID: Group.ID,
		Short:   "Write the stored questions as a graph file to stdout",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := clienv.Open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			questions, err := repositories.NewQuestionRepository(env.DB, env.Logger).List(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "list questions")
			}
			if err = graphfile.Write(cmd.OutOrStdout(), questions); err != nil {
				return errors.Wrap(err, "write graph file")
			}
			return nil
		},
	}
}
