package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jabva-1990/agentic-healer/internal/config"
	"github.com/jabva-1990/agentic-healer/internal/history"
)

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "List past healing sessions for a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntP("limit", "n", 10, "number of sessions to show")
	statusCmd.Flags().Bool("iterations", false, "show per-iteration detail")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	repo, err := resolveRepo(cfg, args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := history.Open(ctx, filepath.Join(outputDir(cfg, repo), "history.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	sessions, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		cmd.Println("no sessions recorded")
		return nil
	}

	detail, _ := cmd.Flags().GetBool("iterations")
	for _, s := range sessions {
		elapsed := s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)
		cmd.Printf("%s  %-7s  found %d, resolved %d, fixes %d, files %d  (%s)\n",
			s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Status,
			s.IssuesFound, s.IssuesResolved, s.FixesApplied, s.FilesModified, elapsed)
		if s.Description != "" {
			cmd.Printf("    issue: %s\n", s.Description)
		}
		if detail {
			recs, err := store.Iterations(ctx, s.ID)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				cmd.Printf("    iteration %d: %d -> %d issue(s), %d fix(es), %dms\n",
					rec.Index, rec.IssuesBefore, rec.IssuesAfter, rec.FixesApplied, rec.ElapsedMS)
			}
		}
	}
	return nil
}
