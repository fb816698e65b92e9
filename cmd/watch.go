package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jabva-1990/agentic-healer/internal/config"
	"github.com/jabva-1990/agentic-healer/internal/ui"
	"github.com/jabva-1990/agentic-healer/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-heal the repository whenever its sources change",
	Long: "Watch monitors the repository and starts a healing session after each\n" +
		"debounced change. The watcher pauses while a session runs so the\n" +
		"healer's own writes never re-trigger it.",
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringP("issue", "i", "", "description of the issue to focus on")
	watchCmd.Flags().Int("max-iterations", 0, "override max healing iterations")
	watchCmd.Flags().Int("timeout", 0, "override session timeout in seconds")
	watchCmd.Flags().Int("max-files-per-task", -1, "cap files touched per task (0 = uncapped)")
	watchCmd.Flags().String("fix-command", "", "override the fix engine CLI")
	watchCmd.Flags().String("model", "", "override the fix engine model")
	watchCmd.Flags().String("output-dir", "", "override the analysis output directory")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyHealOverrides(cmd, &cfg)

	repo, err := resolveRepo(cfg, args)
	if err != nil {
		return err
	}
	description, _ := cmd.Flags().GetString("issue")

	printer := ui.New()
	printer.Banner()

	w, err := watcher.New(repo)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	ctx, cancel := setupSignalContext(printer)
	defer cancel()

	printer.Info(fmt.Sprintf("watching %s", repo))
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			printer.Info(fmt.Sprintf("change: %s", change.Path))
			drainChanges(w)

			w.Pause()
			s, err := runSession(ctx, cfg, repo, description, printer)
			w.Resume()
			if s == nil && err != nil {
				return err
			}
		}
	}
}

// drainChanges consumes changes queued behind the triggering one so a
// burst of edits starts a single session.
func drainChanges(w *watcher.Watcher) {
	for {
		select {
		case <-w.Changes:
		default:
			return
		}
	}
}
