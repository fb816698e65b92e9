package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jabva-1990/agentic-healer/internal/config"
	"github.com/jabva-1990/agentic-healer/internal/fix"
	"github.com/jabva-1990/agentic-healer/internal/heal"
	"github.com/jabva-1990/agentic-healer/internal/history"
	"github.com/jabva-1990/agentic-healer/internal/telemetry"
	"github.com/jabva-1990/agentic-healer/internal/ui"
	"github.com/jabva-1990/agentic-healer/internal/verify"
)

var healCmd = &cobra.Command{
	Use:   "heal [path]",
	Short: "Run a healing session against a repository",
	Long: "Heal verifies the repository, plans repairs ordered by the dependency\n" +
		"graph, applies fixes through the configured engine, and iterates until\n" +
		"healthy or out of budget. Exit code: 0 healed, 1 failed, 2 partial.",
	Args: cobra.MaximumNArgs(1),
	RunE: runHeal,
}

func init() {
	healCmd.Flags().StringP("issue", "i", "", "description of the issue to focus on")
	healCmd.Flags().Int("max-iterations", 0, "override max healing iterations")
	healCmd.Flags().Int("timeout", 0, "override session timeout in seconds")
	healCmd.Flags().Int("max-files-per-task", -1, "cap files touched per task (0 = uncapped)")
	healCmd.Flags().String("fix-command", "", "override the fix engine CLI")
	healCmd.Flags().String("model", "", "override the fix engine model")
	healCmd.Flags().String("output-dir", "", "override the analysis output directory")

	rootCmd.AddCommand(healCmd)
}

func runHeal(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := setupSignalContext(printer)
	defer cancel()

	s, err := runSession(ctx, cfg, repo, description, printer)
	if s == nil {
		return err
	}
	os.Exit(s.ExitCode)
	return nil
}

// applyHealOverrides applies CLI flag values to the loaded config.
func applyHealOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetInt("max-iterations"); v > 0 {
		cfg.MaxIterations = v
	}
	if v, _ := cmd.Flags().GetInt("timeout"); v > 0 {
		cfg.TimeoutSeconds = v
	}
	if v, _ := cmd.Flags().GetInt("max-files-per-task"); v >= 0 {
		cfg.MaxFilesPerTask = v
	}
	if v, _ := cmd.Flags().GetString("fix-command"); v != "" {
		cfg.FixCommand = v
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Model = v
	}
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		cfg.OutputDir = v
	}
	if v, _ := rootCmd.PersistentFlags().GetBool("verbose"); v {
		cfg.Verbose = true
	}
}

// resolveRepo picks the target repository from args or config and
// makes it absolute.
func resolveRepo(cfg config.Config, args []string) (string, error) {
	repo := cfg.WorkDir
	if len(args) > 0 {
		repo = args[0]
	}
	abs, err := filepath.Abs(repo)
	if err != nil {
		return "", fmt.Errorf("resolve repository path %q: %w", repo, err)
	}
	return abs, nil
}

// outputDir resolves the analysis output directory under the repo.
func outputDir(cfg config.Config, repo string) string {
	if filepath.IsAbs(cfg.OutputDir) {
		return cfg.OutputDir
	}
	return filepath.Join(repo, cfg.OutputDir)
}

// runSession wires the collaborators and runs one healing session,
// recording the outcome in the history database.
func runSession(ctx context.Context, cfg config.Config, repo, description string, printer *ui.Printer) (*heal.Session, error) {
	engine := &fix.CLIEngine{Command: cfg.FixCommand, Model: cfg.Model, WorkDir: repo, Verbose: cfg.Verbose}
	if err := engine.Validate(); err != nil {
		printer.Error(err.Error())
		return nil, err
	}

	outDir := outputDir(cfg, repo)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	emitter, err := telemetry.NewEmitter(filepath.Join(outDir, "telemetry.jsonl"))
	if err != nil {
		printer.Info(fmt.Sprintf("telemetry disabled: %v", err))
	}
	defer emitter.Close()

	c := heal.New(verify.NewStatic(), engine)
	c.Emitter = emitter

	s, runErr := c.Run(ctx, heal.Options{
		RepoPath:        repo,
		Description:     description,
		MaxIterations:   cfg.MaxIterations,
		Timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
		OutputDir:       cfg.OutputDir,
		MaxFilesPerTask: cfg.MaxFilesPerTask,
	})

	// The run context may be canceled by now; history writes get a
	// fresh one.
	if s != nil {
		recordHistory(context.Background(), outDir, s, printer)
	}
	return s, runErr
}

func recordHistory(ctx context.Context, outDir string, s *heal.Session, printer *ui.Printer) {
	store, err := history.Open(ctx, filepath.Join(outDir, "history.db"))
	if err != nil {
		printer.Info(fmt.Sprintf("history disabled: %v", err))
		return
	}
	defer store.Close()
	if err := store.RecordSession(ctx, s); err != nil {
		printer.Info(fmt.Sprintf("history not recorded: %v", err))
	}
}

// setupSignalContext returns a context that is canceled on SIGINT or
// SIGTERM; the loop treats cancellation like a timeout.
func setupSignalContext(printer *ui.Printer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		printer.Info("\nstopping after the current stage...")
		cancel()
	}()
	return ctx, cancel
}
