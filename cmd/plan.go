package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jabva-1990/agentic-healer/internal/config"
	"github.com/jabva-1990/agentic-healer/internal/graph"
	"github.com/jabva-1990/agentic-healer/internal/index"
	"github.com/jabva-1990/agentic-healer/internal/plan"
	"github.com/jabva-1990/agentic-healer/internal/ui"
	"github.com/jabva-1990/agentic-healer/internal/verify"
)

var planCmd = &cobra.Command{
	Use:   "plan [path]",
	Short: "Build and print the repair plan without applying fixes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringP("output", "o", "", "also export the plan JSON to this path")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	repo, err := resolveRepo(cfg, args)
	if err != nil {
		return err
	}
	printer := ui.New()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	issues, err := verify.NewStatic().Verify(ctx, repo)
	if err != nil {
		return err
	}
	issues = plan.Classify(issues)
	printer.IssuesFound(len(issues))

	res, err := index.New().Index(ctx, repo)
	if err != nil {
		return err
	}
	g := graph.Build(res.Nodes, res.Edges)

	p := plan.New().Plan(issues, g)
	printPlan(cmd, p)

	if p.Empty() {
		return nil
	}
	out := filepath.Join(outputDir(cfg, repo), "plan.json")
	if err := p.Save(out); err != nil {
		return err
	}
	if export, _ := cmd.Flags().GetString("output"); export != "" {
		if err := p.Save(export); err != nil {
			return err
		}
	}
	return nil
}

func printPlan(cmd *cobra.Command, p *plan.Plan) {
	if p.Empty() {
		cmd.Println("nothing to repair")
		return
	}
	cmd.Printf("plan %s: %d task(s), %d issue(s), est. success %.0f%%, ~%d min\n",
		p.ID, len(p.Tasks), p.IssueCount(), p.SuccessProbability*100, p.EstimatedMinutes)
	if p.LowConfidence {
		cmd.Println("low confidence: tasks span cyclic dependencies")
	}
	if len(p.CriticalPath) > 0 {
		cmd.Printf("critical path: %s\n", strings.Join(p.CriticalPath, " -> "))
	}
	for _, t := range p.Tasks {
		cmd.Printf("\n%s [%s/%s] priority %d\n", t.ID, t.Category, t.Complexity, t.Priority)
		cmd.Printf("  %s\n", t.Strategy)
		if len(t.Prerequisites) > 0 {
			cmd.Printf("  after: %s\n", strings.Join(t.Prerequisites, ", "))
		}
		for _, is := range t.Issues {
			cmd.Printf("  - %s:%d [%s] %s\n", is.File, is.Line, is.Severity, is.Description)
		}
	}
}
