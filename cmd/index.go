package cmd

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jabva-1990/agentic-healer/internal/config"
	"github.com/jabva-1990/agentic-healer/internal/graph"
	"github.com/jabva-1990/agentic-healer/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index the repository and print the dependency graph",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().Bool("edges", false, "list every dependency edge")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	res, err := index.New().Index(ctx, repo)
	if err != nil {
		return err
	}
	g := graph.Build(res.Nodes, res.Edges)

	key := graph.CacheKey(res.Fingerprints)
	manifest := index.NewManifest(key, res.Fingerprints)
	if err := manifest.Save(filepath.Join(outputDir(cfg, repo), "index.toml")); err != nil {
		return err
	}

	symbols := 0
	for _, n := range g.Files() {
		symbols += len(n.Symbols)
	}
	cmd.Printf("%d file(s), %d symbol(s), %d edge(s)\n", g.Len(), symbols, len(g.Edges()))
	if cycles := g.CycleMembers(); len(cycles) > 0 {
		cmd.Printf("cyclic: %v\n", cycles)
	}
	if len(res.SyntaxIssues) > 0 {
		cmd.Printf("%d file(s) do not parse\n", len(res.SyntaxIssues))
	}

	for _, path := range g.TopologicalOrder() {
		node, _ := g.File(path)
		cmd.Printf("  %s (%s, %d symbol(s))\n", path, node.Language, len(node.Symbols))
	}
	if list, _ := cmd.Flags().GetBool("edges"); list {
		for _, e := range g.Edges() {
			cmd.Printf("  %s -> %s [%s]\n", e.Source, e.Target, e.Kind)
		}
	}
	return nil
}
