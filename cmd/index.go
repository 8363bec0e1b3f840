package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gavram/ckan-search/internal/application"
	"github.com/gavram/ckan-search/internal/document"
	"github.com/gavram/ckan-search/internal/service"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain the dataset index",
}

var rebuildFlags struct {
	from        string
	onlyMissing bool
	force       bool
}

func init() {
	indexCmd.AddCommand(
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every indexed dataset and recreate the index",
			Args:  cobra.NoArgs,
			RunE: withIndex(func(cmd *cobra.Command, _ []string, idx *service.PackageIndex) error {
				return idx.Clear(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "commit",
			Short: "Make pending writes visible to search",
			Args:  cobra.NoArgs,
			RunE: withIndex(func(cmd *cobra.Command, _ []string, idx *service.PackageIndex) error {
				return idx.Commit(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "check",
			Short: "Print cluster health for the index",
			Args:  cobra.NoArgs,
			RunE: withIndex(func(cmd *cobra.Command, _ []string, idx *service.PackageIndex) error {
				report, err := idx.Check(cmd.Context())
				if err != nil {
					return err
				}
				if err := printJSON(cmd, report); err != nil {
					return err
				}
				if !report.Healthy() {
					return fmt.Errorf("index %s is %s", report.Index, report.Status)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print the indexed document for a dataset",
			Args:  cobra.ExactArgs(1),
			RunE: withIndex(func(cmd *cobra.Command, args []string, idx *service.PackageIndex) error {
				doc, err := idx.Show(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, doc)
			}),
		},
	)

	rebuildCmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Index every dataset from a JSON lines dump",
		Args:  cobra.NoArgs,
		RunE:  withIndex(runRebuild),
	}
	rebuildCmd.Flags().StringVar(&rebuildFlags.from, "from", "", "JSON lines file with one dataset per line")
	rebuildCmd.Flags().BoolVar(&rebuildFlags.onlyMissing, "only-missing", false, "skip datasets that are already indexed")
	rebuildCmd.Flags().BoolVar(&rebuildFlags.force, "force", false, "keep going when a dataset fails to index")
	_ = rebuildCmd.MarkFlagRequired("from")
	indexCmd.AddCommand(rebuildCmd)
}

func withIndex(fn func(*cobra.Command, []string, *service.PackageIndex) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svcs, err := application.NewServices(cfg, log)
		if err != nil {
			return err
		}
		return fn(cmd, args, svcs.Index)
	}
}

func runRebuild(cmd *cobra.Command, _ []string, idx *service.PackageIndex) error {
	f, err := os.Open(rebuildFlags.from)
	if err != nil {
		return fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()

	if err := idx.EnsureIndex(cmd.Context()); err != nil {
		return err
	}
	stats, err := idx.Rebuild(cmd.Context(), document.NewJSONLinesSource(f), service.RebuildOptions{
		OnlyMissing: rebuildFlags.onlyMissing,
		Force:       rebuildFlags.force,
	})
	log.Info("rebuild done",
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}
