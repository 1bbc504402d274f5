// Command itemsets downloads recent challenger matches, aggregates what each
// champion buys and writes client item sets.
//
// Usage:
//
//	itemsets generate 3
//	itemsets generate 7 --recreate --install
//	itemsets generate 3 --offline --output-dir target
//	itemsets ingest 1
//	itemsets load-cache --recreate
//	itemsets analyze Ahri
//	itemsets install target/tree
package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"itemset-builder/internal/config"
)

func main() {
	config.LoadEnv()

	root := &cobra.Command{
		Use:           "itemsets",
		Short:         "Build League of Legends item sets from challenger purchase data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(generateCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(loadCacheCmd())
	root.AddCommand(analyzeCmd())
	root.AddCommand(installCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func parseDays(arg string) (int, error) {
	days, err := strconv.Atoi(arg)
	if err != nil || days < 1 {
		return 0, fmt.Errorf("days must be a positive integer, got %q", arg)
	}
	return days, nil
}

func generateCmd() *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate <days>",
		Short: "Ingest the last <days> of matches and write item sets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := parseDays(args[0])
			if err != nil {
				return err
			}
			opts.days = days
			return run(func(a *app) error { return a.generate(opts) })
		},
	}
	cmd.Flags().BoolVar(&opts.recreate, "recreate", false, "Drop and recreate the event store first")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Do not download anything; use cached catalog and matches")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "target", "Directory for item_set.zip and index.html")
	cmd.Flags().IntVar(&opts.workers, "workers", runtime.NumCPU(), "Champions analyzed in parallel")
	cmd.Flags().BoolVar(&opts.noTree, "no-tree", false, "Skip writing the unpacked directory tree")
	cmd.Flags().BoolVar(&opts.install, "install", false, "Copy the generated sets into the local League install")
	cmd.Flags().StringVar(&opts.leagueDir, "league-dir", "", "League install directory (default: search the usual locations)")
	return cmd
}

func ingestCmd() *cobra.Command {
	var recreate bool
	var maxPlayers int
	cmd := &cobra.Command{
		Use:   "ingest <days>",
		Short: "Download the last <days> of challenger matches into the event store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := parseDays(args[0])
			if err != nil {
				return err
			}
			return run(func(a *app) error {
				cat, err := a.loadCatalog(false)
				if err != nil {
					return err
				}
				st, err := a.openStore(recreate)
				if err != nil {
					return err
				}
				defer st.Close()
				_, err = a.ingest(st, cat, days, maxPlayers)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", false, "Drop and recreate the event store first")
	cmd.Flags().IntVar(&maxPlayers, "max-players", 0, "Only crawl the top N ladder players (0 = all)")
	return cmd
}

func loadCacheCmd() *cobra.Command {
	var recreate bool
	cmd := &cobra.Command{
		Use:   "load-cache",
		Short: "Rebuild the event store from the raw match cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(a *app) error {
				st, err := a.openStore(recreate)
				if err != nil {
					return err
				}
				defer st.Close()
				_, err = a.reload(st)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", false, "Drop and recreate the event store first")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "analyze <champion>",
		Short: "Print the purchase statistics of one champion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(a *app) error {
				return a.analyze(cmd.OutOrStdout(), args[0], offline)
			})
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", true, "Use the cached catalog")
	return cmd
}

func installCmd() *cobra.Command {
	var leagueDir string
	cmd := &cobra.Command{
		Use:   "install <tree-dir>",
		Short: "Copy a generated item set tree into the local League install",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(a *app) error {
				return a.install(args[0], leagueDir)
			})
		},
	}
	cmd.Flags().StringVar(&leagueDir, "league-dir", "", "League install directory (default: search the usual locations)")
	return cmd
}
