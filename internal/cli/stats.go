package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/venvkiller/internal/history"
	"github.com/lu-zhengda/venvkiller/internal/utils"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show deletion history and statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats := history.New(history.DefaultPath()).Stats()

		if jsonFlag {
			return printJSON(buildStatsJSON(stats))
		}

		fmt.Println("venvkiller -- Deletion Stats")
		fmt.Println()

		if stats.TotalRuns == 0 {
			fmt.Println("  No deletion history yet. Run 'venvkiller' or 'venvkiller clean' to get started.")
			fmt.Println()
			return nil
		}

		fmt.Printf("  Total freed all-time:  %s\n", utils.FormatSize(stats.TotalFreed))
		fmt.Printf("  Environments deleted:  %d\n", stats.TotalEnvironments)
		fmt.Printf("  Runs:                  %d\n", stats.TotalRuns)
		if stats.TotalFailed > 0 {
			fmt.Printf("  Failed deletions:      %d\n", stats.TotalFailed)
		}

		if len(stats.ByBucket) > 0 {
			fmt.Println()
			fmt.Println("  By Age:")

			names := make([]string, 0, len(stats.ByBucket))
			for name := range stats.ByBucket {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool {
				return stats.ByBucket[names[i]].BytesFreed > stats.ByBucket[names[j]].BytesFreed
			})
			for _, name := range names {
				bs := stats.ByBucket[name]
				fmt.Printf("    %-12s %10s  (%d envs)\n", name, utils.FormatSize(bs.BytesFreed), bs.Environments)
			}
		}

		fmt.Println()
		fmt.Println("  Recent:")
		for _, e := range stats.Recent {
			label := "envs"
			if len(e.Items) == 1 {
				label = "env"
			}
			fmt.Printf("    %s  %-30s %3d %-4s  %10s  (%s)\n",
				e.Timestamp.Local().Format("2006-01-02 15:04"),
				utils.TruncatePath(e.Root, 30),
				len(e.Items),
				label,
				utils.FormatSize(e.BytesFreed),
				e.Method)
		}

		fmt.Println()
		return nil
	},
}
