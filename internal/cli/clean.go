package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/venvkiller/internal/engine"
	"github.com/lu-zhengda/venvkiller/internal/history"
	"github.com/lu-zhengda/venvkiller/internal/trash"
	"github.com/lu-zhengda/venvkiller/internal/utils"
)

var (
	cleanTrash            bool
	cleanYes              bool
	cleanDryRun           bool
	cleanQuiet            bool
	cleanIncludeUnmanaged bool
	cleanBucket           string
	cleanMinSize          string
)

// cleanPrint prints to stdout only when --quiet is not set.
func cleanPrint(format string, a ...any) {
	if !cleanQuiet && !jsonFlag {
		fmt.Printf(format, a...)
	}
}

// cleanPrintln prints a line to stdout only when --quiet is not set.
func cleanPrintln(a ...any) {
	if !cleanQuiet && !jsonFlag {
		fmt.Println(a...)
	}
}

var cleanCmd = &cobra.Command{
	Use:   "clean [path]",
	Short: "Delete virtual environments matching the given filters",
	Long: "Scan, then delete every environment in the selected age bucket.\n" +
		"Environments with no requirements.txt, pyproject.toml, poetry.lock or Pipfile next to them\n" +
		"are skipped unless --include-unmanaged is given.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minSize, err := parseMinSize(cleanMinSize, appConfig.Delete.MinSize)
		if err != nil {
			return err
		}
		buckets, err := parseBuckets(cleanBucket)
		if err != nil {
			return err
		}
		method, err := deleteMethod(cleanTrash)
		if err != nil {
			return err
		}

		opts := scanOptions(args)
		session, err := scanToCompletion(cmd.Context(), opts, method)
		if err != nil {
			return err
		}
		st := session.Store()

		all := filterEnvironments(st.List(), scanFilter{MinSize: minSize, Buckets: buckets})
		targets := filterEnvironments(all, scanFilter{SkipUnmanaged: !cleanIncludeUnmanaged})
		sortBySize(targets)
		skippedUnmanaged := len(all) - len(targets)

		if len(targets) == 0 {
			cleanPrintln("Nothing to clean!")
			if skippedUnmanaged > 0 {
				cleanPrint("%d environment(s) without a manifest were skipped; use --include-unmanaged to delete them.\n", skippedUnmanaged)
			}
			if jsonFlag {
				return printJSON(buildCleanJSON(targets, session.Progress(), nil, cleanDryRun))
			}
			return nil
		}

		if !cleanQuiet && !jsonFlag {
			printScanResults(targets, time.Now())
			if skippedUnmanaged > 0 {
				fmt.Printf("Skipped %d environment(s) without a manifest (use --include-unmanaged).\n", skippedUnmanaged)
			}
		}

		var totalSize int64
		for _, t := range targets {
			totalSize += t.SizeBytes
		}
		action := "Delete"
		if method == trash.Trash {
			action = "Move to Trash"
		}

		if cleanDryRun {
			cleanPrint("\n[DRY RUN] Would %s %d environments (%s).\n", strings.ToLower(action), len(targets), utils.FormatSize(totalSize))
			cleanPrintln("[DRY RUN] Nothing was deleted.")
			if jsonFlag {
				return printJSON(buildCleanJSON(targets, session.Progress(), nil, true))
			}
			return nil
		}

		if !cleanQuiet {
			printYoloWarning()
		}

		if !shouldSkipConfirm(cleanYes) {
			prompt := fmt.Sprintf("\n%s %d environments (%s)?", action, len(targets), utils.FormatSize(totalSize))
			if !confirmAction(prompt) {
				cleanPrintln("Cancelled.")
				return nil
			}
			if unmanaged := engine.Unmanaged(targets); len(unmanaged) > 0 {
				fmt.Printf("\n%d of these have no dependency manifest and cannot be recreated from one:\n", len(unmanaged))
				for _, e := range unmanaged {
					fmt.Printf("  %s\n", e.Path)
				}
				if !confirmDangerous("Delete them anyway?") {
					cleanPrintln("Cancelled.")
					return nil
				}
			}
		}

		for _, t := range targets {
			if err := st.Mark(t.Path, true); err != nil {
				logger.Warn("mark failed", "path", t.Path, "err", err)
			}
		}

		freeBefore, freeErr := diskFree(opts.Root)
		outcomes, err := session.DeleteMarked(cmd.Context(), func(p engine.Progress) {
			if p.Outcome.Err != nil {
				cleanPrint("  [%d/%d] Failed: %v\n", p.Done, p.Total, p.Outcome.Err)
				return
			}
			cleanPrint("  [%d/%d] %s\n", p.Done, p.Total, p.Current)
		})
		if err != nil {
			return err
		}

		recordHistory(opts.Root, string(method), outcomes)

		freed := engine.FreedBytes(outcomes)
		failed := len(engine.Failures(outcomes))
		if jsonFlag {
			return printJSON(buildCleanJSON(targets, session.Progress(), outcomes, false))
		}

		cleanPrint("\nDeleted %d environments (%s freed)", len(outcomes)-failed-skippedCount(outcomes), utils.FormatSize(freed))
		if failed > 0 {
			cleanPrint(", %d failed", failed)
		}
		cleanPrintln()
		if freeErr == nil {
			if freeAfter, err := diskFree(opts.Root); err == nil {
				cleanPrint("Free space: %s -> %s\n", utils.FormatSize(freeBefore), utils.FormatSize(freeAfter))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d environment(s) could not be deleted", failed)
		}
		return nil
	},
}

func init() {
	f := cleanCmd.Flags()
	f.BoolVar(&cleanTrash, "trash", false, "Move to Trash instead of deleting permanently")
	f.BoolVarP(&cleanYes, "yes", "y", false, "Skip confirmation prompt")
	f.BoolVar(&cleanDryRun, "dry-run", false, "Show what would be deleted without actually deleting")
	f.BoolVarP(&cleanQuiet, "quiet", "q", false, "Suppress all output")
	f.BoolVar(&cleanIncludeUnmanaged, "include-unmanaged", false, "Also delete environments with no dependency manifest")
	f.StringVar(&cleanBucket, "bucket", "very-old", "Age bucket to delete: very-old, old (old and very-old), recent or all")
	f.StringVar(&cleanMinSize, "min-size", "", "Only delete environments at least this large (e.g. 100MB)")
}

func skippedCount(outcomes []engine.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Skipped {
			n++
		}
	}
	return n
}

// recordHistory appends successful and failed deletions to the history file.
func recordHistory(root, method string, outcomes []engine.Outcome) {
	entry := history.NewEntry(root, method, time.Now())
	for _, o := range outcomes {
		switch {
		case o.OK():
			entry.Add(history.Item{
				Path:      o.Path,
				Bucket:    o.Bucket.String(),
				Bytes:     o.FreedBytes,
				Unmanaged: !o.HasManifest,
			})
		case o.Err != nil:
			entry.Failed++
		}
	}
	if err := history.New(history.DefaultPath()).Record(entry); err != nil {
		logger.Warn("failed to record history", "err", err)
	}
}
