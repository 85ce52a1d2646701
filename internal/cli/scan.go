package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/venvkiller/internal/engine"
	"github.com/lu-zhengda/venvkiller/internal/scancache"
	"github.com/lu-zhengda/venvkiller/internal/scanner"
	"github.com/lu-zhengda/venvkiller/internal/trash"
)

var (
	scanDiff    bool
	scanMinSize string
	scanBucket  string
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "List virtual environments without deleting anything",
	Long: "List every virtual environment below path without deleting anything.\n" +
		"Version-control directories (" + strings.Join(scanner.DefaultSkipDirs, ", ") + ") are not searched.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minSize, err := parseMinSize(scanMinSize, 0)
		if err != nil {
			return err
		}
		buckets, err := parseBuckets(scanBucket)
		if err != nil {
			return err
		}
		return runStaticScan(cmd.Context(), scanOptions(args), scanFilter{MinSize: minSize, Buckets: buckets})
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanDiff, "diff", false, "Compare with the previous scan of the same root")
	scanCmd.Flags().StringVar(&scanMinSize, "min-size", "", "Only list environments at least this large (e.g. 100MB)")
	scanCmd.Flags().StringVar(&scanBucket, "bucket", "all", "Only list this age bucket: recent, old, very-old or all")
}

// scanToCompletion runs one scan and waits for it.
func scanToCompletion(ctx context.Context, opts scanner.Options, method trash.Method) (*engine.Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	session := newSession(method)
	if _, err := session.Start(ctx, opts); err != nil {
		return nil, err
	}
	if !jsonFlag {
		fmt.Fprintf(os.Stderr, "Scanning %s...\n", opts.Root)
	}
	session.Wait()

	if errors.Is(ctx.Err(), context.Canceled) {
		return session, fmt.Errorf("scan interrupted")
	}
	return session, nil
}

func runStaticScan(ctx context.Context, opts scanner.Options, f scanFilter) error {
	session, err := scanToCompletion(ctx, opts, trash.Permanent)
	if err != nil {
		return err
	}
	progress := session.Progress()
	all := session.Store().List()
	envs := filterEnvironments(all, f)
	sortBySize(envs)

	now := time.Now()
	var diff *scancache.DiffResult
	cachePath := scancache.PathFor(progress.Root)
	curr := scancache.FromEnvironments(progress.Root, all, now)
	if scanDiff {
		if prev, err := scancache.Load(cachePath); err == nil {
			d := scancache.Diff(prev, curr)
			diff = &d
		} else {
			logger.Debug("no previous scan", "path", cachePath, "err", err)
		}
	}
	if err := scancache.Save(cachePath, curr); err != nil {
		logger.Warn("failed to save scan snapshot", "err", err)
	}

	if jsonFlag {
		return printJSON(buildScanJSON(envs, progress, diff))
	}

	printScanResults(envs, now)
	printWarnings(progress)
	fmt.Printf("Scanned %d directories in %s\n", progress.Visited, progress.Elapsed.Round(time.Millisecond))
	if diff != nil {
		printDiff(*diff)
	}
	return nil
}
