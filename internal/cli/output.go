package cli

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lu-zhengda/venvkiller/internal/engine"
	"github.com/lu-zhengda/venvkiller/internal/scancache"
	"github.com/lu-zhengda/venvkiller/internal/scanner"
	"github.com/lu-zhengda/venvkiller/internal/utils"
)

const pathColumn = 48

// bucketOrder lists buckets stalest first, the order they are printed in.
var bucketOrder = []scanner.AgeBucket{scanner.VeryOld, scanner.Old, scanner.Recent}

func bucketTitle(b scanner.AgeBucket) string {
	switch b {
	case scanner.VeryOld:
		return "Very old"
	case scanner.Old:
		return "Old"
	default:
		return "Recent"
	}
}

func printScanResults(envs []scanner.Environment, now time.Time) {
	if len(envs) == 0 {
		fmt.Println("No virtual environments found.")
		return
	}

	grouped := make(map[scanner.AgeBucket][]scanner.Environment)
	for _, e := range envs {
		grouped[e.Bucket] = append(grouped[e.Bucket], e)
	}

	for _, b := range bucketOrder {
		items := grouped[b]
		if len(items) == 0 {
			continue
		}
		var size int64
		for _, e := range items {
			size += e.SizeBytes
		}
		label := "environments"
		if len(items) == 1 {
			label = "environment"
		}
		fmt.Printf("\n%s (%d %s, %s)\n", bucketStyle(b).Render(bucketTitle(b)), len(items), label, utils.FormatSize(size))
		fmt.Println(strings.Repeat("-", 72))
		for _, e := range items {
			fmt.Printf("  %-*s %10s %5dd%s\n",
				pathColumn, utils.TruncatePath(e.Path, pathColumn),
				utils.FormatSize(e.SizeBytes),
				utils.AgeDays(e.LastModified, now),
				envFlags(e))
		}
	}

	bb := bucketSummary(envs)
	fmt.Printf("\nTotal: %d environments, %s\n", len(envs), utils.FormatSize(bb.Total))
	if line := bucketSummaryLine(bb); line != "" {
		fmt.Println(line)
	}
}

// envFlags renders the trailing markers of a listing row.
func envFlags(e scanner.Environment) string {
	var flags []string
	if !e.HasManifest {
		flags = append(flags, "no manifest")
	}
	if e.Partial {
		flags = append(flags, "partial")
	}
	if len(flags) == 0 {
		return ""
	}
	return "  [" + strings.Join(flags, ", ") + "]"
}

func printWarnings(p engine.ScanProgress) {
	if len(p.Warnings) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\n%d warning(s):\n", len(p.Warnings)+p.Dropped)
	limit := min(len(p.Warnings), 10)
	for _, w := range p.Warnings[:limit] {
		fmt.Fprintf(os.Stderr, "  %s\n", w.Error())
	}
	if rest := len(p.Warnings) + p.Dropped - limit; rest > 0 {
		fmt.Fprintf(os.Stderr, "  ... and %d more (see --debug log)\n", rest)
	}
}

func printDiff(d scancache.DiffResult) {
	fmt.Printf("\nSince %s: %s\n", d.PreviousTimestamp.Local().Format("2006-01-02 15:04"), signedSize(d.TotalDelta))
	names := make([]string, 0, len(d.Buckets))
	for name := range d.Buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		bd := d.Buckets[name]
		suffix := ""
		if bd.IsNew {
			suffix = " (new)"
		}
		fmt.Printf("  %-10s %s%s\n", name, signedSize(bd.Delta), suffix)
	}
	for _, p := range d.Added {
		fmt.Printf("  + %s\n", p)
	}
	for _, p := range d.Removed {
		fmt.Printf("  - %s\n", p)
	}
}

func signedSize(n int64) string {
	if n < 0 {
		return "-" + utils.FormatSize(-n)
	}
	return "+" + utils.FormatSize(n)
}

func printSessionSummary(s engine.Summary) {
	fmt.Println("Session summary")
	fmt.Printf("  Environments found:   %d (%s)\n", s.Found, utils.FormatSize(s.FoundBytes))
	fmt.Printf("  Environments deleted: %d\n", s.Deleted)
	if s.Failed > 0 {
		fmt.Printf("  Failed deletions:     %d\n", s.Failed)
	}
	fmt.Printf("  Space saved:          %s\n", utils.FormatSize(s.FreedBytes))
}

var stdin = bufio.NewReader(os.Stdin)

func confirmAction(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	response, _ := stdin.ReadString('\n')
	return strings.ToLower(strings.TrimSpace(response)) == "y"
}

// confirmDangerous asks for the full word "yes".
func confirmDangerous(prompt string) bool {
	fmt.Printf("%s Type 'yes' to continue: ", prompt)
	response, _ := stdin.ReadString('\n')
	return strings.ToLower(strings.TrimSpace(response)) == "yes"
}
