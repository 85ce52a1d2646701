package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/venvkiller/internal/config"
	"github.com/lu-zhengda/venvkiller/internal/engine"
	"github.com/lu-zhengda/venvkiller/internal/scanner"
	"github.com/lu-zhengda/venvkiller/internal/store"
	"github.com/lu-zhengda/venvkiller/internal/trash"
	"github.com/lu-zhengda/venvkiller/internal/tui"
	"github.com/lu-zhengda/venvkiller/internal/utils"
)

var (
	yoloMode   bool
	jsonFlag   bool
	debugFlag  bool
	configPath string
	appConfig  *config.Config
	logger     = slog.New(slog.DiscardHandler)

	recentDays  int
	oldDays     int
	maxDepth    int
	workerCount int
	excludeFlag []string

	// Set via ldflags at build time.
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "venvkiller [path]",
	Short: "Find and delete stale Python virtual environments",
	Long: "venvkiller scans a directory tree for Python virtual environments, groups them by age\n" +
		"and lets you mark and delete the ones you no longer need.\n" +
		"Launch without subcommands for the interactive TUI.",
	Version: version,
	Args:    cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Flags().Changed("version") {
			appConfig = config.Default()
			return nil
		}

		l, err := setupLogger(debugFlag)
		if err != nil {
			return err
		}
		logger = l

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		appConfig = cfg
		applyFlagOverrides(cmd)

		for _, w := range appConfig.Validate() {
			logger.Warn("config", "field", w.Field, "message", w.Message)
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := scanOptions(args)
		if err := opts.Validate(); err != nil {
			return err
		}

		if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			return runStaticScan(cmd.Context(), opts, scanFilter{})
		}
		return runTUI(opts)
	},
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("venvkiller %s\n", version))
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&yoloMode, "yolo", false, "Skip ALL confirmation prompts (dangerous!)")
	pf.BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	pf.BoolVar(&debugFlag, "debug", false, "Write a debug log to "+debugLogPath())
	pf.StringVar(&configPath, "config", "", "Path to config file (default "+config.DefaultPath()+")")
	pf.IntVarP(&recentDays, "recent", "r", 14, "Environments touched within this many days are recent")
	pf.IntVarP(&oldDays, "old", "o", 90, "Environments untouched for more than this many days are very old")
	pf.IntVar(&maxDepth, "depth", 0, "Maximum directory depth to descend (0 = unlimited)")
	pf.IntVar(&workerCount, "workers", 4, "Number of environments measured concurrently")
	pf.StringSliceVar(&excludeFlag, "exclude", nil, "Skip directories matching pattern (glob or dir/**)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)
}

// applyFlagOverrides lets explicit flags win over the config file.
func applyFlagOverrides(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("recent") {
		appConfig.RecentDays = recentDays
	}
	if f.Changed("old") {
		appConfig.OldDays = oldDays
	}
	if f.Changed("depth") {
		appConfig.Scan.MaxDepth = maxDepth
	}
	if f.Changed("workers") {
		appConfig.Scan.Workers = workerCount
	}
	if len(excludeFlag) > 0 {
		appConfig.Exclude = append(append([]string(nil), appConfig.Exclude...), excludeFlag...)
	}
}

// scanOptions builds scanner options from the config, with an optional
// root given on the command line.
func scanOptions(args []string) scanner.Options {
	if appConfig == nil {
		appConfig = config.Default()
	}
	root := appConfig.RootPath()
	if len(args) > 0 {
		root = utils.ExpandHome(args[0])
	}
	opts := scanner.Options{
		Root:       root,
		Thresholds: appConfig.Thresholds(),
		Workers:    appConfig.Scan.Workers,
		MaxDepth:   appConfig.Scan.MaxDepth,
		SkipDirs:   appConfig.Scan.Skip,
		Logger:     logger,
	}
	if len(appConfig.Exclude) > 0 {
		opts.Exclude = appConfig.IsExcluded
	}
	return opts
}

func newSession(method trash.Method) *engine.Session {
	return engine.NewSession(store.New(), engine.RemoverFunc(method.Remover()), logger)
}

// deleteMethod resolves the configured method, with --trash forcing Trash.
func deleteMethod(forceTrash bool) (trash.Method, error) {
	if forceTrash {
		return trash.Trash, nil
	}
	return trash.ParseMethod(appConfig.Delete.Method)
}

func runTUI(opts scanner.Options) error {
	method, err := deleteMethod(false)
	if err != nil {
		return err
	}
	session := newSession(method)
	m := tui.New(session, tui.Options{
		Scan:    opts,
		Confirm: appConfig.Delete.Confirm && !yoloMode,
		Method:  string(method),
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	session.Cancel()
	session.Wait()
	session.WaitDelete()

	recordHistory(opts.Root, string(method), session.Outcomes())
	printSessionSummary(session.Summary())
	return err
}

// shouldSkipConfirm returns true if the user wants to skip confirmation,
// either via command-specific --yes or global --yolo.
func shouldSkipConfirm(cmdYes bool) bool {
	return cmdYes || yoloMode || !appConfig.Delete.Confirm
}

// printYoloWarning prints a warning banner when --yolo mode is active.
func printYoloWarning() {
	if yoloMode {
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "  WARNING: --yolo mode is active. All confirmations will be skipped!")
		fmt.Fprintln(os.Stderr, "  Environments will be deleted without asking. Press Ctrl+C NOW to abort.")
		fmt.Fprintln(os.Stderr, "")
	}
}

// RootCmd returns the root cobra command for documentation generation.
func RootCmd() *cobra.Command {
	return rootCmd
}
