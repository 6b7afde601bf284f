package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fiesta-bench/fiesta-runner/internal/log"
	"github.com/fiesta-bench/fiesta-runner/internal/model"
)

var (
	userConfigPath string // /default/config/path/fiesta on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	started        time.Time

	flagConfigFilePath string
	flagVerbose        bool
	flagMax            int
	flagTimeout        float64
	flagJobs           int
	flagOutput         string
	flagSkip           int
	flagAnalyzer       string
	flagCompiler       string
	flagTriage         string
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		d = "."
	}
	userConfigPath = filepath.Join(d, "fiesta")
}

func main() {
	started = time.Now()
	defaults := model.DefaultConfig(started)

	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is $FIESTACONFIG, fiesta.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	flags := rootCmd.Flags()
	flags.IntVarP(&flagMax, "max", "m", model.Get(defaults.MaxTasks), "maximum number of contracts to analyze, 0 means all")
	flags.Float64VarP(&flagTimeout, "timeout", "t", model.Get(defaults.Timeout), "analysis deadline of one contract in seconds, 0 means none")
	flags.IntVarP(&flagJobs, "jobs", "j", model.Get(defaults.Jobs), "number of analyzer processes running at once")
	flags.StringVarP(&flagOutput, "output", "o", model.Get(defaults.Output), "results file")
	flags.IntVarP(&flagSkip, "skip", "s", 0, "number of corpus items to skip")
	flags.StringVar(&flagAnalyzer, "analyzer", defaults.Analyzer.Path, "analyzer binary")
	flags.StringVar(&flagCompiler, "compiler", model.Get(defaults.Compiler), "supported compiler version prefix")
	flags.StringVar(&flagTriage, "triage", "", "directory for raw output of non interpreted runs, default is next to the results file")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse the config, setup logging
	rootCmd.PersistentPreRunE = initFiesta

	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("fiesta-runner failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "fiesta-runner [flags] PATH",
	Short:        "Runs an analyzer over every contract of a smart-contract-fiesta corpus",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         doRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a fiesta-runner",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("fiesta-runner: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:        %s\n", configPath)
		}
		fmt.Printf("fiesta-runner: %s\n", info.Main.Version)
		fmt.Printf("go:            %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:        %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:          %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:         %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func initFiesta(cmd *cobra.Command, args []string) error {
	path, err := findConfig()
	if err != nil {
		return err
	}
	configPath = path

	var fileConfig model.Config
	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		fileConfig, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error("invalid config", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config %s: %w", configPath, err)
		}
	}

	// flags have a precedence over config file
	config = overlayFlags(cmd, fileConfig, args).Merge(model.DefaultConfig(started))

	slog.SetDefault(log.New(os.Stderr, model.Get(config.Verbose)))

	slog.Debug("fiesta-runner", "configPath", configPath)
	slog.Debug("fiesta-runner", "config", config)
	return nil
}

// findConfig returns the config file to load or an empty string. An explicitly
// named file must exist.
func findConfig() (string, error) {
	explicit := flagConfigFilePath
	if explicit == "" {
		explicit = os.Getenv("FIESTACONFIG")
	}
	if explicit != "" {
		if !exists(explicit) {
			return "", fmt.Errorf("config file %s: %w", explicit, os.ErrNotExist)
		}
		return explicit, nil
	}
	for _, d := range []string{".", userConfigPath} {
		path := filepath.Join(d, "fiesta.yaml")
		if exists(path) {
			return path, nil
		}
	}
	return "", nil
}

func overlayFlags(cmd *cobra.Command, c model.Config, args []string) model.Config {
	if len(args) == 1 {
		c.Corpus = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("max") {
		c.MaxTasks = &flagMax
	}
	if flags.Changed("timeout") {
		c.Timeout = &flagTimeout
	}
	if flags.Changed("jobs") {
		c.Jobs = &flagJobs
	}
	if flags.Changed("output") {
		c.Output = &flagOutput
	}
	if flags.Changed("skip") {
		c.Skip = &flagSkip
	}
	if flags.Changed("analyzer") {
		a := model.Analyzer{Path: flagAnalyzer, Args: []string{model.DefaultDebugFlag}}
		if c.Analyzer != nil {
			a.Args = c.Analyzer.Args
			a.Env = c.Analyzer.Env
		}
		c.Analyzer = &a
	}
	if flags.Changed("compiler") {
		c.Compiler = &flagCompiler
	}
	if flags.Changed("triage") {
		c.Triage = &flagTriage
	}
	if flags.Changed("verbose") {
		c.Verbose = &flagVerbose
	}
	return c
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

var errNoCorpus = errors.New("missing corpus PATH argument")
