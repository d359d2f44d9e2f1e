package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/jongio/composeguard/analysis"
	"github.com/jongio/composeguard/cache"
	"github.com/jongio/composeguard/cliout"
	"github.com/jongio/composeguard/config"
	"github.com/jongio/composeguard/fileutil"
	"github.com/jongio/composeguard/logutil"
	"github.com/jongio/composeguard/version"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitError    = 1
	ExitFindings = 2
)

// errFindings signals findings at or above the fail threshold. The report
// has already been printed, so main only sets the exit code.
var errFindings = errors.New("findings at or above threshold")

// app carries state shared by every subcommand.
type app struct {
	configPath string
	output     string
	logFormat  string
	cacheDir   string
	debug      bool
	noColor    bool
	noCache    bool

	cfg   *config.Config
	info  *version.Info
	stdin io.Reader
}

func newRootCmd(stdin io.Reader) *cobra.Command {
	a := &app{
		info:  version.New("composeguard"),
		stdin: stdin,
	}

	root := &cobra.Command{
		Use:   "composeguard",
		Short: "Find and fix container-escape risks in Docker Compose files",
		Long: `composeguard checks Docker Compose files for settings that let a container
reach its host: privileged mode, the Docker socket, host namespaces, disabled
seccomp/AppArmor profiles, root users and writable root filesystems.

It scores each file, explains every finding and produces a hardened copy.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default .composeguard.yaml in the working directory)")
	flags.StringVarP(&a.output, "output", "o", "", "Output format: default, json or sarif")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")
	flags.StringVar(&a.cacheDir, "cache-dir", "", "Report cache directory")
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&a.noCache, "no-cache", false, "Do not read or write the report cache")

	root.AddCommand(
		newScanCmd(a),
		newPatchCmd(a),
		newDiffCmd(a),
		newRulesCmd(a),
		newSampleCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newCacheCmd(a),
		version.NewCommand(a.info, &a.output),
		newMetadataCmd(func() *cobra.Command { return root }),
	)
	return root
}

// setup loads configuration, applies flags over it and configures logging
// and output. Flags win over the environment, which wins over the file.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = a.output
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = a.cacheDir
	}
	if flags.Changed("debug") {
		cfg.Debug = a.debug
	}
	if flags.Changed("no-color") {
		cfg.NoColor = a.noColor
	}
	if flags.Changed("no-cache") {
		cfg.NoCache = a.noCache
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logutil.SetupLogger(cfg.Debug, logutil.ParseFormat(cfg.LogFormat))

	cliout.DetectColor()
	if cfg.NoColor {
		cliout.NoColor()
	}
	if err := cliout.SetFormat(cfg.Output); err != nil {
		return err
	}

	// The version command reads the effective format through this pointer.
	a.output = cfg.Output
	a.cfg = cfg
	return nil
}

// reportCache returns the report cache, or nil when caching is off or unavailable.
func (a *app) reportCache() *cache.Manager {
	if a.cfg.NoCache {
		return nil
	}
	dir := a.cfg.CacheDir
	if dir == "" {
		d, err := cache.DefaultDir()
		if err != nil {
			logutil.Warn("report cache disabled", "error", err)
			return nil
		}
		dir = d
	}
	return cache.NewManager(cache.Options{Dir: dir, TTL: a.cfg.CacheTTL, Version: a.info.Version})
}

func (a *app) analyzer(source string) *analysis.Analyzer {
	return analysis.New(source, a.reportCache())
}

// read loads the document named by args, defaulting to stdin.
func (a *app) read(args []string) (name, text string, err error) {
	name = fileutil.StdinPath
	if len(args) > 0 {
		name = args[0]
	}
	text, err = fileutil.ReadInput(name, a.stdin)
	if err != nil {
		return "", "", err
	}
	return name, text, nil
}

// checkThreshold returns errFindings when the report fails the configured threshold.
func (a *app) checkThreshold(report *analysis.Report) error {
	threshold, ok, err := a.cfg.FailOnSeverity()
	if err != nil {
		return fmt.Errorf("invalid fail-on: %w", err)
	}
	if ok && report.Failed(threshold) {
		return errFindings
	}
	return nil
}
