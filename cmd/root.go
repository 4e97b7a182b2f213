package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/strangelove-ventures/fundlens/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const appName = "fundlens"

var (
	defaultHome = os.ExpandEnv("$HOME/.fundlens")

	// Version and Commit are set at build time with -ldflags.
	Version = "dev"
	Commit  = ""
)

// appState is the modifiable state of the application.
type appState struct {
	// Log is the root logger of the application.
	// Consumers are expected to store and use local copies of the logger
	// after modifying with the .With method.
	Log *zap.Logger

	Viper *viper.Viper

	HomePath string

	Config *Config
}

// NewRootCmd returns the root command for fundlens.
// If log is nil, a new zap.Logger is set on the app state
// based on the cobra command's flags regarding logging.
func NewRootCmd(log *zap.Logger) *cobra.Command {
	a := &appState{
		Viper:  viper.New(),
		Log:    log,
		Config: &Config{},
	}

	var rootCmd = &cobra.Command{
		Use:          appName,
		Short:        "Campaign funding contract explorer, distribution previewer and transaction tool",
		SilenceUsage: true,
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// .env values fill in environment variables that are not already set.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env file: %w", err)
		}

		// Inside persistent pre-run because this takes effect after flags are parsed.
		if log == nil {
			log, err := newRootLogger(a.Viper.GetString(flagLogFormat), a.Viper.GetBool(flagDebug))
			if err != nil {
				return err
			}
			a.Log = log
		}

		a.HomePath = a.Viper.GetString(flagHome)
		if err := initConfig(a); err != nil {
			return err
		}

		metrics.BuildInfo.WithLabelValues(Version, Commit).Set(1)
		return nil
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, _ []string) {
		// Force syncing the logs before exit, if anything is buffered.
		_ = a.Log.Sync()
	}

	// Register --home flag
	rootCmd.PersistentFlags().StringVar(&a.HomePath, flagHome, defaultHome, "set home directory")
	if err := a.Viper.BindPFlag(flagHome, rootCmd.PersistentFlags().Lookup(flagHome)); err != nil {
		panic(err)
	}

	// Register --debug flag
	rootCmd.PersistentFlags().BoolP(flagDebug, "d", false, "debug output")
	if err := a.Viper.BindPFlag(flagDebug, rootCmd.PersistentFlags().Lookup(flagDebug)); err != nil {
		panic(err)
	}

	rootCmd.PersistentFlags().String(flagLogFormat, "auto", "log output format (auto, logfmt, json, or console)")
	if err := a.Viper.BindPFlag(flagLogFormat, rootCmd.PersistentFlags().Lookup(flagLogFormat)); err != nil {
		panic(err)
	}

	rootCmd.PersistentFlags().StringP(flagNetwork, "n", "", "network to use, defaults to the active network in the config file")
	if err := a.Viper.BindPFlag(flagNetwork, rootCmd.PersistentFlags().Lookup(flagNetwork)); err != nil {
		panic(err)
	}

	// FUNDLENS_NETWORK, FUNDLENS_DEBUG and friends override flags that were not set.
	a.Viper.SetEnvPrefix(appName)
	a.Viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.Viper.AutomaticEnv()

	rootCmd.AddCommand(
		configCmd(a),
		networksCmd(a),
		campaignsCmd(a),
		projectsCmd(a),
		distributionCmd(a),
		votesCmd(a),
		feesCmd(a),
		verifyCmd(a),
		startCmd(a),
		versionCmd(),
	)

	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.EnableCommandSorting = false

	rootCmd := NewRootCmd(nil)
	rootCmd.SilenceUsage = true

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for interrupt signal.
		sig := <-sigCh

		// Cancel the root context.
		cancel()

		// Short delay before printing the received signal message.
		// This should result in cleaner output from non-interactive commands that stop quickly.
		fmt.Fprintf(os.Stderr, "Received signal %v; shutting down...\n", sig)
		fmt.Fprintln(os.Stderr, "(Repeat signal to force exit)")
		signal.Stop(sigCh)
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func newRootLogger(format string, debug bool) (*zap.Logger, error) {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format("2006-01-02T15:04:05.000000Z07:00"))
	}
	config.LevelKey = "lvl"

	var enc zapcore.Encoder
	switch format {
	case "json":
		enc = zapcore.NewJSONEncoder(config)
	case "auto", "":
		if term.IsTerminal(int(os.Stderr.Fd())) {
			enc = zapcore.NewConsoleEncoder(config)
		} else {
			enc = zaplogfmt.NewEncoder(config)
		}
	case "console":
		enc = zapcore.NewConsoleEncoder(config)
	case "logfmt":
		enc = zaplogfmt.NewEncoder(config)
	default:
		return nil, fmt.Errorf("unrecognized log format %q", format)
	}

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	return zap.New(zapcore.NewCore(
		enc,
		os.Stderr,
		level,
	)), nil
}

// OverwriteConfig overwrites the config file with the given config.
func (a *appState) OverwriteConfig(cfg *Config) error {
	cfgPath := path.Join(a.HomePath, "config", "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		return fmt.Errorf("failed to check existence of config file at %s: %w", cfgPath, err)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfgPath, out, 0600); err != nil {
		return fmt.Errorf("failed to write config file at %s: %w", cfgPath, err)
	}

	a.Config = cfg
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fundlens version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", appName, Version, Commit)
			return nil
		},
	}
}
