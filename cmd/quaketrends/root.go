package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-trends/internal/adapter/chart"
	"github.com/couchcryptid/quake-trends/internal/adapter/csvstore"
	httpadapter "github.com/couchcryptid/quake-trends/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-trends/internal/adapter/kafka"
	"github.com/couchcryptid/quake-trends/internal/adapter/sqlite"
	"github.com/couchcryptid/quake-trends/internal/adapter/usgs"
	"github.com/couchcryptid/quake-trends/internal/config"
	"github.com/couchcryptid/quake-trends/internal/observability"
	"github.com/couchcryptid/quake-trends/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// app carries the state shared by the root command and its subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
}

// flagKeys maps persistent flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":     config.KeyLogLevel,
	"log-format":    config.KeyLogFormat,
	"endpoint":      config.KeyEndpoint,
	"http-addr":     config.KeyHTTPAddr,
	"kafka-brokers": config.KeyKafkaBrokers,
	"kafka-topic":   config.KeyKafkaTopic,
	"manifest":      config.KeyManifestEnabled,
	"progress":      config.KeyProgress,
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:   "quaketrends [base-dir] [download]",
		Short: "Study the precursor activity of strong earthquakes",
		Long: `quaketrends queries the USGS event service for every magnitude 6+
earthquake, downloads the events within 100 km during the year before each
of them, merges the result and plots the magnitude history and micro-event
frequency of the dataset.

base-dir defaults to the current directory. download (1, true, 0, false)
defaults to false, in which case only the plots are regenerated from the
files already under base-dir. Interrupted downloads resume where they
stopped.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runPipeline,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML config file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("endpoint", config.DefaultEndpoint, "USGS event query endpoint")
	flags.String("http-addr", "", "listen address of the ops HTTP server, empty to disable")
	flags.StringSlice("kafka-brokers", nil, "Kafka brokers to publish merged precursors to")
	flags.String("kafka-topic", "earthquake-precursors", "Kafka topic for merged precursors")
	flags.Bool("manifest", true, "record runs and fetches in the SQLite manifest")
	flags.Bool("progress", true, "show a progress bar when stderr is a terminal")
	bindFlags(a.v, flags)

	cmd.AddCommand(newStatusCmd(a), newValidateCmd(a))
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// loadConfig merges .env, the optional config file, environment, flags and
// positional arguments into a validated Config.
func (a *app) loadConfig(args []string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	if err := applyArgs(a.v, args); err != nil {
		return nil, err
	}
	return config.Load(a.v)
}

// applyArgs sets base_dir and download from the positional arguments.
func applyArgs(v *viper.Viper, args []string) error {
	if len(args) > 0 {
		v.Set(config.KeyBaseDir, args[0])
	}
	if len(args) > 1 {
		download, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("invalid download argument %q: %w", args[1], err)
		}
		v.Set(config.KeyDownload, download)
	}
	return nil
}

func (a *app) runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig(args)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	ctx := cmd.Context()

	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return fmt.Errorf("create base directory: %w", err)
	}
	store := csvstore.New(cfg.BaseDir)

	var opts []pipeline.Option
	if cfg.ManifestEnabled {
		manifest, err := sqlite.Open(store.ManifestPath())
		if err != nil {
			return err
		}
		defer func() {
			if err := manifest.Close(); err != nil {
				logger.Error("manifest close error", "error", err)
			}
		}()
		opts = append(opts, pipeline.WithManifest(manifest))
	}

	if cfg.PublishEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		opts = append(opts, pipeline.WithPublisher(writer))
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	if cfg.Progress && term.IsTerminal(int(os.Stderr.Fd())) {
		opts = append(opts, pipeline.WithProgress(progressFactory(os.Stderr)))
	}

	client := usgs.NewClient(cfg, logger, metrics)
	p := pipeline.New(cfg, client, chart.NewRenderer(logger), logger, metrics, opts...)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	if err := p.Run(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info("interrupted, rerun to resume", "base_dir", cfg.BaseDir)
		}
		return err
	}
	return nil
}

func progressFactory(w io.Writer) pipeline.ProgressFactory {
	return func(total int) pipeline.ProgressReporter {
		return progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Precursors"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("events"),
			progressbar.OptionShowIts(),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
}
