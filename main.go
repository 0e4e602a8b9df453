package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"fencecast/cmd"
	"fencecast/internal/api"
	"fencecast/internal/config"
	"fencecast/internal/detector"
	"fencecast/internal/encoders"
	"fencecast/internal/events"
	"fencecast/internal/logging"
	"fencecast/internal/metrics"
	"fencecast/internal/store"
	"fencecast/internal/supervisor"
	"fencecast/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"fencecast.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8080" toml:"server.port" env:"PORT"`

	// Store settings
	StorePath    string `help:"Path to the binding store document" default:"bindings.json" toml:"store.path" env:"STORE_PATH"`
	OutputDir    string `help:"Directory for HLS output" default:"hls" toml:"store.output_dir" env:"OUTPUT_DIR"`
	WatermarkDir string `help:"Directory for uploaded watermark images" default:"watermarks" toml:"store.watermark_dir" env:"WATERMARK_DIR"`

	// Encoder settings
	FfmpegPath  string `help:"Path to the ffmpeg binary" default:"ffmpeg" toml:"encoder.ffmpeg_path" env:"FFMPEG_PATH"`
	UseHardware bool   `help:"Use the hardware encoder when available" default:"false" toml:"encoder.hardware" env:"USE_HARDWARE"`

	// Supervisor settings
	ReconcileInterval int `help:"Seconds between reconcile ticks" default:"5" toml:"supervisor.interval_seconds" env:"RECONCILE_INTERVAL"`
	FailureThreshold  int `help:"Consecutive missing observations before a crash restart" default:"3" toml:"supervisor.failure_threshold" env:"FAILURE_THRESHOLD"`
	DetectInterval    int `help:"Seconds between change detector scans" default:"10" toml:"detector.interval_seconds" env:"DETECT_INTERVAL"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingDetector   string `help:"Change detector logging level" default:"info" toml:"logging.detector" env:"LOGGING_DETECTOR"`
	LoggingStore      string `help:"Binding store logging level" default:"info" toml:"logging.store" env:"LOGGING_STORE"`
	LoggingFfmpeg     string `help:"Transcoder output logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"supervisor": opts.LoggingSupervisor,
				"detector":   opts.LoggingDetector,
				"store":      opts.LoggingStore,
				"ffmpeg":     opts.LoggingFfmpeg,
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingHTTP,
			},
		})
		logger := logging.GetLogger("main")
		logger.Info("Fencecast starting", "version", version.String())

		// A corrupt store is fatal at startup: bindings must never be
		// silently dropped.
		st := store.New(opts.StorePath, opts.OutputDir)
		if err := st.Load(); err != nil {
			logger.Error("Failed to load binding store", "error", err, "path", opts.StorePath)
			os.Exit(1)
		}

		probeCtx, probeCancel := context.WithTimeout(context.Background(), 15*time.Second)
		caps := encoders.Detect(probeCtx, opts.FfmpegPath)
		probeCancel()
		logger.Info("Encoder probe complete", "hardware", caps.HasHardware, "device", caps.DeviceName)

		bus := events.New()

		m := metrics.New()
		unobserve := m.Observe(bus)

		sup := supervisor.New(st, bus, caps, supervisor.Config{
			Interval:         time.Duration(opts.ReconcileInterval) * time.Second,
			FailureThreshold: opts.FailureThreshold,
			FFmpegPath:       opts.FfmpegPath,
			UseHardware:      opts.UseHardware,
		})
		det := detector.New(st, bus, time.Duration(opts.DetectInterval)*time.Second)

		// External edits to the store document are folded into the live
		// store and trigger an immediate reconcile.
		storeWatcher := config.NewFileWatcher(
			opts.StorePath,
			func(string) (struct{}, error) {
				if err := st.Load(); err != nil {
					return struct{}{}, err
				}
				return struct{}{}, nil
			},
			logging.GetLogger("store"),
		)
		storeWatcher.OnReload(func(struct{}) {
			sup.Kick()
		})

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Store:             st,
			Controller:        sup,
			Bus:               bus,
			WatermarkDir:      opts.WatermarkDir,
			HLSDir:            opts.OutputDir,
			PrometheusHandler: m.Handler(),
		})

		loopCtx, cancelLoops := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			go sup.Run(loopCtx)
			go det.Run(loopCtx)

			if err := storeWatcher.Start(); err != nil {
				logger.Warn("Failed to start store watcher, external edits need a tick to land", "error", err)
			}

			logger.Info("Starting HTTP server", "addr", opts.Port)
			if err := server.Start(opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if err := server.Stop(); err != nil {
				logger.Error("Error stopping HTTP server", "error", err)
			}
			if err := storeWatcher.Stop(); err != nil {
				logger.Error("Error stopping store watcher", "error", err)
			}
			cancelLoops()
			sup.StopAll()
			unobserve()
		})
	})

	cli.Root().Use = "fencecast"
	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateWorkerCmd())
	cli.Root().AddCommand(cmd.CreateProbeCmd())

	cli.Run()
}
