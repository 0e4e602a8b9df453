// Package cmd holds the cobra subcommands attached to the root CLI.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fencecast/internal/config"
	"fencecast/internal/encoders"
	"fencecast/internal/ffmpeg"
	"fencecast/internal/logging"
	"fencecast/internal/process"
	"fencecast/internal/store"
)

// CreateWorkerCmd creates the worker command: it runs one binding's
// transcoder in the foreground with hot reload of the binding store, which is
// useful for debugging a single uid outside the supervisor.
func CreateWorkerCmd() *cobra.Command {
	var storePath string
	var outputDir string
	var ffmpegPath string
	var hardware bool
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "worker [uid]",
		Short: "Run one binding's transcoder in the foreground",
		Long: `Spawns the transcoder process for the given binding uid and keeps it in the ` +
			`foreground. The binding store is watched for changes: an edited source URL or ` +
			`watermark set restarts the process, a removed binding shuts it down.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			uid := args[0]

			loggingConfig := logging.Config{
				Level:  "info",
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("worker").With("uid", uid)

			st := store.New(storePath, outputDir)
			if err := st.Load(); err != nil {
				logger.Error("Failed to load binding store", "error", err, "path", storePath)
				os.Exit(1)
			}

			b, ok := st.Get(uid)
			if !ok {
				logger.Error("Binding not found")
				os.Exit(1)
			}
			if b.SourceURL == "" {
				logger.Error("Binding has no source url")
				os.Exit(1)
			}

			caps := encoders.Capabilities{}
			if hardware {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				caps = encoders.Detect(ctx, ffmpegPath)
				cancel()
			}

			buildArgs := func(b store.Binding) []string {
				return ffmpeg.BuildArgs(&ffmpeg.Params{
					BinaryPath:     ffmpegPath,
					SourceURL:      b.SourceURL,
					WatermarkPaths: b.Watermarks.Paths(),
					OutputPlain:    b.OutputPlain,
					OutputOverlay:  b.OutputOverlay,
					HardwareEncode: hardware && caps.HasHardware,
				})
			}

			if err := os.MkdirAll(filepath.Dir(b.OutputPlain), 0o755); err != nil {
				logger.Error("Failed to create output directory", "error", err)
				os.Exit(1)
			}

			runner := newWorkerRunner(uid, ffmpegPath, buildArgs(b), logger)

			// Watch the store document; restart on relevant changes.
			bindingLoader := func(path string) (store.Binding, error) {
				fresh := store.New(path, outputDir)
				if err := fresh.Load(); err != nil {
					return store.Binding{}, err
				}
				fb, exists := fresh.Get(uid)
				if !exists {
					return store.Binding{}, store.ErrNotFound
				}
				return fb, nil
			}

			watcher := config.NewFileWatcher(
				storePath,
				bindingLoader,
				logger,
				config.WithDebounce[store.Binding](1500*time.Millisecond),
				config.WithErrorHandler[store.Binding](func(err error) {
					if err == store.ErrNotFound {
						logger.Warn("Binding removed from store, shutting down")
						runner.Shutdown()
					}
				}),
			)
			watcher.OnReload(func(fb store.Binding) {
				newArgs := buildArgs(fb)
				if runner.RequestRestart(newArgs) {
					logger.Info("Binding changed, restarting transcoder")
				} else {
					logger.Debug("Store reloaded, command unchanged")
				}
			})

			if err := watcher.Start(); err != nil {
				logger.Warn("Failed to start store watcher, hot-reload disabled", "error", err)
			} else {
				defer func() { _ = watcher.Stop() }()
			}

			// Forward termination signals into a graceful shutdown.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				logger.Info("Signal received, shutting down")
				runner.Shutdown()
			}()

			exitCode := runner.Run()
			logger.Info("Worker command exiting", "exit_code", exitCode)
			os.Exit(exitCode)
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "bindings.json", "Path to the binding store document")
	cmd.Flags().StringVar(&outputDir, "output-dir", "hls", "Directory for HLS output")
	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	cmd.Flags().BoolVar(&hardware, "hardware", false, "Probe for and use the hardware encoder")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

// workerRunner keeps one transcoder process in the foreground, restarting it
// when asked and exiting when the process dies on its own or Shutdown is
// called.
type workerRunner struct {
	uid    string
	binary string
	logger *slog.Logger

	mu   sync.Mutex
	args []string

	restart  chan struct{}
	shutdown chan struct{}
	once     sync.Once
}

func newWorkerRunner(uid, binary string, args []string, logger *slog.Logger) *workerRunner {
	return &workerRunner{
		uid:      uid,
		binary:   binary,
		logger:   logger,
		args:     args,
		restart:  make(chan struct{}, 1),
		shutdown: make(chan struct{}),
	}
}

// RequestRestart swaps in new arguments and schedules a restart. Reports
// false when the arguments are unchanged and no restart is needed.
func (r *workerRunner) RequestRestart(args []string) bool {
	r.mu.Lock()
	if slices.Equal(args, r.args) {
		r.mu.Unlock()
		return false
	}
	r.args = args
	r.mu.Unlock()

	select {
	case r.restart <- struct{}{}:
	default:
	}
	return true
}

// Shutdown stops the current process and ends the run loop.
func (r *workerRunner) Shutdown() {
	r.once.Do(func() { close(r.shutdown) })
}

// Run executes the process until it exits on its own or Shutdown is called.
// Restart requests stop the current process and spawn a fresh one.
func (r *workerRunner) Run() int {
	for {
		r.mu.Lock()
		args := slices.Clone(r.args)
		r.mu.Unlock()

		w := process.NewWorker(r.uid, r.binary, args, r.logger)
		w.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
		if err := w.Start(); err != nil {
			r.logger.Error("Failed to start transcoder", "error", err)
			return 1
		}

		select {
		case <-w.Done():
			return exitCode(w.ExitErr())

		case <-r.restart:
			w.Stop()
			<-w.Done()
			continue

		case <-r.shutdown:
			w.Stop()
			<-w.Done()
			return 0
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
