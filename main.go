package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/usbdisplay/cmd"
	"github.com/smazurov/usbdisplay/internal/adapter"
	"github.com/smazurov/usbdisplay/internal/api"
	"github.com/smazurov/usbdisplay/internal/bridge"
	"github.com/smazurov/usbdisplay/internal/capture"
	"github.com/smazurov/usbdisplay/internal/config"
	"github.com/smazurov/usbdisplay/internal/events"
	"github.com/smazurov/usbdisplay/internal/identity"
	"github.com/smazurov/usbdisplay/internal/logging"
	"github.com/smazurov/usbdisplay/internal/metrics"
	"github.com/smazurov/usbdisplay/internal/sink"
	"github.com/smazurov/usbdisplay/internal/systemd"
	"github.com/smazurov/usbdisplay/internal/vdisplay"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Capture settings
	CaptureFps            int    `help:"Frames forwarded per second" default:"20" toml:"capture.fps" env:"CAPTURE_FPS"`
	CaptureSource         string `help:"Frame source (virtual, x11)" default:"virtual" toml:"capture.source" env:"CAPTURE_SOURCE"`
	CaptureExtended       bool   `help:"Capture the extended output instead of the primary" default:"false" toml:"capture.extended" env:"CAPTURE_EXTENDED"`
	CaptureCursorOverlay  bool   `help:"Draw the cursor into forwarded frames" default:"true" toml:"capture.cursor_overlay" env:"CAPTURE_CURSOR_OVERLAY"`
	CaptureExtendedOutput string `help:"RandR name of the extended output" default:"DVI-I-1-1" toml:"capture.extended_output" env:"CAPTURE_EXTENDED_OUTPUT"`
	CaptureDisplay        string `help:"X display to capture (empty uses $DISPLAY)" default:"" toml:"capture.display" env:"CAPTURE_DISPLAY"`

	// USB settings
	UsbMatchMode        string `help:"Product id matching (band, whitelist)" default:"band" toml:"usb.match_mode" env:"USB_MATCH_MODE"`
	UsbControlTimeoutMs int    `help:"Control transfer timeout in milliseconds" default:"500" toml:"usb.control_timeout_ms" env:"USB_CONTROL_TIMEOUT_MS"`
	UsbScanSettleMs     int    `help:"Settle delay for adapters present at startup" default:"300" toml:"usb.scan_settle_ms" env:"USB_SCAN_SETTLE_MS"`
	UsbHotplugSettleMs  int    `help:"Settle delay for hot-plugged adapters" default:"600" toml:"usb.hotplug_settle_ms" env:"USB_HOTPLUG_SETTLE_MS"`

	// Identity settings
	IdentityFile string `help:"Identity block file replacing the one read from the adapter" default:"" toml:"identity.file" env:"IDENTITY_FILE"`

	// Sink settings
	SinkKind     string `help:"Frame sink (discard, dump)" default:"discard" toml:"sink.kind" env:"SINK_KIND"`
	SinkDumpPath string `help:"Output file for the dump sink" default:"frames.dump" toml:"sink.dump_path" env:"SINK_DUMP_PATH"`

	// Status API settings
	StatusAddr   string `help:"Status API listen address (empty disables it)" default:"" toml:"status.addr" env:"STATUS_ADDR"`
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingBridge   string `help:"Frame loop logging level" default:"" toml:"logging.bridge" env:"LOGGING_BRIDGE"`
	LoggingAdapter  string `help:"USB adapter logging level" default:"" toml:"logging.adapter" env:"LOGGING_ADAPTER"`
	LoggingVdisplay string `help:"Virtual display logging level" default:"" toml:"logging.vdisplay" env:"LOGGING_VDISPLAY"`
	LoggingCapture  string `help:"Screen capture logging level" default:"" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingSink     string `help:"Sink logging level" default:"" toml:"logging.sink" env:"LOGGING_SINK"`
	LoggingApi      string `help:"Status API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
}

func (o *Options) loggingConfig() logging.Config {
	modules := map[string]string{}
	for module, level := range map[string]string{
		"bridge":   o.LoggingBridge,
		"adapter":  o.LoggingAdapter,
		"vdisplay": o.LoggingVdisplay,
		"capture":  o.LoggingCapture,
		"sink":     o.LoggingSink,
		"api":      o.LoggingApi,
	} {
		if level != "" {
			modules[module] = level
		}
	}
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Modules: modules,
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(opts.loggingConfig())
		logger := logging.GetLogger("main")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			defer close(done)
			err := run(ctx, opts, logger)
			if code := bridge.ExitCode(err); code != bridge.ExitOK {
				logger.Error("Exiting", "error", err, "exit_code", code)
				os.Exit(code)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			<-done
		})
	})

	root := cli.Root()
	root.Use = "usbdisplay"
	root.Short = "Bridge a USB display adapter to an EVDI virtual display"

	root.AddCommand(cmd.CreateIdentityCmd())
	root.AddCommand(cmd.CreateOutputsCmd())
	root.AddCommand(cmd.CreateDumpInfoCmd())
	root.AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}

// run wires the bridge and blocks until ctx is cancelled or the frame loop
// fails. Setup failures carry the codes bridge.ExitCode maps to exit codes.
func run(ctx context.Context, opts *Options, logger *slog.Logger) error {
	source, err := bridge.ParseSourceKind(opts.CaptureSource)
	if err != nil {
		return err
	}
	matchMode, err := adapter.ParseMatchMode(opts.UsbMatchMode)
	if err != nil {
		return err
	}
	sinkKind, err := sink.ParseKind(opts.SinkKind)
	if err != nil {
		return err
	}

	eventBus := events.New()
	logging.SetLogCallback(events.PublishLogs(eventBus))
	defer logging.SetLogCallback(nil)

	if watcher, watchErr := config.WatchLogLevels(opts.Config); watchErr != nil {
		logger.Debug("Log level reload disabled", "error", watchErr)
	} else {
		defer func() {
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Failed to stop config watcher", "error", stopErr)
			}
		}()
	}

	var block identity.Block
	if opts.IdentityFile != "" {
		block, err = identity.Load(opts.IdentityFile)
		if err != nil {
			return bridge.NewError(bridge.ErrCodeIdentityFile, "load identity override", err)
		}
		logger.Info("Using identity override", "file", opts.IdentityFile, "fingerprint", block.Fingerprint())
	}

	usbBus, err := adapter.NewUSBBus(millis(opts.UsbControlTimeoutMs))
	if err != nil {
		return bridge.NewError(bridge.ErrCodeBusInit, "open usb context", err)
	}
	defer func() {
		if closeErr := usbBus.Close(); closeErr != nil {
			logger.Warn("Failed to close usb context", "error", closeErr)
		}
	}()

	uevents, err := adapter.NewKernelSource()
	if err != nil {
		return bridge.NewError(bridge.ErrCodeBusInit, "open uevent socket", err)
	}
	monitor := adapter.NewMonitor(usbBus, uevents, adapter.MonitorConfig{
		Matcher:       adapter.NewMatcher(matchMode),
		ScanSettle:    millis(opts.UsbScanSettleMs),
		HotplugSettle: millis(opts.UsbHotplugSettleMs),
	})
	defer func() {
		if closeErr := monitor.Close(); closeErr != nil {
			logger.Warn("Failed to close uevent socket", "error", closeErr)
		}
	}()

	if err := vdisplay.Probe(); err != nil {
		return bridge.NewError(bridge.ErrCodeNoBackend, "probe virtual display backend", err)
	}

	var screen capture.Server
	if source == bridge.SourceX11 {
		x, openErr := capture.OpenX11(opts.CaptureDisplay)
		if openErr != nil {
			return bridge.NewError(bridge.ErrCodeDisplayOpen, "open X display", openErr)
		}
		defer func() {
			if closeErr := x.Close(); closeErr != nil {
				logger.Warn("Failed to close X connection", "error", closeErr)
			}
		}()
		screen = x
	}

	loop, err := bridge.New(bridge.Options{
		FPS:           opts.CaptureFps,
		Source:        source,
		Extended:      opts.CaptureExtended,
		ExtendedName:  opts.CaptureExtendedOutput,
		CursorOverlay: opts.CaptureCursorOverlay,
		Identity:      block,
		Bus:           usbBus,
		Monitor:       monitor,
		Displays:      vdisplay.EVDIOpener{},
		Screen:        screen,
		NewSink: func() (sink.Sink, error) {
			return sink.New(sink.Config{Kind: sinkKind, DumpPath: opts.SinkDumpPath})
		},
		Events: eventBus,
	})
	if err != nil {
		return err
	}

	if opts.StatusAddr != "" {
		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Status:            loop.Status,
			EventBus:          eventBus,
			PrometheusHandler: metrics.HTTPHandler(),
		})
		go func() {
			if startErr := server.Start(opts.StatusAddr); startErr != nil {
				logger.Error("Status API stopped", "error", startErr)
			}
		}()
		defer func() {
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping status API", "error", stopErr)
			}
		}()
	}

	notifier := systemd.NewNotifier()
	notifier.Follow(eventBus)
	notifier.Ready("Waiting for adapter")
	defer notifier.Stopping()

	return loop.Run(ctx)
}
