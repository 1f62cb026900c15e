package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/camnode/cmd"
	"github.com/smazurov/camnode/internal/api"
	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/config"
	"github.com/smazurov/camnode/internal/detect"
	"github.com/smazurov/camnode/internal/devices"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/nats"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Camera settings
	Device      string `help:"V4L2 capture device" short:"d" default:"/dev/video0" toml:"camera.device" env:"CAMERA_DEVICE"`
	Quality     int    `help:"JPEG quality (1-100)" default:"75" toml:"camera.quality" env:"CAMERA_QUALITY"`
	Buffers     int    `help:"Driver buffer count per session" default:"3" toml:"camera.buffers" env:"CAMERA_BUFFERS"`
	LockTimeout string `help:"Bounded wait for camera ownership" default:"10s" toml:"camera.lock_timeout" env:"CAMERA_LOCK_TIMEOUT"`

	// Detection settings
	DetectionModel    string `help:"Path to detector model file" default:"" toml:"detection.model" env:"DETECTION_MODEL"`
	DetectionInterval string `help:"Minimum gap between analyzed frames" default:"100ms" toml:"detection.interval" env:"DETECTION_INTERVAL"`

	// NATS settings
	NatsEmbedded bool   `help:"Run an embedded NATS server" default:"true" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NatsPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NatsURL      string `help:"External NATS server URL (overrides embedded)" default:"" toml:"nats.url" env:"NATS_URL"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera  string `help:"Camera logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingEncoder string `help:"Encoder logging level" default:"info" toml:"logging.encoder" env:"LOGGING_ENCODER"`
	LoggingDetect  string `help:"Detection logging level" default:"info" toml:"logging.detect" env:"LOGGING_DETECT"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingNats    string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		loggingConfig := logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camera":  opts.LoggingCamera,
				"encoder": opts.LoggingEncoder,
				"detect":  opts.LoggingDetect,
				"api":     opts.LoggingAPI,
				"nats":    opts.LoggingNats,
			},
		}
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()

		// Forward new log entries onto the bus for SSE clients
		var logSeq atomic.Uint64
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        logSeq.Add(1),
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		lockTimeout, err := time.ParseDuration(opts.LockTimeout)
		if err != nil {
			lockTimeout = camera.DefaultLockTimeout
		}
		detectInterval, err := time.ParseDuration(opts.DetectionInterval)
		if err != nil {
			detectInterval = 100 * time.Millisecond
		}

		// Open the capture device and settle a format the encoder can
		// consume. A missing camera is fatal: the node exists to serve it.
		cam, err := v4l2.Open(opts.Device)
		if err != nil {
			logger.Error("Failed to open capture device", "device", opts.Device, "error", err)
			os.Exit(1)
		}

		pipeline := camera.NewPipeline(opts.Device, cam, camera.Config{
			Buffers:     uint32(opts.Buffers),
			Quality:     opts.Quality,
			LockTimeout: lockTimeout,
		}, logging.GetLogger("camera"))

		if err := pipeline.Negotiate(); err != nil {
			logger.Error("Failed to negotiate capture format", "device", opts.Device, "error", err)
			cam.Close()
			os.Exit(1)
		}

		// Embedded NATS server unless an external URL is configured
		var natsServer *nats.Server
		natsURL := opts.NatsURL
		if natsURL == "" && opts.NatsEmbedded {
			natsServer = nats.NewServer(nats.ServerOptions{
				Port:   opts.NatsPort,
				Logger: logging.GetLogger("nats"),
			})
		}

		natsClient := nats.NewClient(natsURL, opts.Device, logging.GetLogger("nats"))

		// Detection is optional: a node with a broken model still serves
		// streaming and capture.
		var runner *detect.Runner
		detector, err := detect.NewDetector(opts.DetectionModel)
		if err != nil {
			logger.Warn("Detector unavailable, detection disabled", "error", err)
		} else {
			runner = detect.NewRunner(pipeline, detector, eventBus, natsClient, detectInterval, logging.GetLogger("detect"))

			// Remote detection control over NATS
			natsClient.OnControl(func(msg nats.ControlMessage) {
				switch msg.Action {
				case "start":
					if startErr := runner.Start(); startErr != nil {
						logger.Warn("Remote detection start failed", "error", startErr)
					}
				case "stop":
					runner.Stop()
				default:
					logger.Debug("Ignoring unknown control action", "action", msg.Action)
				}
			})
		}

		bridge := nats.NewBridge(natsURL, opts.Device, eventBus, logging.GetLogger("nats"))

		apiOpts := &api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Pipeline:          pipeline,
			Runner:            runner,
			EventBus:          eventBus,
			Nats:              natsClient,
			PrometheusHandler: promhttp.Handler(),
		}

		server := api.NewServer(apiOpts)

		// Hotplug announcements for SSE clients
		deviceMonitor := devices.NewMonitor(eventBus)

		// Log levels follow config file edits at runtime
		logWatcher := config.NewConfigWatcher(opts.Config,
			func(path string) (logging.Config, error) {
				return config.LoadLoggingConfig(path), nil
			},
			logging.GetLogger("main"))
		logWatcher.OnReload(func(cfg logging.Config) {
			logging.Initialize(cfg)
			logger.Info("Logging configuration reloaded", "level", cfg.Level)
		})

		hooks.OnStart(func() {
			if monErr := deviceMonitor.Start(); monErr != nil {
				logger.Warn("Device hotplug monitoring unavailable", "error", monErr)
			}

			if watchErr := logWatcher.Start(); watchErr != nil {
				logger.Debug("Config watcher not started", "error", watchErr)
			}

			if natsServer != nil {
				if startErr := natsServer.Start(); startErr != nil {
					logger.Warn("Failed to start embedded NATS server", "error", startErr)
				} else if natsURL == "" {
					natsURL = natsServer.ClientURL()
					natsClient.SetURL(natsURL)
					bridge.SetURL(natsURL)
				}
			}

			// Messaging degrades gracefully: the node serves HTTP even
			// when no broker is reachable.
			if connErr := natsClient.Connect(); connErr != nil {
				logger.Warn("NATS unavailable, publishing disabled", "error", connErr)
			}
			if bridgeErr := bridge.Start(); bridgeErr != nil {
				logger.Debug("NATS bridge not started", "error", bridgeErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port, "device", opts.Device)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")

			// Stop detection first so the camera is free before teardown
			if runner != nil {
				runner.Stop()
			}

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if stopErr := logWatcher.Stop(); stopErr != nil {
				logger.Debug("Error stopping config watcher", "error", stopErr)
			}
			deviceMonitor.Stop()
			bridge.Stop()
			natsClient.Close()
			if natsServer != nil {
				natsServer.Stop()
			}

			if detector != nil {
				if closeErr := detector.Close(); closeErr != nil {
					logger.Warn("Error closing detector", "error", closeErr)
				}
			}

			if closeErr := cam.Close(); closeErr != nil {
				logger.Warn("Error closing capture device", "error", closeErr)
			}
		})
	})

	// Add devices command
	devicesCmd := cmd.CreateDevicesCmd()
	cli.Root().AddCommand(devicesCmd)

	// Run the CLI
	cli.Run()
}
