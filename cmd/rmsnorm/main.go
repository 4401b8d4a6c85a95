package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/23skdu/longbow-rmsnorm/internal/config"
	"github.com/23skdu/longbow-rmsnorm/internal/device"
)

var (
	configPath  string
	logLevel    string
	workers     int64
	enableOTel  bool
	metricsAddr string
	cpuProfile  string
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to YAML config file",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Usage:       "worker goroutines blocks are spread over (0 = physical cores)",
			Destination: &workers,
		},
		&cli.BoolFlag{
			Name:        "otel",
			Usage:       "enable OpenTelemetry tracing (stdout)",
			Destination: &enableOTel,
		},
		&cli.StringFlag{
			Name:        "metrics-addr",
			Usage:       "serve Prometheus metrics on this address (e.g. :9100)",
			Destination: &metricsAddr,
		},
		&cli.StringFlag{
			Name:        "cpuprofile",
			Usage:       "write cpu profile to file",
			Destination: &cpuProfile,
		},
	}
}

func main() {
	// Initialize logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	app := &cli.Command{
		Name:  "rmsnorm",
		Usage: "Fused residual RMSNorm kernel: benchmark, verify and run",
		Flags: globalFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			benchCmd(),
			verifyCmd(),
			fixtureCmd(),
			runCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("rmsnorm failed")
		os.Exit(1)
	}
}

// session is the shared state every subcommand starts from.
type session struct {
	cfg     config.Config
	stream  *device.Stream
	cleanup []func()
}

// setup loads config, applies flag overrides, configures logging, tracing,
// metrics and profiling, and opens a stream.
func setup(cmd *cli.Command) (*session, error) {
	cfg, err := config.Load(configPath, false)
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("log-level") || cfg.Log.Level == "" {
		cfg.Log.Level = logLevel
	}
	if cmd.IsSet("workers") {
		cfg.Device.Workers = int(workers)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := cfg.LogLevel()
	zerolog.SetGlobalLevel(lvl)

	s := &session{cfg: cfg}

	if enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.cleanup = append(s.cleanup, func() { _ = shutdown(context.Background()) })
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", handleHealth)
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", metricsAddr).Msg("Metrics server failed")
			}
		}()
		log.Info().Str("addr", metricsAddr).Msg("Serving metrics")
		s.cleanup = append(s.cleanup, func() { _ = srv.Close() })
	}

	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not start CPU profile: %w", err)
		}
		s.cleanup = append(s.cleanup, func() {
			pprof.StopCPUProfile()
			f.Close()
		})
	}

	stream, err := cfg.NewStream()
	if err != nil {
		s.close()
		return nil, err
	}
	s.stream = stream
	dev := stream.Device()
	log.Info().
		Str("device", dev.Name).
		Int("workers", dev.Workers).
		Int("max_threads_per_block", dev.MaxThreadsPerBlock).
		Strs("features", dev.Features()).
		Msg("Device ready")
	return s, nil
}

func (s *session) close() {
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			log.Warn().Err(err).Msg("Stream closed with error")
		}
	}
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("rmsnorm"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
