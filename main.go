package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/maxpert/eventwire/admin"
	"github.com/maxpert/eventwire/cfg"
	"github.com/maxpert/eventwire/notify"
	"github.com/maxpert/eventwire/telemetry"
	"github.com/maxpert/eventwire/tick"
	"github.com/maxpert/eventwire/wire"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const collectInterval = 5 * time.Second

func main() {
	flag.Parse()

	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Setup logging
	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Uint64("instance_id", cfg.Config.InstanceID).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Info().Msg("eventwire - priority ordered publish/subscribe dispatcher")
	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()
	telemetry.InitMetrics()

	scheduler, stopScheduler := newScheduler()
	defer stopScheduler()

	w := newWire(scheduler)

	if err := applyRoutes(w, cfg.Config.Routes); err != nil {
		log.Fatal().Err(err).Msg("Failed to register routes")
		return
	}
	log.Info().Int("routes", len(cfg.Config.Routes)).Msg("Routes registered")

	collector := telemetry.NewMetricsCollector(w, collectInterval)
	collector.Start()
	defer collector.Stop()

	hub := notify.NewHub(w)
	defer hub.Close()

	if cfg.Config.Logging.Verbose {
		if err := traceDispatches(hub); err != nil {
			log.Warn().Err(err).Msg("Failed to tap dispatches")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := replayEmits(ctx, w, cfg.Config.Emits)
	log.Info().Int("emits", len(cfg.Config.Emits)).Int("failed", failed).Msg("Startup emits replayed")

	if !cfg.Config.Admin.Enabled {
		return
	}

	server := startAdmin(w, hub)

	log.Info().
		Uint64("instance_id", cfg.Config.InstanceID).
		Str("admin_address", server.Addr).
		Msg("eventwire is operational")

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Admin server shutdown failed")
	}
}

// newScheduler picks where publish completion callbacks run
func newScheduler() (tick.Scheduler, func()) {
	if cfg.Config.Dispatcher.Scheduler == cfg.SchedulerLoop {
		loop := tick.NewLoop("callbacks")
		loop.Start()
		return loop, loop.Stop
	}
	return tick.Go{}, func() {}
}

func newWire(scheduler tick.Scheduler) *wire.Wire {
	w := wire.New(
		wire.WithCacheSize(cfg.Config.Dispatcher.CacheSize),
		wire.WithHandlerTimeout(time.Duration(cfg.Config.Dispatcher.HandlerTimeoutMS)*time.Millisecond),
		wire.WithScheduler(scheduler),
		wire.WithLogger(log.With().Str("component", "wire").Logger()),
	)

	_ = w.Hook(wire.EachBefore, func(rec *wire.Record, payload any) {
		log.Debug().
			Str("handler", rec.Name()).
			Str("pattern", rec.Channel()).
			Uint64("calls", rec.Calls()).
			Msg("Invoking handler")
	})

	return w
}

// traceDispatches logs every dispatch seen by a catch-all tap
func traceDispatches(hub *notify.Hub) error {
	signals, _, err := hub.Subscribe(wire.Wildcard)
	if err != nil {
		return err
	}

	go func() {
		for sig := range signals {
			log.Debug().Str("channel", sig.Channel).Interface("payload", sig.Payload).Msg("Dispatch observed")
		}
	}()
	return nil
}

// replayEmits publishes every configured emit in order and returns how many
// failed once every completion callback has run
func replayEmits(ctx context.Context, w *wire.Wire, emits []cfg.EmitConfiguration) int {
	var wg sync.WaitGroup
	var failed atomic.Int32

	for _, emit := range emits {
		wg.Add(1)
		f := w.PublishFunc(ctx, emit.Channels, emit.Payload, func(err error) {
			defer wg.Done()
			if err != nil {
				failed.Add(1)
				log.Error().Err(err).Strs("channels", emit.Channels).Msg("Emit failed")
				return
			}
			log.Info().Strs("channels", emit.Channels).Msg("Emit completed")
		})

		// Emits replay in order
		_, _ = f.Get()
	}

	wg.Wait()
	return int(failed.Load())
}

func startAdmin(w *wire.Wire, hub *notify.Hub) *http.Server {
	mux := http.NewServeMux()
	admin.RegisterRoutes(mux, admin.NewAdminHandlers(w, hub), cfg.Config.Admin.Secret)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Config.Admin.BindAddress, cfg.Config.Admin.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Admin server failed")
		}
	}()

	return server
}
