package main

import (
	"context"
	"fmt"
	"time"

	"github.com/maxpert/eventwire/cfg"
	"github.com/maxpert/eventwire/wire"
	"github.com/rs/zerolog/log"
)

// applyRoutes registers every configured route on w
func applyRoutes(w *wire.Wire, routes []cfg.RouteConfiguration) error {
	for i, route := range routes {
		if err := applyRoute(w, route); err != nil {
			return fmt.Errorf("route %d (%s): %w", i, route.Channel, err)
		}
	}
	return nil
}

func applyRoute(w *wire.Wire, route cfg.RouteConfiguration) error {
	h := routeHandler(route)

	var opts []wire.HandlerOption
	if route.Name != "" {
		opts = append(opts, wire.WithName(route.Name))
	}
	if route.Priority != nil {
		opts = append(opts, wire.WithPriority(*route.Priority))
	}
	if route.Ensure {
		opts = append(opts, wire.WithEnsure())
	}
	if route.Parallel {
		opts = append(opts, wire.WithParallel())
	}

	var err error
	switch route.Kind {
	case cfg.KindOnce:
		err = w.Once(route.Channel, h, opts...)
	case cfg.KindBefore:
		err = w.Before(route.Channel, h, opts...)
	case cfg.KindAfter:
		err = w.After(route.Channel, h, opts...)
	default:
		err = w.On(route.Channel, h, opts...)
	}
	if err != nil {
		return err
	}

	if len(route.Skip) > 0 {
		return w.Skip(route.Channel, route.Skip...)
	}
	return nil
}

// routeHandler builds the demo handler for a route action
func routeHandler(route cfg.RouteConfiguration) *wire.Handler {
	name := route.Name
	if name == "" {
		name = wire.AnonymousName
	}

	switch route.Action {
	case cfg.ActionFail:
		return wire.Sync(func(ctx context.Context, payload any) error {
			return fmt.Errorf("route %s rejected %s", name, wire.Channel(ctx))
		})

	case cfg.ActionSleep:
		delay := time.Duration(route.SleepMS) * time.Millisecond
		return wire.Callback(func(ctx context.Context, payload any, done func(error)) {
			channel := wire.Channel(ctx)
			time.AfterFunc(delay, func() {
				log.Info().Str("handler", name).Str("channel", channel).Dur("slept", delay).Msg("Event handled")
				done(nil)
			})
		})

	default:
		return wire.Sync(func(ctx context.Context, payload any) error {
			log.Info().Str("handler", name).Str("channel", wire.Channel(ctx)).Interface("payload", payload).Msg("Event received")
			return nil
		})
	}
}
