package cfg

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cespare/xxhash/v2"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// SchedulerType selects where publish completion callbacks run
type SchedulerType string

const (
	SchedulerGoroutine SchedulerType = "goroutine" // One goroutine per callback
	SchedulerLoop      SchedulerType = "loop"      // Single ordered worker
)

// Route kinds map to the registration calls of the dispatcher
const (
	KindOn     = "on"
	KindOnce   = "once"
	KindBefore = "before"
	KindAfter  = "after"
)

// Route actions of the demo handlers
const (
	ActionLog   = "log"
	ActionFail  = "fail"
	ActionSleep = "sleep"
)

// DispatcherConfiguration controls the dispatcher core
type DispatcherConfiguration struct {
	CacheSize        int           `toml:"cache_size"`         // Match cache capacity
	HandlerTimeoutMS int           `toml:"handler_timeout_ms"` // 0 waits forever
	Scheduler        SchedulerType `toml:"scheduler"`
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled bool `toml:"enabled"`
}

// AdminConfiguration for the HTTP inspection endpoints
type AdminConfiguration struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
	Port        int    `toml:"port"`
	Secret      string `toml:"secret"` // Empty disables auth
}

// RouteConfiguration declares one handler registration
type RouteConfiguration struct {
	Channel  string   `toml:"channel"`
	Name     string   `toml:"name"`
	Kind     string   `toml:"kind"`
	Priority *int     `toml:"priority"` // nil uses the kind's default
	Ensure   bool     `toml:"ensure"`
	Parallel bool     `toml:"parallel"`
	Action   string   `toml:"action"`
	SleepMS  int      `toml:"sleep_ms"`
	Skip     []string `toml:"skip"` // Handler names never to run on Channel
}

// EmitConfiguration declares one publish replayed at startup
type EmitConfiguration struct {
	Channels []string `toml:"channels"`
	Payload  string   `toml:"payload"`
}

// Configuration is the main configuration structure
type Configuration struct {
	InstanceID uint64 `toml:"instance_id"`

	Dispatcher DispatcherConfiguration `toml:"dispatcher"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
	Admin      AdminConfiguration      `toml:"admin"`
	Routes     []RouteConfiguration    `toml:"route"`
	Emits      []EmitConfiguration     `toml:"emit"`
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	InstanceIDFlag = flag.Uint64("instance-id", 0, "Instance ID (overrides config, 0=auto)")
	AdminPortFlag  = flag.Int("admin-port", 0, "Admin HTTP port (overrides config)")
)

// Config holds the active configuration, initialized with defaults
var Config = Default()

// Default returns a fresh default configuration
func Default() *Configuration {
	return &Configuration{
		InstanceID: 0, // Auto-generate

		Dispatcher: DispatcherConfiguration{
			CacheSize:        1024,
			HandlerTimeoutMS: 0,
			Scheduler:        SchedulerGoroutine,
		},

		Logging: LoggingConfiguration{
			Verbose: false,
			Format:  "console",
		},

		Prometheus: PrometheusConfiguration{
			Enabled: true,
		},

		Admin: AdminConfiguration{
			Enabled:     false,
			BindAddress: "127.0.0.1",
			Port:        8421,
		},
	}
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if *InstanceIDFlag != 0 {
		Config.InstanceID = *InstanceIDFlag
	}
	if *AdminPortFlag != 0 {
		Config.Admin.Port = *AdminPortFlag
	}

	if Config.InstanceID == 0 {
		var err error
		Config.InstanceID, err = generateInstanceID()
		if err != nil {
			return fmt.Errorf("failed to generate instance ID: %w", err)
		}
		log.Info().Uint64("instance_id", Config.InstanceID).Msg("Auto-generated instance ID")
	}

	return nil
}

// generateInstanceID derives a stable ID from the machine ID
func generateInstanceID() (uint64, error) {
	id, err := machineid.ProtectedID("eventwire")
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64String(id), nil
}

// Validate checks configuration for errors
func Validate() error {
	if Config.Dispatcher.CacheSize < 1 {
		return fmt.Errorf("dispatcher cache size must be >= 1")
	}

	if Config.Dispatcher.HandlerTimeoutMS < 0 {
		return fmt.Errorf("dispatcher handler timeout must be >= 0")
	}

	switch Config.Dispatcher.Scheduler {
	case SchedulerGoroutine, SchedulerLoop:
	default:
		return fmt.Errorf("invalid scheduler: %s", Config.Dispatcher.Scheduler)
	}

	if Config.Logging.Format != "console" && Config.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s", Config.Logging.Format)
	}

	if Config.Admin.Enabled && (Config.Admin.Port < 1 || Config.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", Config.Admin.Port)
	}

	for i, route := range Config.Routes {
		if err := validateRoute(route); err != nil {
			return fmt.Errorf("route %d: %w", i, err)
		}
	}

	for i, emit := range Config.Emits {
		if len(emit.Channels) == 0 {
			return fmt.Errorf("emit %d: at least one channel required", i)
		}
		for _, ch := range emit.Channels {
			if ch == "" || strings.Contains(ch, "*") {
				return fmt.Errorf("emit %d: invalid channel %q", i, ch)
			}
		}
	}

	return nil
}

func validateRoute(route RouteConfiguration) error {
	if route.Channel == "" {
		return fmt.Errorf("channel required")
	}

	switch route.Kind {
	case "", KindOn, KindOnce:
	case KindBefore:
		if route.Priority != nil && *route.Priority >= 0 {
			return fmt.Errorf("before priority must be < 0, got %d", *route.Priority)
		}
	case KindAfter:
		if route.Priority != nil && *route.Priority <= 0 {
			return fmt.Errorf("after priority must be > 0, got %d", *route.Priority)
		}
	default:
		return fmt.Errorf("invalid kind: %s", route.Kind)
	}

	switch route.Action {
	case "", ActionLog, ActionFail:
	case ActionSleep:
		if route.SleepMS < 0 {
			return fmt.Errorf("sleep_ms must be >= 0")
		}
	default:
		return fmt.Errorf("invalid action: %s", route.Action)
	}

	return nil
}
