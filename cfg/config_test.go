package cfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfig(t *testing.T, c *Configuration) {
	t.Helper()
	original := Config
	Config = c
	t.Cleanup(func() { Config = original })
}

func intPtr(v int) *int { return &v }

func TestValidate_Defaults(t *testing.T) {
	withConfig(t, Default())
	assert.NoError(t, Validate())
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Configuration)
	}{
		{"zero cache size", func(c *Configuration) { c.Dispatcher.CacheSize = 0 }},
		{"negative timeout", func(c *Configuration) { c.Dispatcher.HandlerTimeoutMS = -1 }},
		{"unknown scheduler", func(c *Configuration) { c.Dispatcher.Scheduler = "fiber" }},
		{"unknown log format", func(c *Configuration) { c.Logging.Format = "xml" }},
		{"admin port too high", func(c *Configuration) {
			c.Admin.Enabled = true
			c.Admin.Port = 70000
		}},
		{"admin port zero", func(c *Configuration) {
			c.Admin.Enabled = true
			c.Admin.Port = 0
		}},
		{"route without channel", func(c *Configuration) {
			c.Routes = []RouteConfiguration{{Name: "x"}}
		}},
		{"route bad kind", func(c *Configuration) {
			c.Routes = []RouteConfiguration{{Channel: "a", Kind: "around"}}
		}},
		{"route bad action", func(c *Configuration) {
			c.Routes = []RouteConfiguration{{Channel: "a", Action: "explode"}}
		}},
		{"before with positive priority", func(c *Configuration) {
			c.Routes = []RouteConfiguration{{Channel: "a", Kind: KindBefore, Priority: intPtr(1)}}
		}},
		{"after with zero priority", func(c *Configuration) {
			c.Routes = []RouteConfiguration{{Channel: "a", Kind: KindAfter, Priority: intPtr(0)}}
		}},
		{"negative sleep", func(c *Configuration) {
			c.Routes = []RouteConfiguration{{Channel: "a", Action: ActionSleep, SleepMS: -5}}
		}},
		{"emit without channels", func(c *Configuration) {
			c.Emits = []EmitConfiguration{{Payload: "x"}}
		}},
		{"emit to wildcard", func(c *Configuration) {
			c.Emits = []EmitConfiguration{{Channels: []string{"a.*"}}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			withConfig(t, c)
			assert.Error(t, Validate())
		})
	}
}

func TestValidate_AdminDisabledIgnoresPort(t *testing.T) {
	c := Default()
	c.Admin.Port = 0
	withConfig(t, c)
	assert.NoError(t, Validate())
}

func TestLoad_File(t *testing.T) {
	withConfig(t, Default())

	path := filepath.Join(t.TempDir(), "eventwire.toml")
	content := `
instance_id = 42

[dispatcher]
cache_size = 16
handler_timeout_ms = 250
scheduler = "loop"

[logging]
verbose = true
format = "json"

[admin]
enabled = true
port = 9000
secret = "s3cret"

[[route]]
channel = "order.*"
name = "audit"
kind = "after"
priority = 20
ensure = true

[[route]]
channel = "order.created"
name = "store"
action = "sleep"
sleep_ms = 5
parallel = true
skip = ["audit"]

[[emit]]
channels = ["order.created", "order.paid"]
payload = "hello"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, Load(path))
	require.NoError(t, Validate())

	assert.Equal(t, uint64(42), Config.InstanceID)
	assert.Equal(t, 16, Config.Dispatcher.CacheSize)
	assert.Equal(t, 250, Config.Dispatcher.HandlerTimeoutMS)
	assert.Equal(t, SchedulerLoop, Config.Dispatcher.Scheduler)
	assert.True(t, Config.Logging.Verbose)
	assert.Equal(t, "json", Config.Logging.Format)
	assert.True(t, Config.Admin.Enabled)
	assert.Equal(t, 9000, Config.Admin.Port)
	assert.Equal(t, "s3cret", Config.Admin.Secret)
	assert.Equal(t, "127.0.0.1", Config.Admin.BindAddress, "unset keys keep defaults")

	require.Len(t, Config.Routes, 2)
	assert.Equal(t, "audit", Config.Routes[0].Name)
	require.NotNil(t, Config.Routes[0].Priority)
	assert.Equal(t, 20, *Config.Routes[0].Priority)
	assert.True(t, Config.Routes[0].Ensure)
	assert.Nil(t, Config.Routes[1].Priority)
	assert.Equal(t, []string{"audit"}, Config.Routes[1].Skip)
	assert.Equal(t, 5, Config.Routes[1].SleepMS)

	require.Len(t, Config.Emits, 1)
	assert.Equal(t, []string{"order.created", "order.paid"}, Config.Emits[0].Channels)
	assert.Equal(t, "hello", Config.Emits[0].Payload)
}

func TestLoad_BadFile(t *testing.T) {
	withConfig(t, Default())

	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[dispatcher\ncache_size = "), 0644))
	assert.Error(t, Load(path))
}

func TestLoad_NonExistentFile(t *testing.T) {
	c := Default()
	c.InstanceID = 7
	withConfig(t, c)

	require.NoError(t, Load(filepath.Join(t.TempDir(), "missing.toml")))
	assert.Equal(t, uint64(7), Config.InstanceID)
	assert.Equal(t, 1024, Config.Dispatcher.CacheSize)
}

func TestLoad_CLIOverrides(t *testing.T) {
	withConfig(t, Default())

	*InstanceIDFlag = 12345
	*AdminPortFlag = 9999
	defer func() {
		*InstanceIDFlag = 0
		*AdminPortFlag = 0
	}()

	require.NoError(t, Load(""))
	assert.Equal(t, uint64(12345), Config.InstanceID)
	assert.Equal(t, 9999, Config.Admin.Port)
}

func TestGenerateInstanceID(t *testing.T) {
	id1, err := generateInstanceID()
	if err != nil {
		t.Skipf("machine id unavailable: %v", err)
	}
	assert.NotZero(t, id1)

	id2, err := generateInstanceID()
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "instance ID should be deterministic for same machine")
}

func BenchmarkValidate(b *testing.B) {
	original := Config
	defer func() { Config = original }()

	Config = Default()
	Config.Routes = []RouteConfiguration{
		{Channel: "a.*", Kind: KindBefore},
		{Channel: "a.b", Action: ActionSleep, SleepMS: 1},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Validate()
	}
}
