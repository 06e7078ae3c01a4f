package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/config"
)

// newCmd 构造一个只带少量 flag 的命令，模拟 cmd/agent 的注册方式
func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	def := config.NewDefaultConfig()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	f := cmd.Flags()
	f.StringP("config", "c", "", "")
	f.Int("engine.concurrency", def.Engine.Concurrency, "")
	f.String("engine.run_schedule", def.Engine.RunSchedule, "")
	f.String("log.level", def.Log.Level, "")
	f.String("log.path", t.TempDir(), "")
	f.Duration("server.read_timeout", def.Server.ReadTimeout, "")
	f.StringToString("collector.options", def.Collector.Options, "")
	require.NoError(t, f.Parse(args))
	return cmd
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Log.Path = t.TempDir()
	require.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadConfigWithCli(newCmd(t))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Engine.Concurrency)
	assert.Equal(t, "@every 1m", cfg.Engine.RunSchedule)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "github", cfg.Collector.Kind)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	cfg, err := config.LoadConfigWithCli(newCmd(t,
		"--engine.concurrency=3",
		"--server.read_timeout=2s",
		"--collector.options=owner=octo,burst=4",
	))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, map[string]string{"owner": "octo", "burst": "4"}, cfg.Collector.Options)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("WSR_ENGINE_CONCURRENCY", "7")
	cfg, err := config.LoadConfigWithCli(newCmd(t))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.Concurrency)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
engine:
  concurrency: 4
  refresh_schedule: "*/5 * * * *"
collector:
  kind: system
  template_name: Host
  options:
    disk_path: /
log:
  path: ` + filepath.Join(dir, "logs") + `
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadConfigWithCli(newCmd(t, "-c", path))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Engine.Concurrency)
	assert.Equal(t, "*/5 * * * *", cfg.Engine.RefreshSchedule)
	assert.Equal(t, "system", cfg.Collector.Kind)
	assert.Equal(t, "Host", cfg.Collector.TemplateName)
	assert.Equal(t, "/", cfg.Collector.Options["disk_path"])
	assert.DirExists(t, filepath.Join(dir, "logs"))
}

func TestMissingConfigFile(t *testing.T) {
	_, err := config.LoadConfigWithCli(newCmd(t, "-c", filepath.Join(t.TempDir(), "nope.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestValidation(t *testing.T) {
	cases := map[string]func(*config.Config){
		"bad run schedule":     func(c *config.Config) { c.Engine.RunSchedule = "every minute" },
		"bad refresh schedule": func(c *config.Config) { c.Engine.RefreshSchedule = "* * *" },
		"zero concurrency":     func(c *config.Config) { c.Engine.Concurrency = 0 },
		"bad level":            func(c *config.Config) { c.Log.Level = "verbose" },
		"bad format":           func(c *config.Config) { c.Log.Format = "xml" },
		"bad addr":             func(c *config.Config) { c.Server.Addr = "not-an-addr" },
		"writer without dsn":   func(c *config.Config) { c.Writer.DSN = "" },
		"missing template":     func(c *config.Config) { c.Collector.TemplateName = "" },
		"empty option key":     func(c *config.Config) { c.Collector.Options = map[string]string{" ": "x"} },
		"log path is a file": func(c *config.Config) {
			f := filepath.Join(c.Log.Path, "file")
			_ = os.WriteFile(f, nil, 0o644)
			c.Log.Path = f
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			cfg.Log.Path = t.TempDir()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDisabledServerSkipsAddr(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Log.Path = t.TempDir()
	cfg.Server.Enable = false
	cfg.Server.Addr = ""
	assert.NoError(t, cfg.Validate())
}
