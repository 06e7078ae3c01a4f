package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WSR_ENGINE_CONCURRENCY.
const EnvPrefix = "WSR"

var valid = validator.New()

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Collector CollectorConfig `yaml:"collector" mapstructure:"collector"`
	Writer    WriterConfig    `yaml:"writer" mapstructure:"writer"`
	Log       ZapLogConfig    `yaml:"log" mapstructure:"log"`
}

// ServerConfig HTTP服务配置（/metrics, /health, /ready）
type ServerConfig struct {
	Enable       bool          `yaml:"enable" mapstructure:"enable"`
	Addr         string        `yaml:"addr" mapstructure:"addr" validate:"required_if=Enable true"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gt=0"`
}

// EngineConfig drives the collection engine and its two schedules.
// Schedules use robfig/cron syntax, "@every 1m" included.
type EngineConfig struct {
	Concurrency     int    `yaml:"concurrency" mapstructure:"concurrency" validate:"required,gt=0,lte=256"`
	RunSchedule     string `yaml:"run_schedule" mapstructure:"run_schedule" validate:"required"`
	RefreshSchedule string `yaml:"refresh_schedule" mapstructure:"refresh_schedule" validate:"required"`
	RunOnStart      bool   `yaml:"run_on_start" mapstructure:"run_on_start"`
}

// CollectorConfig 采集器配置：目录服务定位信息 + 采集器私有参数
type CollectorConfig struct {
	Kind         string            `yaml:"kind" mapstructure:"kind" validate:"required"`
	ServerName   string            `yaml:"server_name" mapstructure:"server_name" validate:"required"`
	DatabaseName string            `yaml:"database_name" mapstructure:"database_name" validate:"required"`
	TemplateName string            `yaml:"template_name" mapstructure:"template_name" validate:"required"`
	Options      map[string]string `yaml:"options" mapstructure:"options"`
}

// WriterConfig write-back stage. With Enable=false values are only logged.
type WriterConfig struct {
	Enable bool   `yaml:"enable" mapstructure:"enable"`
	DSN    string `yaml:"dsn" mapstructure:"dsn" validate:"required_if=Enable true"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level   string `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format  string `yaml:"format" mapstructure:"format" validate:"required,oneof=json console"`
	Path    string `yaml:"path" mapstructure:"path" validate:"required"`
	MaxSize int    `yaml:"max_size" mapstructure:"max_size" validate:"gt=0"`
	MaxAge  int    `yaml:"max_age" mapstructure:"max_age" validate:"gte=0"`
	Console bool   `yaml:"console" mapstructure:"console"`
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enable:       true,
			Addr:         "0.0.0.0:9091",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		},
		Engine: EngineConfig{
			Concurrency:     10,
			RunSchedule:     "@every 1m",
			RefreshSchedule: "@every 10m",
			RunOnStart:      true,
		},
		Collector: CollectorConfig{
			Kind:         "github",
			ServerName:   "./data/catalog.db",
			DatabaseName: "default",
			TemplateName: "GitHub Repository",
			Options:      map[string]string{},
		},
		Writer: WriterConfig{
			Enable: true,
			DSN:    "./data/values.db",
		},
		Log: ZapLogConfig{
			Level:   "info",
			Format:  "json",
			Path:    "./logs",
			MaxSize: 100,
			MaxAge:  7,
			Console: true,
		},
	}
}

// LoadConfigWithCli 支持 time.Duration，(Flags + YAML + ENV)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	cfg := NewDefaultConfig()
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)，文件可选
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// 3. 环境变量 WSR_ENGINE_CONCURRENCY -> engine.concurrency
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := decode(v.AllSettings(), cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// decode 反序列化到结构体（支持 time.Duration 和逗号分隔切片）
func decode(settings map[string]any, cfg *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(settings); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Collector.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}
