package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if !h.Enable {
		return nil
	}
	if h.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	// 用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

// Validate checks both schedules parse with the same parser the scheduler uses.
func (e *EngineConfig) Validate() error {
	if err := valid.Struct(e); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(e.RunSchedule); err != nil {
		return fmt.Errorf("engine.run_schedule %q invalid: %w", e.RunSchedule, err)
	}
	if _, err := cron.ParseStandard(e.RefreshSchedule); err != nil {
		return fmt.Errorf("engine.refresh_schedule %q invalid: %w", e.RefreshSchedule, err)
	}
	return nil
}

// Validate 采集器配置校验：选项键不能为空
func (c *CollectorConfig) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	for k := range c.Options {
		if strings.TrimSpace(k) == "" {
			return errors.New("collector.options cannot contain an empty key")
		}
	}
	return nil
}
