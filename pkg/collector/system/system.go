// Package system reports statistics of the host the service runs on. An
// asset stands for a host; assets naming another host are skipped.
package system

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	cload "github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/asset"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/collector"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/logger"
)

const Kind = "system"

const (
	AttrHost     = "Host"
	AttrDiskPath = "Disk Path"

	AttrCPUUsage        = "CPU Usage"
	AttrLoad1           = "Load 1"
	AttrLoad5           = "Load 5"
	AttrLoad15          = "Load 15"
	AttrMemoryUsed      = "Memory Used Percent"
	AttrMemoryAvailable = "Memory Available"
	AttrDiskUsed        = "Disk Used Percent"
)

func init() {
	collector.Register(Kind, func(s collector.Settings) (collector.Collector, error) {
		return New(s)
	})
}

// sampler wraps the gopsutil calls so tests can replace them.
type sampler struct {
	cpuPercent func(ctx context.Context) (float64, error)
	loadAvg    func(ctx context.Context) (*cload.AvgStat, error)
	memory     func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage  func(ctx context.Context, path string) (*disk.UsageStat, error)
	hostname   func(ctx context.Context) (string, error)
}

func gopsutilSampler() sampler {
	return sampler{
		cpuPercent: func(ctx context.Context) (float64, error) {
			usage, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil {
				return 0, err
			}
			if len(usage) == 0 {
				return 0, fmt.Errorf("no cpu usage reported")
			}
			return usage[0], nil
		},
		loadAvg:   cload.AvgWithContext,
		memory:    mem.VirtualMemoryWithContext,
		diskUsage: disk.UsageWithContext,
		hostname: func(ctx context.Context) (string, error) {
			info, err := host.InfoWithContext(ctx)
			if err != nil {
				return "", err
			}
			return info.Hostname, nil
		},
	}
}

// Collector 主机采集器
type Collector struct {
	log *zap.Logger
	now func() time.Time
	src sampler

	mu       sync.RWMutex
	settings collector.Settings
}

func New(s collector.Settings) (*Collector, error) {
	return &Collector{
		log:      logger.Named("collector.system"),
		now:      time.Now,
		src:      gopsutilSampler(),
		settings: s.Clone(),
	}, nil
}

func (c *Collector) Name() string { return Kind }

// ConcurrencySafe is false: cpu usage is measured between consecutive calls.
func (c *Collector) ConcurrencySafe() bool { return false }

func (c *Collector) GetSettings() collector.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Clone()
}

func (c *Collector) SetSettings(s collector.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s.Clone()
}

func (c *Collector) Fetch(ctx context.Context, a *asset.Descriptor) (collector.Batch, error) {
	if want := a.AttributeOr(AttrHost, asset.String("")).AsString(); want != "" {
		name, err := c.src.hostname(ctx)
		if err != nil {
			return collector.Batch{}, collector.NewError(Kind, a.ID(), "hostname", err)
		}
		if !strings.EqualFold(want, name) {
			return collector.Batch{}, collector.NewError(Kind, a.ID(), "match host",
				fmt.Errorf("%w: asset is for host %q, running on %q", collector.ErrNotConfigured, want, name))
		}
	}

	ts := c.now().UTC()
	batch := collector.NewBatch(Kind, a)

	// 1. CPU 使用率
	usage, err := c.src.cpuPercent(ctx)
	if err != nil {
		return collector.Batch{}, collector.NewError(Kind, a.ID(), "cpu usage", err)
	}
	batch.Add(a.Ref(AttrCPUUsage), usage, ts)

	// 2. CPU 负载，部分平台不支持，失败仅告警
	if load, err := c.src.loadAvg(ctx); err != nil {
		c.log.Warn("failed to get CPU load", zap.String("asset", a.Path()), zap.Error(err))
	} else {
		batch.Add(a.Ref(AttrLoad1), load.Load1, ts)
		batch.Add(a.Ref(AttrLoad5), load.Load5, ts)
		batch.Add(a.Ref(AttrLoad15), load.Load15, ts)
	}

	// 3. 内存
	vm, err := c.src.memory(ctx)
	if err != nil {
		return collector.Batch{}, collector.NewError(Kind, a.ID(), "memory", err)
	}
	batch.Add(a.Ref(AttrMemoryUsed), vm.UsedPercent, ts)
	batch.Add(a.Ref(AttrMemoryAvailable), int64(vm.Available), ts)

	// 4. 磁盘，仅当资产配置了路径
	if path := a.AttributeOr(AttrDiskPath, asset.String("")).AsString(); path != "" {
		du, err := c.src.diskUsage(ctx, path)
		if err != nil {
			return collector.Batch{}, collector.NewError(Kind, a.ID(), "disk usage", err)
		}
		batch.Add(a.Ref(AttrDiskUsed), du.UsedPercent, ts)
	}

	c.log.Debug("collected host statistics", zap.String("asset", a.Path()), zap.Float64("cpu", usage))
	return batch, nil
}
