package agent

import (
	"github.com/spf13/cobra"
)

func initEngineFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.Int("engine.concurrency", defaultCfg.Engine.Concurrency, "-> Max fetches in flight per cycle (并发采集上限)")
	f.String("engine.run_schedule", defaultCfg.Engine.RunSchedule, "-> Cron spec of collection cycles (采集周期)")
	f.String("engine.refresh_schedule", defaultCfg.Engine.RefreshSchedule, "-> Cron spec of asset refreshes (资产刷新周期)")
	f.Bool("engine.run_on_start", defaultCfg.Engine.RunOnStart, "-> Run one cycle right after start (启动后立即采集一次)")
}
