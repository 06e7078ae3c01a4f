package agent

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/config"
	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/logger"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Initialize, run a single collection cycle, write the values and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithCli(cmd)
		if err != nil {
			return err
		}
		return runOnce(cmd.Context(), cfg)
	},
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.Initialize(ctx); err != nil {
		return err
	}
	if err := a.engine.RunOnce(ctx); err != nil {
		return fmt.Errorf("collection cycle: %w", err)
	}
	written := a.stage.Drain(ctx)

	r := a.engine.LastCycle()
	logger.Info("single cycle complete", zap.Object("report", r), zap.Int("batches_written", written))
	fmt.Fprintf(cmdOut(), "cycle %s: %d assets, %d ok, %d failed, %d skipped, %d values\n",
		r.ID, r.Assets, r.Succeeded, r.Failed, r.Skipped, r.Values)
	return nil
}
