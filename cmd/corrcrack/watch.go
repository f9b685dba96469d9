package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Evaluate the configured groups on the configured cadence until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := buildMarket(cfg)
		defer m.Disconnect()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info().Dur("interval", cfg.ScanInterval.Std()).Int("groups", len(cfg.Groups)).Msg("Watching")
		ticker := time.NewTicker(cfg.ScanInterval.Std())
		defer ticker.Stop()

		for {
			if err := runGroups(ctx, m, cfg, false); err != nil {
				log.Warn().Err(err).Msg("Scan pass had failures")
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				log.Info().Msg("Shutting down")
				return nil
			}
		}
	},
}
