package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"corrcrack/config"
	"corrcrack/market"
	"corrcrack/strategy"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Evaluate every configured group once and print the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := buildMarket(cfg)
		defer m.Disconnect()
		return runGroups(cmd.Context(), m, cfg, true)
	},
}

// runGroups evaluates every group against the configured venue. When
// printResults is set, each result is printed as JSON; signal-less runs are
// reported either way.
func runGroups(ctx context.Context, m *market.Market, cfg *config.File, printResults bool) error {
	provider, err := m.Provider(cfg.Venue)
	if err != nil {
		return err
	}
	engine := strategy.New(provider)

	var firstErr error
	for _, group := range cfg.Groups {
		strategyCfg, err := group.StrategyConfig(cfg.Timezone)
		if err != nil {
			return err
		}
		result := engine.Run(ctx, strategyCfg)
		switch {
		case !result.Success:
			log.Error().Str("group", group.Name).Str("error", result.Error).Msg("Strategy run failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("group %q: %v", group.Name, result.Error)
			}
		case result.Signal != nil:
			log.Info().Str("group", group.Name).Str("trigger", result.Signal.TriggerAsset).Msg("Signal")
		default:
			log.Info().Str("group", group.Name).Msg("No signal")
		}
		if printResults {
			bs, _ := json.Marshal(result)
			fmt.Println(string(bs))
		}
	}
	return firstErr
}
