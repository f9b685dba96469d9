package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"corrcrack/config"
	"corrcrack/market"
	"corrcrack/market/capital"
)

var (
	flagConfig  string
	flagEnvFile string
	flagDebug   bool
)

var rootCmd = &cobra.Command{
	Use:   "corrcrack",
	Short: "Correlation-crack market scanner",
	Long: `corrcrack polls exchange APIs, computes per-asset high/low reference
levels over a configured window and emits a signal when exactly one member of
a correlated group breaks its level while the others hold.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if flagDebug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		if flagEnvFile != "" {
			if err := godotenv.Load(flagEnvFile); err != nil {
				return err
			}
		} else {
			// Best-effort default; a missing .env is not an error.
			_ = godotenv.Load()
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "corrcrack.yaml", "path to the scanner config file")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env", "", "path to a dotenv file with venue credentials")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(scanCmd, watchCmd, snapshotCmd)
}

// buildMarket assembles the provider registry from config + environment.
// Broker credentials come from CAPITAL_API_KEY / CAPITAL_IDENTIFIER /
// CAPITAL_PASSWORD so they never live in the YAML file.
func buildMarket(cfg *config.File) *market.Market {
	options := []market.Option{}
	if cfg.Cache.Enabled {
		options = append(options, market.WithCache(cfg.Cache.TTL.Std(), cfg.Cache.CleanupInterval.Std()))
	}
	if flagDebug {
		options = append(options, market.WithDebug())
	}
	if apiKey := os.Getenv("CAPITAL_API_KEY"); apiKey != "" {
		options = append(options, market.WithCapital(capital.Credentials{
			APIKey:     apiKey,
			Identifier: os.Getenv("CAPITAL_IDENTIFIER"),
			Password:   os.Getenv("CAPITAL_PASSWORD"),
		}))
	}
	return market.NewMarket(options...)
}

func loadConfig() (*config.File, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		log.Error().Err(err).Str("path", flagConfig).Msg("Cannot load config")
		return nil, err
	}
	return cfg, nil
}
