package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [symbol]",
	Short: "Print the current market snapshot for a symbol at the configured venue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m := buildMarket(cfg)
		defer m.Disconnect()

		provider, err := m.Provider(cfg.Venue)
		if err != nil {
			return err
		}
		snapshot, err := provider.GetMarketSnapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		bs, _ := json.Marshal(snapshot)
		fmt.Println(string(bs))
		return nil
	},
}
