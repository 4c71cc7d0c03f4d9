// Command tally serves the tally HTTP API and inspects YAML ledger files.
package main

import (
	"log"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xraph/tally/config"
)

var (
	cfg        *config.Config
	configPath string
	ledgerPath string
	logger     *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("tally: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tally.yaml", "Path to the config file")
	rootCmd.PersistentFlags().StringVarP(&ledgerPath, "file", "f", "", "Ledger file (overrides ledger_file)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if ledgerPath != "" {
			loaded.LedgerFile = ledgerPath
		}
		cfg = loaded

		level, err := cfg.Level()
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		return nil
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(balancesCmd)
	balancesCmd.Flags().StringVarP(&groupRef, "group", "g", "", "Group name or ID (default: all groups)")
	balancesCmd.Flags().StringVarP(&participant, "participant", "p", "", "Show balances from this participant's side")
	rootCmd.AddCommand(totalsCmd)
	totalsCmd.Flags().StringVarP(&groupRef, "group", "g", "", "Group name or ID (default: all groups)")
	rootCmd.AddCommand(simplifyCmd)
	simplifyCmd.Flags().StringVarP(&groupRef, "group", "g", "", "Group name or ID (default: all groups)")
	simplifyCmd.Flags().BoolVar(&writeBack, "write", false, "Append the simplifications to the ledger file")
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", defaultTokenTTL, "Token lifetime")
}
