package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sps-utils",
	Short: "SPS Matrix dApp utilities",
	Long:  "Command line access to the SPS Matrix dApp: wallet detection, registration, withdrawals and pool contributions",
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file, if empty string defaults will be used")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Print log output and the debug panel")
	rootCmd.PersistentFlags().String("account", "", "Keystore account to connect (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
