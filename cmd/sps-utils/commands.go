package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spsmatrix/dapp/dapp"
	"github.com/spsmatrix/dapp/utils"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Report the available wallet providers",
	Long:  "Report which wallet bindings exist and can serve requests, plus the already authorized accounts. Never prompts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s *session) error {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(s.controller.Detect(ctx))
		})
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Connect the wallet and print the contract state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *session) error {
			printState(s)
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the connected account under an upline",
	RunE: func(cmd *cobra.Command, args []string) error {
		upline, _ := cmd.Flags().GetString("upline")
		position, _ := cmd.Flags().GetString("position")

		return withSession(cmd, true, func(ctx context.Context, s *session) error {
			s.controller.SetInputs(dapp.InputValues{
				UplineID: upline,
				Position: position,
			})
			return s.controller.Register(ctx)
		})
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw rewards",
}

var withdrawPoolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Withdraw the pool reward",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *session) error {
			return s.controller.WithdrawPool(ctx)
		})
	},
}

var withdrawSpecialCmd = &cobra.Command{
	Use:   "special",
	Short: "Withdraw the special rewards",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, true, func(ctx context.Context, s *session) error {
			return s.controller.WithdrawSpecial(ctx)
		})
	},
}

var contributeCmd = &cobra.Command{
	Use:   "contribute",
	Short: "Contribute to the miner pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, _ := cmd.Flags().GetString("amount")

		return withSession(cmd, true, func(ctx context.Context, s *session) error {
			s.controller.SetInputs(dapp.InputValues{
				ContributeAmount: amount,
			})
			return s.controller.Contribute(ctx)
		})
	},
}

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Wallet network management",
}

var networkEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Switch the wallet to the required network, adding it if unknown",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, false, func(ctx context.Context, s *session) error {
			if err := s.controller.EnsureNetwork(ctx); err != nil {
				return err
			}
			network := s.controller.Network()
			fmt.Printf("wallet is on %v (%v)\n", network.ChainName, network.ChainID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(detectCmd, stateCmd, registerCmd, withdrawCmd, contributeCmd, networkCmd)
	withdrawCmd.AddCommand(withdrawPoolCmd, withdrawSpecialCmd)
	networkCmd.AddCommand(networkEnsureCmd)

	registerCmd.Flags().StringP("upline", "u", "", "Upline id (required)")
	registerCmd.Flags().StringP("position", "p", "false", "Placement position, \"true\"/\"right\" for the right leg")
	registerCmd.MarkFlagRequired("upline")

	contributeCmd.Flags().StringP("amount", "a", "", "Amount in native units (required)")
	contributeCmd.MarkFlagRequired("amount")
}

func printState(s *session) {
	snapshot := s.controller.Snapshot()
	symbol := s.controller.Network().CurrencySymbol()

	fmt.Printf("Account:             %v\n", snapshot.Account.Hex())
	fmt.Printf("Wallet:              %v\n", snapshot.Source)
	fmt.Printf("Chain:               %v\n", snapshot.ChainID)
	fmt.Printf("Contract:            %v\n", s.controller.ContractAddress().Hex())

	entryFeeSuffix := ""
	if !snapshot.EntryFeeSet {
		entryFeeSuffix = " (default)"
	}
	fmt.Printf("Entry fee:           %v%v\n", utils.FormatNativeRounded(snapshot.EntryFee, symbol), entryFeeSuffix)
	fmt.Printf("Wallet balance:      %v %v\n", utils.FormatNative(snapshot.Derived.WalletBalance), symbol)
	fmt.Printf("Total users:         %v\n", utils.FormatCount(snapshot.Derived.TotalUsers))
	fmt.Printf("Pool balance:        %v %v\n", utils.FormatNative(snapshot.Derived.PoolBalance), symbol)
	fmt.Printf("Special reward pool: %v %v\n", utils.FormatNative(snapshot.Derived.SpecialRewardPool), symbol)
	fmt.Printf("Eligible users:      %v\n", utils.FormatCount(snapshot.Derived.EligibleUsers))
}
