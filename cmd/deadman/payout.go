package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/deadswitch-go/authority"
	"github.com/bitfsorg/deadswitch-go/processor"
)

// switchArgs parses the <owner> <switch-id> pair permissionless commands take.
func switchArgs(args []string) (authority.Address, string, error) {
	owner, err := authority.ParseAddress(args[0])
	return owner, args[1], err
}

func newExpireCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "expire <owner> <switch-id>",
		Short: "Marks a switch past its deadline as expired",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, id, err := switchArgs(args)
			if err != nil {
				return err
			}
			rc, err := run(processor.NewInstruction(processor.OpExpire, owner, id))
			if err != nil {
				return err
			}
			printReceipt(rc)
			return nil
		},
	}
}

func newDistributeCommand() *cobra.Command {
	var asset string
	cmd := &cobra.Command{
		Use:   "distribute [options] <owner> <switch-id> <beneficiary>",
		Short: "Pays a beneficiary its share of an expired switch",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, id, err := switchArgs(args)
			if err != nil {
				return err
			}
			ben, err := authority.ParseAddress(args[2])
			if err != nil {
				return err
			}
			a, err := parseAsset(asset)
			if err != nil {
				return err
			}
			ins := processor.NewInstruction(processor.OpDistribute, owner, id)
			ins.Beneficiary = ben
			ins.Asset = a
			rc, err := run(ins)
			if err != nil {
				return err
			}
			printReceipt(rc)
			return nil
		},
	}
	cmd.Flags().StringVar(&asset, "asset", "native", "\"native\" or a token mint address")
	return cmd
}

func newDistributeAssetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "distribute-asset <owner> <switch-id> <beneficiary> <asset> <amount>",
		Short: "Pays part of a beneficiary's fixed allocation",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, id, err := switchArgs(args)
			if err != nil {
				return err
			}
			ben, err := authority.ParseAddress(args[2])
			if err != nil {
				return err
			}
			a, err := parseAsset(args[3])
			if err != nil {
				return err
			}
			amount, err := strconv.ParseUint(args[4], 10, 64)
			if err != nil {
				return err
			}
			ins := processor.NewInstruction(processor.OpDistributeAsset, owner, id)
			ins.Beneficiary = ben
			ins.Asset = a
			ins.Amount = amount
			rc, err := run(ins)
			if err != nil {
				return err
			}
			printReceipt(rc)
			return nil
		},
	}
}
