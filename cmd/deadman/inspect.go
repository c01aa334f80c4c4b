package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/deadswitch-go/authority"
	"github.com/bitfsorg/deadswitch-go/deadman"
	"github.com/bitfsorg/deadswitch-go/store"
)

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <owner> <switch-id>",
		Short: "Prints a switch record and its escrow balances",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, id, err := switchArgs(args)
			if err != nil {
				return err
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			s, err := store.Lookup(e.store, owner, id)
			if err != nil {
				return err
			}
			record, err := s.RecordAddress()
			if err != nil {
				return err
			}
			escrow, err := s.EscrowAddress()
			if err != nil {
				return err
			}

			color.Blue("switch %q owned by %s", s.SwitchID, s.Owner)
			fmt.Printf("record    %s (bump %d, rent %d)\n", record, s.Bump, e.ledger.Reserve(deadman.RecordSize(s)))
			fmt.Printf("escrow    %s (bump %d)\n", escrow, s.EscrowBump)
			fmt.Printf("status    %s\n", s.Status)
			fmt.Printf("model     %s\n", s.Model)
			fmt.Printf("timeout   %s\n", time.Duration(s.TimeoutSeconds)*time.Second)
			fmt.Printf("created   %s\n", formatTime(s.CreatedAt))
			fmt.Printf("deadline  %s\n", formatTime(s.HeartbeatDeadline))
			fmt.Printf("nonce     %d\n", s.Nonce)

			if s.Model == deadman.ModelProportional {
				fmt.Printf("asset     %s\n", s.TokenType)
				for _, b := range s.Beneficiaries {
					fmt.Printf("  %s %5d bps\n", b.Address, b.ShareBps)
				}
			} else {
				for _, a := range s.Allocations {
					fmt.Printf("  %s\n", a.Address)
					for _, aa := range a.Assets {
						fmt.Printf("    %s %d (paid %d)\n", aa.Asset, aa.Amount, aa.Paid)
					}
				}
			}

			ctx := context.Background()
			assets := append([]deadman.Asset{deadman.Native()}, s.Assets()...)
			seen := map[deadman.Asset]bool{}
			for _, a := range assets {
				if seen[a] {
					continue
				}
				seen[a] = true
				var bal uint64
				if a.IsNative() {
					bal, err = e.ledger.Balance(ctx, escrow)
				} else {
					bal, err = e.ledger.TokenBalance(ctx, a.Mint, escrow)
				}
				if err != nil {
					return err
				}
				fmt.Printf("balance   %d %s\n", bal, a)
			}
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list [options]",
		Short: "Lists stored switches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			var switches []*deadman.Switch
			if owner != "" {
				o, err := authority.ParseAddress(owner)
				if err != nil {
					return err
				}
				switches, err = e.store.ListByOwner(o)
				if err != nil {
					return err
				}
			} else {
				switches, err = e.store.List()
				if err != nil {
					return err
				}
			}
			for _, s := range switches {
				line := fmt.Sprintf("%s %-32s %-9s %-12s %s", s.Owner, s.SwitchID, s.Status, s.Model, formatTime(s.HeartbeatDeadline))
				switch s.Status {
				case deadman.StatusActive:
					color.Green("%s", line)
				case deadman.StatusExpired:
					color.Red("%s", line)
				default:
					color.Yellow("%s", line)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only list switches of this owner")
	return cmd
}

func newFundCommand() *cobra.Command {
	var mint string
	cmd := &cobra.Command{
		Use:   "fund [options] <address> <amount>",
		Short: "Credits an address on the local ledger",
		Long: `
Credits native units, or tokens with --mint, to any address on the local
ledger. Use it to fund an escrow shown by "deadman show".

$ deadman fund 7c...e2 1000000

`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := authority.ParseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return err
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := context.Background()
			if mint == "" {
				err = e.ledger.Credit(ctx, addr, amount)
			} else {
				var m authority.Address
				if m, err = authority.ParseAddress(mint); err == nil {
					err = e.ledger.CreditToken(ctx, m, addr, amount)
				}
			}
			if err != nil {
				return err
			}
			color.Green("credited %d to %s", amount, addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "token mint address; native when empty")
	return cmd
}
