package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/deadswitch-go/authority"
	"github.com/bitfsorg/deadswitch-go/deadman"
	"github.com/bitfsorg/deadswitch-go/processor"
	"github.com/bitfsorg/deadswitch-go/store"
)

const requestTimeout = 30 * time.Second

// runSigned fills in the owner and, for an existing switch, its current
// nonce, then signs ins with the owner key and executes it.
func runSigned(ins *processor.Instruction) (*processor.Receipt, error) {
	kp, err := ownerKey()
	if err != nil {
		return nil, err
	}
	e, err := openEnv()
	if err != nil {
		return nil, err
	}
	defer e.Close()

	ins.Owner = kp.Address
	if ins.Op != processor.OpInitialize && ins.Op != processor.OpInitializeWithAssets {
		s, err := store.Lookup(e.store, ins.Owner, ins.SwitchID)
		if err != nil {
			return nil, err
		}
		ins.Nonce = s.Nonce
	}
	if err := ins.Sign(kp.PrivateKey); err != nil {
		return nil, err
	}
	return e.execute(ins)
}

func run(ins *processor.Instruction) (*processor.Receipt, error) {
	e, err := openEnv()
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.execute(ins)
}

func (e *env) execute(ins *processor.Instruction) (*processor.Receipt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return e.proc.Execute(ctx, ins)
}

func printReceipt(rc *processor.Receipt) {
	color.Green("%s ok (instruction %s)", rc.Op, rc.InstructionID)
	fmt.Printf("record   %s\n", rc.Record)
	fmt.Printf("escrow   %s\n", rc.Escrow)
	fmt.Printf("status   %s\n", rc.Status)
	fmt.Printf("deadline %s\n", time.Unix(rc.Deadline, 0).UTC().Format(time.RFC3339))
	if rc.Amount > 0 {
		fmt.Printf("paid     %d %s to %s\n", rc.Amount, rc.Asset, rc.Recipient)
	}
	if rc.Closed {
		color.Yellow("switch closed and record removed")
	}
}

// parseBeneficiary parses "address:bps".
func parseBeneficiary(s string) (deadman.Beneficiary, error) {
	addr, bps, ok := strings.Cut(s, ":")
	if !ok {
		return deadman.Beneficiary{}, fmt.Errorf("beneficiary %q: want address:bps", s)
	}
	a, err := authority.ParseAddress(addr)
	if err != nil {
		return deadman.Beneficiary{}, err
	}
	share, err := strconv.ParseUint(bps, 10, 16)
	if err != nil {
		return deadman.Beneficiary{}, fmt.Errorf("beneficiary %q: %w", s, err)
	}
	return deadman.Beneficiary{Address: a, ShareBps: uint16(share)}, nil
}

// parseAllocations groups "address:asset:amount" entries by address, keeping
// first-seen order.
func parseAllocations(entries []string) ([]deadman.Allocation, error) {
	var allocs []deadman.Allocation
	index := map[authority.Address]int{}
	for _, s := range entries {
		parts := strings.Split(s, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("allocation %q: want address:asset:amount", s)
		}
		a, err := authority.ParseAddress(parts[0])
		if err != nil {
			return nil, err
		}
		asset, err := parseAsset(parts[1])
		if err != nil {
			return nil, err
		}
		amount, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("allocation %q: %w", s, err)
		}
		i, ok := index[a]
		if !ok {
			i = len(allocs)
			index[a] = i
			allocs = append(allocs, deadman.Allocation{Address: a})
		}
		allocs[i].Assets = append(allocs[i].Assets, deadman.AssetAmount{Asset: asset, Amount: amount})
	}
	return allocs, nil
}

func newCreateCommand() *cobra.Command {
	var (
		timeout       time.Duration
		beneficiaries []string
		asset         string
	)
	cmd := &cobra.Command{
		Use:   "create [options] <switch-id>",
		Short: "Creates a proportional-payout switch",
		Long: `
Creates a switch whose escrow is split between beneficiaries by basis
points once the owner stops sending heartbeats.

$ deadman create savings --timeout 720h \
    --beneficiary 1f...ab:6000 --beneficiary 2e...cd:4000

`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ins := processor.NewInstruction(processor.OpInitialize, authority.Address{}, args[0])
			ins.TimeoutSeconds = int64(timeout / time.Second)
			for _, b := range beneficiaries {
				ben, err := parseBeneficiary(b)
				if err != nil {
					return err
				}
				ins.Beneficiaries = append(ins.Beneficiaries, ben)
			}
			a, err := parseAsset(asset)
			if err != nil {
				return err
			}
			ins.Asset = a
			rc, err := runSigned(ins)
			if err != nil {
				return err
			}
			printReceipt(rc)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*24*time.Hour, "heartbeat timeout")
	cmd.Flags().StringArrayVar(&beneficiaries, "beneficiary", nil, "address:bps, repeatable")
	cmd.Flags().StringVar(&asset, "asset", "native", "\"native\" or a token mint address")
	return cmd
}

func newCreateAssetsCommand() *cobra.Command {
	var (
		timeout     time.Duration
		allocations []string
	)
	cmd := &cobra.Command{
		Use:   "create-assets [options] <switch-id>",
		Short: "Creates a fixed-allocation switch",
		Long: `
Creates a switch that pays fixed amounts of one or more assets to each
beneficiary once it expires.

$ deadman create-assets estate --timeout 720h \
    --alloc 1f...ab:native:500000 --alloc 1f...ab:9a...01:20

`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			allocs, err := parseAllocations(allocations)
			if err != nil {
				return err
			}
			ins := processor.NewInstruction(processor.OpInitializeWithAssets, authority.Address{}, args[0])
			ins.TimeoutSeconds = int64(timeout / time.Second)
			ins.Allocations = allocs
			rc, err := runSigned(ins)
			if err != nil {
				return err
			}
			printReceipt(rc)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*24*time.Hour, "heartbeat timeout")
	cmd.Flags().StringArrayVar(&allocations, "alloc", nil, "address:asset:amount, repeatable")
	return cmd
}

// newOwnerOpCommand builds the argument-less owner operations.
func newOwnerOpCommand(op processor.Op, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <switch-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := runSigned(processor.NewInstruction(op, authority.Address{}, args[0]))
			if err != nil {
				return err
			}
			printReceipt(rc)
			return nil
		},
	}
}

func newHeartbeatCommand() *cobra.Command {
	return newOwnerOpCommand(processor.OpHeartbeat, "heartbeat", "Pushes the switch deadline forward")
}

func newCancelCommand() *cobra.Command {
	return newOwnerOpCommand(processor.OpCancel, "cancel", "Cancels an active switch")
}

func newWithdrawCommand() *cobra.Command {
	var asset string
	cmd := &cobra.Command{
		Use:   "withdraw [options] <switch-id>",
		Short: "Reclaims the escrow of a canceled switch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := parseAsset(asset)
			if err != nil {
				return err
			}
			ins := processor.NewInstruction(processor.OpWithdraw, authority.Address{}, args[0])
			ins.Asset = a
			rc, err := runSigned(ins)
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
