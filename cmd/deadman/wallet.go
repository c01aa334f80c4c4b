package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/deadswitch-go/config"
	"github.com/bitfsorg/deadswitch-go/wallet"
)

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Writes a default config file to the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigPath(dataDir)
			if _, err := config.LoadConfig(path); !errors.Is(err, config.ErrConfigNotFound) {
				return fmt.Errorf("config already exists at %s", path)
			}
			cfg := config.DefaultConfig()
			cfg.DataDir = dataDir
			if err := config.SaveConfig(path, cfg); err != nil {
				return err
			}
			color.Green("wrote config to %s", path)
			return nil
		},
	}
}

func newWalletCommand() *cobra.Command {
	var (
		words      int
		mnemonic   string
		passphrase string
	)
	cmd := &cobra.Command{
		Use:   "wallet-new [options]",
		Short: "Creates the owner keystore",
		Long: `
Creates the owner keystore from a fresh or given BIP39 mnemonic. The
keystore is encrypted with --password (or $DEADMAN_PASSWORD).

$ deadman wallet-new --password hunter2

`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keystorePassword() == "" {
				return fmt.Errorf("a keystore password is required (--password or $%s)", passwordEnv)
			}
			if mnemonic == "" {
				bits := wallet.Mnemonic12Words
				if words == 24 {
					bits = wallet.Mnemonic24Words
				}
				m, err := wallet.GenerateMnemonic(bits)
				if err != nil {
					return err
				}
				mnemonic = m
				color.Yellow("write down your mnemonic, it is the only backup:\n%s", mnemonic)
			}
			seed, err := wallet.SeedFromMnemonic(mnemonic, passphrase)
			if err != nil {
				return err
			}
			w, err := wallet.NewWallet(seed)
			if err != nil {
				return err
			}
			kp, err := w.DeriveOwnerKey(keyIndex)
			if err != nil {
				return err
			}
			if err := wallet.SaveKeystore(keystorePath(), seed, keystorePassword()); err != nil {
				return err
			}
			color.Green("created keystore %s, owner %s (%s)", keystorePath(), kp.Address, kp.Path)
			return nil
		},
	}
	cmd.Flags().IntVar(&words, "words", 12, "mnemonic length, 12 or 24")
	cmd.Flags().StringVar(&mnemonic, "mnemonic", "", "restore from an existing mnemonic")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "optional BIP39 passphrase")
	return cmd
}

func newAddressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Prints the owner address at --key-index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := ownerKey()
			if err != nil {
				return err
			}
			fmt.Println(kp.Address)
			color.Blue("path %s pubkey %x", kp.Path, kp.PublicKey.Compressed())
			return nil
		},
	}
}
