package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/deadswitch-go/authority"
	"github.com/bitfsorg/deadswitch-go/config"
	"github.com/bitfsorg/deadswitch-go/deadman"
	"github.com/bitfsorg/deadswitch-go/ledger"
	"github.com/bitfsorg/deadswitch-go/processor"
	"github.com/bitfsorg/deadswitch-go/store"
	"github.com/bitfsorg/deadswitch-go/wallet"
)

const (
	keystoreFile = "wallet.enc"
	storeFile    = "switches.db"
	ledgerFile   = "ledger.db"
	passwordEnv  = "DEADMAN_PASSWORD"
)

var (
	dataDir  string
	password string
	keyIndex uint32

	rootCmd = &cobra.Command{
		Use:          "deadman",
		Short:        "Dead man's switch escrow CLI",
		SuggestFor:   []string{"deadswitch", "dms"},
		SilenceUsage: true,
	}
)

func init() {
	cobra.EnablePrefixMatching = true
	rootCmd.AddCommand(
		newInitCommand(),
		newWalletCommand(),
		newAddressCommand(),
		newCreateCommand(),
		newCreateAssetsCommand(),
		newHeartbeatCommand(),
		newExpireCommand(),
		newDistributeCommand(),
		newDistributeAssetCommand(),
		newCancelCommand(),
		newWithdrawCommand(),
		newShowCommand(),
		newListCommand(),
		newFundCommand(),
		newWatchCommand(),
	)

	rootCmd.PersistentFlags().StringVar(
		&dataDir,
		"datadir",
		config.DefaultDataDir(),
		"data directory holding config, keystore, store and ledger",
	)
	rootCmd.PersistentFlags().StringVar(
		&password,
		"password",
		"",
		"keystore password (defaults to $"+passwordEnv+")",
	)
	rootCmd.PersistentFlags().Uint32Var(
		&keyIndex,
		"key-index",
		0,
		"owner key index under m/44'/236'/0'/0",
	)
}

// env is everything a command needs to talk to the local switch state.
type env struct {
	cfg    config.Config
	log    log15.Logger
	store  *store.BoltStore
	ledger *ledger.BoltLedger
	proc   *processor.Processor
}

// loadConfig reads the config file under dataDir, falling back to defaults
// when there is none.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		cfg.DataDir = dataDir
	case err != nil:
		return cfg, err
	}
	return cfg, config.ValidateConfig(cfg)
}

func setupLogging(cfg config.Config) (log15.Logger, error) {
	lvl, err := log15.LvlFromString(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	handler := log15.StreamHandler(os.Stderr, log15.LogfmtFormat())
	if cfg.LogFile != "" {
		handler, err = log15.FileHandler(cfg.LogFile, log15.LogfmtFormat())
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(lvl, handler))
	return log15.Root().New("cmd", "deadman"), nil
}

func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, err
	}

	st, err := store.OpenBoltStore(filepath.Join(cfg.DataDir, storeFile))
	if err != nil {
		return nil, err
	}
	rent := ledger.Rent{PerByte: cfg.RentPerByte, Overhead: cfg.RentOverhead}
	l, err := ledger.OpenBoltLedger(filepath.Join(cfg.DataDir, ledgerFile), rent)
	if err != nil {
		st.Close()
		return nil, err
	}
	proc, err := processor.New(st, l, ledger.SystemClock{}, logger)
	if err != nil {
		l.Close()
		st.Close()
		return nil, err
	}
	return &env{
		cfg:    cfg,
		log:    logger,
		store:  st,
		ledger: l,
		proc:   proc,
	}, nil
}

func (e *env) Close() {
	if err := e.ledger.Close(); err != nil {
		e.log.Warn("closing ledger", "err", err)
	}
	if err := e.store.Close(); err != nil {
		e.log.Warn("closing store", "err", err)
	}
}

func keystorePath() string {
	return filepath.Join(dataDir, keystoreFile)
}

func keystorePassword() string {
	if password != "" {
		return password
	}
	return os.Getenv(passwordEnv)
}

// ownerKey loads the keystore and derives the owner key at --key-index.
func ownerKey() (*wallet.KeyPair, error) {
	seed, err := wallet.LoadKeystore(keystorePath(), keystorePassword())
	if err != nil {
		return nil, err
	}
	w, err := wallet.NewWallet(seed)
	if err != nil {
		return nil, err
	}
	return w.DeriveOwnerKey(keyIndex)
}

// parseAsset accepts "native" (or empty) and a 40-character token mint.
func parseAsset(s string) (deadman.Asset, error) {
	if s == "" || strings.EqualFold(s, "native") {
		return deadman.Native(), nil
	}
	mint, err := authority.ParseAddress(s)
	if err != nil {
		return deadman.Asset{}, fmt.Errorf("asset %q: %w", s, err)
	}
	return deadman.Token(mint), nil
}
