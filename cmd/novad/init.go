package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/novafoundation/nova-core/internal/config"
	"github.com/novafoundation/nova-core/internal/crypto"
)

const identitySeedSize = 32

func initCmd() *cobra.Command {
	var (
		dataDir string
		network string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new node: creates the data directory and a validator keypair",
		RunE: func(_ *cobra.Command, _ []string) error {
			return initDataDir(dataDir, network, force)
		},
	}
	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", "./data", "data directory to initialize")
	cmd.Flags().StringVar(&network, "network", "devnet", "network to configure for: mainnet, testnet, or devnet")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing identity")
	return cmd
}

func initDataDir(dataDir, network string, force bool) error {
	keyPath := filepath.Join(dataDir, "identity.key")
	if _, err := os.Stat(keyPath); err == nil && !force {
		return fmt.Errorf("identity already exists at %s, pass --force to overwrite", keyPath)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	identity, err := loadOrCreateIdentity(keyPath)
	if err != nil {
		return fmt.Errorf("generate identity: %w", err)
	}

	var netID config.NetworkID
	switch network {
	case "mainnet":
		netID = config.Mainnet
	case "testnet":
		netID = config.Testnet
	default:
		netID = config.Devnet
	}

	fmt.Printf("initialized %s node at %s\n", netID, dataDir)
	fmt.Printf("address: %s\n", identity.Address().Encode(netID.AddressPrefix()))
	return nil
}

func loadOrCreateIdentity(path string) (*crypto.Keypair, error) {
	if raw, err := os.ReadFile(path); err == nil {
		seed, err := hex.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("decode identity file: %w", err)
		}
		return crypto.KeypairFromSeed(seed)
	}

	seed := make([]byte, identitySeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate identity seed: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		return nil, fmt.Errorf("persist identity seed: %w", err)
	}
	return crypto.KeypairFromSeed(seed)
}
