package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/novafoundation/nova-core/internal/crypto"
)

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Wallet operations",
	}
	cmd.AddCommand(walletNewCmd(), walletBalanceCmd(), walletAddressCmd())
	return cmd
}

func walletNewCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a new wallet keypair and print its address",
		RunE: func(c *cobra.Command, _ []string) error {
			network, _ := c.Flags().GetString("network")

			seed := make([]byte, 32)
			if _, err := rand.Read(seed); err != nil {
				return fmt.Errorf("generate seed: %w", err)
			}
			kp, err := crypto.KeypairFromSeed(seed)
			if err != nil {
				return err
			}

			if out != "" {
				if err := os.WriteFile(out, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
					return fmt.Errorf("write key file: %w", err)
				}
			}

			fmt.Println("wallet created.")
			fmt.Printf("address: %s\n", kp.Address().Encode(addressPrefix(network)))
			if out != "" {
				fmt.Printf("seed written to: %s (keep this safe, it is your private key)\n", out)
			} else {
				fmt.Printf("seed (save this, it is your private key): %s\n", hex.EncodeToString(seed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "file to write the hex-encoded seed to (printed to stdout if omitted)")
	return cmd
}

func walletAddressCmd() *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the address for a wallet key file",
		RunE: func(c *cobra.Command, _ []string) error {
			network, _ := c.Flags().GetString("network")
			kp, err := loadWalletKey(keyFile)
			if err != nil {
				return err
			}
			fmt.Println(kp.Address().Encode(addressPrefix(network)))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "path to a wallet seed file (required)")
	cmd.MarkFlagRequired("key")
	return cmd
}

func walletBalanceCmd() *cobra.Command {
	var address, tokenID string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Query an address's balance via RPC",
		RunE: func(c *cobra.Command, _ []string) error {
			rpcURL, _ := c.Flags().GetString("rpc-url")

			var result struct {
				Balance uint64 `json:"balance"`
			}
			params := map[string]string{"address": address}
			if tokenID != "" {
				params["token_id"] = tokenID
			}
			if err := callRPC(rpcURL, "nova_getBalance", params, &result); err != nil {
				return err
			}
			fmt.Printf("balance: %d\n", result.Balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "address to query (required)")
	cmd.Flags().StringVar(&tokenID, "token-id", "", "token id, for non-native balances")
	cmd.MarkFlagRequired("address")
	return cmd
}

func loadWalletKey(path string) (*crypto.Keypair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	seed, err := hex.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	return crypto.KeypairFromSeed(seed)
}
