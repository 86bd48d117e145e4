// Command nova-cli is the wallet and transaction client for the NOVA
// settlement network: it talks to a running novad over the nova_*
// JSON-RPC API, never touching chain state directly.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "nova-cli",
		Short: "NOVA wallet and transaction client",
	}
	root.PersistentFlags().String("rpc-url", "http://127.0.0.1:9741/rpc", "RPC endpoint of a running novad")
	root.PersistentFlags().String("network", "devnet", "network: mainnet, testnet, or devnet (determines the address prefix)")

	root.AddCommand(
		walletCmd(),
		txCmd(),
		validatorCmd(),
		genesisCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information and exit",
			Run: func(_ *cobra.Command, _ []string) {
				fmt.Printf("nova-cli v%s\n", version)
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "nova-cli:", err)
		os.Exit(1)
	}
}

func addressPrefix(network string) string {
	switch network {
	case "mainnet":
		return "nova"
	case "testnet":
		return "tnova"
	default:
		return "dnova"
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func callRPC(rpcURL, method string, params interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(rpcURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if rr.Error != nil {
		return fmt.Errorf("rpc error %d: %s", rr.Error.Code, rr.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(rr.Result, out)
}
