package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var rpcURL string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query the status of a running node via its RPC endpoint",
		RunE: func(_ *cobra.Command, _ []string) error {
			return queryStatus(rpcURL)
		},
	}
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "http://127.0.0.1:9741/rpc", "RPC endpoint of the running node")
	return cmd
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func callRPC(rpcURL, method string, params interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
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

func queryStatus(rpcURL string) error {
	var height struct {
		Height uint64 `json:"height"`
	}
	if err := callRPC(rpcURL, "nova_getBlockHeight", nil, &height); err != nil {
		return err
	}

	fmt.Println("Node Status:")
	fmt.Printf("  RPC endpoint: %s\n", rpcURL)
	fmt.Printf("  Height: %d\n", height.Height)
	return nil
}
