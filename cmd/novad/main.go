// Command novad runs a NOVA settlement node: storage, state tree,
// mempool, consensus engine, p2p transport, gossip layer, and the
// nova_* JSON-RPC API, wired together by internal/node.Node.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "novad",
		Short: "NOVA Protocol validator node",
	}
	root.AddCommand(runCmd(), initCmd(), statusCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "novad:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information and exit",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("novad v%s\n", version)
		},
	}
}
