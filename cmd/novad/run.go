package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/novafoundation/nova-core/internal/config"
	"github.com/novafoundation/nova-core/internal/consensus"
	"github.com/novafoundation/nova-core/internal/mempool"
	"github.com/novafoundation/nova-core/internal/node"
	"github.com/novafoundation/nova-core/internal/p2p"
	"github.com/novafoundation/nova-core/internal/rpc"
	"github.com/novafoundation/nova-core/internal/statetree"
	"github.com/novafoundation/nova-core/internal/storage"
	"github.com/novafoundation/nova-core/pkg/types"
)

const httpShutdownTimeout = 5 * time.Second

func runCmd() *cobra.Command {
	var (
		envFile     string
		isValidator bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the validator node",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDaemon(envFile, isValidator)
		},
	}
	cmd.Flags().StringVar(&envFile, "env", ".env", "path to an env file of NOVA_* settings")
	cmd.Flags().BoolVar(&isValidator, "validator", false, "participate in consensus as a block-producing validator")
	return cmd
}

func runDaemon(envFile string, isValidator bool) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	identity, err := loadOrCreateIdentity(filepath.Join(cfg.DataDir, "identity.key"))
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	log.WithFields(logrus.Fields{"component": "novad", "address": identity.Address().Encode(cfg.Network.AddressPrefix())}).
		Info("identity loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewPostgresStoreFromDSN(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}
	if err := store.Schema(ctx); err != nil {
		return fmt.Errorf("apply storage schema: %w", err)
	}
	defer store.Close()

	tree := statetree.New()
	pool := mempool.New(mempool.DefaultConfig())

	validators := consensus.NewValidatorSet([]consensus.Validator{
		{Address: identity.Address(), PublicKey: identity.PublicKey(), Stake: 1, Online: true},
	})
	genesis := types.Genesis(tree.Root(), 0)
	engine := consensus.New(consensus.DefaultConfig(), tree, pool, validators, genesis, log)

	p2pCfg := p2p.DefaultConfig()
	if cfg.P2PListenAddr != "" {
		p2pCfg.ListenAddrs = []string{cfg.P2PListenAddr}
	}
	p2pCfg.BootstrapPeers = cfg.BootstrapPeers
	p2pCfg.MaxPeers = cfg.MaxPeers

	p2pNode, err := p2p.NewNode(ctx, p2pCfg, log)
	if err != nil {
		return fmt.Errorf("start p2p node: %w", err)
	}

	n, err := node.New(cfg, identity, store, tree, pool, engine, p2pNode, log)
	if err != nil {
		return fmt.Errorf("assemble node: %w", err)
	}
	n.Start(ctx)
	defer n.Stop()

	if isValidator {
		go n.RunProposerLoop(ctx)
	}

	backend := &rpc.Backend{
		Chain:         n,
		Mempool:       n,
		AddressPrefix: cfg.Network.AddressPrefix(),
	}
	rpcServer := rpc.NewServer(backend, log)
	httpServer := &http.Server{Addr: cfg.RPCListenAddr, Handler: rpcServer.Router()}
	go func() {
		log.WithFields(logrus.Fields{"component": "novad", "addr": cfg.RPCListenAddr}).Info("rpc server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithFields(logrus.Fields{"component": "novad"}).Error("rpc server: ", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.WithFields(logrus.Fields{"component": "novad"}).Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	cancel()
	return nil
}
