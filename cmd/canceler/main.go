// Copyright 2025 CL8Y Bridge Contributors
//
// The canceler service: audits every approval produced by any operator and
// vetoes unbacked ones inside the on-chain delay window.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cl8y-bridge/bridge-core/pkg/canceler"
	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/config"
	"github.com/cl8y-bridge/bridge-core/pkg/cosmoschain"
	"github.com/cl8y-bridge/bridge-core/pkg/discovery"
	"github.com/cl8y-bridge/bridge-core/pkg/evmchain"
	"github.com/cl8y-bridge/bridge-core/pkg/metrics"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
	"github.com/cl8y-bridge/bridge-core/pkg/supervisor"
)

const cosmosGasLimit = 500_000

func main() {
	logger := log.New(os.Stdout, "[Canceler] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.ValidateCanceler(); err != nil {
		logger.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewClient(cfg)
	if err != nil {
		logger.Fatalf("failed to connect to store: %v", err)
	}
	defer st.Close()

	if err := st.MigrateUp(ctx); err != nil {
		logger.Fatalf("failed to run migrations: %v", err)
	}

	registry, err := buildRegistry(cfg, cfg.CancelerSignerKey.Expose())
	if err != nil {
		logger.Fatalf("failed to build chain registry: %v", err)
	}

	cursors := store.NewCursorRepository(st)
	discovered := store.NewDiscoveredChainRepository(st)

	m := metrics.New()
	sup := supervisor.New()

	for _, c := range registry.All() {
		c := c
		p := canceler.New(c, registry, cursors)
		p.SetMetrics(m)
		sup.Add(fmt.Sprintf("canceler:%s", c.Name()), p.Run)
	}

	if bootstrap := pickBootstrap(registry); bootstrap != nil {
		task := discovery.New(bootstrap, registry, discovered)
		sup.Add("discovery", task.Run)
	} else {
		logger.Println("no chain supports registry enumeration, discovery disabled")
	}

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", supervisor.NewHealthHandler(st, registry))
	sup.AddServer(&http.Server{Addr: cfg.HealthAddr, Handler: healthMux, ReadHeaderTimeout: 5 * time.Second})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	sup.AddServer(&http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second})

	logger.Printf("starting with %d chain(s)", len(registry.All()))
	if err := sup.Run(ctx); err != nil {
		logger.Fatalf("exited on fatal error: %v", err)
	}
	logger.Println("stopped")
}

// buildRegistry dials every enabled chain and binds the canceler's signer
// key to each.
func buildRegistry(cfg *config.Config, signerKey string) (*chain.Registry, error) {
	var chains []chain.Chain

	for _, ec := range cfg.EVMChains {
		if !ec.Enabled {
			continue
		}
		client, err := evmchain.NewClient(ec.RPCURL, int64(ec.NativeID), common.HexToAddress(ec.BridgeAddress), ec.FinalityBlocks)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", ec.Name, err)
		}
		signer, err := evmchain.NewSigner(signerKey, client.ChainID())
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", ec.Name, err)
		}
		c, err := chain.NewEVM(ec, client, signer)
		if err != nil {
			return nil, err
		}
		chains = append(chains, c)
	}

	for _, cc := range cfg.CosmosChains {
		if !cc.Enabled {
			continue
		}
		client := cosmoschain.NewClient(cc.LCDURL, cc.BridgeAddress, cc.Bech32Prefix)
		signer, err := cosmoschain.NewSigner(signerKey, cc.Bech32Prefix)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", cc.Name, err)
		}
		broadcaster := cosmoschain.NewBroadcaster(client, signer, cc.ChainID, cosmosGasLimit)
		c, err := chain.NewCosmos(cc, client, broadcaster)
		if err != nil {
			return nil, err
		}
		chains = append(chains, c)
	}

	return chain.NewRegistry(chains)
}

// pickBootstrap returns the first chain able to enumerate the on-chain
// registry.
func pickBootstrap(registry *chain.Registry) chain.RegistryEnumerator {
	for _, c := range registry.All() {
		if enum, ok := c.(chain.RegistryEnumerator); ok {
			return enum
		}
	}
	return nil
}
