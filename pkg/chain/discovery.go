// Copyright 2025 CL8Y Bridge Contributors

package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/cl8y-bridge/bridge-core/pkg/cosmoschain"
	"github.com/cl8y-bridge/bridge-core/pkg/xchain"
)

// Registration is one row of a bridge's on-chain chain registry.
type Registration struct {
	ChainID       xchain.ChainID
	NativeID      *big.Int
	ChainType     Platform
	BridgeAddress string
}

// RegistryEnumerator is implemented by chains whose bridge contract can
// enumerate every registered chain, the discovery task's bootstrap
// capability.
type RegistryEnumerator interface {
	Name() string
	RegisteredChains(ctx context.Context) ([]Registration, error)
}

// RegisteredChains enumerates the chain registry on the EVM bridge.
func (e *EVM) RegisteredChains(ctx context.Context) ([]Registration, error) {
	rows, err := e.client.GetRegisteredChains(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Registration, 0, len(rows))
	for _, row := range rows {
		platform := PlatformEVM
		if xchain.ChainType(row.ChainType) == xchain.ChainTypeCosmos {
			platform = PlatformCosmos
		}
		out = append(out, Registration{
			ChainID:       xchain.ChainID(row.ChainID),
			NativeID:      row.NativeID,
			ChainType:     platform,
			BridgeAddress: hex.EncodeToString(row.BridgeAddress[:]),
		})
	}
	return out, nil
}

// RegisteredChains enumerates the chain registry on the CosmWasm bridge.
func (c *Cosmos) RegisteredChains(ctx context.Context) ([]Registration, error) {
	var resp cosmoschain.RegisteredChainsResponse
	if err := c.client.SmartQuery(ctx, c.client.BridgeAddress(), cosmoschain.RegisteredChainsQuery{}, &resp); err != nil {
		return nil, err
	}

	out := make([]Registration, 0, len(resp.Chains))
	for _, row := range resp.Chains {
		id, err := hexChainID(row.ChainID)
		if err != nil {
			return nil, fmt.Errorf("registry row has bad chain id %q: %w", row.ChainID, err)
		}
		nativeID, ok := new(big.Int).SetString(row.NativeID, 10)
		if !ok {
			return nil, fmt.Errorf("registry row has bad native id %q", row.NativeID)
		}
		platform := PlatformEVM
		if strings.EqualFold(row.ChainType, string(PlatformCosmos)) {
			platform = PlatformCosmos
		}
		out = append(out, Registration{
			ChainID:       id,
			NativeID:      nativeID,
			ChainType:     platform,
			BridgeAddress: row.BridgeAddress,
		})
	}
	return out, nil
}
