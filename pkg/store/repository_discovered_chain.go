// Copyright 2025 CL8Y Bridge Contributors
//
// Discovered-chain repository - advisory records from periodic chain
// discovery, reconciled against statically configured chains at startup.

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DiscoveredChainRepository handles discovered-chain persistence.
type DiscoveredChainRepository struct {
	db *sql.DB
}

// NewDiscoveredChainRepository creates a new discovered-chain repository.
func NewDiscoveredChainRepository(client *Client) *DiscoveredChainRepository {
	return &DiscoveredChainRepository{db: client.DB()}
}

// Upsert records or refreshes a discovered chain. Idempotent: re-running
// discovery for the same chain_key only updates mutable fields.
func (r *DiscoveredChainRepository) Upsert(ctx context.Context, c *DiscoveredChain) error {
	query := `
		INSERT INTO discovered_chains (
			chain_key, native_id, chain_type, bridge_address, display_name,
			enabled, discovered_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (chain_key) DO UPDATE SET
			bridge_address = EXCLUDED.bridge_address,
			display_name = EXCLUDED.display_name,
			enabled = EXCLUDED.enabled,
			discovered_at = now()`

	_, err := r.db.ExecContext(ctx, query,
		c.ChainKey, c.NativeID, c.ChainType, c.BridgeAddress, c.DisplayName, c.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert discovered chain: %w", err)
	}
	return nil
}

// List returns all discovered chains.
func (r *DiscoveredChainRepository) List(ctx context.Context) ([]*DiscoveredChain, error) {
	query := `
		SELECT chain_key, native_id, chain_type, bridge_address, display_name,
			enabled, discovered_at
		FROM discovered_chains
		ORDER BY discovered_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list discovered chains: %w", err)
	}
	defer rows.Close()

	var chains []*DiscoveredChain
	for rows.Next() {
		c := &DiscoveredChain{}
		if err := rows.Scan(
			&c.ChainKey, &c.NativeID, &c.ChainType, &c.BridgeAddress, &c.DisplayName,
			&c.Enabled, &c.DiscoveredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan discovered chain: %w", err)
		}
		chains = append(chains, c)
	}

	return chains, rows.Err()
}

// Get retrieves a discovered chain by its chain key.
func (r *DiscoveredChainRepository) Get(ctx context.Context, chainKey []byte) (*DiscoveredChain, error) {
	query := `
		SELECT chain_key, native_id, chain_type, bridge_address, display_name,
			enabled, discovered_at
		FROM discovered_chains
		WHERE chain_key = $1`

	c := &DiscoveredChain{}
	err := r.db.QueryRowContext(ctx, query, chainKey).Scan(
		&c.ChainKey, &c.NativeID, &c.ChainType, &c.BridgeAddress, &c.DisplayName,
		&c.Enabled, &c.DiscoveredAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrDiscoveredChainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get discovered chain: %w", err)
	}

	return c, nil
}
