// Copyright 2025 CL8Y Bridge Contributors

package chain

import (
	"fmt"

	"github.com/cl8y-bridge/bridge-core/pkg/xchain"
)

// Registry is the in-process set of configured chains, looked up by 32-byte
// chain key (how events and store rows reference chains) or by 4-byte
// registry id (how the transfer hash references them). It is built once at
// startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	byKey map[[32]byte]Chain
	byID  map[xchain.ChainID]Chain
	all   []Chain
}

// NewRegistry builds a Registry from chains. Duplicate chain keys or
// registry ids are a configuration error.
func NewRegistry(chains []Chain) (*Registry, error) {
	r := &Registry{
		byKey: make(map[[32]byte]Chain, len(chains)),
		byID:  make(map[xchain.ChainID]Chain, len(chains)),
		all:   chains,
	}

	for _, c := range chains {
		key := c.ChainKey()
		if existing, ok := r.byKey[key]; ok {
			return nil, fmt.Errorf("chains %s and %s share chain key %x", existing.Name(), c.Name(), key)
		}
		r.byKey[key] = c

		id := c.RegistryID()
		if existing, ok := r.byID[id]; ok {
			return nil, fmt.Errorf("chains %s and %s share registry id %x", existing.Name(), c.Name(), id)
		}
		r.byID[id] = c
	}
	return r, nil
}

// All returns every registered chain in configuration order.
func (r *Registry) All() []Chain {
	return r.all
}

// ByKey looks up a chain by its 32-byte chain key.
func (r *Registry) ByKey(key [32]byte) (Chain, bool) {
	c, ok := r.byKey[key]
	return c, ok
}

// ByID looks up a chain by its 4-byte registry id.
func (r *Registry) ByID(id xchain.ChainID) (Chain, bool) {
	c, ok := r.byID[id]
	return c, ok
}
