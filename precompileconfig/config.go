// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package precompileconfig defines the config contract shared by all
// precompile modules.
package precompileconfig

// Config is the genesis/upgrade configuration of a single precompile.
type Config interface {
	// Key is the json key of this config in the upgrade file.
	Key() string
	// Timestamp is the activation time, nil for never.
	Timestamp() *uint64
	// IsDisabled reports whether this upgrade deactivates the precompile.
	IsDisabled() bool
	Equal(Config) bool
	Verify(ChainConfig) error
}

// ChainConfig is the chain-level view handed to Verify and Configure.
type ChainConfig interface {
	IsDurango(time uint64) bool
}

// Upgrade contains the activation timestamp and disable flag common to all
// precompile configs.
type Upgrade struct {
	BlockTimestamp *uint64 `json:"blockTimestamp,omitempty"`
	Disable        bool    `json:"disable,omitempty"`
}

// Timestamp returns the activation timestamp.
func (u *Upgrade) Timestamp() *uint64 {
	return u.BlockTimestamp
}

// Equal returns true iff both upgrades activate at the same time with the
// same disable flag.
func (u *Upgrade) Equal(other *Upgrade) bool {
	if other == nil {
		return false
	}
	if u.Disable != other.Disable {
		return false
	}
	switch {
	case u.BlockTimestamp == nil && other.BlockTimestamp == nil:
		return true
	case u.BlockTimestamp == nil || other.BlockTimestamp == nil:
		return false
	default:
		return *u.BlockTimestamp == *other.BlockTimestamp
	}
}
