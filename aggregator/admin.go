// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/swaprouter/contract"
)

// =========================================================================
// Venue registry
// =========================================================================

// GetVenueConfig returns the config of kind. Unset venues read as the
// inactive zero config.
func (e *Engine) GetVenueConfig(state contract.StateDB, kind VenueKind) (VenueConfig, error) {
	if !kind.Valid() {
		return VenueConfig{}, fmt.Errorf("%w: %s", ErrUnsupportedVenue, kind)
	}
	return e.store(state).venueConfig(kind), nil
}

// UpdateVenueConfig replaces the config of kind. Owner only.
func (e *Engine) UpdateVenueConfig(state contract.StateDB, caller common.Address, kind VenueKind, cfg VenueConfig) error {
	return e.mutate(state, entryUpdateVenueConfig, func() error {
		s := e.store(state)
		if err := e.onlyOwner(s, caller); err != nil {
			return err
		}
		if !kind.Valid() {
			return fmt.Errorf("%w: %s", ErrUnsupportedVenue, kind)
		}
		if cfg.Reliability > MaxReliability {
			return fmt.Errorf("%w: reliability %d above %d", ErrInvalidConfig, cfg.Reliability, MaxReliability)
		}

		s.setVenueConfig(kind, cfg)
		if err := e.emitVenueConfigUpdated(state, kind, cfg); err != nil {
			return err
		}
		e.log.Info("venue config updated",
			"venue", kind.String(),
			"router", cfg.Router,
			"active", cfg.Active,
			"gasEstimate", cfg.GasEstimate,
			"reliability", cfg.Reliability,
		)
		return nil
	})
}

// =========================================================================
// Access control
// =========================================================================

// Owner returns the owning identity.
func (e *Engine) Owner(state contract.StateDB) common.Address {
	return e.store(state).owner()
}

// IsPaused reports whether fund-moving calls are refused.
func (e *Engine) IsPaused(state contract.StateDB) bool {
	return e.store(state).paused()
}

// IsAuthorized reports whether addr may call ExecuteProtectedSwap. The owner
// is always authorized.
func (e *Engine) IsAuthorized(state contract.StateDB, addr common.Address) bool {
	return e.isPrivileged(e.store(state), addr)
}

// IsProtected reports whether addr's plain swaps get the protection routine.
func (e *Engine) IsProtected(state contract.StateDB, addr common.Address) bool {
	return e.store(state).protected(addr)
}

func (e *Engine) isPrivileged(s store, addr common.Address) bool {
	owner := s.owner()
	return (owner != (common.Address{}) && addr == owner) || s.authorized(addr)
}

func (e *Engine) onlyOwner(s store, caller common.Address) error {
	owner := s.owner()
	if owner == (common.Address{}) || caller != owner {
		return ErrNotOwner
	}
	return nil
}

// admin runs an owner-only mutation.
func (e *Engine) admin(state contract.StateDB, caller common.Address, entry string, fn func(s store) error) error {
	return e.mutate(state, entry, func() error {
		s := e.store(state)
		if err := e.onlyOwner(s, caller); err != nil {
			return err
		}
		return fn(s)
	})
}

// SetAuthorizedCaller grants or revokes protected-swap access.
func (e *Engine) SetAuthorizedCaller(state contract.StateDB, caller, addr common.Address, authorized bool) error {
	return e.admin(state, caller, entryAdmin, func(s store) error {
		s.setAuthorized(addr, authorized)
		e.log.Info("authorized caller set", "addr", addr, "authorized", authorized)
		return nil
	})
}

// SetProtectedCaller flags addr for the protection routine.
func (e *Engine) SetProtectedCaller(state contract.StateDB, caller, addr common.Address, protected bool) error {
	return e.admin(state, caller, entryAdmin, func(s store) error {
		s.setProtected(addr, protected)
		e.log.Info("protected caller set", "addr", addr, "protected", protected)
		return nil
	})
}

// Pause stops every fund-moving call. Quoting keeps working.
func (e *Engine) Pause(state contract.StateDB, caller common.Address) error {
	return e.admin(state, caller, entryAdmin, func(s store) error {
		s.setPaused(true)
		e.log.Warn("aggregator paused", "by", caller)
		return nil
	})
}

// Unpause resumes fund-moving calls.
func (e *Engine) Unpause(state contract.StateDB, caller common.Address) error {
	return e.admin(state, caller, entryAdmin, func(s store) error {
		s.setPaused(false)
		e.log.Info("aggregator unpaused", "by", caller)
		return nil
	})
}

// TransferOwnership hands the engine to newOwner.
func (e *Engine) TransferOwnership(state contract.StateDB, caller, newOwner common.Address) error {
	return e.admin(state, caller, entryAdmin, func(s store) error {
		if newOwner == (common.Address{}) {
			return fmt.Errorf("%w: new owner is the zero address", ErrInvalidInput)
		}
		s.setOwner(newOwner)
		e.log.Info("ownership transferred", "from", caller, "to", newOwner)
		return nil
	})
}

// EmergencyWithdraw moves amount of any asset held by the engine to `to`.
// It skips swap validation and works while paused.
func (e *Engine) EmergencyWithdraw(state contract.StateDB, caller, asset, to common.Address, amount *uint256.Int) error {
	return e.admin(state, caller, entryEmergency, func(s store) error {
		if amount == nil {
			amount = new(uint256.Int)
		}
		if err := e.custody.TransferOut(state, asset, e.address, to, amount); err != nil {
			return fmt.Errorf("emergency withdraw of %s failed: %w", asset.Hex(), err)
		}
		e.log.Warn("emergency withdraw",
			"asset", asset,
			"to", to,
			"amount", amount,
		)
		return nil
	})
}
