// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"

	"github.com/parsdao/swaprouter/contract"
)

func (e *Engine) emitSwapExecuted(
	env contract.AccessibleState,
	caller common.Address,
	req SwapRequest,
	amountOut *uint256.Int,
	venue Venue,
) error {
	topics, data, err := AggregatorABI.PackEvent("SwapExecuted",
		caller,
		req.SrcAsset,
		req.DstAsset,
		req.AmountIn.ToBig(),
		amountOut.ToBig(),
		uint8(venue.Kind()),
		venue.Name(),
	)
	if err != nil {
		return fmt.Errorf("failed to pack SwapExecuted: %w", err)
	}
	env.GetStateDB().AddLog(&ethtypes.Log{
		Address:     e.address,
		Topics:      topics,
		Data:        data,
		BlockNumber: blockNumber(env.GetBlockContext()),
	})
	return nil
}

func (e *Engine) emitVenueConfigUpdated(state contract.StateDB, kind VenueKind, cfg VenueConfig) error {
	topics, data, err := AggregatorABI.PackEvent("VenueConfigUpdated", uint8(kind), cfg.Router, cfg.Active)
	if err != nil {
		return fmt.Errorf("failed to pack VenueConfigUpdated: %w", err)
	}
	state.AddLog(&ethtypes.Log{
		Address: e.address,
		Topics:  topics,
		Data:    data,
	})
	return nil
}

func blockNumber(block contract.BlockContext) uint64 {
	n := block.Number()
	if n == nil || !n.IsUint64() {
		return 0
	}
	return n.Uint64()
}

// SwapExecutedEvent is a decoded SwapExecuted log.
type SwapExecutedEvent struct {
	Caller    common.Address
	SrcAsset  common.Address
	DstAsset  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	VenueKind uint8
	VenueName string
}

// VenueConfigUpdatedEvent is a decoded VenueConfigUpdated log.
type VenueConfigUpdatedEvent struct {
	Kind   uint8
	Router common.Address
	Active bool
}

// UnpackSwapExecuted decodes a SwapExecuted log.
func UnpackSwapExecuted(log *ethtypes.Log) (SwapExecutedEvent, error) {
	var ev SwapExecutedEvent
	event := AggregatorABI.Events["SwapExecuted"]
	if len(log.Topics) != 4 || log.Topics[0] != event.ID {
		return ev, fmt.Errorf("not a SwapExecuted log")
	}
	if err := AggregatorABI.UnpackIntoInterface(&ev, "SwapExecuted", log.Data); err != nil {
		return ev, err
	}
	ev.Caller = common.BytesToAddress(log.Topics[1].Bytes())
	ev.SrcAsset = common.BytesToAddress(log.Topics[2].Bytes())
	ev.DstAsset = common.BytesToAddress(log.Topics[3].Bytes())
	return ev, nil
}

// UnpackVenueConfigUpdated decodes a VenueConfigUpdated log.
func UnpackVenueConfigUpdated(log *ethtypes.Log) (VenueConfigUpdatedEvent, error) {
	var ev VenueConfigUpdatedEvent
	event := AggregatorABI.Events["VenueConfigUpdated"]
	if len(log.Topics) != 2 || log.Topics[0] != event.ID {
		return ev, fmt.Errorf("not a VenueConfigUpdated log")
	}
	if err := AggregatorABI.UnpackIntoInterface(&ev, "VenueConfigUpdated", log.Data); err != nil {
		return ev, err
	}
	ev.Kind = uint8(new(big.Int).SetBytes(log.Topics[1].Bytes()).Uint64())
	return ev, nil
}
