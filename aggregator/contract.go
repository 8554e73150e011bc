// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"

	"github.com/parsdao/swaprouter/contract"
)

var _ contract.StatefulPrecompiledContract = (*AggregatorContract)(nil)

// methodGas is the flat cost of each method
var methodGas = map[string]uint64{
	"getAllQuotes":         GasQuoteBase + GasQuotePerVenue*uint64(NumVenueKinds),
	"getBestQuote":         GasQuoteBase + GasQuotePerVenue*uint64(NumVenueKinds),
	"executeSwap":          GasExecuteSwap,
	"executeProtectedSwap": GasProtectedSwap,
	"swapWithBestQuote":    GasSwapWithBestQuote,
	"updateVenueConfig":    GasUpdateVenueConfig,
	"getVenueConfig":       GasGetVenueConfig,
	"setAuthorizedCaller":  GasAdmin,
	"setProtectedCaller":   GasAdmin,
	"pause":                GasAdmin,
	"unpause":              GasAdmin,
	"emergencyWithdraw":    GasEmergencyWithdraw,
	"transferOwnership":    GasAdmin,
	"owner":                GasRead,
	"paused":               GasRead,
	"isAuthorized":         GasRead,
	"isProtected":          GasRead,
	"isCommitmentUsed":     GasRead,
	"computeCommitment":    GasComputeCommitment,
}

// AggregatorContract exposes an Engine through the precompile ABI.
type AggregatorContract struct {
	engine atomic.Pointer[Engine]
}

// NewContract wraps engine.
func NewContract(engine *Engine) *AggregatorContract {
	c := &AggregatorContract{}
	c.engine.Store(engine)
	return c
}

// Engine returns the engine serving calls.
func (c *AggregatorContract) Engine() *Engine {
	return c.engine.Load()
}

// SetEngine replaces the engine serving calls. Hosts use it to install
// venue strategies backed by their router bindings.
func (c *AggregatorContract) SetEngine(engine *Engine) {
	c.engine.Store(engine)
}

// Run executes the precompile
func (c *AggregatorContract) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	method, err := AggregatorABI.MethodBySelector(input)
	if err != nil {
		return nil, suppliedGas, fmt.Errorf("unknown method selector: %w", err)
	}

	gas := methodGas[method.Name]
	if suppliedGas < gas {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remainingGas = suppliedGas - gas

	if readOnly && !method.IsConstant() {
		return nil, remainingGas, fmt.Errorf("cannot write in read-only mode")
	}

	args, err := AggregatorABI.UnpackInput(method.Name, input[contract.SelectorLen:], false)
	if err != nil {
		return nil, remainingGas, fmt.Errorf("failed to unpack %s input: %w", method.Name, err)
	}

	ret, err = c.dispatch(accessibleState, caller, method.Name, args)
	if err != nil {
		return nil, remainingGas, err
	}
	return ret, remainingGas, nil
}

func (c *AggregatorContract) dispatch(
	env contract.AccessibleState,
	caller common.Address,
	name string,
	args []interface{},
) ([]byte, error) {
	e := c.Engine()
	state := env.GetStateDB()

	switch name {
	case "getAllQuotes":
		amountIn, err := toUint256(args[2].(*big.Int))
		if err != nil {
			return nil, err
		}
		quotes, err := e.GetAllQuotes(state, args[0].(common.Address), args[1].(common.Address), amountIn)
		if err != nil {
			return nil, err
		}
		out := make([]quoteTuple, len(quotes))
		for i, q := range quotes {
			out[i] = q.tuple()
		}
		return AggregatorABI.PackOutput(name, out)

	case "getBestQuote":
		amountIn, err := toUint256(args[2].(*big.Int))
		if err != nil {
			return nil, err
		}
		q, err := e.GetBestQuote(state, args[0].(common.Address), args[1].(common.Address), amountIn)
		if err != nil {
			return nil, err
		}
		return AggregatorABI.PackOutput(name, q.tuple())

	case "executeSwap":
		req, err := decodeRequest(args[0])
		if err != nil {
			return nil, err
		}
		amountOut, err := e.ExecuteSwap(env, caller, req)
		if err != nil {
			return nil, err
		}
		return AggregatorABI.PackOutput(name, amountOut.ToBig())

	case "executeProtectedSwap":
		req, err := decodeRequest(args[0])
		if err != nil {
			return nil, err
		}
		amountOut, err := e.ExecuteProtectedSwap(env, caller, req, common.Hash(args[1].([32]byte)))
		if err != nil {
			return nil, err
		}
		return AggregatorABI.PackOutput(name, amountOut.ToBig())

	case "swapWithBestQuote":
		amountIn, err := toUint256(args[2].(*big.Int))
		if err != nil {
			return nil, err
		}
		minOut, err := toUint256(args[3].(*big.Int))
		if err != nil {
			return nil, err
		}
		deadline := ^uint64(0)
		if d := args[5].(*big.Int); d.IsUint64() {
			deadline = d.Uint64()
		}
		amountOut, err := e.SwapWithBestQuote(env, caller,
			args[0].(common.Address), args[1].(common.Address),
			amountIn, minOut, args[4].(common.Address), deadline,
		)
		if err != nil {
			return nil, err
		}
		return AggregatorABI.PackOutput(name, amountOut.ToBig())

	case "updateVenueConfig":
		t := *abi.ConvertType(args[1], new(venueConfigTuple)).(*venueConfigTuple)
		cfg, err := t.config()
		if err != nil {
			return nil, err
		}
		return nil, e.UpdateVenueConfig(state, caller, VenueKind(args[0].(uint8)), cfg)

	case "getVenueConfig":
		cfg, err := e.GetVenueConfig(state, VenueKind(args[0].(uint8)))
		if err != nil {
			return nil, err
		}
		return AggregatorABI.PackOutput(name, cfg.tuple())

	case "setAuthorizedCaller":
		return nil, e.SetAuthorizedCaller(state, caller, args[0].(common.Address), args[1].(bool))

	case "setProtectedCaller":
		return nil, e.SetProtectedCaller(state, caller, args[0].(common.Address), args[1].(bool))

	case "pause":
		return nil, e.Pause(state, caller)

	case "unpause":
		return nil, e.Unpause(state, caller)

	case "emergencyWithdraw":
		amount, err := toUint256(args[2].(*big.Int))
		if err != nil {
			return nil, err
		}
		return nil, e.EmergencyWithdraw(state, caller, args[0].(common.Address), args[1].(common.Address), amount)

	case "transferOwnership":
		return nil, e.TransferOwnership(state, caller, args[0].(common.Address))

	case "owner":
		return AggregatorABI.PackOutput(name, e.Owner(state))

	case "paused":
		return AggregatorABI.PackOutput(name, e.IsPaused(state))

	case "isAuthorized":
		return AggregatorABI.PackOutput(name, e.IsAuthorized(state, args[0].(common.Address)))

	case "isProtected":
		return AggregatorABI.PackOutput(name, e.IsProtected(state, args[0].(common.Address)))

	case "isCommitmentUsed":
		return AggregatorABI.PackOutput(name, e.IsCommitmentUsed(state, common.Hash(args[0].([32]byte))))

	case "computeCommitment":
		req, err := decodeRequest(args[1])
		if err != nil {
			return nil, err
		}
		commitment, err := ComputeCommitment(args[0].(common.Address), req, common.Hash(args[2].([32]byte)))
		if err != nil {
			return nil, err
		}
		return AggregatorABI.PackOutput(name, [32]byte(commitment))

	default:
		return nil, fmt.Errorf("method %s not implemented", name)
	}
}

func decodeRequest(arg interface{}) (SwapRequest, error) {
	t := *abi.ConvertType(arg, new(swapRequestTuple)).(*swapRequestTuple)
	return t.request()
}
