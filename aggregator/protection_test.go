// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/swaprouter/contract"
)

func commitmentFor(t *testing.T, caller common.Address, req SwapRequest, salt byte) common.Hash {
	t.Helper()
	c, err := ComputeCommitment(caller, req, common.Hash{salt})
	require.NoError(t, err)
	return c
}

func TestExecuteProtectedSwapRequiresAuthorization(t *testing.T) {
	te := newTestEnv(t)
	te.fund(stranger, 10_000)

	req := te.request(AmmV2, 1000, 0)
	commitment := commitmentFor(t, stranger, req, 1)
	_, err := te.engine.ExecuteProtectedSwap(te.env, stranger, req, commitment)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.False(t, te.engine.IsCommitmentUsed(te.state, commitment))
	require.Equal(t, uint64(10_000), te.balance(tokenA, stranger))

	require.NoError(t, te.engine.SetAuthorizedCaller(te.state, owner, stranger, true))
	_, err = te.engine.ExecuteProtectedSwap(te.env, stranger, req, commitment)
	require.NoError(t, err)

	require.NoError(t, te.engine.SetAuthorizedCaller(te.state, owner, stranger, false))
	_, err = te.engine.ExecuteProtectedSwap(te.env, stranger, req, commitmentFor(t, stranger, req, 2))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestExecuteProtectedSwapConsumesCommitment(t *testing.T) {
	te := newTestEnv(t)

	req := te.request(AmmV3, 1000, 990)
	commitment := commitmentFor(t, keeper, req, 1)
	require.False(t, te.engine.IsCommitmentUsed(te.state, commitment))

	out, err := te.engine.ExecuteProtectedSwap(te.env, keeper, req, commitment)
	require.NoError(t, err)
	require.Equal(t, uint64(995), out.Uint64())
	require.Equal(t, uint64(995), te.balance(tokenB, keeper))
	require.True(t, te.engine.IsCommitmentUsed(te.state, commitment))

	// Reuse fails whatever the request looks like
	other := te.request(AmmV2, 50, 0)
	_, err = te.engine.ExecuteProtectedSwap(te.env, keeper, other, commitment)
	require.ErrorIs(t, err, ErrAlreadyConsumed)
	_, err = te.engine.ExecuteProtectedSwap(te.env, owner, req, commitment)
	require.ErrorIs(t, err, ErrAlreadyConsumed)
	require.Equal(t, uint64(995), te.balance(tokenB, keeper))

	require.Equal(t, float64(1), counterValue(t, te.engine.Metrics(), "test_protection_commitments_used_total", nil))
	require.Equal(t, float64(1), counterValue(t, te.engine.Metrics(), "test_swap_executed_total",
		map[string]string{"venue": "UniswapV3", "entry": entryProtectedSwap}))
}

func TestExecuteProtectedSwapAutoSelect(t *testing.T) {
	te := newTestEnv(t)

	req := te.request(AutoSelect, 1000, 0)
	out, err := te.engine.ExecuteProtectedSwap(te.env, keeper, req, commitmentFor(t, keeper, req, 1))
	require.NoError(t, err)
	require.Equal(t, uint64(990), out.Uint64())
	require.Equal(t, 1, te.v2.swaps)

	ev, err := UnpackSwapExecuted(te.state.Logs()[0])
	require.NoError(t, err)
	require.Equal(t, uint8(AmmV2), ev.VenueKind)
}

func TestExecuteProtectedSwapRejectsReentry(t *testing.T) {
	te := newTestEnv(t)

	req := te.request(AmmV2, 1000, 0)
	commitment := commitmentFor(t, keeper, req, 1)

	var reentryErr error
	calls := 0
	te.ledger.SetHook(tokenB, func(state contract.StateDB, _, _, to common.Address, _ *uint256.Int) error {
		if to == keeper && calls == 0 {
			calls++
			_, reentryErr = te.engine.ExecuteProtectedSwap(te.env, keeper, req, commitment)
		}
		return nil
	})

	out, err := te.engine.ExecuteProtectedSwap(te.env, keeper, req, commitment)
	require.NoError(t, err)
	require.Equal(t, uint64(990), out.Uint64())
	require.Equal(t, 1, calls)
	require.ErrorIs(t, reentryErr, ErrReentrant)
	require.True(t, te.engine.IsCommitmentUsed(te.state, commitment))
	require.Equal(t, uint64(990), te.balance(tokenB, keeper))
	require.Equal(t, 1, te.v2.swaps)

	require.Equal(t, float64(1), counterValue(t, te.engine.Metrics(), "test_protection_commitments_used_total", nil))
	require.Equal(t, float64(1), counterValue(t, te.engine.Metrics(), "test_swap_failures_total",
		map[string]string{"entry": entryProtectedSwap, "category": "reentrant"}))
	require.Equal(t, uint64(1), protectionSamples(t, te.engine.Metrics()))
}

func TestExecuteProtectedSwapFailureKeepsCommitment(t *testing.T) {
	te := newTestEnv(t)

	tests := []struct {
		name    string
		setup   func(te *testEnv)
		req     func(te *testEnv) SwapRequest
		wantErr error
	}{
		{
			name:    "expired",
			req:     func(te *testEnv) SwapRequest { r := te.request(AmmV2, 1000, 0); r.Deadline = testNow - 1; return r },
			wantErr: ErrExpired,
		},
		{
			name:    "insufficient output",
			req:     func(te *testEnv) SwapRequest { return te.request(Aggregator, 1000, 1001) },
			wantErr: ErrInsufficientOutput,
		},
		{
			name:    "inactive venue",
			req:     func(te *testEnv) SwapRequest { return te.request(StableCurve, 1000, 0) },
			wantErr: ErrVenueInactive,
		},
		{
			name:    "auto select same asset",
			req:     func(te *testEnv) SwapRequest { r := te.request(AutoSelect, 1000, 0); r.DstAsset = tokenA; return r },
			wantErr: ErrInvalidInput,
		},
		{
			name:    "paused",
			setup:   func(te *testEnv) { require.NoError(t, te.engine.Pause(te.state, owner)) },
			req:     func(te *testEnv) SwapRequest { return te.request(AmmV2, 1000, 0) },
			wantErr: ErrSystemPaused,
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup(te)
			}
			req := tt.req(te)
			commitment := commitmentFor(t, keeper, req, byte(i))

			_, err := te.engine.ExecuteProtectedSwap(te.env, keeper, req, commitment)
			require.ErrorIs(t, err, tt.wantErr)
			require.False(t, te.engine.IsCommitmentUsed(te.state, commitment))
			require.Equal(t, uint64(1_000_000), te.balance(tokenA, keeper))
		})
	}
	require.Zero(t, counterValue(t, te.engine.Metrics(), "test_protection_commitments_used_total", nil))
	require.Zero(t, protectionSamples(t, te.engine.Metrics()))
}

func TestComputeCommitment(t *testing.T) {
	te := newTestEnv(t)
	req := te.request(AmmV2, 1000, 990)

	a := commitmentFor(t, keeper, req, 1)
	require.Equal(t, a, commitmentFor(t, keeper, req, 1))
	require.NotEqual(t, common.Hash{}, a)

	require.NotEqual(t, a, commitmentFor(t, keeper, req, 2))
	require.NotEqual(t, a, commitmentFor(t, owner, req, 1))

	changed := req
	changed.AmountIn = uint256.NewInt(1001)
	require.NotEqual(t, a, commitmentFor(t, keeper, changed, 1))
}

func TestProtectionRounds(t *testing.T) {
	seen := make(map[uint64]bool)
	for i := uint64(0); i < 64; i++ {
		caller := common.BigToAddress(new(big.Int).SetUint64(i + 1))
		rounds := protectionRounds(testNow+i, big.NewInt(int64(i)), caller)
		require.GreaterOrEqual(t, rounds, uint64(1))
		require.LessOrEqual(t, rounds, uint64(3))
		seen[rounds] = true
	}
	require.Len(t, seen, 3)

	// Deterministic, and tolerant of a missing entropy source
	require.Equal(t, protectionRounds(testNow, nil, user), protectionRounds(testNow, nil, user))
	require.Equal(t, protectionRounds(testNow, big.NewInt(0), user), protectionRounds(testNow, nil, user))
}
