// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"bytes"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestUpdateVenueConfigOwnerOnly(t *testing.T) {
	te := newTestEnv(t)
	before, err := te.engine.GetVenueConfig(te.state, AmmV2)
	require.NoError(t, err)

	for _, caller := range []struct {
		name string
		addr common.Address
	}{
		{"authorized caller", keeper},
		{"stranger", stranger},
	} {
		err := te.engine.UpdateVenueConfig(te.state, caller.addr, AmmV2, VenueConfig{Router: routerV3, Active: false})
		require.ErrorIs(t, err, ErrUnauthorized, caller.name)
	}

	after, err := te.engine.GetVenueConfig(te.state, AmmV2)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Empty(t, te.state.Logs())
}

func TestUpdateVenueConfig(t *testing.T) {
	te := newTestEnv(t)

	cfg := VenueConfig{Router: routerV2Alt, Active: true, GasEstimate: 90_000, Reliability: 1000}
	require.NoError(t, te.engine.UpdateVenueConfig(te.state, owner, AmmV3, cfg))

	got, err := te.engine.GetVenueConfig(te.state, AmmV3)
	require.NoError(t, err)
	require.Equal(t, cfg.Router, got.Router)
	require.True(t, got.Active)
	require.Equal(t, uint64(90_000), got.GasEstimate)
	require.Equal(t, uint64(1000), got.Reliability)
	require.Empty(t, got.ExtraData)

	logs := te.state.Logs()
	require.Len(t, logs, 1)
	ev, err := UnpackVenueConfigUpdated(logs[0])
	require.NoError(t, err)
	require.Equal(t, uint8(AmmV3), ev.Kind)
	require.Equal(t, routerV2Alt, ev.Router)
	require.True(t, ev.Active)

	_, err = UnpackSwapExecuted(logs[0])
	require.Error(t, err)
}

func TestUpdateVenueConfigValidation(t *testing.T) {
	te := newTestEnv(t)

	err := te.engine.UpdateVenueConfig(te.state, owner, AmmV2, VenueConfig{Router: routerV2, Active: true, Reliability: MaxReliability + 1})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, err, ErrInvalidConfig)

	err = te.engine.UpdateVenueConfig(te.state, owner, NumVenueKinds, VenueConfig{Router: routerV2, Active: true})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = te.engine.GetVenueConfig(te.state, AutoSelect)
	require.ErrorIs(t, err, ErrUnsupportedVenue)

	got, err := te.engine.GetVenueConfig(te.state, AmmV2)
	require.NoError(t, err)
	require.Equal(t, uint64(950), got.Reliability)
}

func TestVenueConfigExtraData(t *testing.T) {
	te := newTestEnv(t)

	long := bytes.Repeat([]byte{0xAB}, 70)
	long[69] = 0x01
	te.setVenue(Aggregator, VenueConfig{Router: routerAgg, Active: true, ExtraData: long})
	got, err := te.engine.GetVenueConfig(te.state, Aggregator)
	require.NoError(t, err)
	require.Equal(t, long, got.ExtraData)

	// Shrinking clears the chunks the old value used
	short := []byte{1, 2, 3, 4, 5}
	te.setVenue(Aggregator, VenueConfig{Router: routerAgg, Active: true, ExtraData: short})
	got, err = te.engine.GetVenueConfig(te.state, Aggregator)
	require.NoError(t, err)
	require.Equal(t, short, got.ExtraData)

	quotes, err := te.engine.GetAllQuotes(te.state, tokenA, tokenB, uint256.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, append([]byte("route:"), short...), quotes[3].RouteData)
}

func TestPauseOwnerOnly(t *testing.T) {
	te := newTestEnv(t)

	require.ErrorIs(t, te.engine.Pause(te.state, keeper), ErrUnauthorized)
	require.False(t, te.engine.IsPaused(te.state))

	require.NoError(t, te.engine.Pause(te.state, owner))
	require.True(t, te.engine.IsPaused(te.state))

	require.ErrorIs(t, te.engine.Unpause(te.state, stranger), ErrUnauthorized)
	require.True(t, te.engine.IsPaused(te.state))

	require.NoError(t, te.engine.Unpause(te.state, owner))
	require.False(t, te.engine.IsPaused(te.state))
}

func TestCallerSets(t *testing.T) {
	te := newTestEnv(t)

	require.True(t, te.engine.IsAuthorized(te.state, owner))
	require.True(t, te.engine.IsAuthorized(te.state, keeper))
	require.False(t, te.engine.IsAuthorized(te.state, stranger))

	require.ErrorIs(t, te.engine.SetAuthorizedCaller(te.state, keeper, stranger, true), ErrUnauthorized)
	require.False(t, te.engine.IsAuthorized(te.state, stranger))

	require.NoError(t, te.engine.SetAuthorizedCaller(te.state, owner, stranger, true))
	require.True(t, te.engine.IsAuthorized(te.state, stranger))
	require.NoError(t, te.engine.SetAuthorizedCaller(te.state, owner, keeper, false))
	require.False(t, te.engine.IsAuthorized(te.state, keeper))

	require.False(t, te.engine.IsProtected(te.state, user))
	require.ErrorIs(t, te.engine.SetProtectedCaller(te.state, user, user, true), ErrUnauthorized)
	require.NoError(t, te.engine.SetProtectedCaller(te.state, owner, user, true))
	require.True(t, te.engine.IsProtected(te.state, user))
	require.NoError(t, te.engine.SetProtectedCaller(te.state, owner, user, false))
	require.False(t, te.engine.IsProtected(te.state, user))
}

func TestTransferOwnership(t *testing.T) {
	te := newTestEnv(t)

	require.ErrorIs(t, te.engine.TransferOwnership(te.state, keeper, keeper), ErrUnauthorized)
	require.ErrorIs(t, te.engine.TransferOwnership(te.state, owner, common.Address{}), ErrInvalidInput)
	require.Equal(t, owner, te.engine.Owner(te.state))

	require.NoError(t, te.engine.TransferOwnership(te.state, owner, keeper))
	require.Equal(t, keeper, te.engine.Owner(te.state))

	require.ErrorIs(t, te.engine.Pause(te.state, owner), ErrUnauthorized)
	require.NoError(t, te.engine.Pause(te.state, keeper))
}

func TestEmergencyWithdraw(t *testing.T) {
	te := newTestEnv(t)
	require.NoError(t, te.ledger.Mint(te.state, tokenB, engineAddr, uint256.NewInt(500)))
	require.NoError(t, te.engine.Pause(te.state, owner))

	err := te.engine.EmergencyWithdraw(te.state, keeper, tokenB, keeper, uint256.NewInt(500))
	require.ErrorIs(t, err, ErrUnauthorized)

	// Works while paused
	require.NoError(t, te.engine.EmergencyWithdraw(te.state, owner, tokenB, receiver, uint256.NewInt(200)))
	require.Equal(t, uint64(200), te.balance(tokenB, receiver))
	require.Equal(t, uint64(300), te.balance(tokenB, engineAddr))

	err = te.engine.EmergencyWithdraw(te.state, owner, tokenB, receiver, uint256.NewInt(301))
	require.Error(t, err)
	require.Equal(t, uint64(300), te.balance(tokenB, engineAddr))

	te.state.AddBalance(engineAddr, uint256.NewInt(42), 0)
	require.NoError(t, te.engine.EmergencyWithdraw(te.state, owner, common.Address{}, receiver, uint256.NewInt(42)))
	require.Equal(t, uint64(42), te.state.GetBalance(receiver).Uint64())
}
