// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/parsdao/swaprouter/contract"
	"github.com/parsdao/swaprouter/custody"
	"github.com/parsdao/swaprouter/state"
)

const testNow uint64 = 1_700_000_000

var (
	engineAddr = common.HexToAddress("0x0000000000000000000000000000000000009015")

	owner    = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	keeper   = common.HexToAddress("0x00000000000000000000000000000000000000A2")
	user     = common.HexToAddress("0x00000000000000000000000000000000000000B1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000B2")
	receiver = common.HexToAddress("0x00000000000000000000000000000000000000B3")

	tokenA = common.HexToAddress("0x000000000000000000000000000000000000AAAA")
	tokenB = common.HexToAddress("0x000000000000000000000000000000000000BBBB")
	bridge = common.HexToAddress("0x000000000000000000000000000000000000EEEE")

	routerV2    = common.HexToAddress("0x0000000000000000000000000000000000000C01")
	routerV3    = common.HexToAddress("0x0000000000000000000000000000000000000C02")
	routerV2Alt = common.HexToAddress("0x0000000000000000000000000000000000000C03")
	routerAgg   = common.HexToAddress("0x0000000000000000000000000000000000000C04")
	poolCurve   = common.HexToAddress("0x0000000000000000000000000000000000000C05")

	errRouterDown = errors.New("router unavailable")
)

// mockRouter implements every venue interface with a fixed rate, moving
// funds through the custody ledger like a real venue contract would.
type mockRouter struct {
	ledger *custody.Ledger
	addr   common.Address
	num    uint64
	den    uint64

	quoteErr   error
	swapErr    error
	quotePanic bool
	swapPanic  bool
	// deliverBps is the share of the computed output actually paid
	deliverBps uint64

	coins []common.Address

	swaps         int
	lastPath      []common.Address
	lastFee       uint32
	lastRouteData []byte
	lastPriceLim  *uint256.Int
}

func newMockRouter(ledger *custody.Ledger, addr common.Address, num, den uint64) *mockRouter {
	return &mockRouter{
		ledger:     ledger,
		addr:       addr,
		num:        num,
		den:        den,
		deliverBps: BasisPoints,
		coins:      []common.Address{tokenA, tokenB},
	}
}

func (m *mockRouter) output(amountIn *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Mul(amountIn, uint256.NewInt(m.num))
	return out.Div(out, uint256.NewInt(m.den))
}

func (m *mockRouter) quote(router common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	if m.quotePanic {
		panic("quoter exploded")
	}
	if m.quoteErr != nil {
		return nil, m.quoteErr
	}
	if router != m.addr {
		return nil, fmt.Errorf("unknown router %s", router.Hex())
	}
	return m.output(amountIn), nil
}

func (m *mockRouter) pay(
	state contract.StateDB,
	sender, src, dst common.Address,
	amountIn *uint256.Int,
	to common.Address,
) (*uint256.Int, error) {
	if m.swapPanic {
		panic("router exploded")
	}
	if m.swapErr != nil {
		return nil, m.swapErr
	}
	if err := m.ledger.TransferFrom(state, src, m.addr, sender, m.addr, amountIn); err != nil {
		return nil, err
	}
	out := m.output(amountIn)
	delivered := new(uint256.Int).Mul(out, uint256.NewInt(m.deliverBps))
	delivered.Div(delivered, uint256.NewInt(BasisPoints))
	if err := m.ledger.Transfer(state, dst, m.addr, to, delivered); err != nil {
		return nil, err
	}
	m.swaps++
	return out, nil
}

func (m *mockRouter) GetAmountsOut(_ contract.StateDB, router common.Address, amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	out, err := m.quote(router, amountIn)
	if err != nil {
		return nil, err
	}
	amounts := make([]*uint256.Int, len(path))
	for i := range amounts {
		amounts[i] = amountIn
	}
	amounts[len(path)-1] = out
	return amounts, nil
}

func (m *mockRouter) SwapExactTokensForTokens(
	state contract.StateDB,
	router common.Address,
	sender common.Address,
	amountIn *uint256.Int,
	amountOutMin *uint256.Int,
	path []common.Address,
	to common.Address,
	_ uint64,
) ([]*uint256.Int, error) {
	m.lastPath = path
	if m.output(amountIn).Lt(amountOutMin) {
		return nil, errors.New("INSUFFICIENT_OUTPUT_AMOUNT")
	}
	out, err := m.pay(state, sender, path[0], path[len(path)-1], amountIn, to)
	if err != nil {
		return nil, err
	}
	return []*uint256.Int{amountIn, out}, nil
}

func (m *mockRouter) QuoteExactInputSingle(_ contract.StateDB, router common.Address, _, _ common.Address, fee uint32, amountIn *uint256.Int) (*uint256.Int, error) {
	m.lastFee = fee
	return m.quote(router, amountIn)
}

func (m *mockRouter) ExactInputSingle(state contract.StateDB, _ common.Address, sender common.Address, p ExactInputSingleParams) (*uint256.Int, error) {
	m.lastFee = p.Fee
	m.lastPriceLim = p.SqrtPriceLimitX96
	return m.pay(state, sender, p.TokenIn, p.TokenOut, p.AmountIn, p.Recipient)
}

func (m *mockRouter) Quote(_ contract.StateDB, router common.Address, _, _ common.Address, amountIn *uint256.Int, extraData []byte) (*uint256.Int, []byte, error) {
	out, err := m.quote(router, amountIn)
	if err != nil {
		return nil, nil, err
	}
	return out, append([]byte("route:"), extraData...), nil
}

func (m *mockRouter) Swap(
	state contract.StateDB,
	_ common.Address,
	sender common.Address,
	src, dst common.Address,
	amountIn *uint256.Int,
	_ *uint256.Int,
	routeData []byte,
	recipient common.Address,
) (*uint256.Int, error) {
	m.lastRouteData = routeData
	return m.pay(state, sender, src, dst, amountIn, recipient)
}

func (m *mockRouter) CoinIndex(_ contract.StateDB, _ common.Address, asset common.Address) (int, error) {
	for i, c := range m.coins {
		if c == asset {
			return i, nil
		}
	}
	return 0, fmt.Errorf("coin %s not found", asset.Hex())
}

func (m *mockRouter) GetDy(_ contract.StateDB, pool common.Address, _, _ int, dx *uint256.Int) (*uint256.Int, error) {
	return m.quote(pool, dx)
}

func (m *mockRouter) Exchange(
	state contract.StateDB,
	_ common.Address,
	sender common.Address,
	i, j int,
	dx *uint256.Int,
	_ *uint256.Int,
	recipient common.Address,
) (*uint256.Int, error) {
	return m.pay(state, sender, m.coins[i], m.coins[j], dx, recipient)
}

type testEnv struct {
	t      *testing.T
	state  *state.StateDB
	block  *contract.Block
	env    contract.AccessibleState
	ledger *custody.Ledger
	engine *Engine

	v2, v3, v2Alt, agg, curve *mockRouter
}

// scenarioVenues: four active venues and an inactive stable pool
func scenarioVenues() []InitialVenue {
	return []InitialVenue{
		{Kind: AmmV2, Router: routerV2, Active: true, GasEstimate: 150_000, Reliability: 950},
		{Kind: AmmV3, Router: routerV3, Active: true, GasEstimate: 180_000, Reliability: 970},
		{Kind: AmmV2Alt, Router: routerV2Alt, Active: true, GasEstimate: 160_000, Reliability: 920},
		{Kind: Aggregator, Router: routerAgg, Active: true, GasEstimate: 200_000, Reliability: 980, ExtraData: []byte{0x01, 0x02}},
		{Kind: StableCurve, Router: poolCurve, Active: false, GasEstimate: 120_000, Reliability: 990},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	te := &testEnv{
		t:      t,
		state:  state.New(memdb.New()),
		block:  &contract.Block{BlockNumber: big.NewInt(100), Time: testNow, Entropy: big.NewInt(7)},
		ledger: custody.NewLedger(),
	}
	te.env = contract.NewAccessibleState(te.state, te.block)

	te.v2 = newMockRouter(te.ledger, routerV2, 99, 100)         // 0.990
	te.v3 = newMockRouter(te.ledger, routerV3, 995, 1000)       // 0.995
	te.v2Alt = newMockRouter(te.ledger, routerV2Alt, 985, 1000) // 0.985
	te.agg = newMockRouter(te.ledger, routerAgg, 1, 1)          // 1.000
	te.curve = newMockRouter(te.ledger, poolCurve, 999, 1000)   // 0.999

	te.engine = NewEngine(engineAddr,
		WithCustody(te.ledger),
		WithBridgeAsset(bridge),
		WithMetrics(NewMetrics("test")),
		WithVenue(NewAmmV2Venue(te.v2)),
		WithVenue(NewAmmV3Venue(te.v3)),
		WithVenue(NewAmmV2AltVenue(te.v2Alt)),
		WithVenue(NewAggregatorVenue(te.agg)),
		WithVenue(NewStableCurveVenue(te.curve)),
	)

	cfg := &Config{
		Owner:             owner,
		AuthorizedCallers: []common.Address{keeper},
		Venues:            scenarioVenues(),
	}
	require.NoError(t, cfg.Verify(nil))
	require.NoError(t, cfg.apply(te.engine.store(te.state)))

	inventory := uint256.NewInt(1_000_000_000)
	for _, r := range []*mockRouter{te.v2, te.v3, te.v2Alt, te.agg, te.curve} {
		require.NoError(t, te.ledger.Mint(te.state, tokenA, r.addr, inventory))
		require.NoError(t, te.ledger.Mint(te.state, tokenB, r.addr, inventory))
	}
	te.fund(user, 1_000_000)
	te.fund(keeper, 1_000_000)
	return te
}

// fund mints tokenA to who and approves the engine to pull it.
func (te *testEnv) fund(who common.Address, amount uint64) {
	require.NoError(te.t, te.ledger.Mint(te.state, tokenA, who, uint256.NewInt(amount)))
	require.NoError(te.t, te.ledger.Approve(te.state, tokenA, who, engineAddr, uint256.NewInt(amount)))
}

func (te *testEnv) balance(asset, who common.Address) uint64 {
	return te.ledger.BalanceOf(te.state, asset, who).Uint64()
}

func (te *testEnv) request(venue VenueKind, amountIn, minOut uint64) SwapRequest {
	return SwapRequest{
		SrcAsset:       tokenA,
		DstAsset:       tokenB,
		AmountIn:       uint256.NewInt(amountIn),
		MinAmountOut:   uint256.NewInt(minOut),
		Deadline:       testNow + 60,
		PreferredVenue: venue,
	}
}

func (te *testEnv) setVenue(kind VenueKind, cfg VenueConfig) {
	require.NoError(te.t, te.engine.UpdateVenueConfig(te.state, owner, kind, cfg))
}

// counterValue sums a counter family across label sets matching labels.
func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if matchLabels(metric, labels) {
				total += metric.GetCounter().GetValue()
			}
		}
	}
	return total
}

// protectionSamples is the number of observations of the rounds histogram.
func protectionSamples(t *testing.T, m *Metrics) uint64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "test_protection_rounds" && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != want {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
