//go:build unit

package execution

import (
	"math/rand"
	"testing"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/portfolio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newPortfolio(cash float64) *datamodels.Portfolio {
	return datamodels.NewPortfolio("p1", "test", "rsi_strategy", cash, datamodels.DefaultPortfolioConfig(), testNow)
}

func newEngine(t *testing.T, slippage bool, draws ...float64) *Engine {
	t.Helper()
	e, err := NewEngine().WithRandomSource(NewFixedSource(draws...)).WithSlippage(slippage).Build()
	require.NoError(t, err)
	return e
}

func request(action datamodels.Action, symbol string, price, amount float64) Request {
	return Request{Action: action, Symbol: symbol, Price: price, Amount: amount, Reason: "test", Now: testNow}
}

func TestSlippageBands(t *testing.T) {
	tests := []struct {
		notional float64
		lo, hi   float64
	}{
		{500, 0.01, 0.05},
		{999.99, 0.01, 0.05},
		{1_000, 0.05, 0.10},
		{4_999, 0.05, 0.10},
		{5_000, 0.10, 0.20},
		{10_000, 0.10, 0.20},
		{10_001, 0.20, 0.50},
	}
	for _, tt := range tests {
		b := bandFor(tt.notional)
		assert.Equal(t, tt.lo, b.lo, "%v", tt.notional)
		assert.Equal(t, tt.hi, b.hi, "%v", tt.notional)
	}
	assert.InDelta(t, 0.03, SlippagePct(500, NewFixedSource(0.5)), 1e-12)
}

func TestBuyQuantityFormula(t *testing.T) {
	p := newPortfolio(10_000)
	e := newEngine(t, true, 0.5)

	res := e.Execute(p, request(datamodels.ActionBuy, "XRP/USDT", 1.0, 500))
	require.True(t, res.Success, res.Message)

	pos := p.Positions["XRP/USDT"]
	require.NotNil(t, pos)
	assert.InDelta(t, 1.0003, pos.EntryPrice, 1e-12)
	assert.InDelta(t, (500-0.5)/1.0003, pos.Quantity, 1e-9)
	assert.InDelta(t, 9_500, p.Cash, 1e-9)
	assert.InDelta(t, 0.5, p.TotalFeesPaid, 1e-12)
	assert.LessOrEqual(t, pos.Quantity*pos.EntryPrice, 500.0)

	require.Len(t, p.Trades, 1)
	trade := p.Trades[0]
	assert.Equal(t, datamodels.ActionBuy, trade.Action)
	assert.Equal(t, 1.0, trade.MarketPrice)
	assert.InDelta(t, 0.03, trade.SlippagePct, 1e-12)
	assert.Equal(t, 0.0, trade.PnL)
	assert.NotEmpty(t, trade.ID)
}

func TestMinimumTradeBoundary(t *testing.T) {
	e := newEngine(t, false)

	p := newPortfolio(1_000)
	res := e.Execute(p, request(datamodels.ActionBuy, "ETH/USDT", 100, 10))
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "must be above 10")
	assert.Empty(t, p.Trades)

	res = e.Execute(p, request(datamodels.ActionBuy, "ETH/USDT", 100, 10.01))
	assert.True(t, res.Success, res.Message)
}

func TestRejectionLeavesPortfolioUntouched(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(100)
	before := p.Clone()

	res := e.Execute(p, request(datamodels.ActionBuy, "ETH/USDT", 100, 500))
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "insufficient")
	assert.Equal(t, before, p)

	res = e.Execute(p, request(datamodels.ActionSell, "ETH/USDT", 100, 0))
	assert.False(t, res.Success)
	assert.Equal(t, before, p)
}

func TestAllocationDefaultAndSizeFactor(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(10_000)

	req := request(datamodels.ActionBuy, "ETH/USDT", 100, 0)
	req.SizeFactor = 1.2
	res := e.Execute(p, req)
	require.True(t, res.Success)
	assert.InDelta(t, 1_200, res.Trades[0].Gross, 1e-9)
}

func TestWeightedAverageEntry(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(10_000)

	require.True(t, e.Execute(p, request(datamodels.ActionBuy, "ETH/USDT", 100, 1_000)).Success)
	require.True(t, e.Execute(p, request(datamodels.ActionBuy, "ETH/USDT", 200, 1_000)).Success)

	q1, q2 := 999.0/100, 999.0/200
	pos := p.Positions["ETH/USDT"]
	assert.InDelta(t, q1+q2, pos.Quantity, 1e-9)
	assert.InDelta(t, (100*q1+200*q2)/(q1+q2), pos.EntryPrice, 1e-9)
	assert.InDelta(t, q1+q2, p.Balances()["ETH"], 1e-12)
}

func TestSellClosesPosition(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(10_000)
	require.True(t, e.Execute(p, request(datamodels.ActionBuy, "ETH/USDT", 100, 1_000)).Success)
	qty := p.Positions["ETH/USDT"].Quantity

	res := e.Execute(p, request(datamodels.ActionSell, "ETH/USDT", 110, 0))
	require.True(t, res.Success)
	assert.NotContains(t, p.Positions, "ETH/USDT")
	assert.Zero(t, p.Balances()["ETH"])

	trade := res.Trades[0]
	gross := qty * 110
	assert.InDelta(t, gross*0.999, trade.Net, 1e-9)
	assert.InDelta(t, gross*0.999-100*qty, trade.PnL, 1e-9)
	assert.InDelta(t, 9_000+gross*0.999, p.Cash, 1e-9)

	// conservation: cash equals initial plus every booked cash delta
	sum := p.InitialCapital
	for _, tr := range p.Trades {
		sum += tr.CashDelta
	}
	assert.InDelta(t, sum, p.Cash, 1e-9)
}

func TestPartialSellThenDust(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(10_000)
	require.True(t, e.Execute(p, request(datamodels.ActionBuy, "ETH/USDT", 100, 1_000)).Success)
	qty := p.Positions["ETH/USDT"].Quantity

	req := request(datamodels.ActionPartialSell, "ETH/USDT", 105, 0)
	req.Fraction = 0.5
	require.True(t, e.Execute(p, req).Success)
	pos := p.Positions["ETH/USDT"]
	require.NotNil(t, pos)
	assert.InDelta(t, qty/2, pos.Quantity, 1e-12)
	assert.True(t, pos.PartialProfitTaken)

	again := e.Execute(p, req)
	assert.False(t, again.Success)

	p.Positions["DUST/USDT"] = &datamodels.Position{EntryPrice: 1, Quantity: 3e-9, EntryTime: testNow}
	req = request(datamodels.ActionPartialSell, "DUST/USDT", 1, 0)
	req.Fraction = 0.9
	require.True(t, e.Execute(p, req).Success)
	assert.NotContains(t, p.Positions, "DUST/USDT")
}

func TestMartingaleHintAppliesOnce(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(10_000)

	req := request(datamodels.ActionBuy, "ETH/USDT", 100, 0)
	req.Hint = datamodels.MartingaleHint{Level: 2, Multiplier: 4}
	res := e.Execute(p, req)
	require.True(t, res.Success)
	assert.InDelta(t, 4_000, res.Trades[0].Gross, 1e-9)
	assert.Contains(t, res.Trades[0].Reason, "martingale L2")

	res = e.Execute(p, request(datamodels.ActionBuy, "SOL/USDT", 100, 0))
	require.True(t, res.Success)
	assert.InDelta(t, 600, res.Trades[0].Gross, 1e-9)
}

func TestReinforce(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(10_000)
	p.Positions["BTC/USDT"] = &datamodels.Position{EntryPrice: 50_000, Quantity: 0.05, EntryTime: testNow, HighestPrice: 50_000}

	req := request(datamodels.ActionReinforce, "BTC/USDT", 48_000, 600)
	req.Hint = datamodels.ReinforceHint{Level: 1, OldQty: 0.04, OldPrice: 50_000}
	res := e.Execute(p, req)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "stale")

	req.Hint = datamodels.ReinforceHint{Level: 1, OldQty: 0.05, OldPrice: 50_000}
	res = e.Execute(p, req)
	require.True(t, res.Success, res.Message)
	pos := p.Positions["BTC/USDT"]
	added := 599.4 / 48_000
	assert.Equal(t, 1, pos.ReinforceLevel)
	assert.InDelta(t, 0.05+added, pos.Quantity, 1e-12)
	assert.InDelta(t, (50_000*0.05+48_000*added)/(0.05+added), pos.EntryPrice, 1e-6)

	// without a position there is nothing to reinforce
	req.Symbol = "ETH/USDT"
	assert.False(t, e.Execute(p, req).Success)
}

func TestRotationClosesWorstFirst(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(5_000)
	p.Positions["ADA/USDT"] = &datamodels.Position{EntryPrice: 1, Quantity: 1_000, EntryTime: testNow, CurrentPrice: 0.94}

	req := request(datamodels.ActionBuy, "LINK/USDT", 20, 0)
	req.Rotation = &datamodels.Rotation{Symbol: "ADA/USDT", Reason: "ROTATION: test"}
	res := e.Execute(p, req)
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, datamodels.ActionSell, res.Trades[0].Action)
	assert.Equal(t, "ADA/USDT", res.Trades[0].Symbol)
	assert.NotContains(t, p.Positions, "ADA/USDT")
	assert.Contains(t, p.Positions, "LINK/USDT")
	assert.InDelta(t, (5_000+940*0.999)*0.1, res.Trades[1].Gross, 1e-9)
}

func TestShortAndCover(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(10_000)

	res := e.Execute(p, request(datamodels.ActionShort, "ETH/USDT", 100, 1_000))
	require.True(t, res.Success, res.Message)
	s := p.ShortPositions["ETH/USDT"]
	require.NotNil(t, s)
	assert.InDelta(t, 10, s.Quantity, 1e-12)
	assert.Equal(t, 1_000.0, s.MarginUsed)
	assert.InDelta(t, 8_999, p.Cash, 1e-9)

	assert.False(t, e.Execute(p, request(datamodels.ActionBuy, "ETH/USDT", 100, 100)).Success)
	assert.False(t, e.Execute(p, request(datamodels.ActionShort, "ETH/USDT", 100, 100)).Success)

	res = e.Execute(p, request(datamodels.ActionCover, "ETH/USDT", 90, 0))
	require.True(t, res.Success)
	assert.InDelta(t, 99.1, res.Trades[0].PnL, 1e-9)
	assert.InDelta(t, 8_999+1_099.1, p.Cash, 1e-9)
	assert.Empty(t, p.ShortPositions)
}

func TestCoverCreditsMarginPlusPnL(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(0)
	p.ShortPositions["ETH/USDT"] = &datamodels.Short{EntryPrice: 100, Quantity: 10, MarginUsed: 1_000, EntryTime: testNow, LowestPrice: 100}

	res := e.Execute(p, request(datamodels.ActionCover, "ETH/USDT", 90, 0))
	require.True(t, res.Success)
	assert.InDelta(t, 0.9, res.Trades[0].Fee, 1e-12)
	assert.InDelta(t, 1_099.1, p.Cash, 1e-9)

	// a 1x short cannot lose more than its margin
	p.ShortPositions["SOL/USDT"] = &datamodels.Short{EntryPrice: 100, Quantity: 10, MarginUsed: 1_000, EntryTime: testNow}
	res = e.Execute(p, request(datamodels.ActionCover, "SOL/USDT", 250, 0))
	require.True(t, res.Success)
	assert.InDelta(t, -1_000, res.Trades[0].PnL, 1e-9)
	assert.InDelta(t, 1_099.1, p.Cash, 1e-9)
}

func TestLongBlocksShort(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(10_000)
	require.True(t, e.Execute(p, request(datamodels.ActionBuy, "ETH/USDT", 100, 1_000)).Success)
	res := e.Execute(p, request(datamodels.ActionShort, "ETH/USDT", 100, 1_000))
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "open long")
}

func TestApplyRejectsNone(t *testing.T) {
	e := newEngine(t, false)
	_, err := e.Apply(newPortfolio(100), datamodels.NoTrade("ETH/USDT", "nothing"), 100, testNow)
	assert.ErrorIs(t, err, ErrNotExecutable)
}

func TestShortRotationClosesWorstLong(t *testing.T) {
	e := newEngine(t, false)
	p := newPortfolio(10_000)
	for symbol, price := range map[string]float64{"ETH/USDT": 97, "SOL/USDT": 94, "ADA/USDT": 91} {
		p.Positions[symbol] = &datamodels.Position{EntryPrice: 100, Quantity: 1, EntryTime: testNow, HighestPrice: 100, CurrentPrice: price}
	}
	require.Equal(t, p.Config.MaxPositions, p.OpenExposureCount())

	req := request(datamodels.ActionShort, "XRP/USDT", 0.5, 1_000)
	req.Rotation = &datamodels.Rotation{Symbol: "ADA/USDT", Reason: "ROTATION: ADA/USDT at -9.00%"}
	res := e.Execute(p, req)
	require.True(t, res.Success, res.Message)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, datamodels.ActionSell, res.Trades[0].Action)
	assert.Equal(t, "ADA/USDT", res.Trades[0].Symbol)
	assert.Equal(t, datamodels.ActionShort, res.Trades[1].Action)
	assert.NotContains(t, p.Positions, "ADA/USDT")
	assert.Contains(t, p.ShortPositions, "XRP/USDT")
	assert.Equal(t, p.Config.MaxPositions, p.OpenExposureCount())
	assert.InDelta(t, 10_000+91*0.999-1_001, p.Cash, 1e-9)

	// a rotation that cannot close leaves nothing behind
	before := p.Clone()
	req = request(datamodels.ActionShort, "DOT/USDT", 5, 1_000)
	req.Rotation = &datamodels.Rotation{Symbol: "LINK/USDT"}
	assert.False(t, e.Execute(p, req).Success)
	assert.Equal(t, before, p)
}

// Cash must always equal initial capital plus every booked cash delta, and no
// buy may acquire more than it paid for.
func TestRandomSequencesConserveCash(t *testing.T) {
	symbols := []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		e, err := NewEngine().WithRandomSource(NewRandomSource(seed)).Build()
		require.NoError(t, err)
		p := newPortfolio(10_000)

		for step := 0; step < 60; step++ {
			symbol := symbols[rng.Intn(len(symbols))]
			price := 10 + rng.Float64()*990
			var req Request
			switch rng.Intn(3) {
			case 0:
				req = request(datamodels.ActionBuy, symbol, price, 5+rng.Float64()*2_000)
			case 1:
				req = request(datamodels.ActionSell, symbol, price, 0)
			default:
				req = request(datamodels.ActionPartialSell, symbol, price, 0)
				req.Fraction = 0.1 + rng.Float64()*0.8
			}

			res := e.Execute(p, req)
			audit := portfolio.Audit(p)
			require.True(t, audit.OK(), "seed %d step %d: %v", seed, step, audit.Issues)
			require.GreaterOrEqual(t, p.Cash, 0.0, "seed %d step %d", seed, step)
			if res.Success && req.Action == datamodels.ActionBuy {
				trade := res.Trades[len(res.Trades)-1]
				assert.LessOrEqual(t, trade.Quantity*trade.ExecPrice, trade.Gross+1e-9, "seed %d step %d", seed, step)
			}
		}
	}
}
