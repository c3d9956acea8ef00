package execution

type slippageBand struct {
	maxNotional float64
	lo, hi      float64
}

// bands are percent ranges by trade notional in USDT
var slippageBands = []slippageBand{
	{1_000, 0.01, 0.05},
	{5_000, 0.05, 0.10},
	{10_000, 0.10, 0.20},
}

var largeTradeBand = slippageBand{lo: 0.20, hi: 0.50}

func bandFor(notional float64) slippageBand {
	for i, b := range slippageBands {
		// the last bounded band is inclusive
		if notional < b.maxNotional || (i == len(slippageBands)-1 && notional == b.maxNotional) {
			return b
		}
	}
	return largeTradeBand
}

// SlippagePct draws a slippage percent for the notional.
func SlippagePct(notional float64, r RandomSource) float64 {
	b := bandFor(notional)
	return b.lo + (b.hi-b.lo)*r.Float64()
}
