package scoring

import (
	"math"

	"papertrader/src/datamodels"
	"papertrader/src/utils/general"
)

type RegimeKind string

const (
	RegimeExtreme  RegimeKind = "EXTREME"
	RegimeVolatile RegimeKind = "VOLATILE"
	RegimeTrending RegimeKind = "TRENDING"
	RegimeRanging  RegimeKind = "RANGING"
	RegimeNormal   RegimeKind = "NORMAL"
)

type Direction string

const (
	DirectionUp       Direction = "UP"
	DirectionDown     Direction = "DOWN"
	DirectionSideways Direction = "SIDEWAYS"
)

type Regime struct {
	Kind      RegimeKind
	Direction Direction
	Strength  float64
}

func directionOf(momentum float64) Direction {
	switch {
	case momentum > 0.3:
		return DirectionUp
	case momentum < -0.3:
		return DirectionDown
	}
	return DirectionSideways
}

// ClassifyRegime walks a fixed decision tree; the first matching branch wins.
func ClassifyRegime(a *datamodels.Analysis) Regime {
	mom1h, mom4h := a.Momentum1h, a.Momentum4h

	if a.RSI < 20 || a.RSI > 80 || math.Abs(mom1h) > 5 {
		dir := directionOf(mom1h)
		if a.RSI < 20 {
			dir = DirectionDown
		} else if a.RSI > 80 {
			dir = DirectionUp
		}
		strength := math.Max(math.Abs(a.RSI-50)/50, math.Abs(mom1h)/10)
		return Regime{Kind: RegimeExtreme, Direction: dir, Strength: general.Clamp(strength, 0, 1)}
	}

	if a.ATRPercent > 4 || (math.Abs(mom1h) > 2 && a.VolumeRatio > 2) {
		strength := math.Max(a.ATRPercent/8, math.Abs(mom1h)/5)
		return Regime{Kind: RegimeVolatile, Direction: directionOf(mom1h), Strength: general.Clamp(strength, 0, 1)}
	}

	if a.ADX > 25 && math.Abs(mom4h) > 1 {
		return Regime{Kind: RegimeTrending, Direction: directionOf(mom4h), Strength: general.Clamp(a.ADX/50, 0, 1)}
	}

	if a.ADX < 20 && math.Abs(mom4h) < 1 && a.ATRPercent < 2 {
		return Regime{Kind: RegimeRanging, Direction: DirectionSideways, Strength: general.Clamp(1-a.ADX/20, 0, 1)}
	}

	return Regime{Kind: RegimeNormal, Direction: directionOf(mom4h), Strength: 0.5}
}
