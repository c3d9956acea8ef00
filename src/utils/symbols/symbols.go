package symbols

import (
	"strings"

	"papertrader/src/utils/errors"
)

type CorrelationGroup string

const (
	GroupNone      CorrelationGroup = ""
	GroupMemeCoins CorrelationGroup = "MEME_COINS"
	GroupDefiBlue  CorrelationGroup = "DEFI_BLUE"
	GroupLayer1    CorrelationGroup = "LAYER1"
	GroupLayer2    CorrelationGroup = "LAYER2"
	GroupExchange  CorrelationGroup = "EXCHANGE"
	GroupAI        CorrelationGroup = "AI"
	GroupMajors    CorrelationGroup = "MAJORS"
)

var correlationGroups = map[string]CorrelationGroup{
	"BTC": GroupMajors, "ETH": GroupMajors,
	"DOGE": GroupMemeCoins, "SHIB": GroupMemeCoins, "PEPE": GroupMemeCoins, "FLOKI": GroupMemeCoins,
	"BONK": GroupMemeCoins, "WIF": GroupMemeCoins, "MEME": GroupMemeCoins, "BOME": GroupMemeCoins,
	"AAVE": GroupDefiBlue, "UNI": GroupDefiBlue, "MKR": GroupDefiBlue, "LINK": GroupDefiBlue,
	"LDO": GroupDefiBlue, "SNX": GroupDefiBlue, "CRV": GroupDefiBlue, "COMP": GroupDefiBlue,
	"SOL": GroupLayer1, "AVAX": GroupLayer1, "DOT": GroupLayer1, "ATOM": GroupLayer1, "NEAR": GroupLayer1,
	"ADA": GroupLayer1, "SUI": GroupLayer1, "APT": GroupLayer1, "SEI": GroupLayer1, "TIA": GroupLayer1,
	"ARB": GroupLayer2, "OP": GroupLayer2, "MATIC": GroupLayer2, "POL": GroupLayer2, "STRK": GroupLayer2,
	"IMX": GroupLayer2,
	"BNB": GroupExchange, "OKB": GroupExchange, "CRO": GroupExchange, "KCS": GroupExchange,
	"FET": GroupAI, "AGIX": GroupAI, "OCEAN": GroupAI, "TAO": GroupAI, "RENDER": GroupAI, "RNDR": GroupAI,
	"WLD": GroupAI, "GRT": GroupAI,
}

// majorAssets is the allowlist used by the strict risk profile.
var majorAssets = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "BNB": true, "XRP": true,
	"ADA": true, "AVAX": true, "DOT": true, "LINK": true, "MATIC": true,
	"ATOM": true, "LTC": true,
}

var riskyPatterns = []string{
	"PEPE", "SHIB", "DOGE", "FLOKI", "BONK", "WIF", "MEME", "BOME", "ELON",
	"INU", "MOON", "SAFE", "BABY", "CAT", "FROG", "TRUMP", "AI16Z",
}

// ParsePair splits "BASE/QUOTE".
func ParsePair(symbol string) (string, string, error) {
	base, quote, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(symbol)), "/")
	if !ok || base == "" || quote == "" {
		return "", "", errors.Newf("invalid pair %q, expected BASE/QUOTE", symbol)
	}
	return base, quote, nil
}

// BaseAsset returns the base asset, or the upper-cased input when it is not
// a pair.
func BaseAsset(symbol string) string {
	base, _, err := ParsePair(symbol)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(symbol))
	}
	return base
}

func GroupOf(symbol string) CorrelationGroup {
	return correlationGroups[BaseAsset(symbol)]
}

func IsMajor(symbol string) bool {
	return majorAssets[BaseAsset(symbol)]
}

func IsRisky(symbol string) bool {
	base := BaseAsset(symbol)
	if GroupOf(symbol) == GroupMemeCoins {
		return true
	}
	for _, pattern := range riskyPatterns {
		if strings.Contains(base, pattern) {
			return true
		}
	}
	return false
}

// CountInGroup counts held symbols that share the candidate's group.
func CountInGroup(candidate string, held []string) int {
	group := GroupOf(candidate)
	if group == GroupNone {
		return 0
	}
	count := 0
	for _, symbol := range held {
		if symbol != candidate && GroupOf(symbol) == group {
			count++
		}
	}
	return count
}
