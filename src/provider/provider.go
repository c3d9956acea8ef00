package provider

import (
	"context"
	"log/slog"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
)

var ErrNoAnalysis = errors.New("no analysis available")

// AnalysisProvider returns the indicator snapshot for one symbol and
// timeframe. Indicators are computed elsewhere.
type AnalysisProvider interface {
	Analyze(ctx context.Context, symbol, timeframe string) (*datamodels.Analysis, error)
}

func BuildFromConfig(config datamodels.ProviderConfig) (AnalysisProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Kind {
	case datamodels.ProviderKindHTTP:
		p, err := NewHTTPProvider(config.BaseURL).WithTimeout(config.Timeout).Build()
		if err != nil {
			return nil, err
		}
		return p, nil
	case datamodels.ProviderKindCSV:
		p, err := NewCsvProviderBuilder(config.CsvPath).Build()
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	slog.Error("Unknown provider kind", "kind", config.Kind)
	return nil, errors.Newf("unknown provider kind %q", config.Kind)
}
