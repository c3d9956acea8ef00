package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	analysisPath       = "/analysis"
	retryCount         = 2
)

// HTTPProvider asks an indicator service for analyses:
// GET {base}/analysis?symbol=ETH/USDT&timeframe=1h returns a flat JSON
// object of indicator values.
type HTTPProvider struct {
	baseURL string
	timeout time.Duration
	client  *resty.Client
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		timeout: defaultHTTPTimeout,
	}
}

func (p *HTTPProvider) WithTimeout(timeout time.Duration) *HTTPProvider {
	if timeout > 0 {
		p.timeout = timeout
	}
	return p
}

func (p *HTTPProvider) Build() (*HTTPProvider, error) {
	if p.baseURL == "" {
		slog.Error("HTTP provider base URL is empty")
		return nil, errors.New("http provider base url is empty")
	}
	p.client = resty.New().
		SetBaseURL(p.baseURL).
		SetTimeout(p.timeout).
		SetRetryCount(retryCount).
		SetHeader("Accept", "application/json")
	return p, nil
}

func (p *HTTPProvider) Analyze(ctx context.Context, symbol, timeframe string) (*datamodels.Analysis, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"timeframe": timeframe,
		}).
		Get(analysisPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch analysis for %s %s", symbol, timeframe)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errors.Wrapf(ErrNoAnalysis, "%s %s", symbol, timeframe)
	default:
		return nil, errors.Newf("analysis service error %d: %s", resp.StatusCode(), resp.String())
	}

	raw := make(map[string]any)
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, errors.Wrapef(datamodels.ErrInvalidAnalysis, err, "%s %s", symbol, timeframe)
	}
	a, err := datamodels.NewAnalysis(symbol, timeframe, raw)
	if err != nil {
		return nil, err
	}
	a.Timestamp = resp.ReceivedAt().UTC()
	return a, nil
}
