package provider

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
	"papertrader/src/utils/general"
)

const (
	colSymbol    = "symbol"
	colTimeframe = "timeframe"
	colTimestamp = "timestamp"
)

type csvRow struct {
	timestamp time.Time
	raw       map[string]any
}

// CsvProvider serves recorded analyses from a CSV file with a header row.
// The symbol, timeframe and unix timestamp columns are required, every other
// column is an indicator. Analyze returns the newest row at or before the
// cursor, so stepping the cursor replays a recorded session.
type CsvProvider struct {
	filePath string
	rows     map[string][]csvRow
	cursor   time.Time
	mutex    sync.RWMutex
}

type CsvProviderBuilder struct {
	filePath  string
	startTime *time.Time
	endTime   *time.Time
}

func NewCsvProviderBuilder(filePath string) *CsvProviderBuilder {
	return &CsvProviderBuilder{filePath: filePath}
}

func (b *CsvProviderBuilder) WithStartTime(startTime time.Time) *CsvProviderBuilder {
	b.startTime = &startTime
	return b
}

func (b *CsvProviderBuilder) WithEndTime(endTime time.Time) *CsvProviderBuilder {
	b.endTime = &endTime
	return b
}

func (b *CsvProviderBuilder) Build() (*CsvProvider, error) {
	if b.startTime != nil && b.endTime != nil && b.endTime.Before(*b.startTime) {
		return nil, errors.New("end time is before start time")
	}
	file, err := os.Open(b.filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open CSV file at %s", b.filePath)
	}
	defer file.Close()

	p := &CsvProvider{
		filePath: b.filePath,
		rows:     make(map[string][]csvRow),
	}
	count, err := p.load(csv.NewReader(file), b.startTime, b.endTime)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded recorded analyses", "file", b.filePath, "rows", count, "series", len(p.rows))
	return p, nil
}

func (p *CsvProvider) load(reader *csv.Reader, start, end *time.Time) (int, error) {
	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read CSV header")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, required := range []string{colSymbol, colTimeframe, colTimestamp} {
		if _, ok := index[required]; !ok {
			return 0, errors.Newf("CSV header is missing the %q column", required)
		}
	}

	count := 0
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return 0, errors.Wrapf(err, "line %d", line)
		}
		seconds, err := strconv.ParseInt(record[index[colTimestamp]], 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to parse timestamp on line %d", line)
		}
		ts := time.Unix(seconds, 0).UTC()
		if start != nil && ts.Before(*start) {
			continue
		}
		if end != nil && ts.After(*end) {
			continue
		}

		raw := make(map[string]any, len(record))
		for i, value := range record {
			name := header[i]
			if name == colSymbol || name == colTimeframe || name == colTimestamp || value == "" {
				continue
			}
			raw[name] = general.ConvertMixedValue(value)
		}
		key := seriesKey(record[index[colSymbol]], record[index[colTimeframe]])
		p.rows[key] = append(p.rows[key], csvRow{timestamp: ts, raw: raw})
		count++
	}
	for _, series := range p.rows {
		sort.SliceStable(series, func(i, j int) bool { return series[i].timestamp.Before(series[j].timestamp) })
	}
	return count, nil
}

func seriesKey(symbol, timeframe string) string {
	return symbol + "@" + timeframe
}

// SetCursor limits Analyze to rows at or before t. A zero cursor serves the
// newest row.
func (p *CsvProvider) SetCursor(t time.Time) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.cursor = t
}

// Timestamps lists every distinct row time in ascending order.
func (p *CsvProvider) Timestamps() []time.Time {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	seen := make(map[int64]bool)
	out := make([]time.Time, 0)
	for _, series := range p.rows {
		for _, row := range series {
			if !seen[row.timestamp.Unix()] {
				seen[row.timestamp.Unix()] = true
				out = append(out, row.timestamp)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (p *CsvProvider) Analyze(ctx context.Context, symbol, timeframe string) (*datamodels.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mutex.RLock()
	series := p.rows[seriesKey(symbol, timeframe)]
	cursor := p.cursor
	p.mutex.RUnlock()

	// first row after the cursor
	i := len(series)
	if !cursor.IsZero() {
		i = sort.Search(len(series), func(i int) bool { return series[i].timestamp.After(cursor) })
	}
	if i == 0 {
		return nil, errors.Wrapf(ErrNoAnalysis, "%s %s", symbol, timeframe)
	}
	row := series[i-1]
	a, err := datamodels.NewAnalysis(symbol, timeframe, row.raw)
	if err != nil {
		return nil, err
	}
	a.Timestamp = row.timestamp
	return a, nil
}
