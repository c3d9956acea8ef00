package metrics

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
)

type FileFormat string

const (
	FormatCSV  FileFormat = "csv"
	FormatJSON FileFormat = "json"
)

// FileMetricsWriter writes metrics to local files in CSV or JSON format, one
// file per day and metric generator.
type FileMetricsWriter struct {
	baseDir    string
	files      map[string]*os.File
	csvWriters map[string]*csv.Writer
	fileFormat FileFormat
	mu         sync.Mutex
}

func NewFileMetricsWriter(baseDir string, format FileFormat) (*FileMetricsWriter, error) {
	if format != FormatCSV && format != FormatJSON {
		return nil, errors.Newf("unknown metrics file format %q", format)
	}
	if baseDir == "" {
		return nil, errors.New("metrics file writer needs a directory")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create metrics directory")
	}

	return &FileMetricsWriter{
		baseDir:    baseDir,
		files:      make(map[string]*os.File),
		csvWriters: make(map[string]*csv.Writer),
		fileFormat: format,
	}, nil
}

func fileID(metric datamodels.Metric) string {
	t := metric.MetricTime.UTC()
	dateID := fmt.Sprintf("%d%02d%02d", t.Year(), t.Month(), t.Day())
	return fmt.Sprintf("%s_%s_%s", dateID, metric.MetricGeneratorType, metric.MetricGeneratorId)
}

// csvHeaders lists the json names of the metric's tagged fields.
func csvHeaders() []string {
	t := reflect.TypeOf(datamodels.Metric{})
	var headers []string
	for i := 0; i < t.NumField(); i++ {
		jsonTag := t.Field(i).Tag.Get("json")
		if jsonTag == "" {
			continue
		}
		headers = append(headers, strings.Split(jsonTag, ",")[0])
	}
	return headers
}

func csvValues(metric datamodels.Metric) []string {
	t := reflect.TypeOf(metric)
	v := reflect.ValueOf(metric)
	var values []string
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Tag.Get("json") == "" {
			continue
		}
		var value string
		switch val := v.Field(i).Interface().(type) {
		case time.Time:
			value = val.Format(time.RFC3339)
		case json.RawMessage:
			value = string(val)
		default:
			value = fmt.Sprintf("%v", val)
		}
		values = append(values, value)
	}
	return values
}

func (w *FileMetricsWriter) open(id string) (*os.File, error) {
	if f, ok := w.files[id]; ok {
		return f, nil
	}
	filename := filepath.Join(w.baseDir, fmt.Sprintf("%s.%s", id, w.fileFormat))
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open metrics file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to stat metrics file")
	}

	if w.fileFormat == FormatCSV {
		csvWriter := csv.NewWriter(f)
		if info.Size() == 0 {
			if err := csvWriter.Write(csvHeaders()); err != nil {
				f.Close()
				return nil, errors.Wrap(err, "failed to write CSV headers")
			}
			csvWriter.Flush()
		}
		w.csvWriters[id] = csvWriter
	}
	w.files[id] = f
	return f, nil
}

func (w *FileMetricsWriter) Write(ctx context.Context, metric datamodels.Metric) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := fileID(metric)
	file, err := w.open(id)
	if err != nil {
		return err
	}

	switch w.fileFormat {
	case FormatJSON:
		jsonBytes, err := json.Marshal(metric)
		if err != nil {
			return errors.Wrap(err, "failed to marshal metric to JSON")
		}
		if _, err := file.Write(append(jsonBytes, '\n')); err != nil {
			return errors.Wrap(err, "failed to write JSON metrics")
		}
	case FormatCSV:
		csvWriter := w.csvWriters[id]
		if err := csvWriter.Write(csvValues(metric)); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			return errors.Wrap(err, "error flushing CSV writer")
		}
	}

	return nil
}

func (w *FileMetricsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for id, file := range w.files {
		if writer := w.csvWriters[id]; writer != nil {
			writer.Flush()
			if err := writer.Error(); err != nil {
				slog.Error("Failed to flush CSV writer", "file", id, "error", err)
				errs = append(errs, err)
			}
		}
		if err := file.Close(); err != nil {
			slog.Error("Failed to close metrics file", "file", id, "error", err)
			errs = append(errs, err)
		}
		delete(w.files, id)
		delete(w.csvWriters, id)
	}
	return errors.Join(errs...)
}
