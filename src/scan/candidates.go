package scan

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
)

// CandidateSource yields opportunities discovered outside the engine since
// the previous call.
type CandidateSource interface {
	Next(ctx context.Context) ([]datamodels.Candidate, error)
}

// FileCandidateSource tails a JSON-lines file. Each call returns the complete
// lines appended since the last call; a partial trailing line waits for the
// next scan.
type FileCandidateSource struct {
	path   string
	offset int64
	mutex  sync.Mutex
}

func NewFileCandidateSource(path string) *FileCandidateSource {
	return &FileCandidateSource{path: path}
}

func (s *FileCandidateSource) Next(ctx context.Context) ([]datamodels.Candidate, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	file, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open candidates %s", s.path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot stat candidates %s", s.path)
	}
	if info.Size() < s.offset {
		slog.Warn("Candidate file shrank, reading from the start", "path", s.path)
		s.offset = 0
	}
	if _, err := file.Seek(s.offset, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "cannot seek candidates %s", s.path)
	}

	candidates := make([]datamodels.Candidate, 0)
	reader := bufio.NewReader(file)
	for {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			// incomplete line, leave it for the next call
			break
		}
		if err != nil {
			return candidates, errors.Wrapf(err, "cannot read candidates %s", s.path)
		}
		s.offset += int64(len(line))
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var c datamodels.Candidate
		if err := json.Unmarshal(line, &c); err != nil {
			slog.Warn("Skipping malformed candidate", "path", s.path, "error", err)
			continue
		}
		if c.Symbol == "" || c.Price <= 0 {
			slog.Warn("Skipping incomplete candidate", "symbol", c.Symbol, "price", c.Price)
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// StaticCandidateSource returns its candidates once.
type StaticCandidateSource struct {
	candidates []datamodels.Candidate
	mutex      sync.Mutex
}

func NewStaticCandidateSource(candidates ...datamodels.Candidate) *StaticCandidateSource {
	return &StaticCandidateSource{candidates: candidates}
}

func (s *StaticCandidateSource) Next(ctx context.Context) ([]datamodels.Candidate, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := s.candidates
	s.candidates = nil
	return out, nil
}
