package portfolio

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"papertrader/src/datamodels"
	"papertrader/src/utils/errors"
)

const (
	defaultLockTimeout  = 5 * time.Second
	defaultPollInterval = 100 * time.Millisecond
)

var (
	ErrLockTimeout   = errors.New("portfolio store lock timeout")
	ErrCorruptStore  = errors.New("portfolio store is corrupt")
	ErrRealTradeMode = errors.New("real trading mode is not supported")
)

// Store persists the portfolio collection as one JSON document. Writers hold
// an advisory lock file and replace the document atomically.
type Store struct {
	path         string
	lockTimeout  time.Duration
	pollInterval time.Duration
}

func NewStore() *Store {
	return &Store{
		lockTimeout:  defaultLockTimeout,
		pollInterval: defaultPollInterval,
	}
}

func (s *Store) WithPath(path string) *Store {
	s.path = path
	return s
}

func (s *Store) WithLockTimeout(timeout time.Duration) *Store {
	if timeout > 0 {
		s.lockTimeout = timeout
	}
	return s
}

func (s *Store) WithPollInterval(interval time.Duration) *Store {
	if interval > 0 {
		s.pollInterval = interval
	}
	return s
}

func (s *Store) Build() (*Store, error) {
	if s.path == "" {
		slog.Error("Store path is empty, cannot build portfolio store")
		return nil, errors.New("store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "cannot create store directory for %s", s.path)
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// lock creates the lock file exclusively. A lock older than the timeout is
// considered abandoned and removed.
func (s *Store) lock() (func(), error) {
	deadline := time.Now().Add(2 * s.lockTimeout)
	for {
		f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			_ = f.Close()
			return func() {
				if err := os.Remove(s.lockPath()); err != nil && !os.IsNotExist(err) {
					slog.Warn("Cannot remove store lock", "path", s.lockPath(), "error", err)
				}
			}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrapf(err, "cannot create lock %s", s.lockPath())
		}
		if info, statErr := os.Stat(s.lockPath()); statErr == nil && time.Since(info.ModTime()) > s.lockTimeout {
			slog.Warn("Removing stale store lock", "path", s.lockPath(), "age", time.Since(info.ModTime()))
			_ = os.Remove(s.lockPath())
			continue
		}
		if time.Now().After(deadline) {
			return nil, errors.Wrapf(ErrLockTimeout, "%s", s.lockPath())
		}
		time.Sleep(s.pollInterval)
	}
}

// Load reads the collection. A missing file is an empty collection.
func (s *Store) Load() (*datamodels.Collection, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return datamodels.NewCollection(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", s.path)
	}
	return decode(data)
}

func decode(data []byte) (*datamodels.Collection, error) {
	c := datamodels.NewCollection()
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.WrapE(ErrCorruptStore, err)
	}
	c.Normalize()
	for _, p := range c.Ordered() {
		if p.Mode == datamodels.TradingModeReal {
			return nil, errors.Wrapf(ErrRealTradeMode, "portfolio %s", p.ID)
		}
	}
	return c, nil
}

// Save writes to a temp file, syncs it and renames it over the document.
func (s *Store) Save(c *datamodels.Collection) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()
	return s.write(c)
}

func (s *Store) write(c *datamodels.Collection) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cannot encode portfolios")
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s", tmp)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "cannot write %s", tmp)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "cannot sync %s", tmp)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "cannot close %s", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrapf(err, "cannot replace %s", s.path)
	}
	return nil
}

// Update runs fn between a locked load and save. Nothing is written when fn
// fails.
func (s *Store) Update(fn func(c *datamodels.Collection) error) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	c, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return s.write(c)
}

// Mutate applies fn to one portfolio under the store lock.
func (s *Store) Mutate(id string, fn func(p *datamodels.Portfolio) error) error {
	return s.Update(func(c *datamodels.Collection) error {
		p, ok := c.Get(id)
		if !ok {
			return errors.Newf("portfolio %q not found", id)
		}
		return fn(p)
	})
}

// Describe is a one-line summary used by the CLI.
func Describe(p *datamodels.Portfolio) string {
	state := "active"
	if !p.Active {
		state = "paused"
	}
	return fmt.Sprintf("%s %q [%s] %s equity %.2f", p.ID, p.Name, p.StrategyID, state, p.Equity())
}
