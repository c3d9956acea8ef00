//go:build unit

package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"papertrader/src/datamodels"
	"papertrader/src/portfolio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const recordedAnalyses = `symbol,timeframe,timestamp,price,rsi,signal,supertrend_up
BTC/USDT,1h,1709287200,62000,45,HOLD,true
BTC/USDT,1h,1709290800,61000,28,BUY,true
BTC/USDT,1h,1709294400,63500,55,HOLD,true
ETH/USDT,1h,1709287200,3400,50,HOLD,true
ETH/USDT,1h,1709290800,3350,40,HOLD,true
ETH/USDT,1h,1709294400,3450,52,HOLD,true
`

type CLITestSuite struct {
	suite.Suite
	dir        string
	configPath string
	storePath  string
}

func TestCLITestSuite(t *testing.T) {
	suite.Run(t, new(CLITestSuite))
}

func (s *CLITestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.storePath = filepath.Join(s.dir, "portfolios.json")
	csvPath := filepath.Join(s.dir, "analyses.csv")
	s.Require().NoError(os.WriteFile(csvPath, []byte(recordedAnalyses), 0o644))

	body := fmt.Sprintf(`
engine:
  slippage_enabled: false
  random_seed: 7
store:
  path: %s
archive:
  driver: sqlite
  sqlite_path: %s
provider:
  kind: csv
  csv_path: %s
`, s.storePath, filepath.Join(s.dir, "archive.db"), csvPath)
	s.configPath = filepath.Join(s.dir, "config.yaml")
	s.Require().NoError(os.WriteFile(s.configPath, []byte(body), 0o644))
}

func (s *CLITestSuite) execute(args ...string) (string, error) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", s.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (s *CLITestSuite) load() *datamodels.Collection {
	store, err := portfolio.NewStore().WithPath(s.storePath).Build()
	s.Require().NoError(err)
	c, err := store.Load()
	s.Require().NoError(err)
	return c
}

func (s *CLITestSuite) TestCreateAndList() {
	out, err := s.execute("portfolio", "create",
		"--name", "BTC RSI", "--strategy", "rsi_strategy", "--capital", "5000", "--cryptos", "btc,ETH/USDT")
	s.Require().NoError(err)
	s.Contains(out, "portfolio_1")

	c := s.load()
	p, ok := c.Get("portfolio_1")
	s.Require().True(ok)
	s.Equal("rsi_strategy", p.StrategyID)
	s.Equal(5000.0, p.Cash)
	s.Equal([]string{"BTC/USDT", "ETH/USDT"}, p.Config.Cryptos)
	s.True(p.Config.AutoTrade)

	out, err = s.execute("portfolio", "list")
	s.Require().NoError(err)
	s.Contains(out, "BTC RSI")
	s.Contains(out, "5000.00")
}

func (s *CLITestSuite) TestCreateRejectsBadInput() {
	_, err := s.execute("portfolio", "create", "--name", "x", "--strategy", "no_such_strategy")
	s.Error(err)
	_, err = s.execute("portfolio", "create", "--name", "x", "--capital", "0")
	s.Error(err)
	_, err = s.execute("portfolio", "create", "--strategy", "hodl")
	s.Error(err)
	s.Empty(s.load().Portfolios)
}

func (s *CLITestSuite) TestSeedDefaultsOnlyOnEmptyStore() {
	out, err := s.execute("portfolio", "create", "--seed-defaults")
	s.Require().NoError(err)
	s.Contains(out, "seeded 8 portfolios")
	s.Len(s.load().Portfolios, 8)

	out, err = s.execute("portfolio", "create", "--seed-defaults")
	s.Require().NoError(err)
	s.Contains(out, "nothing seeded")
	s.Len(s.load().Portfolios, 8)
}

func (s *CLITestSuite) TestPauseAndResume() {
	_, err := s.execute("portfolio", "create", "--name", "p", "--strategy", "hodl")
	s.Require().NoError(err)

	_, err = s.execute("portfolio", "pause", "portfolio_1")
	s.Require().NoError(err)
	s.False(s.load().Portfolios["portfolio_1"].Active)

	_, err = s.execute("portfolio", "resume", "portfolio_1")
	s.Require().NoError(err)
	s.True(s.load().Portfolios["portfolio_1"].Active)

	_, err = s.execute("portfolio", "pause", "portfolio_9")
	s.Error(err)
}

func (s *CLITestSuite) TestStrategies() {
	out, err := s.execute("strategies")
	s.Require().NoError(err)
	for _, id := range []string{"manual", "hodl", "confluence_strict", "god_mode_only"} {
		s.Contains(out, id)
	}
}

func (s *CLITestSuite) TestScanAndReport() {
	_, err := s.execute("portfolio", "create", "--name", "hold", "--strategy", "hodl", "--cryptos", "BTC")
	s.Require().NoError(err)

	out, err := s.execute("scan")
	s.Require().NoError(err)
	s.Contains(out, "Portfolios")
	s.Contains(out, "Trades")

	out, err = s.execute("report", "--portfolio", "portfolio_1", "--trades", "10")
	s.Require().NoError(err)
	s.Contains(out, "Performance")
	s.Contains(out, "Risk")
	s.Contains(out, "Audit")
	s.Contains(out, "Archived trades")

	_, err = s.execute("report", "--portfolio", "portfolio_7")
	s.Error(err)
	_, err = s.execute("report", "--plot", filepath.Join(s.dir, "x.png"))
	s.Error(err)
}

func (s *CLITestSuite) TestReplayAdvancesThroughRows() {
	_, err := s.execute("portfolio", "create", "--name", "hold", "--strategy", "hodl", "--cryptos", "BTC,ETH")
	s.Require().NoError(err)

	out, err := s.execute("replay")
	s.Require().NoError(err)
	s.Contains(out, "replayed 3 steps")
	s.Contains(out, "hold")

	_, err = s.execute("replay", "--from", "yesterday")
	s.Error(err)
}

func (s *CLITestSuite) TestWatchNeedsPostgres() {
	_, err := s.execute("watch")
	s.Require().Error(err)
	s.Contains(err.Error(), "postgres")
}

func TestVersionNeedsNoConfig(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "version")
	assert.Contains(t, out.String(), "commit")
}

func TestNormalizeSymbols(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []string
		wantErr bool
	}{
		{"bare base", []string{"btc"}, []string{"BTC/USDT"}, false},
		{"full pair", []string{"eth/usdt"}, []string{"ETH/USDT"}, false},
		{"blanks dropped", []string{" ", "sol "}, []string{"SOL/USDT"}, false},
		{"empty", nil, []string{}, false},
		{"missing quote", []string{"BTC/"}, nil, true},
		{"duplicates", []string{"btc", "BTC/USDT"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeSymbols(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTradeNotification(t *testing.T) {
	line := formatTradeNotification(`{"PortfolioId":"portfolio_2","Symbol":"ETH/USDT","Action":"SELL","Quantity":0.5,"ExecPrice":3500,"PnL":42.5,"Reason":"take profit","Timestamp":"2024-03-01T10:00:00Z"}`)
	assert.Contains(t, line, "portfolio_2")
	assert.Contains(t, line, "SELL")
	assert.Contains(t, line, "3500.00")
	assert.Contains(t, line, "+42.50")

	assert.Equal(t, "not json", formatTradeNotification("not json"))
}
