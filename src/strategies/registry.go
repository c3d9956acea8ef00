package strategies

import (
	"log/slog"
	"reflect"
	"sort"

	"papertrader/src/scoring"
	"papertrader/src/utils/errors"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Registry maps strategy ids to immutable strategy definitions.
type Registry struct {
	strategies map[string]*Strategy
	order      []string
}

func NewRegistry(strategies ...*Strategy) *Registry {
	r := &Registry{strategies: make(map[string]*Strategy, len(strategies))}
	for _, s := range strategies {
		if _, exists := r.strategies[s.ID]; !exists {
			r.order = append(r.order, s.ID)
		}
		r.strategies[s.ID] = s
	}
	return r
}

func DefaultRegistry() *Registry {
	return NewRegistry(DefaultCatalog()...)
}

// Get returns a copy so callers cannot mutate the shared definition.
func (r *Registry) Get(id string) (*Strategy, error) {
	s, ok := r.strategies[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownStrategy, "%q", id)
	}
	return s.Copy(), nil
}

func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) All() []*Strategy {
	all := make([]*Strategy, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.strategies[id].Copy())
	}
	return all
}

// Override replaces selected fields of a built-in strategy. Nil fields keep
// the catalog value.
type Override struct {
	Name             *string        `mapstructure:"name"`
	Auto             *bool          `mapstructure:"auto"`
	Timeframe        *string        `mapstructure:"timeframe"`
	BuyOn            []string       `mapstructure:"buy_on"`
	SellOn           []string       `mapstructure:"sell_on"`
	TakeProfit       *float64       `mapstructure:"take_profit"`
	StopLoss         *float64       `mapstructure:"stop_loss"`
	MaxHoldHours     *float64       `mapstructure:"max_hold_hours"`
	RiskProfile      *string        `mapstructure:"risk_profile"`
	MinConfirmations *int           `mapstructure:"min_confirmations"`
	Params           map[string]any `mapstructure:"params"`
}

// LoadOverrides reads a YAML/JSON/TOML file with a top level "strategies"
// map keyed by strategy id.
func (r *Registry) LoadOverrides(path string) error {
	if path == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read strategy overrides %s", path)
	}
	var overrides map[string]Override
	if err := v.UnmarshalKey("strategies", &overrides); err != nil {
		return errors.Wrapf(err, "failed to decode strategy overrides %s", path)
	}
	ids := make([]string, 0, len(overrides))
	for id := range overrides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := r.Apply(id, overrides[id]); err != nil {
			return err
		}
		slog.Info("strategy override applied", "strategy", id, "file", path)
	}
	return nil
}

func (r *Registry) Apply(id string, o Override) error {
	current, ok := r.strategies[id]
	if !ok {
		return errors.Wrapf(ErrUnknownStrategy, "override for %q", id)
	}
	s := current.Copy()
	if o.Name != nil {
		s.Name = *o.Name
	}
	if o.Auto != nil {
		s.Auto = *o.Auto
	}
	if o.Timeframe != nil {
		s.Timeframe = *o.Timeframe
	}
	if o.BuyOn != nil {
		s.BuyOn = o.BuyOn
	}
	if o.SellOn != nil {
		s.SellOn = o.SellOn
	}
	if o.TakeProfit != nil {
		s.TakeProfit = *o.TakeProfit
	}
	if o.StopLoss != nil {
		s.StopLoss = *o.StopLoss
	}
	if o.MaxHoldHours != nil {
		s.MaxHoldHours = *o.MaxHoldHours
	}
	if o.RiskProfile != nil {
		s.RiskProfile = scoring.RiskProfile(*o.RiskProfile)
	}
	if o.MinConfirmations != nil {
		s.MinConfirmations = *o.MinConfirmations
	}
	if len(o.Params) > 0 {
		v, err := decodeParams(s.Variant, o.Params)
		if err != nil {
			return errors.Wrapf(err, "strategy %q params", id)
		}
		s.Variant = v
	}
	if err := s.Validate(); err != nil {
		return err
	}
	r.strategies[id] = s
	return nil
}

// decodeParams overlays params onto a copy of the variant's parameter struct.
func decodeParams(v Variant, params map[string]any) (Variant, error) {
	ptr := reflect.New(reflect.TypeOf(v))
	ptr.Elem().Set(reflect.ValueOf(v))
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           ptr.Interface(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(params); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface().(Variant), nil
}
