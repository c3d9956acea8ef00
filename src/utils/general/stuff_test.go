package general

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewTradeIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewTradeID()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("trade id %q is not a uuid: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("duplicate trade id %s", id)
		}
		seen[id] = true
	}
}

func TestItemInSlice(t *testing.T) {
	slice := []string{"apple", "banana", "orange"}

	tests := []struct {
		name     string
		slice    []string
		item     string
		expected bool
	}{
		{"Existing item", slice, "banana", true},
		{"Non-existing item", slice, "grape", false},
		{"Empty slice", []string{}, "apple", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ItemInSlice(tt.slice, tt.item)
			if got != tt.expected {
				t.Errorf("ItemInSlice() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name            string
		v, lo, hi, want float64
	}{
		{"inside", 0.8, 0.6, 1.2, 0.8},
		{"below", 0.1, 0.6, 1.2, 0.6},
		{"above", 3, 0.6, 1.2, 1.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
				t.Errorf("Clamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConvertMixedValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"float", "28.5", 28.5},
		{"bool", "true", true},
		{"string", "trending", "trending"},
		{"empty", "  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertMixedValue(tt.raw); got != tt.want {
				t.Errorf("ConvertMixedValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoDuplicateItemsInSlice(t *testing.T) {
	if !NoDuplicateItemsInSlice([]string{"BTC/USDT", "ETH/USDT"}) {
		t.Error("expected distinct symbols to pass")
	}
	if NoDuplicateItemsInSlice([]string{"BTC/USDT", "ETH/USDT", "BTC/USDT"}) {
		t.Error("expected duplicate symbol to be caught")
	}
}

func TestExpiringCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cache := NewExpiringCache[string, int](clock)

	cache.Set("a", 1, time.Minute)
	cache.Set("b", 2, time.Hour)

	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := cache.Get("a"); ok {
		t.Errorf("expected a to expire at exactly its ttl")
	}
	if !cache.Has("b") {
		t.Errorf("expected b to still be cached")
	}

	now = now.Add(2 * time.Hour)
	cache.Set("c", 3, time.Minute)
	if dropped := cache.Sweep(); dropped != 1 {
		t.Errorf("expected sweep to drop 1 entry, dropped %d", dropped)
	}
	if cache.GetSize() != 1 {
		t.Errorf("expected 1 entry left, got %d", cache.GetSize())
	}
}
