package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func ptr(v int64) *int64 { return &v }

func TestCost_KnownModel(t *testing.T) {
	table := NewTable()
	cost := table.Cost("gpt-4o", ptr(1000), ptr(500))
	if cost == nil {
		t.Fatal("expected cost for gpt-4o")
	}
	// 1000 * 2.50/1M + 500 * 10.00/1M
	want := decimal.RequireFromString("0.0075")
	if !cost.Equal(want) {
		t.Errorf("expected %s, got %s", want, cost)
	}
}

func TestCost_SmallCountsAreExact(t *testing.T) {
	cost := NewTable().Cost("gpt-4o", ptr(12), ptr(15))
	if cost == nil {
		t.Fatal("expected cost")
	}
	if !cost.Equal(decimal.RequireFromString("0.00018")) {
		t.Errorf("expected 0.00018, got %s", cost)
	}
}

func TestPerMillion_LongFractionIsExact(t *testing.T) {
	p, err := PerMillion("1.23456789012345", "0.000000000000000001")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Input.Equal(decimal.RequireFromString("0.00000123456789012345")) {
		t.Errorf("unexpected per-token input price %s", p.Input)
	}

	cost := Cost(p, ptr(1_000_000), ptr(1_000_000))
	if cost == nil {
		t.Fatal("expected cost")
	}
	want := decimal.RequireFromString("1.234567890123450001")
	if !cost.Equal(want) {
		t.Errorf("expected %s, got %s", want, cost)
	}
}

func TestCost_UnknownModel(t *testing.T) {
	if cost := NewTable().Cost("some-unlisted-model", ptr(1000), ptr(500)); cost != nil {
		t.Errorf("expected nil cost for unknown model, got %s", cost)
	}
}

func TestCost_AbsentTokens(t *testing.T) {
	table := NewTable()
	if cost := table.Cost("gpt-4o", nil, nil); cost != nil {
		t.Errorf("expected nil cost when token counts are absent, got %s", cost)
	}
	if cost := table.Cost("gpt-4o", ptr(10), nil); cost != nil {
		t.Errorf("expected nil cost when output count is absent, got %s", cost)
	}

	free := Price{Input: decimal.RequireFromString("0.000001")}
	cost := Cost(free, ptr(100), nil)
	if cost == nil {
		t.Fatal("expected cost when the absent direction is free")
	}
	if !cost.Equal(decimal.RequireFromString("0.0001")) {
		t.Errorf("expected 0.0001, got %s", cost)
	}
}

func TestLookup_PrefixMatch(t *testing.T) {
	table := NewTable()
	p, ok := table.Lookup("gpt-4o-2024-08-06")
	if !ok {
		t.Fatal("expected dated model to resolve")
	}
	want, _ := table.Lookup("gpt-4o")
	if !p.Input.Equal(want.Input) {
		t.Errorf("expected gpt-4o price, got %s", p.Input)
	}

	mini, ok := table.Lookup("gpt-4o-mini-2024-07-18")
	if !ok {
		t.Fatal("expected dated mini model to resolve")
	}
	wantMini, _ := table.Lookup("gpt-4o-mini")
	if !mini.Input.Equal(wantMini.Input) {
		t.Errorf("expected longest prefix gpt-4o-mini, got %s", mini.Input)
	}

	if _, ok := table.Lookup("gpt-4oz"); ok {
		t.Error("expected prefix without separator not to match")
	}
}

func TestTable_Set(t *testing.T) {
	table := NewTable()
	p, err := PerMillion("1", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table.Set("local-model", p)

	cost := table.Cost("local-model", ptr(1_000_000), ptr(1_000_000))
	if cost == nil || !cost.Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected cost 3, got %v", cost)
	}
}

func TestPerMillion_Invalid(t *testing.T) {
	if _, err := PerMillion("abc", "1"); err == nil {
		t.Error("expected error for invalid input price")
	}
	if _, err := PerMillion("1", "-1"); err == nil {
		t.Error("expected error for negative price")
	}
}
