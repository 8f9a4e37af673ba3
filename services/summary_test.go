package services

import (
	"testing"

	"github.com/sawadeeeen/mark-one/utils"
)

func sampleCatalog() []map[string]any {
	return []map[string]any{
		{"source": "bukkaku_flie", "property_id": "1", "価格": "2,000万円"},
		{"source": "bukkaku_flie", "property_id": "2", "価格": "1億円"},
		{"source": "ielove", "property_id": "3", "価格": "3,000万円"},
		{"source": "ielove", "property_id": "4", "価格": ""},
		{"source": "ielove", "property_id": "5", "価格": "相談"},
	}
}

func TestParsePriceMan(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"3,480万円", 3480, true},
		{"1億2,000万円", 12000, true},
		{"2億円", 20000, true},
		{"980万円（税込）", 980, true},
		{"", 0, false},
		{"相談", 0, false},
		{"price on request", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePriceMan(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParsePriceMan(%q) = %.0f, %v; want %.0f, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSummaryCounts(t *testing.T) {
	svc := NewSummaryService(utils.NewLogger())
	r := svc.Generate(sampleCatalog())

	if r.TotalProperties != 5 {
		t.Errorf("TotalProperties: got %d, want 5", r.TotalProperties)
	}
	if r.PropertiesBySrc["bukkaku_flie"] != 2 {
		t.Errorf("bukkaku_flie count: got %d, want 2", r.PropertiesBySrc["bukkaku_flie"])
	}
	if r.PropertiesBySrc["ielove"] != 3 {
		t.Errorf("ielove count: got %d, want 3", r.PropertiesBySrc["ielove"])
	}
}

func TestSummaryPriceStats(t *testing.T) {
	svc := NewSummaryService(utils.NewLogger())
	r := svc.Generate(sampleCatalog())

	if r.PricedProperties != 3 {
		t.Errorf("PricedProperties: got %d, want 3", r.PricedProperties)
	}
	if r.MinPriceMan != 2000 {
		t.Errorf("MinPriceMan: got %.0f, want 2000", r.MinPriceMan)
	}
	if r.MaxPriceMan != 10000 {
		t.Errorf("MaxPriceMan: got %.0f, want 10000", r.MaxPriceMan)
	}
	if r.AveragePriceMan != 5000 {
		t.Errorf("AveragePriceMan: got %.2f, want 5000", r.AveragePriceMan)
	}
}

func TestSummaryEmptyInput(t *testing.T) {
	svc := NewSummaryService(utils.NewLogger())
	r := svc.Generate(nil)

	if r.TotalProperties != 0 || r.PricedProperties != 0 {
		t.Errorf("expected zeroed report for empty input, got %+v", r)
	}
}
