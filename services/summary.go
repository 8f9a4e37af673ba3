package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sawadeeeen/mark-one/utils"
)

var (
	// okuRegexp captures the 億 (hundred-million yen) part of a price.
	okuRegexp = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*億`)
	// manRegexp captures the 万円 (ten-thousand yen) part of a price.
	manRegexp = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*万`)
)

// CatalogReport holds the computed overview of the merged catalog.
type CatalogReport struct {
	TotalProperties  int
	PropertiesBySrc  map[string]int
	PricedProperties int
	AveragePriceMan  float64 // 万円
	MinPriceMan      float64
	MaxPriceMan      float64
}

// SummaryService computes and prints a post-merge catalog overview.
type SummaryService struct {
	logger *utils.Logger
}

// NewSummaryService creates a SummaryService with the given logger.
func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

// Generate walks the merged records and aggregates counts and price stats.
func (s *SummaryService) Generate(records []map[string]any) *CatalogReport {
	report := &CatalogReport{
		PropertiesBySrc: make(map[string]int),
	}

	if len(records) == 0 {
		return report
	}
	report.TotalProperties = len(records)

	var total float64
	for _, record := range records {
		if src, ok := record["source"].(string); ok && src != "" {
			report.PropertiesBySrc[src]++
		}

		raw, _ := record["価格"].(string)
		price, ok := ParsePriceMan(raw)
		if !ok {
			continue
		}
		if report.PricedProperties == 0 || price < report.MinPriceMan {
			report.MinPriceMan = price
		}
		if price > report.MaxPriceMan {
			report.MaxPriceMan = price
		}
		total += price
		report.PricedProperties++
	}

	if report.PricedProperties > 0 {
		report.AveragePriceMan = round2(total / float64(report.PricedProperties))
	}
	return report
}

// ParsePriceMan converts a Japanese price string to 万円.
// Examples:
//
//	"3,480万円" → 3480
//	"1億2,000万円" → 12000
//	"2億円" → 20000
func ParsePriceMan(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	var price float64
	matched := false

	if m := okuRegexp.FindStringSubmatch(raw); m != nil {
		if v, err := parseNumber(m[1]); err == nil {
			price += v * 10000
			matched = true
		}
	}
	if m := manRegexp.FindStringSubmatch(raw); m != nil {
		if v, err := parseNumber(m[1]); err == nil {
			price += v
			matched = true
		}
	}
	if !matched || price <= 0 {
		return 0, false
	}
	return price, true
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

// Print renders the report to stdout.
func (s *SummaryService) Print(r *CatalogReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  MERGED CATALOG SUMMARY\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Total properties : \033[1m%d\033[0m\n", r.TotalProperties)
	fmt.Println()

	fmt.Printf("\033[1;33m  Properties by Source\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.PropertiesBySrc) == 0 {
		fmt.Printf("  No source data\n")
	} else {
		sources := make([]string, 0, len(r.PropertiesBySrc))
		for src := range r.PropertiesBySrc {
			sources = append(sources, src)
		}
		sort.Strings(sources)
		for _, src := range sources {
			count := r.PropertiesBySrc[src]
			bar := strings.Repeat("█", count)
			if count > 40 {
				bar = strings.Repeat("█", 40) + "…"
			}
			fmt.Printf("  %-20s %s (%d)\n", src, bar, count)
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Price Statistics (万円)\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.PricedProperties > 0 {
		fmt.Printf("  Priced properties : %d\n", r.PricedProperties)
		fmt.Printf("  Average price : \033[1;32m%.0f万円\033[0m\n", r.AveragePriceMan)
		fmt.Printf("  Minimum price : \033[1;32m%.0f万円\033[0m\n", r.MinPriceMan)
		fmt.Printf("  Maximum price : \033[1;32m%.0f万円\033[0m\n", r.MaxPriceMan)
	} else {
		fmt.Printf("  No price data available\n")
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
