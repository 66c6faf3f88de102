// Package view derives the read-only dashboard model from a ledger snapshot.
// Build is pure and is recomputed after every mutation; chart and page
// surfaces consume its output without touching the ledger.
package view

import (
	"fmt"
	"math"
	"sort"

	"github.com/rpattn/kpiledger/internal/domain"
	"github.com/rpattn/kpiledger/internal/ledger"

	"github.com/shopspring/decimal"
)

// DefaultRecentChanges is how many change log entries the model shows.
const DefaultRecentChanges = 5

const minGaugeRange = 120.0

// Options tunes Build.
type Options struct {
	RecentChanges int
}

// Model is everything a page needs to render the current snapshot.
type Model struct {
	RowCount      int                     `json:"rowCount"`
	Recent        []domain.ChangeLogEntry `json:"recent"`
	Perspectives  []Bar                   `json:"perspectives"`
	BusinessUnits []Bar                   `json:"businessUnits"`
	Scorecards    []Scorecard             `json:"scorecards"`
}

// Bar is one category of a target versus actual bar chart.
type Bar struct {
	Category string  `json:"category"`
	Target   float64 `json:"target"`
	Actual   float64 `json:"actual"`
	Count    int     `json:"count"`
}

// Gauge carries a value, its prior value and the upper end of the dial.
type Gauge struct {
	Value    float64 `json:"value"`
	Prior    float64 `json:"prior"`
	RangeMax float64 `json:"rangeMax"`
}

// Scorecard compares one KPI's latest month with the month before it.
type Scorecard struct {
	Key             string                  `json:"key"`
	Name            string                  `json:"name"`
	Number          string                  `json:"number"`
	BusinessUnit    domain.BusinessUnit     `json:"businessUnit"`
	Perspective     domain.Perspective      `json:"perspective"`
	Month           domain.Month            `json:"month"`
	PriorMonth      domain.Month            `json:"priorMonth,omitempty"`
	Metric          domain.ComparisonMetric `json:"metric"`
	Arrow           string                  `json:"arrow"`
	Tone            string                  `json:"tone"`
	DisplayValue    string                  `json:"displayValue"`
	DisplayChange   string                  `json:"displayChange"`
	Gauge           Gauge                   `json:"gauge"`
	RolledActual    float64                 `json:"rolledActual"`
	AggregationType domain.AggregationType  `json:"aggregationType"`
}

// Build computes the dashboard model for a snapshot and its change history.
func Build(records []domain.KpiRecord, history []domain.ChangeLogEntry, opts Options) Model {
	recent := opts.RecentChanges
	if recent <= 0 {
		recent = DefaultRecentChanges
	}

	return Model{
		RowCount:      len(records),
		Recent:        ledger.RecentOf(history, recent),
		Perspectives:  perspectiveBars(records),
		BusinessUnits: businessUnitBars(records),
		Scorecards:    scorecards(records),
	}
}

func perspectiveBars(records []domain.KpiRecord) []Bar {
	order := make([]string, len(domain.Perspectives))
	for i, p := range domain.Perspectives {
		order[i] = string(p)
	}
	return bars(records, order, func(r domain.KpiRecord) string { return string(r.Perspective) })
}

func businessUnitBars(records []domain.KpiRecord) []Bar {
	order := make([]string, len(domain.BusinessUnits))
	for i, bu := range domain.BusinessUnits {
		order[i] = string(bu)
	}
	return bars(records, order, func(r domain.KpiRecord) string { return string(r.BusinessUnit) })
}

// bars sums target and actual per category. Known categories come first in
// their canonical order, unknown ones follow in order of first appearance.
func bars(records []domain.KpiRecord, order []string, category func(domain.KpiRecord) string) []Bar {
	totals := map[string]*Bar{}
	seen := []string{}
	for _, record := range records {
		key := category(record)
		bar, ok := totals[key]
		if !ok {
			bar = &Bar{Category: key}
			totals[key] = bar
			seen = append(seen, key)
		}
		bar.Target += record.YTDTarget
		bar.Actual += record.YTDActual
		bar.Count++
	}

	out := make([]Bar, 0, len(totals))
	known := map[string]bool{}
	for _, key := range order {
		known[key] = true
		if bar, ok := totals[key]; ok {
			out = append(out, *bar)
		}
	}
	for _, key := range seen {
		if !known[key] {
			out = append(out, *totals[key])
		}
	}
	return out
}

type series struct {
	key     string
	records []domain.KpiRecord
}

func scorecards(records []domain.KpiRecord) []Scorecard {
	groups := map[string]*series{}
	var order []string
	for _, record := range records {
		key := fmt.Sprintf("%s|%s|%s", record.BusinessUnit, record.Number, record.Name)
		group, ok := groups[key]
		if !ok {
			group = &series{key: key}
			groups[key] = group
			order = append(order, key)
		}
		group.records = append(group.records, record)
	}

	cards := make([]Scorecard, 0, len(order))
	for _, key := range order {
		cards = append(cards, scorecard(groups[key]))
	}
	return cards
}

func scorecard(s *series) Scorecard {
	months := make([]domain.KpiRecord, len(s.records))
	copy(months, s.records)
	// Stable so that repeated months keep their ledger order and the later row wins.
	sort.SliceStable(months, func(i, j int) bool {
		return months[i].Month.Index() < months[j].Month.Index()
	})

	latest := months[len(months)-1]
	current, _ := domain.Achievement(latest)

	var prior float64
	var priorMonth domain.Month
	if len(months) > 1 {
		previous := months[len(months)-2]
		prior, _ = domain.Achievement(previous)
		priorMonth = previous.Month
	}

	metric := domain.ComputeMetric(round(current, 1), round(prior, 1))

	values := make([]domain.MonthlyValue, len(months))
	for i, record := range months {
		values[i] = domain.MonthlyValue{Month: record.Month, Value: record.YTDActual, Weight: record.YTDTarget}
	}
	rolled, err := domain.RollUp(latest.AggregationType, values)
	if err != nil {
		rolled = latest.YTDActual
	}

	return Scorecard{
		Key:             s.key,
		Name:            latest.Name,
		Number:          latest.Number,
		BusinessUnit:    latest.BusinessUnit,
		Perspective:     latest.Perspective,
		Month:           latest.Month,
		PriorMonth:      priorMonth,
		Metric:          metric,
		Arrow:           metric.Arrow(),
		Tone:            metric.Tone(),
		DisplayValue:    FormatValue(metric.Current),
		DisplayChange:   FormatChange(metric),
		Gauge:           gauge(metric),
		RolledActual:    rolled,
		AggregationType: latest.AggregationType,
	}
}

func gauge(metric domain.ComparisonMetric) Gauge {
	top := math.Max(minGaugeRange, math.Max(metric.Current, metric.Prior))
	return Gauge{
		Value:    metric.Current,
		Prior:    metric.Prior,
		RangeMax: math.Ceil(top/10) * 10,
	}
}

// FormatValue renders a scorecard value with one decimal: percentages below 100
// get a percent sign, larger values are shown without one.
func FormatValue(value float64) string {
	if !finite(value) {
		return "N/A"
	}
	d := decimal.NewFromFloat(value)
	if value < 100 {
		return d.StringFixed(1) + "%"
	}
	return d.StringFixed(1)
}

// FormatChange renders the arrow and the absolute delta of a metric.
func FormatChange(metric domain.ComparisonMetric) string {
	if !finite(metric.Delta) {
		return metric.Arrow() + " N/A"
	}
	return fmt.Sprintf("%s %s%%", metric.Arrow(), decimal.NewFromFloat(metric.Delta).Abs().StringFixed(1))
}

// round maps non-finite values to 0 so the model always encodes as JSON.
func round(value float64, places int32) float64 {
	if !finite(value) {
		return 0
	}
	return decimal.NewFromFloat(value).Round(places).InexactFloat64()
}

func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
