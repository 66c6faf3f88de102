package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownAggregation is returned when a roll-up is asked for an unsupported aggregation type.
var ErrUnknownAggregation = errors.New("unknown aggregation type")

// ComparisonMetric compares a current value with its prior-period value.
type ComparisonMetric struct {
	Current   float64 `json:"current"`
	Prior     float64 `json:"prior"`
	Delta     float64 `json:"delta"`
	Improving bool    `json:"improving"`
}

// ComputeMetric derives the delta between two periods. A zero delta counts as improving.
func ComputeMetric(current, prior float64) ComparisonMetric {
	delta := current - prior
	return ComparisonMetric{
		Current:   current,
		Prior:     prior,
		Delta:     delta,
		Improving: delta >= 0,
	}
}

// Percent returns the delta relative to the prior value. ok is false when prior is zero.
func (m ComparisonMetric) Percent() (pct float64, ok bool) {
	if m.Prior == 0 || math.IsNaN(m.Prior) || math.IsNaN(m.Current) {
		return 0, false
	}
	return m.Delta / math.Abs(m.Prior) * 100.0, true
}

// Arrow is "▲" only for a strictly positive delta.
func (m ComparisonMetric) Arrow() string {
	if m.Delta > 0 {
		return "▲"
	}
	return "▼"
}

// Tone is the color class of the metric: "positive" whenever Improving.
func (m ComparisonMetric) Tone() string {
	if m.Improving {
		return "positive"
	}
	return "negative"
}

// Achievement returns how much of the target a record achieved, in percent.
// Lower better measures invert the ratio. ok is false when the denominator is zero.
func Achievement(r KpiRecord) (pct float64, ok bool) {
	numerator, denominator := r.YTDActual, r.YTDTarget
	if r.MeasurementType == MeasurementLowerBetter {
		numerator, denominator = r.YTDTarget, r.YTDActual
	}
	if denominator == 0 {
		return 0, false
	}
	return numerator / denominator * 100.0, true
}

// MonthlyValue is one month's contribution to a roll-up.
type MonthlyValue struct {
	Month  Month
	Value  float64
	Weight float64
}

// RollUp combines monthly values according to the aggregation type.
func RollUp(aggregation AggregationType, values []MonthlyValue) (float64, error) {
	switch aggregation {
	case AggregationSum, AggregationAverage, AggregationWeightedAverage, AggregationLast:
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAggregation, aggregation)
	}
	if len(values) == 0 {
		return 0, nil
	}

	var sum float64
	for _, v := range values {
		sum += v.Value
	}

	switch aggregation {
	case AggregationSum:
		return sum, nil
	case AggregationAverage:
		return sum / float64(len(values)), nil
	case AggregationWeightedAverage:
		var weighted, weights float64
		for _, v := range values {
			weighted += v.Value * v.Weight
			weights += v.Weight
		}
		if weights == 0 {
			return sum / float64(len(values)), nil
		}
		return weighted / weights, nil
	default:
		latest := values[0]
		for _, v := range values[1:] {
			if v.Month.Index() >= latest.Month.Index() {
				latest = v
			}
		}
		return latest.Value, nil
	}
}
