package validator

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/rpattn/kpiledger/internal/domain"
)

// Problem describes one invalid field of one row.
type Problem struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.Row > 0 {
		return fmt.Sprintf("row %d %s: %s", p.Row, p.Field, p.Message)
	}
	return fmt.Sprintf("%s: %s", p.Field, p.Message)
}

// ValidationError is returned when one or more rows violate the declared field sets.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	messages := make([]string, len(e.Problems))
	for i, problem := range e.Problems {
		messages[i] = problem.String()
	}
	return "invalid KPI records: " + strings.Join(messages, "; ")
}

// ValidateRecord checks a record's enum fields and numeric inputs.
func ValidateRecord(r domain.KpiRecord) []Problem {
	var problems []Problem
	check := func(field, value string, ok bool) {
		if !ok {
			problems = append(problems, Problem{Field: field, Message: fmt.Sprintf("unsupported value %q", value)})
		}
	}

	check(domain.ColumnPerspective, string(r.Perspective), slices.Contains(domain.Perspectives, r.Perspective))
	check(domain.ColumnBusinessUnit, string(r.BusinessUnit), slices.Contains(domain.BusinessUnits, r.BusinessUnit))
	check(domain.ColumnMeasurementType, string(r.MeasurementType), slices.Contains(domain.MeasurementTypes, r.MeasurementType))
	check(domain.ColumnAggregationType, string(r.AggregationType), slices.Contains(domain.AggregationTypes, r.AggregationType))
	check(domain.ColumnMonth, string(r.Month), r.Month.Index() >= 0)

	for _, number := range []struct {
		field string
		value float64
	}{
		{domain.ColumnTarget, r.YTDTarget},
		{domain.ColumnActual, r.YTDActual},
	} {
		switch {
		case math.IsNaN(number.value) || math.IsInf(number.value, 0):
			problems = append(problems, Problem{Field: number.field, Message: "must be a finite number"})
		case number.value < 0:
			problems = append(problems, Problem{Field: number.field, Message: "must not be negative"})
		}
	}

	return problems
}

// ValidateRecords validates a full snapshot. Rows are numbered from 1.
// It returns nil when every row is valid.
func ValidateRecords(records []domain.KpiRecord) error {
	var problems []Problem
	for i, record := range records {
		for _, problem := range ValidateRecord(record) {
			problem.Row = i + 1
			problems = append(problems, problem)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
