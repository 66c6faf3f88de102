package domain

// Perspective groups KPIs at the top level of the scorecard.
type Perspective string

const (
	PerspectiveFinancial Perspective = "Financial"
	PerspectiveCustomer  Perspective = "Customer n Service"
	PerspectiveQuality   Perspective = "Quality"
	PerspectiveEmployee  Perspective = "Employee"
)

// Perspectives lists the supported perspectives in display order.
var Perspectives = []Perspective{
	PerspectiveFinancial,
	PerspectiveCustomer,
	PerspectiveQuality,
	PerspectiveEmployee,
}

// BusinessUnit is the organizational unit a KPI belongs to.
type BusinessUnit string

const (
	BusinessUnit1 BusinessUnit = "BU1"
	BusinessUnit2 BusinessUnit = "BU2"
	BusinessUnit3 BusinessUnit = "BU3"
)

// BusinessUnits lists the supported business units in display order.
var BusinessUnits = []BusinessUnit{BusinessUnit1, BusinessUnit2, BusinessUnit3}

// MeasurementType decides whether a larger actual versus target is good.
type MeasurementType string

const (
	MeasurementHigherBetter MeasurementType = "Higher better"
	MeasurementLowerBetter  MeasurementType = "Lower better"
)

// MeasurementTypes lists the supported measurement types.
var MeasurementTypes = []MeasurementType{MeasurementHigherBetter, MeasurementLowerBetter}

// AggregationType describes how monthly values roll up into the YTD figure.
type AggregationType string

const (
	AggregationSum             AggregationType = "SUM"
	AggregationAverage         AggregationType = "AVERAGE"
	AggregationWeightedAverage AggregationType = "WEIGHTED AVERAGE"
	AggregationLast            AggregationType = "LAST"
)

// AggregationTypes lists the supported aggregation types.
var AggregationTypes = []AggregationType{
	AggregationSum,
	AggregationAverage,
	AggregationWeightedAverage,
	AggregationLast,
}

// Month is a reporting month label such as "Jan-25".
type Month string

// Months lists the supported month labels in calendar order.
var Months = []Month{
	"Jan-25", "Feb-25", "Mar-25", "Apr-25", "May-25", "Jun-25",
	"Jul-25", "Aug-25", "Sep-25", "Oct-25", "Nov-25", "Dec-25",
}

// Index returns the calendar position of the month, or -1 when the label is not supported.
func (m Month) Index() int {
	for i, candidate := range Months {
		if candidate == m {
			return i
		}
	}
	return -1
}

// Column headers of the persisted workbook, in canonical order.
const (
	ColumnPerspective     = "Perspective"
	ColumnNumber          = "Nomor KPI"
	ColumnName            = "KPI"
	ColumnPIC             = "PIC"
	ColumnBusinessUnit    = "BU"
	ColumnMeasurementType = "Measurement Type"
	ColumnAggregationType = "YTD Achievement Type"
	ColumnMonth           = "Bulan"
	ColumnTarget          = "YTD Target"
	ColumnActual          = "YTD Actual"
)

// Columns is the header row of the persisted workbook.
var Columns = []string{
	ColumnPerspective,
	ColumnNumber,
	ColumnName,
	ColumnPIC,
	ColumnBusinessUnit,
	ColumnMeasurementType,
	ColumnAggregationType,
	ColumnMonth,
	ColumnTarget,
	ColumnActual,
}

// KpiRecord is one row of the KPI ledger. Target and actual are independent inputs.
type KpiRecord struct {
	Perspective     Perspective     `json:"perspective"`
	Number          string          `json:"number"`
	Name            string          `json:"name"`
	PIC             string          `json:"pic"`
	BusinessUnit    BusinessUnit    `json:"businessUnit"`
	MeasurementType MeasurementType `json:"measurementType"`
	AggregationType AggregationType `json:"aggregationType"`
	Month           Month           `json:"month"`
	YTDTarget       float64         `json:"ytdTarget"`
	YTDActual       float64         `json:"ytdActual"`
}

// DefaultRecord returns the values a freshly added row starts with.
func DefaultRecord() KpiRecord {
	return KpiRecord{
		Perspective:     PerspectiveFinancial,
		BusinessUnit:    BusinessUnit1,
		MeasurementType: MeasurementHigherBetter,
		AggregationType: AggregationSum,
		Month:           Months[0],
	}
}

// Values returns the record's cells in the order of Columns.
func (r KpiRecord) Values() []any {
	return []any{
		string(r.Perspective),
		r.Number,
		r.Name,
		r.PIC,
		string(r.BusinessUnit),
		string(r.MeasurementType),
		string(r.AggregationType),
		string(r.Month),
		r.YTDTarget,
		r.YTDActual,
	}
}

// RecordsEqual reports whether two snapshots hold the same rows in the same order.
func RecordsEqual(a, b []KpiRecord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
