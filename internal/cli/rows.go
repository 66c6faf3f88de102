package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/rpattn/kpiledger/internal/domain"
	"github.com/rpattn/kpiledger/internal/ledger"
	"github.com/rpattn/kpiledger/internal/schema/validator"

	"github.com/google/subcommands"
)

// addCmd appends one row, starting from the default record.
type addCmd struct {
	fileFlags
	record domain.KpiRecord
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "append a KPI row to the workbook" }
func (*addCmd) Usage() string {
	return `kpictl add [-file <workbook>] [-name <kpi>] [-number <n>] [-month Jan-25] ...

  Appends a row. Fields that are not given keep the defaults of a new row.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	c.record = domain.DefaultRecord()
	f.StringVar((*string)(&c.record.Perspective), "perspective", string(c.record.Perspective), "perspective of the KPI")
	f.StringVar(&c.record.Number, "number", "", "KPI number")
	f.StringVar(&c.record.Name, "name", "", "KPI name")
	f.StringVar(&c.record.PIC, "pic", "", "person in charge")
	f.StringVar((*string)(&c.record.BusinessUnit), "bu", string(c.record.BusinessUnit), "business unit")
	f.StringVar((*string)(&c.record.MeasurementType), "measurement", string(c.record.MeasurementType), "measurement type")
	f.StringVar((*string)(&c.record.AggregationType), "aggregation", string(c.record.AggregationType), "YTD achievement type")
	f.StringVar((*string)(&c.record.Month), "month", string(c.record.Month), "month, e.g. Jan-25")
	f.Float64Var(&c.record.YTDTarget, "target", 0, "YTD target")
	f.Float64Var(&c.record.YTDActual, "actual", 0, "YTD actual")
}

func (c *addCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.validate {
		if problems := validator.ValidateRecord(c.record); len(problems) > 0 {
			fmt.Fprintln(stderr, (&validator.ValidationError{Problems: problems}).Error())
			return subcommands.ExitUsageError
		}
	}

	l, err := c.open()
	if err != nil {
		return loadFailure(c.file, err)
	}
	since := l.HistoryLen()

	l.AddRecord(c.record)
	fmt.Fprintf(stdout, "Added row %d\n", l.Len())
	return c.finish(l, since)
}

// deleteLastCmd removes the final row.
type deleteLastCmd struct {
	fileFlags
}

func (*deleteLastCmd) Name() string     { return "delete-last" }
func (*deleteLastCmd) Synopsis() string { return "remove the last KPI row from the workbook" }
func (*deleteLastCmd) Usage() string {
	return `kpictl delete-last [-file <workbook>]

  Removes the last row and records its KPI name in the change log.
`
}

func (c *deleteLastCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
}

func (c *deleteLastCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, err := c.open()
	if err != nil {
		return loadFailure(c.file, err)
	}
	since := l.HistoryLen()

	if _, err := l.DeleteLast(); err != nil {
		if errors.Is(err, ledger.ErrEmptyLedger) {
			fmt.Fprintf(stderr, "%s has no rows to delete\n", c.file)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(stderr, "Error deleting row: %v\n", err)
		return subcommands.ExitFailure
	}
	return c.finish(l, since)
}
