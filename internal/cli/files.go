package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/rpattn/kpiledger/internal/export"
	"github.com/rpattn/kpiledger/internal/ingestion"
	"github.com/rpattn/kpiledger/internal/schema/validator"

	"github.com/google/subcommands"
)

// exportCmd writes a timestamped copy of the workbook, as the download button does.
type exportCmd struct {
	fileFlags
	dir string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a timestamped copy of the workbook" }
func (*exportCmd) Usage() string {
	return `kpictl export [-file <workbook>] [-dir <output directory>]

  Writes kpi_data_YYYYMMDD_HHMMSS.xlsx with the current rows.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.StringVar(&c.dir, "dir", ".", "directory to write the copy to")
}

func (c *exportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, err := c.open()
	if err != nil {
		return loadFailure(c.file, err)
	}
	if l.Len() == 0 {
		fmt.Fprintf(stderr, "%s has no rows to export\n", c.file)
		return subcommands.ExitFailure
	}

	payload, err := export.EncodeWorkbook(l.Records())
	if err != nil {
		fmt.Fprintf(stderr, "Error encoding workbook: %v\n", err)
		return subcommands.ExitFailure
	}
	target := filepath.Join(c.dir, export.FileName(now()))
	if err := export.WriteFileAtomic(target, payload); err != nil {
		fmt.Fprintf(stderr, "Error writing %s: %v\n", target, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stdout, target)
	return subcommands.ExitSuccess
}

// validateCmd reports rows outside the declared field sets without changing anything.
type validateCmd struct {
	file string
}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "check the workbook rows against the declared field sets" }
func (*validateCmd) Usage() string {
	return `kpictl validate [-file <workbook>]

  Lists every invalid field. Exits non-zero when a problem is found.
`
}

func (c *validateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", export.DefaultFileName, "KPI workbook to check")
}

func (c *validateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	records, err := ingestion.DecodeFile(c.file)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading %s: %v\n", c.file, err)
		return subcommands.ExitFailure
	}

	err = validator.ValidateRecords(records)
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		for _, problem := range validationErr.Problems {
			fmt.Fprintln(stdout, problem.String())
		}
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error validating %s: %v\n", c.file, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "%d rows OK\n", len(records))
	return subcommands.ExitSuccess
}
