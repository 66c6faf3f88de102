// Package cli implements the kpictl subcommands. Every command works directly
// on a workbook: it loads it, applies one change, saves it back when the
// ledger is dirty and prints the change log lines the run produced.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rpattn/kpiledger/internal/export"
	"github.com/rpattn/kpiledger/internal/ledger"
	"github.com/rpattn/kpiledger/internal/schema/validator"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	now              = time.Now

	// markdownStyle is the glamour style used for terminal output.
	markdownStyle = "auto"
)

// Register adds the kpictl subcommands to the commander.
func Register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")

	c.Register(&addCmd{}, "rows")
	c.Register(&deleteLastCmd{}, "rows")

	c.Register(&listCmd{}, "reports")
	c.Register(&viewCmd{}, "reports")
	c.Register(&historyCmd{}, "reports")

	c.Register(&exportCmd{}, "files")
	c.Register(&validateCmd{}, "files")
}

// fileFlags are shared by every command.
type fileFlags struct {
	file     string
	validate bool
}

func (f *fileFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.file, "file", export.DefaultFileName, "KPI workbook to operate on")
	fs.BoolVar(&f.validate, "validate", false, "reject rows outside the declared field sets")
}

// open loads the workbook into a fresh ledger. A missing workbook yields an
// empty ledger; an unreadable one is an error so it is never overwritten.
func (f *fileFlags) open() (*ledger.Ledger, error) {
	var opts []ledger.Option
	opts = append(opts, ledger.WithClock(now))
	if f.validate {
		opts = append(opts, ledger.WithValidator(validator.ValidateRecords))
	}
	l := ledger.New(opts...)
	if err := l.Load(f.file); err != nil {
		return nil, err
	}
	return l, nil
}

// finish saves a dirty ledger and prints the change log lines appended since
// the run started.
func (f *fileFlags) finish(l *ledger.Ledger, since int) subcommands.ExitStatus {
	status := subcommands.ExitSuccess
	if l.Dirty() {
		if err := l.Persist(f.file); err != nil {
			fmt.Fprintf(stderr, "Error saving %s: %v\n", f.file, err)
			status = subcommands.ExitFailure
		}
	}
	for _, entry := range l.HistorySince(since) {
		fmt.Fprintln(stdout, entry.String())
	}
	return status
}

func loadFailure(file string, err error) subcommands.ExitStatus {
	var warning *ledger.LoadWarning
	if errors.As(err, &warning) {
		fmt.Fprintf(stderr, "Error loading %s: %v\n", file, warning.Err)
	} else {
		fmt.Fprintf(stderr, "Error loading %s: %v\n", file, err)
	}
	return subcommands.ExitFailure
}

// printMarkdown renders md for the terminal, falling back to the raw text.
func printMarkdown(md string) {
	out, err := glamour.Render(md, markdownStyle)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}
