package cli

import (
	"context"
	"flag"

	"github.com/rpattn/kpiledger/internal/view"

	"github.com/google/subcommands"
)

type listCmd struct {
	fileFlags
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "display the KPI rows of the workbook" }
func (*listCmd) Usage() string {
	return `kpictl list [-file <workbook>]

  Displays every row of the workbook as a table.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
}

func (c *listCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, err := c.open()
	if err != nil {
		return loadFailure(c.file, err)
	}
	printMarkdown(recordsMarkdown(l.Records()))
	return subcommands.ExitSuccess
}

type viewCmd struct {
	fileFlags
	recent int
}

func (*viewCmd) Name() string     { return "view" }
func (*viewCmd) Synopsis() string { return "display the KPI dashboard summary" }
func (*viewCmd) Usage() string {
	return `kpictl view [-file <workbook>] [-recent 5]

  Displays totals per perspective and business unit and one scorecard per KPI.
`
}

func (c *viewCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.IntVar(&c.recent, "recent", view.DefaultRecentChanges, "number of recent changes to show")
}

func (c *viewCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, err := c.open()
	if err != nil {
		return loadFailure(c.file, err)
	}
	model := view.Build(l.Records(), l.History(), view.Options{RecentChanges: c.recent})
	printMarkdown(viewMarkdown(model))
	return subcommands.ExitSuccess
}
