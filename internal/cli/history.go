package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/rpattn/kpiledger/internal/config"
	"github.com/rpattn/kpiledger/internal/db"
	"github.com/rpattn/kpiledger/internal/repository"

	"github.com/google/subcommands"
	"github.com/google/uuid"
)

// historyCmd prints the change log archived by the API server. The workbook
// itself carries no history, so this reads from the archive database.
type historyCmd struct {
	configPath string
	session    string
	limit      int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display archived change log entries of a session" }
func (*historyCmd) Usage() string {
	return `kpictl history -session <id> [-config <dir>] [-limit 20]

  Displays the change log entries archived for a server session.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", ".", "directory containing config.yaml")
	f.StringVar(&c.session, "session", "", "session ID as sent in X-Session-ID")
	f.IntVar(&c.limit, "limit", 20, "maximum number of entries")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sessionID, err := uuid.Parse(c.session)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -session: %v\n", err)
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	if !cfg.Database.Enabled {
		fmt.Fprintln(stderr, "the change log archive is disabled; set database.enabled")
		return subcommands.ExitFailure
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(stderr, "Error connecting to database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer conn.Close()

	return c.print(ctx, repository.NewChangeLogRepository(conn.Pool), sessionID)
}

func (c *historyCmd) print(ctx context.Context, repo repository.ChangeLogRepository, sessionID uuid.UUID) subcommands.ExitStatus {
	entries, err := repo.List(ctx, sessionID, c.limit, 0)
	if err != nil {
		fmt.Fprintf(stderr, "Error listing changes: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(changesMarkdown(entries))
	return subcommands.ExitSuccess
}
