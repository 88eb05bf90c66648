package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

// RemoteMigrateCommand creates or updates the remote schema, including the
// change-notification triggers on postgres.
type RemoteMigrateCommand struct {
	remoteFlags
	Timeout time.Duration
	Out     io.Writer
}

func NewRemoteMigrateCommand() *RemoteMigrateCommand {
	return &RemoteMigrateCommand{Out: os.Stdout}
}

func (cmd *RemoteMigrateCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("remote-migrate", flag.ExitOnError)
	cmd.register(fs)
	fs.DurationVar(&cmd.Timeout, "timeout", time.Minute, "Migration timeout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s remote-migrate [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create the users, recipes and favorites tables in the remote store.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *RemoteMigrateCommand) Run() error {
	store, err := cmd.open()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Fprintln(cmd.Out, "Remote schema is up to date.")
	return nil
}
