package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/Skotchmaster/waterworks/internal/models"
	"github.com/Skotchmaster/waterworks/internal/service"
)

type cleanupCmd struct {
	tokens *service.TokenService
	in     io.Reader
	out    io.Writer
}

type cleanupFlags struct {
	days        int
	dryRun      bool
	yes         bool
	expiredOnly bool
}

func parseCleanupFlags(args []string, defaultDays int, errOut io.Writer) (*cleanupFlags, error) {
	fs := pflag.NewFlagSet("cleanup", pflag.ContinueOnError)
	fs.SetOutput(errOut)

	f := &cleanupFlags{}
	fs.IntVar(&f.days, "days", defaultDays, "remove tokens unused for more than this many days")
	fs.BoolVar(&f.dryRun, "dry-run", false, "list candidates without deleting")
	fs.BoolVarP(&f.yes, "yes", "y", false, "skip the confirmation prompt")
	fs.BoolVar(&f.expiredOnly, "expired-only", false, "only remove tokens past their expiry")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.days < 0 {
		return nil, fmt.Errorf("--days must not be negative")
	}
	return f, nil
}

func (c *cleanupCmd) run(ctx context.Context, f *cleanupFlags) error {
	opts := service.SweepOptions{DryRun: f.dryRun}
	if !f.yes {
		opts.Confirm = c.confirm
	}

	var (
		report *service.SweepReport
		err    error
	)
	if f.expiredOnly {
		fmt.Fprintln(c.out, "Looking for expired tokens...")
		report, err = c.tokens.SweepExpired(ctx, opts)
	} else {
		fmt.Fprintf(c.out, "Looking for expired tokens and tokens unused for more than %d days...\n", f.days)
		report, err = c.tokens.SweepStale(ctx, f.days, opts)
	}
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	switch {
	case len(report.Candidates) == 0:
		fmt.Fprintln(c.out, "No tokens to clean up.")
	case report.DryRun:
		c.table(report.Candidates)
		fmt.Fprintf(c.out, "Dry run: %d tokens would be deleted.\n", len(report.Candidates))
	case report.Cancelled:
		fmt.Fprintln(c.out, "Cleanup cancelled.")
	default:
		fmt.Fprintf(c.out, "Deleted %d tokens.\n", report.Deleted)
	}
	return nil
}

func (c *cleanupCmd) table(tokens []models.AccessToken) {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tNAME\tCREATED\tLAST USED\tEXPIRES")
	for _, t := range tokens {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
			t.ID, t.UserID, t.Name, stamp(&t.CreatedAt), stamp(t.LastUsedAt), stamp(t.ExpiresAt))
	}
	w.Flush()
}

func (c *cleanupCmd) confirm(candidates []models.AccessToken) bool {
	c.table(candidates)
	fmt.Fprintf(c.out, "Delete %d tokens? [y/N]: ", len(candidates))

	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
