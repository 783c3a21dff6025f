// Command residency-admin bundles the operational chores that stay out of
// the serving path: schema migrations, database resets, demo seeding, and
// message-job inspection.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/gagyekum/residency/config"
	"github.com/gagyekum/residency/internal/bootstrap"
	"github.com/gagyekum/residency/internal/devseed"
)

const defaultMigrationTimeout = 5 * time.Minute

type command struct {
	summary string
	run     func(*commandContext, []string) error
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

func commands() map[string]command {
	return map[string]command{
		"migrate":    {"Run database migrations", runMigrate},
		"db-reset":   {"Drop the public schema, re-run migrations, and optionally seed", runDBReset},
		"db-seed":    {"Run migrations and seed the demo residence directory", runDBSeed},
		"job-stats":  {"Show message job totals by state plus the most recent jobs", runJobStats},
		"job-status": {"Inspect one job's delivery status (Redis cache + Postgres)", runJobStatus},
	}
}

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2) //nolint:forbidigo // usage errors exit non-zero for shell scripts
	}
	name := os.Args[1]
	cmd, ok := commands()[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		printUsage(os.Stderr)
		os.Exit(2) //nolint:forbidigo // usage errors exit non-zero for shell scripts
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1) //nolint:forbidigo // config failures exit non-zero for shell scripts
	}

	cc := &commandContext{Ctx: context.Background(), Logger: logger, Config: cfg}
	if err := cmd.run(cc, os.Args[2:]); err != nil {
		logger.Error("command failed", "command", name, "error", err)
		os.Exit(1) //nolint:forbidigo // command failures exit non-zero for shell scripts
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: residency-admin <command> [flags]\n\nCommands:\n")
	cmds := commands()
	for _, name := range slices.Sorted(maps.Keys(cmds)) {
		fmt.Fprintf(w, "  %-12s %s\n", name, cmds[name].summary)
	}
}

func runMigrate(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "bound on the whole migration run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *timeout <= 0 {
		return errors.New("--timeout must be greater than zero")
	}

	return withDatabase(cc, *timeout, func(ctx context.Context, db *sql.DB) error {
		cc.Logger.Info("running database migrations")
		if err := bootstrap.RunMigrations(ctx, db, cc.Logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		cc.Logger.Info("migrations complete")
		return nil
	})
}

func runDBReset(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("db-reset", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "bound on the whole reset")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	seed := fs.Bool("seed", false, "seed demo data once the reset completes")
	allowRemote := fs.Bool("allow-remote", false, "permit database hosts that do not look local")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *timeout <= 0 {
		return errors.New("--timeout must be greater than zero")
	}

	pg := cc.Config.Postgres
	if err := guardRemoteHost(cc, *allowRemote, "drop and recreate the public schema"); err != nil {
		return err
	}
	// The typed-host gate above already confirms remote resets; local ones
	// get a yes/no unless --yes was passed.
	if !*yes && !isLikelyRemoteHost(pg.Host) {
		prompt := fmt.Sprintf("About to drop and recreate the public schema for database %q on %s:%d.", pg.Name, pg.Host, pg.Port)
		if err := confirm(prompt); err != nil {
			return err
		}
	}

	return withDatabase(cc, *timeout, func(ctx context.Context, db *sql.DB) error {
		cc.Logger.Info("dropping public schema", "database", pg.Name)
		if err := resetSchema(ctx, db, cc.Logger, pg.User); err != nil {
			return err
		}
		cc.Logger.Info("re-running database migrations")
		if err := bootstrap.RunMigrations(ctx, db, cc.Logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		if *seed {
			cc.Logger.Info("seeding demo residences after reset")
			if err := devseed.Run(ctx, db, cc.Logger); err != nil {
				return fmt.Errorf("seed data: %w", err)
			}
		}
		cc.Logger.Info("database reset complete")
		return nil
	})
}

func runDBSeed(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("db-seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "bound on migrations plus seeding")
	allowRemote := fs.Bool("allow-remote", false, "permit database hosts that do not look local")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *timeout <= 0 {
		return errors.New("--timeout must be greater than zero")
	}
	if err := guardRemoteHost(cc, *allowRemote, "seed demo data on the configured database"); err != nil {
		return err
	}

	return withDatabase(cc, *timeout, func(ctx context.Context, db *sql.DB) error {
		cc.Logger.Info("ensuring database migrations are current")
		if err := bootstrap.RunMigrations(ctx, db, cc.Logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		cc.Logger.Info("seeding demo residences")
		if err := devseed.Run(ctx, db, cc.Logger); err != nil {
			return fmt.Errorf("seed data: %w", err)
		}
		cc.Logger.Info("seeding complete")
		return nil
	})
}

// withDatabase opens the configured Postgres pool, bounds the command with
// timeout and Ctrl-C, and closes the pool when f returns.
func withDatabase(cc *commandContext, timeout time.Duration, f func(context.Context, *sql.DB) error) error {
	ctx, stop := signal.NotifyContext(cc.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(ctx, bootstrap.StorageConfig{Postgres: cc.Config.Postgres, Logger: cc.Logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			cc.Logger.Warn("db close failed", "error", err)
		}
	}()

	return f(ctx, db)
}

// resetSchema drops and recreates the public schema. Grants go back to the
// public role plus the configured database user, which on managed Postgres
// is usually not the schema owner.
func resetSchema(ctx context.Context, db *sql.DB, logger *slog.Logger, owner string) error {
	statements := []string{
		"DROP SCHEMA public CASCADE",
		"CREATE SCHEMA public",
		"GRANT ALL ON SCHEMA public TO public",
	}
	if owner = strings.TrimSpace(owner); owner != "" && !strings.EqualFold(owner, "public") {
		statements = append(statements, "GRANT ALL ON SCHEMA public TO "+quoteIdentifier(owner))
	}

	for _, stmt := range statements {
		logger.DebugContext(ctx, "executing reset statement", "sql", stmt)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// guardRemoteHost blocks destructive commands aimed at hosts that do not look
// local. --allow-remote downgrades the refusal to a typed confirmation of the
// host name, which --yes cannot script past.
func guardRemoteHost(cc *commandContext, allow bool, action string) error {
	host := cc.Config.Postgres.Host
	if !isLikelyRemoteHost(host) {
		return nil
	}
	if !allow {
		return fmt.Errorf("refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional", host)
	}

	fmt.Fprintf(os.Stderr, "\nWARNING: database host %q does not look local. This will %s.\n", host, action)
	fmt.Fprintf(os.Stderr, "Type %q to continue or press enter to abort: ", host)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimSpace(line) != host {
		return errors.New("aborted by user")
	}
	return nil
}

// isLikelyRemoteHost reports whether host points somewhere other than this
// machine. Loopback addresses and .local names count as local; anything else
// is treated as remote.
func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	switch {
	case h == "", h == "localhost", h == "127.0.0.1", h == "::1":
		return false
	case strings.HasSuffix(h, ".local"):
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func confirm(prompt string) error {
	fmt.Fprintf(os.Stdout, "%s\nContinue? [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	}
	return errors.New("aborted by user")
}
