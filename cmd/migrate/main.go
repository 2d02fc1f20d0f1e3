package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/watchfi/storefront/pkg/config"
	"github.com/watchfi/storefront/pkg/db"
	"github.com/watchfi/storefront/pkg/logger"
	"github.com/watchfi/storefront/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up              apply pending migrations
  down            roll back the latest migration
  to <version>    move the schema to version (YYYYMMDDHHMMSS, 0 for empty)
  status          list migrations and whether they are applied
  create <name>   write a new migration into -dir
  validate        check migration files without a database

flags:
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	command, args := flag.Arg(0), flag.Args()[1:]
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"command": command,
		"driver":  cfg.DB.Driver,
	})

	if err := run(ctx, cfg, logg, *dir, command, args); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, dir, command string, args []string) error {
	switch command {
	case "create":
		if len(args) != 1 {
			return fmt.Errorf("create takes exactly one name")
		}
		target := dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.Create(target, args[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "validate":
		source, err := migrate.Source(dir)
		if err != nil {
			return err
		}
		return migrate.Validate(source)
	}

	source, err := migrate.Source(dir)
	if err != nil {
		return err
	}
	if err := migrate.Validate(source); err != nil {
		return err
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { _ = dbClient.Close() }()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, dbClient.Driver(), source)
	if err != nil {
		return err
	}

	var applied []migrate.Applied
	switch command {
	case "up":
		applied, err = runner.Up(ctx)
	case "down":
		applied, err = runner.Down(ctx)
	case "to":
		if len(args) != 1 {
			return fmt.Errorf("to takes exactly one version")
		}
		version, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil || version < 0 {
			return fmt.Errorf("invalid version %q", args[0])
		}
		applied, err = runner.To(ctx, version)
	case "status":
		return printStatus(ctx, runner)
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	for _, step := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     step.Version,
			"file":        step.File,
			"direction":   step.Direction,
			"duration_ms": step.Duration.Milliseconds(),
		}), "migrate.step")
	}
	return err
}

func printStatus(ctx context.Context, runner *migrate.Runner) error {
	statuses, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		state, at := "pending", "-"
		if st.Applied {
			state, at = "applied", st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Version, state, at, st.File)
	}
	return w.Flush()
}
