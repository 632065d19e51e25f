package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/hackgods/salon-scheduling/internal/config"
	"github.com/hackgods/salon-scheduling/internal/db"
	"github.com/hackgods/salon-scheduling/internal/logging"
	"github.com/hackgods/salon-scheduling/migrations"
)

const usage = `usage: migrate <command> [arg]

commands:
  up          apply all pending migrations
  down [N]    roll back N migrations (default 1)
  force V     set the version without running migrations, clears the dirty flag
  version     print the current version
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: "text", Service: "migrate"})

	mg, err := db.NewMigrator(cfg.PostgresDSN, migrations.FS)
	if err != nil {
		logger.Error("open migrator", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := mg.Close(); err != nil {
			logger.Warn("close migrator", "err", err)
		}
	}()

	if err := runCommand(mg, flag.Arg(0), flag.Arg(1)); err != nil {
		logger.Error("migration failed", "command", flag.Arg(0), "err", err)
		os.Exit(1)
	}

	v, dirty, err := mg.Version()
	if err != nil {
		logger.Error("read version", "err", err)
		os.Exit(1)
	}
	logger.Info("schema version", "version", v, "dirty", dirty)
}

type migrator interface {
	Up() error
	Down(steps int) error
	Force(version int) error
}

func runCommand(mg migrator, cmd, arg string) error {
	switch cmd {
	case "up":
		return mg.Up()
	case "down":
		steps := 1
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				return fmt.Errorf("down: invalid step count %q", arg)
			}
			steps = n
		}
		return mg.Down(steps)
	case "force":
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("force: invalid version %q", arg)
		}
		return mg.Force(v)
	case "version":
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
