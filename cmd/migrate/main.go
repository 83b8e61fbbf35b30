package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/efleague/admin/internal/store"
	"github.com/joho/godotenv"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: migrate [-database-url URL] up|down|version|force N\n")
	flag.PrintDefaults()
}

func main() {
	_ = godotenv.Load()

	dbURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres URL or SQLite path")
	flag.Usage = usage
	flag.Parse()

	if *dbURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := store.Migrate(logger, *dbURL, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Error("migration failed", "err", err)
		os.Exit(1)
	}
}
