package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/degreeplan/pkg/catalog"
	"github.com/Mindburn-Labs/degreeplan/pkg/config"
)

// runCatalogCmd implements `degreeplan catalog <import|show>`.
func runCatalogCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: degreeplan catalog <import|show> [flags]")
		return 2
	}

	switch args[0] {
	case "import":
		return runCatalogImport(args[1:], cfg, stdout, stderr)
	case "show":
		return runCatalogShow(cfg, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown catalog subcommand: %s\n", args[0])
		return 2
	}
}

func runCatalogImport(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("catalog import", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var path string
	cmd.StringVar(&path, "file", "", "Catalog YAML or JSON file (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if path == "" {
		return exitCode(stderr, fmt.Errorf("%w: --file is required", errUsage))
	}

	cat, err := catalog.LoadFile(path)
	if err != nil {
		return exitCode(stderr, err)
	}

	ctx, stop := commandContext()
	defer stop()
	db, store, err := openCatalogStore(ctx, cfg)
	if err != nil {
		return exitCode(stderr, err)
	}
	defer func() { _ = db.Close() }()

	if err := store.Save(ctx, cat); err != nil {
		return exitCode(stderr, err)
	}
	_, _ = fmt.Fprintf(stdout, "imported %d courses (catalog version %s)\n", len(cat.Codes()), cat.Version)
	return 0
}

func runCatalogShow(cfg *config.Config, stdout, stderr io.Writer) int {
	ctx, stop := commandContext()
	defer stop()
	db, store, err := openCatalogStore(ctx, cfg)
	if err != nil {
		return exitCode(stderr, err)
	}
	defer func() { _ = db.Close() }()

	cat, err := store.Load(ctx)
	if err != nil {
		return exitCode(stderr, err)
	}
	out, err := catalog.Marshal(cat)
	if err != nil {
		return exitCode(stderr, err)
	}
	_, _ = stdout.Write(out)
	return 0
}
