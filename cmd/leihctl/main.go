package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"leihlokal/internal/bootstrap"
	"leihlokal/internal/config"
	"leihlokal/internal/export"
	"leihlokal/internal/logging"
	"leihlokal/internal/schedule"
	"leihlokal/internal/service"

	"github.com/rs/zerolog"
)

const usage = `usage: leihctl <command> [flags]

commands:
  export   write the month grid as xlsx
  items    upsert items from a YAML file into the store
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "export":
		return runExport(args[1:])
	case "items":
		return runItems(args[1:])
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func setup(configPath string) (*config.Config, *zerolog.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	cleanup := func() {
		if closer != nil {
			_ = closer.Close()
		}
	}
	return cfg, logging.Component(logger, "leihctl"), cleanup, nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "configs/config.yaml", "path to config.yaml")
		monthRaw   = fs.String("month", time.Now().Format("2006-01"), "month to export, YYYY-MM")
		outDir     = fs.String("out", "", "output directory (default exports.path)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	month, err := schedule.ParseMonth(*monthRaw)
	if err != nil {
		return err
	}

	cfg, logger, cleanup, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := bootstrap.OpenStore(cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	items := service.NewItemService(store, logger)
	if err := items.Refresh(ctx); err != nil {
		return fmt.Errorf("load items: %w", err)
	}

	opts := schedule.Options{Policy: cfg.Schedule.Policy(), Closed: cfg.Schedule.Closed()}
	grid := service.NewGridService(store, service.NewMonthLoader(store, logger), opts, nil, logger).Month(ctx, month)
	if grid.Error != "" {
		return fmt.Errorf("load month: %s", grid.Error)
	}
	if grid.Unsupported {
		logger.Warn().Msg("store has no bookings collection, exporting empty grid")
	}

	dir := *outDir
	if dir == "" {
		dir = cfg.Exports.Path
	}
	path, err := export.SaveMonth(dir, grid.Month, grid.Layout, items.Names())
	if err != nil {
		return err
	}

	fmt.Printf("exported %s (%d bookings without lane)\n", path, len(grid.Layout.Overflow))
	return nil
}

func runItems(args []string) error {
	fs := flag.NewFlagSet("items", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "configs/config.yaml", "path to config.yaml")
		itemsPath  = fs.String("file", "configs/items.yaml", "path to items.yaml")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, cleanup, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	items, err := bootstrap.LoadItems(*itemsPath)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no items in %s", *itemsPath)
	}

	store, err := bootstrap.OpenStore(cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, updated, err := bootstrap.SyncItems(ctx, store, items)
	if err != nil {
		return err
	}
	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
