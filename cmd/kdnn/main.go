// Command kdnn loads points into a SQLite database and reports radius-bounded
// nearest neighbours.
//
// Usage:
//
//	kdnn -config kdnn.yaml [-load points.csv] [-id A]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/viant/sqlite-kd/config"
	"github.com/viant/sqlite-kd/engine"
	"github.com/viant/sqlite-kd/logging"
	"github.com/viant/sqlite-kd/nnutil"
)

func main() {
	configPath := flag.String("config", "kdnn.yaml", "path to the YAML configuration")
	loadPath := flag.String("load", "", "CSV file with id, one column per dimension and optional payload")
	id := flag.String("id", "", "report the nearest neighbour of this record only")
	flag.Parse()

	if err := run(context.Background(), *configPath, *loadPath, *id, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "kdnn: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, loadPath, id string, out io.Writer) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.NewTextLogger(level)

	db, err := engine.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	finder, err := nnutil.NewFinder(db, cfg.Source, cfg.Dimensions, cfg.Radius)
	if err != nil {
		return err
	}
	finder.Weights = cfg.Weights
	finder.Parallelism = cfg.Parallel
	finder.Logger = logger

	if loadPath != "" {
		store, err := finder.Store()
		if err != nil {
			return err
		}
		n, err := loadCSV(ctx, store, loadPath, cfg.Dimensions)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "points loaded", "source", cfg.Source, "count", n, "file", loadPath)
	}

	if id != "" {
		m, err := finder.NearestTo(ctx, id)
		if err != nil {
			return err
		}
		printPair(out, nnutil.Pair{ID: id, Match: m})
		return nil
	}
	pairs, err := finder.Pairs(ctx)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		printPair(out, p)
	}
	return nil
}

func printPair(w io.Writer, p nnutil.Pair) {
	if p.Match == nil {
		fmt.Fprintf(w, "%s\t-\n", p.ID)
		return
	}
	fmt.Fprintf(w, "%s\t%s\t%g\n", p.ID, p.Match.ID, p.Match.Distance)
}
