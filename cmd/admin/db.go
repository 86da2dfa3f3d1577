package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"lifegen.ai/internal/persistence/indexdb"
)

func dbCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index.db)")
	id := fs.String("id", "", "genome id (lineage, children, ancestors)")
	trait := fs.String("trait", "", "trait name (counts)")
	depth := fs.Int("depth", 8, "max generations to walk (ancestors)")
	_ = fs.Parse(args)

	q := "lineage"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index.db")
	}

	idx, err := indexdb.OpenSQLite(path, nil)
	if err != nil {
		return err
	}
	defer idx.Close()
	return query(context.Background(), idx, q, *id, *trait, *depth, out)
}

func query(ctx context.Context, idx *indexdb.SQLiteIndex, q, id, trait string, depth int, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	switch q {
	case "lineage":
		if id == "" {
			return fmt.Errorf("missing -id")
		}
		p, err := idx.Lineage(ctx, id)
		if err != nil {
			return err
		}
		return enc.Encode(p)
	case "children":
		if id == "" {
			return fmt.Errorf("missing -id")
		}
		ids, err := idx.Children(ctx, id)
		if err != nil {
			return err
		}
		return enc.Encode(ids)
	case "ancestors":
		if id == "" {
			return fmt.Errorf("missing -id")
		}
		anc, err := ancestors(ctx, idx, id, depth)
		if err != nil {
			return err
		}
		return enc.Encode(anc)
	case "counts":
		if trait == "" {
			return fmt.Errorf("missing -trait")
		}
		counts, err := idx.TraitCounts(ctx, trait)
		if err != nil {
			return err
		}
		return enc.Encode(counts)
	default:
		return fmt.Errorf("unknown query %q (lineage|children|ancestors|counts)", q)
	}
}

// ancestors walks parents breadth-first and returns every ancestor id, one
// generation per slice. Ids missing from the index end the walk on that
// branch.
func ancestors(ctx context.Context, idx *indexdb.SQLiteIndex, id string, depth int) ([][]string, error) {
	var out [][]string
	seen := map[string]bool{id: true}
	frontier := []string{id}
	for gen := 0; gen < depth && len(frontier) > 0; gen++ {
		var next []string
		for _, cur := range frontier {
			p, err := idx.Lineage(ctx, cur)
			if errors.Is(err, indexdb.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			for _, parent := range []string{p.MotherID, p.FatherID} {
				if parent != "" && !seen[parent] {
					seen[parent] = true
					next = append(next, parent)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Strings(next)
		out = append(out, next)
		frontier = next
	}
	return out, nil
}
