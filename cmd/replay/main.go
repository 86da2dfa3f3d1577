package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"lifegen.ai/internal/genes/codec"
	"lifegen.ai/internal/genes/taxonomy"
	persistlog "lifegen.ai/internal/persistence/log"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		taxPath = flag.String("taxonomy", "", "taxonomy yaml the server ran with (default: built-in)")
	)
	flag.Parse()

	table := taxonomy.ReferenceTable()
	if *taxPath != "" {
		t, err := taxonomy.Load(*taxPath)
		if err == nil {
			table, err = taxonomy.Flatten(t)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "taxonomy:", err)
			os.Exit(1)
		}
	}

	files, err := persistlog.ListFiles(filepath.Join(*dataDir, "births"), "births")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list births:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no birth logs found in", *dataDir)
		os.Exit(1)
	}

	st, err := verify(files, codec.New(table))
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: files=%d births=%d spawn=%d breed=%d import=%d\n",
		len(files), st.total, st.kinds["spawn"], st.kinds["breed"], st.kinds["import"])
}

type stats struct {
	total int
	kinds map[string]int
}

// verify checks that every logged code decodes against the taxonomy, ids
// are unique, and bred genomes only name parents logged before them. An
// import of an id already logged is a genome coming back into a lab and
// counts as an import, not a new birth.
func verify(files []string, enc *codec.Encoder) (stats, error) {
	st := stats{kinds: map[string]int{}}
	seen := map[string]bool{}
	for _, path := range files {
		err := persistlog.ReadBirths(path, func(e persistlog.BirthEntry) error {
			if _, err := enc.DecodeGenome(e.Code); err != nil {
				return fmt.Errorf("%s: id=%s: %w", filepath.Base(path), e.ID, err)
			}
			if seen[e.ID] {
				if e.Kind != "import" {
					return fmt.Errorf("%s: duplicate id %s", filepath.Base(path), e.ID)
				}
				st.kinds[e.Kind]++
				return nil
			}
			if e.Kind == "breed" {
				for _, p := range []string{e.MotherID, e.FatherID} {
					if !seen[p] {
						return fmt.Errorf("%s: id=%s: parent %s not born earlier", filepath.Base(path), e.ID, p)
					}
				}
			}
			seen[e.ID] = true
			st.total++
			st.kinds[e.Kind]++
			return nil
		})
		if err != nil {
			return st, err
		}
	}
	return st, nil
}
