package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lifegen.ai/internal/persistence/genome"
)

func main() {
	var err error
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			err = dbCmd(os.Args[2:], os.Stdout)
		case "metrics":
			err = metricsCmd(os.Args[2:], os.Stdout)
		default:
			err = listCmd(os.Args[1:], os.Stdout)
		}
	} else {
		err = listCmd(nil, os.Stdout)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "admin:", err)
		os.Exit(1)
	}
}

// listCmd prints the header of every genome file in a directory.
func listCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dir := fs.String("dir", "./data/genomes", "genome file directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), genome.Ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		g, err := genome.Read(filepath.Join(*dir, name))
		if err != nil {
			fmt.Fprintf(out, "%s\terror=%v\n", name, err)
			continue
		}
		fmt.Fprintf(out, "%s\tid=%s\tv%d\tmother=%s\tfather=%s\tcode=%s\n",
			name, g.Header.ID, g.Header.Version, g.MotherID, g.FatherID, g.Code)
	}
	return nil
}
