package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"lifegen.ai/internal/genes/codec"
	"lifegen.ai/internal/genes/dna"
	"lifegen.ai/internal/genes/random"
	"lifegen.ai/internal/genes/sprite"
	"lifegen.ai/internal/genes/taxonomy"
	"lifegen.ai/internal/persistence/genome"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "spawn":
		err = spawnCmd(os.Args[2:], os.Stdout)
	case "breed":
		err = breedCmd(os.Args[2:], os.Stdout)
	case "inspect":
		err = inspectCmd(os.Args[2:], os.Stdout)
	case "encode":
		err = encodeCmd(os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "genome:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: genome <spawn|breed|inspect|encode> [flags]")
}

// loadTable returns the reference table when path is empty.
func loadTable(path string) (*taxonomy.Table, error) {
	if strings.TrimSpace(path) == "" {
		return taxonomy.ReferenceTable(), nil
	}
	t, err := taxonomy.Load(path)
	if err != nil {
		return nil, err
	}
	return taxonomy.Flatten(t)
}

func writeGenome(out io.Writer, path, id string, d *dna.DNA, table *taxonomy.Table, motherID, fatherID string) error {
	g, err := genome.FromDNA(id, d, table, codec.New(table), motherID, fatherID)
	if err != nil {
		return err
	}
	if err := genome.Write(path, g); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s %s\n", g.Header.ID, g.Code, path)
	return nil
}

func spawnCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("spawn", flag.ExitOnError)
	taxPath := fs.String("taxonomy", "", "taxonomy yaml (default: built-in)")
	seed := fs.Int64("seed", 0, "random seed (0 = fresh)")
	outPath := fs.String("out", "", "output genome file (required)")
	_ = fs.Parse(args)

	if *outPath == "" {
		return fmt.Errorf("missing -out")
	}
	table, err := loadTable(*taxPath)
	if err != nil {
		return err
	}
	rng, _, err := random.FromSeed(*seed)
	if err != nil {
		return err
	}
	return writeGenome(out, *outPath, uuid.New().String(), dna.Random(table, rng), table, "", "")
}

func breedCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("breed", flag.ExitOnError)
	taxPath := fs.String("taxonomy", "", "taxonomy yaml (default: built-in)")
	seed := fs.Int64("seed", 0, "random seed (0 = fresh)")
	motherPath := fs.String("mother", "", "mother genome file (required)")
	fatherPath := fs.String("father", "", "father genome file (required)")
	outPath := fs.String("out", "", "output genome file (required)")
	_ = fs.Parse(args)

	if *motherPath == "" || *fatherPath == "" || *outPath == "" {
		return fmt.Errorf("missing -mother, -father or -out")
	}
	table, err := loadTable(*taxPath)
	if err != nil {
		return err
	}
	enc := codec.New(table)
	read := func(path string) (genome.GenomeV1, *dna.DNA, error) {
		g, err := genome.Read(path)
		if err != nil {
			return g, nil, err
		}
		d, err := genome.ToDNA(g, table, enc)
		if err != nil {
			return g, nil, fmt.Errorf("%s: %w", path, err)
		}
		return g, d, nil
	}
	mg, md, err := read(*motherPath)
	if err != nil {
		return err
	}
	fg, fd, err := read(*fatherPath)
	if err != nil {
		return err
	}
	rng, _, err := random.FromSeed(*seed)
	if err != nil {
		return err
	}
	child, err := dna.Inherit(md, fd, rng)
	if err != nil {
		return err
	}
	return writeGenome(out, *outPath, uuid.New().String(), child, table, mg.Header.ID, fg.Header.ID)
}

type inspectReport struct {
	ID       string            `json:"id"`
	MotherID string            `json:"mother_id,omitempty"`
	FatherID string            `json:"father_id,omitempty"`
	Digest   string            `json:"taxonomy_digest"`
	Code     string            `json:"code"`
	Traits   []dna.Trait       `json:"traits"`
	Sprite   map[string]string `json:"sprite"`
}

func inspectCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	taxPath := fs.String("taxonomy", "", "taxonomy yaml (default: built-in)")
	replacers := fs.String("arm_replacers", "Wings,Fins", "comma-separated appendages replacing Arms, highest priority first")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("inspect takes exactly one genome file")
	}
	table, err := loadTable(*taxPath)
	if err != nil {
		return err
	}
	g, err := genome.Read(fs.Arg(0))
	if err != nil {
		return err
	}
	d, err := genome.ToDNA(g, table, codec.New(table))
	if err != nil {
		return err
	}
	view := sprite.Composer{ArmReplacers: splitList(*replacers)}.Compose(d)

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(inspectReport{
			ID:       g.Header.ID,
			MotherID: g.MotherID,
			FatherID: g.FatherID,
			Digest:   g.Header.TaxonomyDigest,
			Code:     g.Code,
			Traits:   d.Traits(),
			Sprite:   view.Map(),
		})
	}
	fmt.Fprintf(out, "id=%s mother=%s father=%s\ncode=%s\n", g.Header.ID, g.MotherID, g.FatherID, g.Code)
	for _, e := range view.Entries() {
		fmt.Fprintf(out, "%-20s %s\n", e.Name, e.Display)
	}
	return nil
}

func encodeCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	taxPath := fs.String("taxonomy", "", "taxonomy yaml (default: built-in)")
	trait := fs.String("trait", "", "trait name")
	option := fs.String("option", "", "option to encode (with -trait)")
	code := fs.String("code", "", "code to decode (with -trait)")
	bits := fs.String("genome", "", "whole-genome bitstring to decode")
	_ = fs.Parse(args)

	table, err := loadTable(*taxPath)
	if err != nil {
		return err
	}
	enc := codec.New(table)

	switch {
	case *bits != "":
		traits, err := enc.DecodeGenome(*bits)
		if err != nil {
			return err
		}
		for _, t := range traits {
			fmt.Fprintf(out, "%s=%s\n", t.Name, t.Value)
		}
		return nil
	case *trait != "" && *option != "":
		c, err := enc.Encode(*trait, *option)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, c)
		return nil
	case *trait != "" && isSet(fs, "code"):
		v, err := enc.Decode(*trait, *code)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v)
		return nil
	case *trait != "":
		w, err := enc.Width(*trait)
		if err != nil {
			return err
		}
		for _, opt := range table.Options(*trait) {
			c, _ := enc.Encode(*trait, opt)
			fmt.Fprintf(out, "%-*s %s\n", w, c, opt)
		}
		return nil
	default:
		return fmt.Errorf("need -genome, or -trait with -option or -code")
	}
}

// splitList splits a comma-separated flag, dropping blank entries. An empty
// result leaves the composer on its defaults.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// isSet reports whether name was passed explicitly; an empty -code is a
// valid code for single-option traits.
func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
