package genome

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"lifegen.ai/internal/genes/codec"
	"lifegen.ai/internal/genes/dna"
	"lifegen.ai/internal/genes/taxonomy"
)

const Version = 1

// Ext is the conventional suffix of genome files.
const Ext = ".dna.zst"

var (
	ErrDigestMismatch = errors.New("genome taxonomy digest mismatch")
	ErrCodeMismatch   = errors.New("genome code does not match traits")
	ErrVersion        = errors.New("unsupported genome version")
)

type Header struct {
	Version        int    `json:"version"`
	ID             string `json:"id"`
	TaxonomyDigest string `json:"taxonomy_digest"`
}

type GenomeV1 struct {
	Header Header `json:"header"`

	MotherID string `json:"mother_id,omitempty"`
	FatherID string `json:"father_id,omitempty"`

	// BornAt is when the genome first entered a nursery; zero in files
	// written before it was recorded.
	BornAt time.Time `json:"born_at,omitempty"`

	// Code is the whole-genome bitstring; redundant with Traits and checked
	// against them on import.
	Code   string    `json:"code"`
	Traits []TraitV1 `json:"traits"`
}

type TraitV1 struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FromDNA captures d for export.
func FromDNA(id string, d *dna.DNA, table *taxonomy.Table, enc *codec.Encoder, motherID, fatherID string) (GenomeV1, error) {
	code, err := enc.EncodeGenome(d)
	if err != nil {
		return GenomeV1{}, err
	}
	g := GenomeV1{
		Header:   Header{Version: Version, ID: id, TaxonomyDigest: table.Digest()},
		MotherID: motherID,
		FatherID: fatherID,
		Code:     code,
	}
	for _, t := range d.Traits() {
		g.Traits = append(g.Traits, TraitV1{Name: t.Name, Value: t.Value})
	}
	return g, nil
}

// ToDNA rebuilds the DNA, refusing genomes written against another taxonomy.
func ToDNA(g GenomeV1, table *taxonomy.Table, enc *codec.Encoder) (*dna.DNA, error) {
	if g.Header.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, g.Header.Version)
	}
	if g.Header.TaxonomyDigest != table.Digest() {
		return nil, fmt.Errorf("%w: file=%s table=%s", ErrDigestMismatch, g.Header.TaxonomyDigest, table.Digest())
	}
	traits := make([]dna.Trait, 0, len(g.Traits))
	for _, t := range g.Traits {
		traits = append(traits, dna.Trait{Name: t.Name, Value: t.Value})
	}
	d, err := dna.FromTraits(table, traits)
	if err != nil {
		return nil, err
	}
	if g.Code != "" {
		code, err := enc.EncodeGenome(d)
		if err != nil {
			return nil, err
		}
		if code != g.Code {
			return nil, fmt.Errorf("%w: id=%s", ErrCodeMismatch, g.Header.ID)
		}
	}
	return d, nil
}

// Encode writes a JSON header line followed by a gob body, zstd-compressed.
func Encode(w io.Writer, g GenomeV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(enc)

	hb, _ := json.Marshal(g.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&g); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func Decode(r io.Reader) (GenomeV1, error) {
	var g GenomeV1
	dec, err := zstd.NewReader(r)
	if err != nil {
		return g, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return g, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return g, fmt.Errorf("header: %w", err)
	}
	if h.Version != Version {
		return g, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if err := gob.NewDecoder(br).Decode(&g); err != nil {
		return g, fmt.Errorf("gob decode: %w", err)
	}
	return g, nil
}

func Write(path string, g GenomeV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(f, g); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func Read(path string) (GenomeV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return GenomeV1{}, err
	}
	defer f.Close()
	g, err := Decode(f)
	if err != nil {
		return g, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return g, nil
}
