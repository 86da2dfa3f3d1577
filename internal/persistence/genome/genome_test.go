package genome

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"lifegen.ai/internal/genes/codec"
	"lifegen.ai/internal/genes/dna"
	"lifegen.ai/internal/genes/random"
	"lifegen.ai/internal/genes/taxonomy"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	tb := taxonomy.ReferenceTable()
	enc := codec.New(tb)
	d := dna.Random(tb, random.Seeded(4))

	g, err := FromDNA("G1", d, tb, enc, "M1", "F1")
	if err != nil {
		t.Fatalf("FromDNA: %v", err)
	}
	path := filepath.Join(t.TempDir(), "nested", "G1"+Ext)
	if err := Write(path, g); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got, g) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, g)
	}

	back, err := ToDNA(got, tb, enc)
	if err != nil {
		t.Fatalf("ToDNA: %v", err)
	}
	if !reflect.DeepEqual(back.Traits(), d.Traits()) {
		t.Fatalf("dna mismatch after import")
	}
}

func TestToDNA_DigestMismatch(t *testing.T) {
	tb := taxonomy.ReferenceTable()
	enc := codec.New(tb)
	g, err := FromDNA("G2", dna.Random(tb, random.Seeded(5)), tb, enc, "", "")
	if err != nil {
		t.Fatalf("FromDNA: %v", err)
	}

	other, err := taxonomy.Flatten(taxonomy.New(taxonomy.Category("root", taxonomy.Leaf("sex", "x", "y"))))
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if _, err := ToDNA(g, other, codec.New(other)); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
}

func TestToDNA_CodeMismatch(t *testing.T) {
	tb := taxonomy.ReferenceTable()
	enc := codec.New(tb)
	g, err := FromDNA("G3", dna.Random(tb, random.Seeded(6)), tb, enc, "", "")
	if err != nil {
		t.Fatalf("FromDNA: %v", err)
	}
	flipped := []byte(g.Code)
	if flipped[0] == '0' {
		flipped[0] = '1'
	} else {
		flipped[0] = '0'
	}
	g.Code = string(flipped)
	if _, err := ToDNA(g, tb, enc); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, GenomeV1{Header: Header{Version: 99, ID: "X"}}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(&buf); !errors.Is(err, ErrVersion) {
		t.Fatalf("expected ErrVersion, got %v", err)
	}
}
