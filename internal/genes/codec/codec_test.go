package codec

import (
	"errors"
	"reflect"
	"testing"

	"lifegen.ai/internal/genes/dna"
	"lifegen.ai/internal/genes/random"
	"lifegen.ai/internal/genes/taxonomy"
)

func TestWidth(t *testing.T) {
	cases := map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 6: 3, 7: 3, 8: 3, 9: 4, 12: 4, 16: 4, 17: 5}
	for n, want := range cases {
		if got := Width(n); got != want {
			t.Fatalf("Width(%d): got %d want %d", n, got, want)
		}
	}
}

func TestEncodeDecode_RoundTripReference(t *testing.T) {
	tb := taxonomy.ReferenceTable()
	enc := New(tb)
	for _, name := range tb.Names() {
		opts := tb.Options(name)
		w, err := enc.Width(name)
		if err != nil {
			t.Fatalf("Width(%q): %v", name, err)
		}
		seen := map[string]bool{}
		for _, o := range opts {
			code, err := enc.Encode(name, o)
			if err != nil {
				t.Fatalf("Encode(%q,%q): %v", name, o, err)
			}
			if len(code) != w {
				t.Fatalf("code %q for %q has width %d want %d", code, name, len(code), w)
			}
			if seen[code] {
				t.Fatalf("code %q reused within %q", code, name)
			}
			seen[code] = true
			back, err := enc.Decode(name, code)
			if err != nil {
				t.Fatalf("Decode(%q,%q): %v", name, code, err)
			}
			if back != o {
				t.Fatalf("round trip %q: got %q", o, back)
			}
		}
	}
}

func TestEncode_PositionalCodes(t *testing.T) {
	enc := New(taxonomy.ReferenceTable())
	cases := []struct{ trait, option, code string }{
		{"sex", "x", "0"},
		{"sex", "y", "1"},
		{"Tails", "Fish-like", "000"},
		{"Tails", "Grasping", "101"},
		{"skin tone", "deep", "100"},
		{"Noses", "Almond Human (Refined)", "1011"},
	}
	for _, tc := range cases {
		got, err := enc.Encode(tc.trait, tc.option)
		if err != nil {
			t.Fatalf("Encode(%q,%q): %v", tc.trait, tc.option, err)
		}
		if got != tc.code {
			t.Fatalf("Encode(%q,%q): got %q want %q", tc.trait, tc.option, got, tc.code)
		}
	}
}

func TestEncode_UnknownOption(t *testing.T) {
	enc := New(taxonomy.ReferenceTable())
	_, err := enc.Encode("Tails", "Prehensil")
	var uoe *UnknownOptionError
	if !errors.As(err, &uoe) {
		t.Fatalf("expected *UnknownOptionError, got %v", err)
	}
	if uoe.Suggestion != "Prehensile" {
		t.Fatalf("suggestion: got %q", uoe.Suggestion)
	}
	if !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected errors.Is ErrUnknownOption")
	}

	_, err = enc.Encode("Tails", "Rocket powered")
	if !errors.As(err, &uoe) || uoe.Suggestion != "" {
		t.Fatalf("expected no suggestion, got %v", err)
	}

	if _, err := enc.Encode("Antennae", "Long"); !errors.Is(err, ErrUnknownTrait) {
		t.Fatalf("expected ErrUnknownTrait, got %v", err)
	}
}

func TestDecode_InvalidCodes(t *testing.T) {
	enc := New(taxonomy.ReferenceTable())
	// Tails has 6 options and width 3: 110 and 111 are out of range.
	for _, code := range []string{"110", "111", "", "00", "0000", "0a1", "+01"} {
		_, err := enc.Decode("Tails", code)
		var ice *InvalidCodeError
		if !errors.As(err, &ice) {
			t.Fatalf("Decode(Tails,%q): expected *InvalidCodeError, got %v", code, err)
		}
		if !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("Decode(Tails,%q): expected ErrInvalidCode", code)
		}
	}
}

func TestSingleOptionTrait(t *testing.T) {
	tb, err := taxonomy.Flatten(taxonomy.New(taxonomy.Category("root", taxonomy.Leaf("mono", "only"))))
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	enc := New(tb)
	code, err := enc.Encode("mono", "only")
	if err != nil || code != "" {
		t.Fatalf("Encode: code=%q err=%v", code, err)
	}
	v, err := enc.Decode("mono", "")
	if err != nil || v != "only" {
		t.Fatalf("Decode: v=%q err=%v", v, err)
	}
	if _, err := enc.Decode("mono", "0"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestGenome_RoundTrip(t *testing.T) {
	tb := taxonomy.ReferenceTable()
	enc := New(tb)
	rng := random.Seeded(77)
	for i := 0; i < 25; i++ {
		d := dna.Random(tb, rng)
		bitstring, err := enc.EncodeGenome(d)
		if err != nil {
			t.Fatalf("EncodeGenome: %v", err)
		}
		if len(bitstring) != enc.BitLen() {
			t.Fatalf("bitstring length %d want %d", len(bitstring), enc.BitLen())
		}
		traits, err := enc.DecodeGenome(bitstring)
		if err != nil {
			t.Fatalf("DecodeGenome: %v", err)
		}
		if !reflect.DeepEqual(traits, d.Traits()) {
			t.Fatalf("genome round trip mismatch")
		}
	}

	if _, err := enc.DecodeGenome("01"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode for short genome, got %v", err)
	}
}

func TestEncodeGenome_Incomplete(t *testing.T) {
	small, err := taxonomy.Flatten(taxonomy.New(taxonomy.Category("root", taxonomy.Leaf("sex", "x", "y"))))
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	d := dna.Random(small, random.Seeded(1))
	enc := New(taxonomy.ReferenceTable())
	if _, err := enc.EncodeGenome(d); !errors.Is(err, ErrIncompleteGenome) {
		t.Fatalf("expected ErrIncompleteGenome, got %v", err)
	}
}
