package protocol

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"lifegen.ai/internal/genes/codec"
	"lifegen.ai/internal/genes/dna"
	"lifegen.ai/internal/lab/nursery"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrProtoVersion,
		ErrBadRequest,
		ErrNotFound,
		ErrMissingParentTrait,
		ErrFull,
		ErrRateLimit,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: mother x", nursery.ErrNotFound), ErrNotFound},
		{&dna.MissingParentTraitError{Trait: "Eyes", Missing: "father"}, ErrMissingParentTrait},
		{fmt.Errorf("%w: 3 genomes", nursery.ErrFull), ErrFull},
		{nursery.ErrExists, ErrBadRequest},
		{codec.ErrInvalidCode, ErrBadRequest},
		{context.Canceled, ErrBadRequest},
		{errors.New("boom"), ErrInternal},
	}
	for _, c := range cases {
		got := CodeFor(c.err)
		if got != c.want {
			t.Fatalf("CodeFor(%v)=%q want %q", c.err, got, c.want)
		}
		if !IsKnownCode(got) {
			t.Fatalf("CodeFor returned unknown code %q", got)
		}
	}
}
