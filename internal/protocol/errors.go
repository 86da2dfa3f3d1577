package protocol

import (
	"context"
	"errors"

	"lifegen.ai/internal/genes/codec"
	"lifegen.ai/internal/genes/dna"
	"lifegen.ai/internal/lab/nursery"
	"lifegen.ai/internal/persistence/genome"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Nursery layer.
	ErrBadRequest         = "E_BAD_REQUEST"
	ErrNotFound           = "E_NOT_FOUND"
	ErrMissingParentTrait = "E_MISSING_PARENT_TRAIT"
	ErrFull               = "E_FULL"
	ErrRateLimit          = "E_RATE_LIMIT"
	ErrInternal           = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:    {},
	ErrProtoVersion:       {},
	ErrBadRequest:         {},
	ErrNotFound:           {},
	ErrMissingParentTrait: {},
	ErrFull:               {},
	ErrRateLimit:          {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps nursery and genome errors onto wire codes.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, nursery.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, dna.ErrMissingParentTrait):
		return ErrMissingParentTrait
	case errors.Is(err, nursery.ErrFull):
		return ErrFull
	case errors.Is(err, nursery.ErrExists),
		errors.Is(err, dna.ErrUnknownTrait),
		errors.Is(err, dna.ErrUnknownOption),
		errors.Is(err, dna.ErrMissingTrait),
		errors.Is(err, codec.ErrUnknownTrait),
		errors.Is(err, codec.ErrUnknownOption),
		errors.Is(err, codec.ErrInvalidCode),
		errors.Is(err, codec.ErrIncompleteGenome),
		errors.Is(err, genome.ErrDigestMismatch),
		errors.Is(err, genome.ErrCodeMismatch),
		errors.Is(err, genome.ErrVersion),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ErrBadRequest
	default:
		return ErrInternal
	}
}
