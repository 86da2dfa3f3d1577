// Package random builds the random sources injected into genome construction.
//
// Nothing in the genes packages reads a global source: callers pass a
// *rand.Rand, usually from Seeded so a fixed seed reproduces a lineage.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// Seeded returns a deterministic PCG source for seed.
func Seeded(seed int64) *rand.Rand {
	// Non-cryptographic PRNG is intentional: lineages must replay from a seed.
	// #nosec G404
	return rand.New(rand.NewPCG(seedWord(seed, "a"), seedWord(seed, "b")))
}

func seedWord(seed int64, salt string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fmt.Sprintf("%d:%s", seed, salt)))
	return h.Sum64()
}

// NewSeed draws a seed from crypto/rand for runs that did not configure one.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// FromSeed returns Seeded(seed), or a freshly seeded source when seed is 0.
// The effective seed is returned so it can be logged and replayed.
func FromSeed(seed int64) (*rand.Rand, int64, error) {
	if seed == 0 {
		s, err := NewSeed()
		if err != nil {
			return nil, 0, err
		}
		seed = s
	}
	return Seeded(seed), seed, nil
}
