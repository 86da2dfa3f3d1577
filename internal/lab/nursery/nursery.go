// Package nursery owns the genomes of a running lab: it spawns random
// characters, breeds pairs, and hands out sprite views. It is the only
// place that shares the random source between callers, so it serializes
// access to it.
package nursery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lifegen.ai/internal/genes/codec"
	"lifegen.ai/internal/genes/dna"
	"lifegen.ai/internal/genes/sprite"
	"lifegen.ai/internal/genes/taxonomy"
	"lifegen.ai/internal/persistence/genome"
	"lifegen.ai/internal/persistence/indexdb"
	persistlog "lifegen.ai/internal/persistence/log"
)

var (
	ErrNotFound = errors.New("genome not found")
	ErrFull     = errors.New("nursery full")
	ErrExists   = errors.New("genome already present")
)

// Recorder receives every genome that enters the nursery.
type Recorder interface {
	RecordGenome(rec indexdb.GenomeRecord)
}

type BirthWriter interface {
	WriteBirth(e persistlog.BirthEntry) error
}

type Config struct {
	Table    *taxonomy.Table
	RNG      *rand.Rand
	Composer sprite.Composer

	// Optional sinks.
	Index  Recorder
	Births BirthWriter
	Logger *log.Logger

	// MaxGenomes caps the number of live genomes; 0 means unlimited.
	MaxGenomes int

	Now   func() time.Time
	NewID func() string
}

// Birth describes one genome held by the nursery.
type Birth struct {
	ID       string
	MotherID string
	FatherID string
	Code     string
	DNA      *dna.DNA
	BornAt   time.Time
}

const (
	kindSpawn   = "spawn"
	kindBreed   = "breed"
	kindImport  = "import"
	kindRestore = "restore"
)

type Nursery struct {
	cfg Config
	enc *codec.Encoder

	mu      sync.Mutex
	genomes map[string]Birth
}

func New(cfg Config) (*Nursery, error) {
	if cfg.Table == nil {
		return nil, fmt.Errorf("nursery: nil table")
	}
	if cfg.RNG == nil {
		return nil, fmt.Errorf("nursery: nil rng")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	return &Nursery{
		cfg:     cfg,
		enc:     codec.New(cfg.Table),
		genomes: map[string]Birth{},
	}, nil
}

func (n *Nursery) Table() *taxonomy.Table  { return n.cfg.Table }
func (n *Nursery) Encoder() *codec.Encoder { return n.enc }

func (n *Nursery) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.genomes)
}

// Spawn creates a genome with every trait sampled at random.
func (n *Nursery) Spawn(ctx context.Context) (Birth, error) {
	if err := ctx.Err(); err != nil {
		return Birth{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.checkCapacityLocked(); err != nil {
		return Birth{}, err
	}
	d := dna.Random(n.cfg.Table, n.cfg.RNG)
	return n.admitLocked(kindSpawn, n.cfg.NewID(), d, "", "", time.Time{})
}

// Breed creates a child of two held genomes.
func (n *Nursery) Breed(ctx context.Context, motherID, fatherID string) (Birth, error) {
	if err := ctx.Err(); err != nil {
		return Birth{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	mother, ok := n.genomes[motherID]
	if !ok {
		return Birth{}, fmt.Errorf("%w: mother %s", ErrNotFound, motherID)
	}
	father, ok := n.genomes[fatherID]
	if !ok {
		return Birth{}, fmt.Errorf("%w: father %s", ErrNotFound, fatherID)
	}
	if err := n.checkCapacityLocked(); err != nil {
		return Birth{}, err
	}
	child, err := dna.Inherit(mother.DNA, father.DNA, n.cfg.RNG)
	if err != nil {
		return Birth{}, err
	}
	return n.admitLocked(kindBreed, n.cfg.NewID(), child, motherID, fatherID, time.Time{})
}

func (n *Nursery) Get(id string) (Birth, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	b, ok := n.genomes[id]
	if !ok {
		return Birth{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b, nil
}

// Sprite composes the display view of a held genome.
func (n *Nursery) Sprite(id string) (sprite.View, error) {
	b, err := n.Get(id)
	if err != nil {
		return sprite.View{}, err
	}
	return n.cfg.Composer.Compose(b.DNA), nil
}

// Export writes a held genome to a genome file at path.
func (n *Nursery) Export(id, path string) error {
	b, err := n.Get(id)
	if err != nil {
		return err
	}
	g, err := genome.FromDNA(b.ID, b.DNA, n.cfg.Table, n.enc, b.MotherID, b.FatherID)
	if err != nil {
		return err
	}
	g.BornAt = b.BornAt
	return genome.Write(path, g)
}

// Import admits a genome file written against the same taxonomy and logs
// it as an import birth.
func (n *Nursery) Import(path string) (Birth, error) {
	return n.load(path, kindImport)
}

// ImportDir restores every genome file in dir, skipping ids already held.
// Restored genomes keep their recorded birth time and are not written to
// the birth log again. A missing dir restores nothing.
func (n *Nursery) ImportDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), genome.Ext) {
			continue
		}
		_, err := n.load(filepath.Join(dir, e.Name()), kindRestore)
		if errors.Is(err, ErrExists) {
			continue
		}
		if err != nil {
			return restored, fmt.Errorf("%s: %w", e.Name(), err)
		}
		restored++
	}
	return restored, nil
}

func (n *Nursery) load(path, kind string) (Birth, error) {
	g, err := genome.Read(path)
	if err != nil {
		return Birth{}, err
	}
	d, err := genome.ToDNA(g, n.cfg.Table, n.enc)
	if err != nil {
		return Birth{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, dup := n.genomes[g.Header.ID]; dup {
		return Birth{}, fmt.Errorf("%w: %s", ErrExists, g.Header.ID)
	}
	if err := n.checkCapacityLocked(); err != nil {
		return Birth{}, err
	}
	id := g.Header.ID
	if id == "" {
		id = n.cfg.NewID()
	}
	return n.admitLocked(kind, id, d, g.MotherID, g.FatherID, g.BornAt)
}

func (n *Nursery) checkCapacityLocked() error {
	if n.cfg.MaxGenomes > 0 && len(n.genomes) >= n.cfg.MaxGenomes {
		return fmt.Errorf("%w: %d genomes", ErrFull, len(n.genomes))
	}
	return nil
}

// admitLocked stores d under id. A zero bornAt means the genome is born now.
// Restores re-index the genome under its original birth time but skip the
// birth log, which already holds it.
func (n *Nursery) admitLocked(kind, id string, d *dna.DNA, motherID, fatherID string, bornAt time.Time) (Birth, error) {
	code, err := n.enc.EncodeGenome(d)
	if err != nil {
		return Birth{}, err
	}
	now := n.cfg.Now()
	if bornAt.IsZero() {
		bornAt = now
	}
	b := Birth{ID: id, MotherID: motherID, FatherID: fatherID, Code: code, DNA: d, BornAt: bornAt}
	n.genomes[id] = b

	if n.cfg.Index != nil {
		n.cfg.Index.RecordGenome(indexdb.GenomeRecord{
			ID:             id,
			MotherID:       motherID,
			FatherID:       fatherID,
			TaxonomyDigest: n.cfg.Table.Digest(),
			Code:           code,
			BornAt:         bornAt,
			Traits:         d.Traits(),
		})
	}
	if n.cfg.Births != nil && kind != kindRestore {
		entry := persistlog.BirthEntry{At: now, ID: id, Kind: kind, MotherID: motherID, FatherID: fatherID, Code: code}
		if err := n.cfg.Births.WriteBirth(entry); err != nil {
			n.logf("birth log: id=%s err=%v", id, err)
		}
	}
	n.logf("%s id=%s mother=%s father=%s code=%s", kind, id, motherID, fatherID, code)
	return b, nil
}

func (n *Nursery) logf(format string, args ...any) {
	if n.cfg.Logger != nil {
		n.cfg.Logger.Printf(format, args...)
	}
}
