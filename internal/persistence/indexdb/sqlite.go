package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"lifegen.ai/internal/genes/dna"
)

var (
	ErrNotFound = errors.New("genome not indexed")
	ErrClosed   = errors.New("index closed")
)

// GenomeRecord is one born or imported genome.
type GenomeRecord struct {
	ID             string
	MotherID       string
	FatherID       string
	TaxonomyDigest string
	Code           string
	BornAt         time.Time
	Traits         []dna.Trait
}

type Parents struct {
	MotherID string
	FatherID string
}

type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	DropGenomeTotal uint64
}

// SQLiteIndex is a read model of genome lineage. Writes are queued and
// applied by a single writer goroutine so callers never wait on disk.
type SQLiteIndex struct {
	db  *sql.DB
	log *log.Logger

	mu     sync.RWMutex // guards ch against send-after-close
	ch     chan req
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool

	dropGenomeTotal atomic.Uint64
}

type reqKind int

const (
	reqGenome reqKind = iota + 1
	reqSync
)

type req struct {
	kind   reqKind
	genome GenomeRecord
	done   chan struct{}
}

// OpenSQLite opens (or creates) the index at path. logger may be nil.
func OpenSQLite(path string, logger *log.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		log: logger,
		ch:  make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS genomes (
			id TEXT PRIMARY KEY,
			mother_id TEXT NOT NULL DEFAULT '',
			father_id TEXT NOT NULL DEFAULT '',
			taxonomy_digest TEXT NOT NULL,
			code TEXT NOT NULL,
			born_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_genomes_mother ON genomes(mother_id);`,
		`CREATE INDEX IF NOT EXISTS idx_genomes_father ON genomes(father_id);`,
		`CREATE TABLE IF NOT EXISTS traits (
			genome_id TEXT NOT NULL REFERENCES genomes(id) ON DELETE CASCADE,
			trait TEXT NOT NULL CHECK (trait <> ''),
			value TEXT NOT NULL,
			PRIMARY KEY (genome_id, trait)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_traits_trait_value ON traits(trait, value);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordGenome queues rec. When the queue is full the record is dropped and
// counted in Stats.
func (s *SQLiteIndex) RecordGenome(rec GenomeRecord) {
	if s == nil || rec.ID == "" {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqGenome, genome: rec}:
	default:
		s.dropGenomeTotal.Add(1)
	}
}

// Sync blocks until every record queued before the call is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed.Load() {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropGenomeTotal: s.dropGenomeTotal.Load(),
	}
}

// Lineage returns the recorded parents of id. Spawned genomes have none.
func (s *SQLiteIndex) Lineage(ctx context.Context, id string) (Parents, error) {
	var p Parents
	row := s.db.QueryRowContext(ctx, `SELECT mother_id, father_id FROM genomes WHERE id=?`, id)
	if err := row.Scan(&p.MotherID, &p.FatherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return p, err
	}
	return p, nil
}

// Children lists genomes with id as either parent, oldest first.
func (s *SQLiteIndex) Children(ctx context.Context, id string) ([]string, error) {
	if id == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM genomes WHERE mother_id=? OR father_id=? ORDER BY born_at, id`, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, rows.Err()
}

// TraitCounts tallies the values of trait across indexed genomes.
func (s *SQLiteIndex) TraitCounts(ctx context.Context, trait string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value, COUNT(*) FROM traits WHERE trait=? GROUP BY value`, trait)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			value string
			n     int
		)
		if err := rows.Scan(&value, &n); err != nil {
			return nil, err
		}
		out[value] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertGenome, _ := s.db.Prepare(`INSERT OR REPLACE INTO genomes(id,mother_id,father_id,taxonomy_digest,code,born_at) VALUES(?,?,?,?,?,?)`)
	insertTrait, _ := s.db.Prepare(`INSERT OR REPLACE INTO traits(genome_id,trait,value) VALUES(?,?,?)`)
	defer func() {
		if insertGenome != nil {
			_ = insertGenome.Close()
		}
		if insertTrait != nil {
			_ = insertTrait.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		pending     uint64 // genomes written in tx but not committed
		commitEvery = 500
	)

	begin := func() bool {
		if tx != nil {
			return true
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.logf("index: begin: %v", err)
			time.Sleep(50 * time.Millisecond)
			return false
		}
		tx = txx
		opCount = 0
		pending = 0
		return true
	}
	finish := func(err error) {
		if err != nil {
			s.dropGenomeTotal.Add(pending)
		}
		tx = nil
		opCount = 0
		pending = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		err := tx.Commit()
		if err != nil {
			s.logf("index: commit of %d genomes: %v", pending, err)
		}
		finish(err)
	}
	abort := func(cause error) {
		_ = tx.Rollback()
		finish(cause)
	}

	// write puts one genome under a savepoint so a bad record leaves the
	// rest of the batch intact.
	write := func(g GenomeRecord) error {
		if _, err := tx.Exec(`SAVEPOINT genome`); err != nil {
			return err
		}
		err := func() error {
			if _, err := tx.Stmt(insertGenome).Exec(
				g.ID,
				g.MotherID,
				g.FatherID,
				g.TaxonomyDigest,
				g.Code,
				g.BornAt.UTC().Format(time.RFC3339Nano),
			); err != nil {
				return err
			}
			opCount++
			for _, t := range g.Traits {
				if _, err := tx.Stmt(insertTrait).Exec(g.ID, t.Name, t.Value); err != nil {
					return fmt.Errorf("trait %q: %w", t.Name, err)
				}
				opCount++
			}
			return nil
		}()
		if err != nil {
			if _, rbErr := tx.Exec(`ROLLBACK TO genome`); rbErr != nil {
				abort(rbErr)
				return err
			}
		}
		if _, relErr := tx.Exec(`RELEASE genome`); relErr != nil {
			abort(relErr)
			if err == nil {
				err = relErr
			}
		}
		return err
	}

	for r := range s.ch {
		switch r.kind {
		case reqSync:
			commit()
			close(r.done)
			continue

		case reqGenome:
			g := r.genome
			if insertGenome == nil || insertTrait == nil || !begin() {
				s.dropGenomeTotal.Add(1)
			} else if err := write(g); err != nil {
				s.logf("index: genome %s dropped: %v", g.ID, err)
				s.dropGenomeTotal.Add(1)
			} else {
				pending++
			}
		}

		// Commit once the queue drains so readers see recent births.
		if opCount >= commitEvery || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}

func (s *SQLiteIndex) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
