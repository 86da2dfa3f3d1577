// Package api serves the nursery over plain HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lifegen.ai/internal/genes/sprite"
	"lifegen.ai/internal/genes/taxonomy"
	"lifegen.ai/internal/lab/nursery"
	"lifegen.ai/internal/persistence/genome"
	"lifegen.ai/internal/persistence/indexdb"
	"lifegen.ai/internal/protocol"
)

type Lab interface {
	Spawn(ctx context.Context) (nursery.Birth, error)
	Breed(ctx context.Context, motherID, fatherID string) (nursery.Birth, error)
	Get(id string) (nursery.Birth, error)
	Sprite(id string) (sprite.View, error)
	Export(id, path string) error
}

// Lineage is the optional read model behind the lineage routes.
type Lineage interface {
	Lineage(ctx context.Context, id string) (indexdb.Parents, error)
	Children(ctx context.Context, id string) ([]string, error)
	TraitCounts(ctx context.Context, trait string) (map[string]int, error)
}

type Config struct {
	Lab   Lab
	Table *taxonomy.Table

	// Index enables /lineage, /children and /v1/traits; nil disables them.
	Index Lineage

	// ExportDir receives genome files from /export; empty disables the route.
	ExportDir string

	// Limiter guards births; nil builds one from SpawnRatePerSec and
	// SpawnBurst. Share it with the websocket so both surfaces draw from
	// the same per-IP buckets.
	Limiter         *RateLimiter
	SpawnRatePerSec float64
	SpawnBurst      int

	Logger *log.Logger
}

type Server struct {
	router chi.Router
	cfg    Config
	limit  *RateLimiter
}

func NewServer(cfg Config) *Server {
	lim := cfg.Limiter
	if lim == nil {
		lim = NewRateLimiter(cfg.SpawnRatePerSec, cfg.SpawnBurst)
	}
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		limit:  lim,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.SetHeader("Content-Type", "application/json"))

	s.router.Get("/healthz", s.healthz)
	s.router.Get("/v1/taxonomy", s.getTaxonomy)
	s.router.Get("/v1/genomes/{id}", s.getGenome)
	s.router.Get("/v1/genomes/{id}/sprite", s.getSprite)

	// Births draw from the shared random source.
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequestSize(64 * 1024))
		r.Use(s.limit.Middleware)
		r.Post("/v1/genomes", s.spawn)
		r.Post("/v1/genomes/{id}/offspring", s.offspring)
	})

	if s.cfg.ExportDir != "" {
		s.router.Post("/v1/genomes/{id}/export", s.export)
	}
	if s.cfg.Index != nil {
		s.router.Get("/v1/genomes/{id}/lineage", s.getLineage)
		s.router.Get("/v1/genomes/{id}/children", s.getChildren)
		s.router.Get("/v1/traits/{trait}/counts", s.getTraitCounts)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= 500 {
		message = "internal error"
	}
	writeJSON(w, status, protocol.ErrorFrom(code, message, ""))
}

func statusFor(code string) int {
	switch code {
	case protocol.ErrNotFound:
		return http.StatusNotFound
	case protocol.ErrMissingParentTrait:
		return http.StatusConflict
	case protocol.ErrFull:
		return http.StatusServiceUnavailable
	case protocol.ErrRateLimit:
		return http.StatusTooManyRequests
	case protocol.ErrBadRequest, protocol.ErrProtoBadRequest, protocol.ErrProtoVersion:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := protocol.CodeFor(err)
	status := statusFor(code)
	if status >= 500 && s.cfg.Logger != nil {
		s.cfg.Logger.Printf("api: %s %s err=%v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, code, err.Error())
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type traitInfo struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Options []string `json:"options"`
}

func (s *Server) getTaxonomy(w http.ResponseWriter, r *http.Request) {
	names := s.cfg.Table.Names()
	out := make([]traitInfo, 0, len(names))
	for _, n := range names {
		out = append(out, traitInfo{Name: n, Path: s.cfg.Table.Path(n), Options: s.cfg.Table.Options(n)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"digest": s.cfg.Table.Digest(),
		"traits": out,
	})
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, status int, b nursery.Birth) {
	v, err := s.cfg.Lab.Sprite(b.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, protocol.GenomeFrom(b, v, middleware.GetReqID(r.Context())))
}

func (s *Server) spawn(w http.ResponseWriter, r *http.Request) {
	b, err := s.cfg.Lab.Spawn(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, r, http.StatusCreated, b)
}

type offspringRequest struct {
	Partner string `json:"partner"`
}

func (s *Server) offspring(w http.ResponseWriter, r *http.Request) {
	var req offspringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Partner == "" {
		writeError(w, http.StatusBadRequest, protocol.ErrBadRequest, "partner required")
		return
	}
	b, err := s.cfg.Lab.Breed(r.Context(), chi.URLParam(r, "id"), req.Partner)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, r, http.StatusCreated, b)
}

func (s *Server) getGenome(w http.ResponseWriter, r *http.Request) {
	b, err := s.cfg.Lab.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.reply(w, r, http.StatusOK, b)
}

func (s *Server) getSprite(w http.ResponseWriter, r *http.Request) {
	v, err := s.cfg.Lab.Sprite(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries := v.Entries()
	out := make([]protocol.SpriteEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, protocol.SpriteEntry{Name: e.Name, Display: e.Display})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.cfg.Lab.Get(id); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := os.MkdirAll(s.cfg.ExportDir, 0o755); err != nil {
		s.fail(w, r, err)
		return
	}
	path := filepath.Join(s.cfg.ExportDir, id+genome.Ext)
	if err := s.cfg.Lab.Export(id, path); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "file": filepath.Base(path)})
}

func (s *Server) getLineage(w http.ResponseWriter, r *http.Request) {
	p, err := s.cfg.Index.Lineage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.failIndex(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mother_id": p.MotherID, "father_id": p.FatherID})
}

func (s *Server) getChildren(w http.ResponseWriter, r *http.Request) {
	ids, err := s.cfg.Index.Children(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.failIndex(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) getTraitCounts(w http.ResponseWriter, r *http.Request) {
	trait := chi.URLParam(r, "trait")
	if !s.cfg.Table.Has(trait) {
		writeError(w, http.StatusNotFound, protocol.ErrNotFound, "unknown trait "+trait)
		return
	}
	counts, err := s.cfg.Index.TraitCounts(r.Context(), trait)
	if err != nil {
		s.failIndex(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) failIndex(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, indexdb.ErrNotFound) {
		writeError(w, http.StatusNotFound, protocol.ErrNotFound, err.Error())
		return
	}
	s.fail(w, r, err)
}
