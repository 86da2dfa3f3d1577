package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lifegen.ai/internal/genes/random"
	"lifegen.ai/internal/genes/taxonomy"
	"lifegen.ai/internal/lab/nursery"
	"lifegen.ai/internal/persistence/genome"
	"lifegen.ai/internal/persistence/indexdb"
	"lifegen.ai/internal/protocol"
)

type fakeLineage struct{}

func (fakeLineage) Lineage(ctx context.Context, id string) (indexdb.Parents, error) {
	if id != "G3" {
		return indexdb.Parents{}, fmt.Errorf("%w: %s", indexdb.ErrNotFound, id)
	}
	return indexdb.Parents{MotherID: "G1", FatherID: "G2"}, nil
}

func (fakeLineage) Children(ctx context.Context, id string) ([]string, error) {
	if id == "G1" {
		return []string{"G3"}, nil
	}
	return nil, nil
}

func (fakeLineage) TraitCounts(ctx context.Context, trait string) (map[string]int, error) {
	return map[string]int{"x": 2, "y": 1}, nil
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	seq := 0
	n, err := nursery.New(nursery.Config{
		Table: taxonomy.ReferenceTable(),
		RNG:   random.Seeded(3),
		NewID: func() string { seq++; return fmt.Sprintf("G%d", seq) },
	})
	if err != nil {
		t.Fatalf("nursery: %v", err)
	}
	cfg.Lab = n
	cfg.Table = n.Table()
	srv := httptest.NewServer(NewServer(cfg))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestAPI_GenomeLifecycle(t *testing.T) {
	srv := newTestServer(t, Config{})

	var m, f, c protocol.GenomeMsg
	if st := do(t, "POST", srv.URL+"/v1/genomes", "", &m); st != http.StatusCreated {
		t.Fatalf("spawn status=%d", st)
	}
	if st := do(t, "POST", srv.URL+"/v1/genomes", "", &f); st != http.StatusCreated {
		t.Fatalf("spawn status=%d", st)
	}
	st := do(t, "POST", srv.URL+"/v1/genomes/"+m.GenomeID+"/offspring", `{"partner":"`+f.GenomeID+`"}`, &c)
	if st != http.StatusCreated {
		t.Fatalf("offspring status=%d", st)
	}
	if c.MotherID != m.GenomeID || c.FatherID != f.GenomeID || c.Type != protocol.TypeGenome {
		t.Fatalf("child: %+v", c)
	}

	var got protocol.GenomeMsg
	if st := do(t, "GET", srv.URL+"/v1/genomes/"+c.GenomeID, "", &got); st != http.StatusOK {
		t.Fatalf("get status=%d", st)
	}
	if got.Code != c.Code {
		t.Fatalf("code %s want %s", got.Code, c.Code)
	}

	var sp []protocol.SpriteEntry
	if st := do(t, "GET", srv.URL+"/v1/genomes/"+c.GenomeID+"/sprite", "", &sp); st != http.StatusOK {
		t.Fatalf("sprite status=%d", st)
	}
	if len(sp) != len(c.Traits) {
		t.Fatalf("sprite entries=%d traits=%d", len(sp), len(c.Traits))
	}
}

func TestAPI_Errors(t *testing.T) {
	srv := newTestServer(t, Config{})
	var e protocol.ErrorMsg

	if st := do(t, "GET", srv.URL+"/v1/genomes/missing", "", &e); st != http.StatusNotFound || e.Code != protocol.ErrNotFound {
		t.Fatalf("get missing: status=%d code=%s", st, e.Code)
	}
	if st := do(t, "POST", srv.URL+"/v1/genomes/G1/offspring", `{}`, &e); st != http.StatusBadRequest {
		t.Fatalf("offspring without partner: status=%d", st)
	}
	if st := do(t, "POST", srv.URL+"/v1/genomes/a/offspring", `{"partner":"b"}`, &e); st != http.StatusNotFound {
		t.Fatalf("offspring unknown parents: status=%d", st)
	}
	// Lineage routes are not mounted without an index.
	if st := do(t, "GET", srv.URL+"/v1/genomes/G1/lineage", "", nil); st != http.StatusNotFound {
		t.Fatalf("lineage without index: status=%d", st)
	}
}

func TestAPI_Taxonomy(t *testing.T) {
	srv := newTestServer(t, Config{})
	var out struct {
		Digest string      `json:"digest"`
		Traits []traitInfo `json:"traits"`
	}
	if st := do(t, "GET", srv.URL+"/v1/taxonomy", "", &out); st != http.StatusOK {
		t.Fatalf("status=%d", st)
	}
	table := taxonomy.ReferenceTable()
	if out.Digest != table.Digest() || len(out.Traits) != table.Len() {
		t.Fatalf("taxonomy: digest=%s traits=%d", out.Digest, len(out.Traits))
	}
	if out.Traits[0].Name != table.Names()[0] {
		t.Fatalf("first trait %q", out.Traits[0].Name)
	}
}

func TestAPI_RateLimitsBirths(t *testing.T) {
	srv := newTestServer(t, Config{SpawnRatePerSec: 0.001, SpawnBurst: 2})
	for i := 0; i < 2; i++ {
		if st := do(t, "POST", srv.URL+"/v1/genomes", "", nil); st != http.StatusCreated {
			t.Fatalf("spawn %d status=%d", i, st)
		}
	}
	var e protocol.ErrorMsg
	if st := do(t, "POST", srv.URL+"/v1/genomes", "", &e); st != http.StatusTooManyRequests || e.Code != protocol.ErrRateLimit {
		t.Fatalf("expected 429, got %d %s", st, e.Code)
	}
	// Reads are not limited.
	if st := do(t, "GET", srv.URL+"/healthz", "", nil); st != http.StatusOK {
		t.Fatalf("healthz status=%d", st)
	}
}

func TestAPI_LineageRoutes(t *testing.T) {
	srv := newTestServer(t, Config{Index: fakeLineage{}})

	var p map[string]string
	if st := do(t, "GET", srv.URL+"/v1/genomes/G3/lineage", "", &p); st != http.StatusOK || p["mother_id"] != "G1" {
		t.Fatalf("lineage: status=%d body=%v", st, p)
	}
	if st := do(t, "GET", srv.URL+"/v1/genomes/G9/lineage", "", nil); st != http.StatusNotFound {
		t.Fatalf("lineage unknown: status=%d", st)
	}
	var kids []string
	if st := do(t, "GET", srv.URL+"/v1/genomes/G2/children", "", &kids); st != http.StatusOK || len(kids) != 0 {
		t.Fatalf("children: status=%d kids=%v", st, kids)
	}
	var counts map[string]int
	if st := do(t, "GET", srv.URL+"/v1/traits/sex/counts", "", &counts); st != http.StatusOK || counts["x"] != 2 {
		t.Fatalf("counts: status=%d body=%v", st, counts)
	}
	if st := do(t, "GET", srv.URL+"/v1/traits/Antennae/counts", "", nil); st != http.StatusNotFound {
		t.Fatalf("unknown trait: status=%d", st)
	}
}

func TestRateLimiter_ClientIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	if got := rl.ClientIP(r); got != "10.0.0.1" {
		t.Fatalf("untrusted ClientIP=%q", got)
	}
	rl.TrustProxy = true
	if got := rl.ClientIP(r); got != "1.2.3.4" {
		t.Fatalf("trusted ClientIP=%q", got)
	}
	r.Header.Set("X-Forwarded-For", " ")
	if got := rl.ClientIP(r); got != "10.0.0.1" {
		t.Fatalf("blank header ClientIP=%q", got)
	}
}

func TestRateLimiter_IgnoresForwardedForByDefault(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	for i, fwd := range []string{"1.1.1.1", "2.2.2.2"} {
		r := httptest.NewRequest("POST", "/v1/genomes", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		r.Header.Set("X-Forwarded-For", fwd)
		if got := rl.AllowRequest(r); got != (i == 0) {
			t.Fatalf("request %d allowed=%v", i, got)
		}
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	if !rl.Allow("c") || rl.tracked() != 3 {
		t.Fatalf("tracked=%d", rl.tracked())
	}
	if rl.Allow("c") {
		t.Fatalf("second request from c should be limited")
	}

	now = now.Add(idleTTL)
	rl.Allow("c")
	if got := rl.tracked(); got != 1 {
		t.Fatalf("tracked after idle=%d want 1", got)
	}
}

func TestAPI_SharedLimiter(t *testing.T) {
	lim := NewRateLimiter(0.001, 1)
	srv := newTestServer(t, Config{Limiter: lim})
	if !lim.Allow("127.0.0.1") {
		t.Fatalf("first token should be free")
	}
	if st := do(t, "POST", srv.URL+"/v1/genomes", "", nil); st != http.StatusTooManyRequests {
		t.Fatalf("spawn after shared token spent: status=%d", st)
	}
}

func TestAPI_Export(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServer(t, Config{ExportDir: dir})

	var g protocol.GenomeMsg
	do(t, "POST", srv.URL+"/v1/genomes", "", &g)
	var res map[string]string
	if st := do(t, "POST", srv.URL+"/v1/genomes/"+g.GenomeID+"/export", "", &res); st != http.StatusOK {
		t.Fatalf("export status=%d", st)
	}
	back, err := genome.Read(filepath.Join(dir, res["file"]))
	if err != nil {
		t.Fatalf("read exported: %v", err)
	}
	if back.Header.ID != g.GenomeID || back.Code != g.Code {
		t.Fatalf("exported %+v", back.Header)
	}
	if st := do(t, "POST", srv.URL+"/v1/genomes/missing/export", "", nil); st != http.StatusNotFound {
		t.Fatalf("export missing: status=%d", st)
	}
}
