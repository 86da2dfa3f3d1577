package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"lifegen.ai/internal/genes/random"
	"lifegen.ai/internal/genes/sprite"
	"lifegen.ai/internal/genes/taxonomy"
	"lifegen.ai/internal/lab/nursery"
	"lifegen.ai/internal/lab/tuning"
	"lifegen.ai/internal/persistence/indexdb"
	persistlog "lifegen.ai/internal/persistence/log"
	"lifegen.ai/internal/transport/api"
	"lifegen.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (optional; LIFEGEN_* env applies either way)")
		dataDir    = flag.String("data", "", "runtime data directory (default: tuning data_dir)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite lineage index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tu, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("tuning: %v", err)
	}
	if *dataDir != "" {
		tu.DataDir = *dataDir
	}

	tax := taxonomy.Reference()
	if tu.TaxonomyPath != "" {
		tax, err = taxonomy.Load(tu.TaxonomyPath)
		if err != nil {
			logger.Fatalf("taxonomy: %v", err)
		}
	}
	table, err := taxonomy.Flatten(tax)
	if err != nil {
		logger.Fatalf("taxonomy: %v", err)
	}

	rng, seed, err := random.FromSeed(tu.Seed)
	if err != nil {
		logger.Fatalf("seed: %v", err)
	}
	logger.Printf("taxonomy traits=%d digest=%s seed=%d", table.Len(), table.Digest(), seed)

	if err := os.MkdirAll(tu.DataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(tu.DataDir, "index.db"), logger)
		if err != nil {
			logger.Fatalf("index db: %v", err)
		}
		defer idx.Close()
	}

	births := persistlog.NewBirthLogger(tu.DataDir)
	defer births.Close()

	cfg := nursery.Config{
		Table:      table,
		RNG:        rng,
		Composer:   sprite.Composer{ArmReplacers: tu.ArmReplacers},
		Births:     births,
		Logger:     log.New(os.Stdout, "[nursery] ", log.LstdFlags|log.Lmicroseconds),
		MaxGenomes: tu.MaxGenomes,
	}
	limiter := api.NewRateLimiter(tu.SpawnRatePerSec, tu.SpawnBurst)
	limiter.TrustProxy = tu.TrustProxy
	apiCfg := api.Config{
		Table:   table,
		Limiter: limiter,
		Logger:  logger,
	}
	if idx != nil {
		cfg.Index = idx
		apiCfg.Index = idx
	}
	n, err := nursery.New(cfg)
	if err != nil {
		logger.Fatalf("nursery: %v", err)
	}
	apiCfg.Lab = n
	apiCfg.ExportDir = filepath.Join(tu.DataDir, "genomes")
	if restored, err := n.ImportDir(apiCfg.ExportDir); err != nil {
		logger.Fatalf("restore genomes: %v", err)
	} else if restored > 0 {
		logger.Printf("restored %d genomes from %s", restored, apiCfg.ExportDir)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(rw, "lifegen_genomes %d\n", n.Len())
		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "lifegen_index_queue_depth %d\n", st.QueueDepth)
			fmt.Fprintf(rw, "lifegen_index_queue_capacity %d\n", st.QueueCapacity)
			fmt.Fprintf(rw, "lifegen_index_dropped_total %d\n", st.DropGenomeTotal)
		}
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(n, limiter, logger).Handler())
	mux.Handle("/", api.NewServer(apiCfg))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
