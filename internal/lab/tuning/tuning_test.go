package tuning

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad_FileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte("seed: 99\narm_replacers: [Fins, Wings]\nmax_genomes: 10\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Seed != 99 || tu.MaxGenomes != 10 {
		t.Fatalf("unexpected tuning: %+v", tu)
	}
	if !reflect.DeepEqual(tu.ArmReplacers, []string{"Fins", "Wings"}) {
		t.Fatalf("arm replacers: %v", tu.ArmReplacers)
	}
	if tu.DataDir != "./data" || tu.SpawnBurst != 40 {
		t.Fatalf("defaults lost: %+v", tu)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("seed: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LIFEGEN_SEED", "1234")
	t.Setenv("LIFEGEN_ARM_REPLACERS", "Fins, Wings")
	t.Setenv("LIFEGEN_DATA_DIR", "/tmp/lifegen")
	t.Setenv("LIFEGEN_TRUST_PROXY", "true")

	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Seed != 1234 || tu.DataDir != "/tmp/lifegen" || !tu.TrustProxy {
		t.Fatalf("env not applied: %+v", tu)
	}
	if !reflect.DeepEqual(tu.ArmReplacers, []string{"Fins", "Wings"}) {
		t.Fatalf("arm replacers: %v", tu.ArmReplacers)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	tu, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(tu, Defaults()) {
		t.Fatalf("got %+v want defaults", tu)
	}
}

func TestValidate(t *testing.T) {
	bad := []Tuning{
		{SpawnRatePerSec: -1},
		{SpawnBurst: -1},
		{MaxGenomes: -5},
		{ArmReplacers: []string{"Wings", " "}},
		{ArmReplacers: []string{"Wings", "Wings"}},
	}
	for i, tu := range bad {
		if err := tu.Validate(); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, tu)
		}
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(tu, Defaults()) {
		t.Fatalf("shipped config drifted from defaults: %+v", tu)
	}
}
