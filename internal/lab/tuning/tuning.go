package tuning

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// Seed of the nursery random source; 0 draws one at startup.
	Seed int64 `yaml:"seed" env:"LIFEGEN_SEED"`

	// TaxonomyPath points at a YAML taxonomy; empty uses the built-in one.
	TaxonomyPath string `yaml:"taxonomy_path" env:"LIFEGEN_TAXONOMY"`
	DataDir      string `yaml:"data_dir" env:"LIFEGEN_DATA_DIR"`

	// ArmReplacers orders the appendages that replace Arms in sprites.
	ArmReplacers []string `yaml:"arm_replacers" env:"LIFEGEN_ARM_REPLACERS" envSeparator:","`

	SpawnRatePerSec float64 `yaml:"spawn_rate_per_sec" env:"LIFEGEN_SPAWN_RATE"`
	SpawnBurst      int     `yaml:"spawn_burst" env:"LIFEGEN_SPAWN_BURST"`

	// TrustProxy keys the spawn limiter on X-Forwarded-For instead of the
	// peer address.
	TrustProxy bool `yaml:"trust_proxy" env:"LIFEGEN_TRUST_PROXY"`

	MaxGenomes int `yaml:"max_genomes" env:"LIFEGEN_MAX_GENOMES"`
}

func Defaults() Tuning {
	return Tuning{
		DataDir:         "./data",
		ArmReplacers:    []string{"Wings", "Fins"},
		SpawnRatePerSec: 20,
		SpawnBurst:      40,
		MaxGenomes:      100000,
	}
}

// Load reads path over Defaults and then applies LIFEGEN_* environment
// overrides. An empty path skips the file.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return t, err
		}
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("tuning.yaml: %w", err)
		}
	}
	if err := ApplyEnv(&t); err != nil {
		return t, err
	}
	for i, r := range t.ArmReplacers {
		t.ArmReplacers[i] = strings.TrimSpace(r)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func ApplyEnv(t *Tuning) error {
	if err := env.Parse(t); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (t Tuning) Validate() error {
	if t.SpawnRatePerSec < 0 {
		return fmt.Errorf("tuning: spawn_rate_per_sec must be >= 0")
	}
	if t.SpawnBurst < 0 {
		return fmt.Errorf("tuning: spawn_burst must be >= 0")
	}
	if t.MaxGenomes < 0 {
		return fmt.Errorf("tuning: max_genomes must be >= 0")
	}
	seen := map[string]bool{}
	for _, r := range t.ArmReplacers {
		name := strings.TrimSpace(r)
		if name == "" {
			return fmt.Errorf("tuning: arm_replacers has an empty entry")
		}
		if seen[name] {
			return fmt.Errorf("tuning: arm_replacers repeats %q", name)
		}
		seen[name] = true
	}
	return nil
}
