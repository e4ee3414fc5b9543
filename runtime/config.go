package runtime

import (
	"os"

	"sigs.k8s.io/yaml"

	"github.com/dynvm-project/dynvm/heap"
)

// Config bundles the tunables a Context resolves at startup (§4.E.1,
// §4.E.3, §4.H): page geometry, GC growth behavior, and the initial
// coroutine stack size. YAML-shaped like the rest of the pack's config
// surfaces (db's sync definitions, elasticproxy's config files), loaded
// via sigs.k8s.io/yaml so the same struct tags also work with
// encoding/json.
type Config struct {
	PageSize          int     `json:"pageSize"`
	GrowthFactor      float64 `json:"growthFactor"`
	InitThreshold      int64   `json:"initThreshold"`
	LargeObjectFraction float64 `json:"largeObjectFraction"`
	InitialStackSlots int     `json:"initialStackSlots"`
}

// Default returns the spec-documented defaults: 1 MiB pages, the heap
// package's own growth/threshold defaults, and a modest initial coroutine
// stack.
func Default() Config {
	hc := heap.DefaultConfig()
	return Config{
		PageSize:            hc.PageSize,
		GrowthFactor:        hc.GrowthFactor,
		InitThreshold:       hc.InitThreshold,
		LargeObjectFraction: 0.25,
		InitialStackSlots:   256,
	}
}

// HeapConfig projects the heap-related fields into a heap.Config. heap.New
// reads PageSize and InitThreshold; GrowthFactor is carried but unused there
// (the threshold doubles).
func (c Config) HeapConfig() heap.Config {
	return heap.Config{
		PageSize:      c.PageSize,
		GrowthFactor:  c.GrowthFactor,
		InitThreshold: c.InitThreshold,
	}
}

// LoadConfig reads a YAML config file, starting from Default() so an
// omitted field keeps its documented default rather than zeroing out.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg out as YAML, mirroring the definition files db/sync.go
// round-trips through disk.
func (c Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
