package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int   `yaml:"tick_rate_hz"`
	ChunkSize          []int `yaml:"chunk_size"`
	ObsRadius          int   `yaml:"obs_radius"`
	WorldBoundaryR     int   `yaml:"world_boundary_r"`
	WorldHeight        int   `yaml:"world_height"`
	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks"`
	RandomTicksPerTick int   `yaml:"random_ticks_per_tick"`
	MaxEditsPerAct     int   `yaml:"max_edits_per_act"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RateLimits struct {
	EditWindowTicks int `yaml:"edit_window_ticks"`
	EditMax         int `yaml:"edit_max"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if len(t.ChunkSize) != 0 && len(t.ChunkSize) != 3 {
		return t, fmt.Errorf("tuning.yaml: chunk_size must hold 3 entries, got %d", len(t.ChunkSize))
	}
	return t, nil
}
