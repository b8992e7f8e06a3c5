package world

type WorldConfig struct {
	ID         string
	TickRateHz int
	ObsRadius  int
	Height     int
	Seed       int64
	BoundaryR  int

	// Operational parameters. These are included in snapshots for
	// deterministic replay/resume.
	SnapshotEveryTicks uint64
	RandomTicksPerTick int
	MaxEditsPerAct     int
	RateLimits         RateLimitConfig
}

type RateLimitConfig struct {
	EditWindowTicks int
	EditMax         int
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "w1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 10
	}
	if c.ObsRadius <= 0 {
		c.ObsRadius = 8
	}
	if c.Height <= 0 {
		c.Height = 64
	}
	if c.BoundaryR <= 0 {
		c.BoundaryR = 512
	}
	if c.SnapshotEveryTicks == 0 {
		c.SnapshotEveryTicks = 3000
	}
	// RandomTicksPerTick stays as given: 0 disables random ticks,
	// which is what deterministic fixtures want.
	if c.MaxEditsPerAct <= 0 {
		c.MaxEditsPerAct = 16
	}
	if c.RateLimits.EditWindowTicks <= 0 {
		c.RateLimits.EditWindowTicks = 100
	}
	if c.RateLimits.EditMax <= 0 {
		c.RateLimits.EditMax = 256
	}
}
