package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Catalogs holds the data-driven content the server is started with.
// The world never reads config files itself; everything it needs is
// loaded here once and handed over.
type Catalogs struct {
	Blocks BlockCatalog
}

// BlockCatalog is the block palette plus per-block definitions. The
// palette is sorted by id with AIR pinned to 0, so palette indices are
// stable across runs given the same blocks.json.
type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

// BlockDef describes one block kind. Behavior selects a built-in
// behavior implemented by the world ("wire", "lever", "button",
// "lamp", "grass"); an empty Behavior is a plain block.
type BlockDef struct {
	ID        string `json:"id"`
	Solid     bool   `json:"solid"`
	Breakable bool   `json:"breakable"`
	Behavior  string `json:"behavior,omitempty"`

	// Wire must be set when Behavior is "wire".
	Wire *WireDef `json:"wire,omitempty"`

	// Conductor overrides whether the block carries direct signals
	// through itself. When nil the block conducts iff it is solid.
	Conductor *bool `json:"conductor,omitempty"`

	// DelayTicks is the release delay of "button" blocks.
	DelayTicks int `json:"delay_ticks,omitempty"`
}

// WireDef is the power model of a wire block.
type WireDef struct {
	Signal string `json:"signal"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
	Step   int    `json:"step"`

	// Connect selects the connection geometry: "" links through the
	// cardinals and open-cornered staircase diagonals, "all" links
	// through all 18 sides unconditionally.
	Connect string `json:"connect,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("blocks.json: duplicate id %q", d.ID)
		}
		if err := checkDef(d); err != nil {
			return fmt.Errorf("blocks.json: %s: %w", d.ID, err)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func checkDef(d BlockDef) error {
	if d.Behavior == "wire" {
		if d.Wire == nil {
			return fmt.Errorf("wire behavior without wire params")
		}
		if d.Wire.Min >= d.Wire.Max {
			return fmt.Errorf("wire min %d must be below max %d", d.Wire.Min, d.Wire.Max)
		}
		if d.Wire.Step < 0 {
			return fmt.Errorf("wire step %d must not be negative", d.Wire.Step)
		}
		if d.Wire.Signal == "" {
			return fmt.Errorf("wire without signal name")
		}
		switch d.Wire.Connect {
		case "", "all":
		default:
			return fmt.Errorf("unknown wire connect mode %q", d.Wire.Connect)
		}
	} else if d.Wire != nil {
		return fmt.Errorf("wire params on non-wire behavior %q", d.Behavior)
	}
	if d.DelayTicks < 0 {
		return fmt.Errorf("delay_ticks %d must not be negative", d.DelayTicks)
	}
	return nil
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
