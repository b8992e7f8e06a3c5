package world

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
)

const (
	chunkSize   = 16
	chunkVolume = chunkSize * chunkSize * chunkSize
)

type ChunkKey struct {
	CX, CY, CZ int
}

// Chunk is a 16x16x16 box of palette ids.
type Chunk struct {
	Blocks []uint16 // chunkVolume entries

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(x, y, z int) int {
	return (x & 15) | (z&15)<<4 | (y&15)<<8
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		// Hash the raw uint16 slice deterministically.
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// WorldGen is the pure terrain function. BlockAt must not depend on
// any mutable state: observation reads fall through to it for
// positions whose chunk was never written, so it has to return the
// same answer before and after unrelated edits.
type WorldGen struct {
	Seed   int64
	Height int

	// Palette ids for generated blocks.
	Air     uint16
	Bedrock uint16
	Stone   uint16
	Dirt    uint16
	Grass   uint16
}

func (g *WorldGen) BlockAt(x, y, z int) uint16 {
	if y < 0 || y >= g.Height {
		return g.Air
	}
	switch {
	case y == 0:
		return g.Bedrock
	case y < surfaceLevel:
		return g.Stone
	case y == surfaceLevel:
		if hash2(g.Seed, x, z)%13 == 0 {
			return g.Dirt
		}
		return g.Grass
	default:
		return g.Air
	}
}

// surfaceLevel is the generated ground height. The terrain is flat so
// wire layouts behave identically wherever they are built.
const surfaceLevel = 3

// ChunkStore holds the materialized chunks. Chunks materialize on
// first write only; reads of untouched positions are answered by the
// generator. Accessed only from the world loop goroutine.
type ChunkStore struct {
	gen    WorldGen
	chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	return &ChunkStore{gen: gen, chunks: map[ChunkKey]*Chunk{}}
}

func chunkKeyAt(x, y, z int) ChunkKey {
	return ChunkKey{CX: floorDiv(x, chunkSize), CY: floorDiv(y, chunkSize), CZ: floorDiv(z, chunkSize)}
}

func (s *ChunkStore) BlockAt(x, y, z int) uint16 {
	if y < 0 || y >= s.gen.Height {
		return s.gen.Air
	}
	if c, ok := s.chunks[chunkKeyAt(x, y, z)]; ok {
		return c.Get(x, y, z)
	}
	return s.gen.BlockAt(x, y, z)
}

// SetBlock writes a palette id and returns the previous one,
// materializing the containing chunk if needed.
func (s *ChunkStore) SetBlock(x, y, z int, b uint16) uint16 {
	c := s.materialize(chunkKeyAt(x, y, z))
	old := c.Get(x, y, z)
	c.Set(x, y, z, b)
	return old
}

func (s *ChunkStore) materialize(key ChunkKey) *Chunk {
	if c, ok := s.chunks[key]; ok {
		return c
	}
	c := &Chunk{Blocks: make([]uint16, chunkVolume), dirty: true}
	x0, y0, z0 := key.CX*chunkSize, key.CY*chunkSize, key.CZ*chunkSize
	for y := 0; y < chunkSize; y++ {
		for z := 0; z < chunkSize; z++ {
			for x := 0; x < chunkSize; x++ {
				c.Blocks[c.index(x, y, z)] = s.gen.BlockAt(x0+x, y0+y, z0+z)
			}
		}
	}
	s.chunks[key] = c
	return c
}

// PutChunk installs chunk contents verbatim, for snapshot import.
func (s *ChunkStore) PutChunk(key ChunkKey, blocks []uint16) {
	c := &Chunk{Blocks: make([]uint16, chunkVolume), dirty: true}
	copy(c.Blocks, blocks)
	s.chunks[key] = c
}

func (s *ChunkStore) ChunkAt(key ChunkKey) (*Chunk, bool) {
	c, ok := s.chunks[key]
	return c, ok
}

func (s *ChunkStore) Loaded() int { return len(s.chunks) }

// SortedKeys returns the materialized chunk keys in (CX,CY,CZ) order.
func (s *ChunkStore) SortedKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.CX != b.CX {
			return a.CX < b.CX
		}
		if a.CY != b.CY {
			return a.CY < b.CY
		}
		return a.CZ < b.CZ
	})
	return keys
}

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}
