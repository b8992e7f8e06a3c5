package world

import "testing"

func testGen() WorldGen {
	return WorldGen{Seed: 7, Height: 64, Air: 0, Bedrock: 1, Stone: 2, Dirt: 3, Grass: 4}
}

func TestChunkStore_ReadsNeverMaterialize(t *testing.T) {
	s := NewChunkStore(testGen())
	for _, p := range [][3]int{{0, 0, 0}, {-17, 3, 200}, {100, 63, -100}, {0, -5, 0}, {0, 200, 0}} {
		s.BlockAt(p[0], p[1], p[2])
	}
	if got := s.Loaded(); got != 0 {
		t.Fatalf("loaded chunks = %d after reads, want 0", got)
	}
}

func TestChunkStore_WriteMaterializesFromGenerator(t *testing.T) {
	gen := testGen()
	s := NewChunkStore(gen)
	if old := s.SetBlock(-5, 3, -5, 9); old != gen.BlockAt(-5, 3, -5) {
		t.Fatalf("SetBlock returned %d, want the generated block", old)
	}
	if got := s.Loaded(); got != 1 {
		t.Fatalf("loaded chunks = %d, want 1", got)
	}
	if got := s.BlockAt(-5, 3, -5); got != 9 {
		t.Fatalf("written block = %d, want 9", got)
	}
	// The rest of the materialized chunk must match the generator.
	for x := -16; x < 0; x++ {
		for z := -16; z < 0; z++ {
			if x == -5 && z == -5 {
				continue
			}
			if got, want := s.BlockAt(x, 3, z), gen.BlockAt(x, 3, z); got != want {
				t.Fatalf("block at (%d,3,%d) = %d, want %d", x, z, got, want)
			}
		}
	}
}

func TestWorldGen_Layers(t *testing.T) {
	gen := testGen()
	for _, tc := range []struct {
		y    int
		want uint16
	}{
		{-1, gen.Air}, {0, gen.Bedrock}, {1, gen.Stone}, {2, gen.Stone}, {4, gen.Air}, {64, gen.Air},
	} {
		if got := gen.BlockAt(11, tc.y, -7); got != tc.want {
			t.Fatalf("block at y=%d is %d, want %d", tc.y, got, tc.want)
		}
	}
	if got := gen.BlockAt(11, surfaceLevel, -7); got != gen.Grass && got != gen.Dirt {
		t.Fatalf("surface block = %d, want grass or dirt", got)
	}
}

func TestWorldGen_SurfaceMixesDirtIntoGrass(t *testing.T) {
	gen := testGen()
	dirt := 0
	for x := 0; x < 64; x++ {
		for z := 0; z < 64; z++ {
			if gen.BlockAt(x, surfaceLevel, z) == gen.Dirt {
				dirt++
			}
		}
	}
	if dirt == 0 || dirt == 64*64 {
		t.Fatalf("dirt patches = %d of %d, want a mix", dirt, 64*64)
	}
}

func TestChunkDigest_TracksWrites(t *testing.T) {
	s := NewChunkStore(testGen())
	s.SetBlock(1, 1, 1, 5)
	c, ok := s.ChunkAt(ChunkKey{})
	if !ok {
		t.Fatalf("chunk not materialized")
	}
	before := c.Digest()
	s.SetBlock(1, 1, 2, 5)
	after := c.Digest()
	if before == after {
		t.Fatalf("digest unchanged after write")
	}
	// Writing the value already present does not dirty the chunk.
	s.SetBlock(1, 1, 2, 5)
	if got := c.Digest(); got != after {
		t.Fatalf("digest changed without a write")
	}
}

func TestChunkStore_SortedKeysOrder(t *testing.T) {
	s := NewChunkStore(testGen())
	s.SetBlock(40, 3, 0, 9)
	s.SetBlock(-1, 3, 0, 9)
	s.SetBlock(0, 3, 40, 9)
	s.SetBlock(0, 40, 0, 9)

	got := s.SortedKeys()
	want := []ChunkKey{{-1, 0, 0}, {0, 0, 2}, {0, 2, 0}, {2, 0, 0}}
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestChunkStore_PutChunkInstallsVerbatim(t *testing.T) {
	s := NewChunkStore(testGen())
	blocks := make([]uint16, chunkVolume)
	for i := range blocks {
		blocks[i] = uint16(i % 7)
	}
	s.PutChunk(ChunkKey{CX: 2, CY: 0, CZ: -3}, blocks)
	if got := s.BlockAt(2*chunkSize, 0, -3*chunkSize); got != 0 {
		t.Fatalf("block at chunk origin = %d, want 0", got)
	}
	if got := s.BlockAt(2*chunkSize+5, 0, -3*chunkSize); got != 5%7 {
		t.Fatalf("block at x offset 5 = %d, want %d", got, 5%7)
	}
}

func TestFloorDiv(t *testing.T) {
	for _, tc := range []struct{ a, want int }{
		{0, 0}, {15, 0}, {16, 1}, {31, 1}, {-1, -1}, {-16, -1}, {-17, -2},
	} {
		if got := floorDiv(tc.a, 16); got != tc.want {
			t.Fatalf("floorDiv(%d, 16) = %d, want %d", tc.a, got, tc.want)
		}
	}
}

func TestHash2_StableAndSpread(t *testing.T) {
	a := hash2(7, 10, -20)
	if b := hash2(7, 10, -20); a != b {
		t.Fatalf("hash2 not stable: %d vs %d", a, b)
	}
	if hash2(7, 10, -20) == hash2(7, -20, 10) {
		t.Fatalf("hash2 symmetric in x/z")
	}
	if hash2(7, 10, -20) == hash2(8, 10, -20) {
		t.Fatalf("hash2 ignores seed")
	}
}
