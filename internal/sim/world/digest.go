package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

func digestWriteU64(h hash.Hash, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	h.Write(b[:])
}

func digestWriteI64(h hash.Hash, v int64) { digestWriteU64(h, uint64(v)) }

func digestWriteVec(h hash.Hash, p Vec3i) {
	digestWriteI64(h, int64(p.X))
	digestWriteI64(h, int64(p.Y))
	digestWriteI64(h, int64(p.Z))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func sortVec3i(ps []Vec3i) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
}

func sortedKeys[V any](m map[Vec3i]V) []Vec3i {
	ps := make([]Vec3i, 0, len(m))
	for p := range m {
		ps = append(ps, p)
	}
	sortVec3i(ps)
	return ps
}

// stateDigest hashes everything the simulation is: chunk contents,
// wire powers, switch states, pending schedule and the client counter.
// Two worlds with equal digests behave identically from here on.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	digestWriteU64(h, nowTick)
	digestWriteI64(h, w.cfg.Seed)

	keys := w.chunks.SortedKeys()
	digestWriteU64(h, uint64(len(keys)))
	for _, k := range keys {
		c, ok := w.chunks.ChunkAt(k)
		if !ok {
			continue
		}
		digestWriteI64(h, int64(k.CX))
		digestWriteI64(h, int64(k.CY))
		digestWriteI64(h, int64(k.CZ))
		d := c.Digest()
		h.Write(d[:])
	}

	wires := sortedKeys(w.wirePower)
	digestWriteU64(h, uint64(len(wires)))
	for _, p := range wires {
		digestWriteVec(h, p)
		digestWriteU64(h, uint64(w.wirePower[p]))
	}

	ons := sortedKeys(w.onState)
	digestWriteU64(h, uint64(len(ons)))
	for _, p := range ons {
		digestWriteVec(h, p)
		h.Write([]byte{boolByte(w.onState[p])})
	}

	sched := sortedKeys(w.schedule)
	digestWriteU64(h, uint64(len(sched)))
	for _, p := range sched {
		s := w.schedule[p]
		digestWriteVec(h, p)
		digestWriteU64(h, s.Due)
		h.Write([]byte(s.Action))
	}

	digestWriteU64(h, w.nextClientNum.Load())
	return hex.EncodeToString(h.Sum(nil))
}
