package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// maxRun caps a single decoded run so a short hostile payload cannot
// expand into gigabytes.
const maxRun = 1 << 24

// EncodeRLE encodes a sequence of palette ids into base64(varint pairs).
// The pairs are (block_id, run_len) repeated.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(ids); {
		id := ids[i]
		run := 1
		for i+run < len(ids) && ids[i+run] == id {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(id))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE.
func DecodeRLE(b64 string) ([]uint16, error) {
	return decodeRLE(b64, -1)
}

// DecodeRLEN decodes like DecodeRLE but fails unless the payload
// expands to exactly n ids. Fixed-size grids (voxel cubes, chunk
// sections) use this to reject truncated or padded payloads early.
func DecodeRLEN(b64 string, n int) ([]uint16, error) {
	out, err := decodeRLE(b64, n)
	if err != nil {
		return nil, err
	}
	if len(out) != n {
		return nil, fmt.Errorf("rle: got %d ids, want %d", len(out), n)
	}
	return out, nil
}

func decodeRLE(b64 string, limit int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	if limit >= 0 {
		out = make([]uint16, 0, limit)
	}
	for i := 0; i < len(raw); {
		id, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad id varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad run varint at %d", i)
		}
		i += n
		if id > 0xFFFF {
			return nil, fmt.Errorf("rle: block id too large: %d", id)
		}
		if run == 0 || run > maxRun {
			return nil, fmt.Errorf("rle: bad run length: %d", run)
		}
		if limit >= 0 && len(out)+int(run) > limit {
			return nil, fmt.Errorf("rle: payload longer than %d ids", limit)
		}
		for k := 0; k < int(run); k++ {
			out = append(out, uint16(id))
		}
	}
	return out, nil
}
