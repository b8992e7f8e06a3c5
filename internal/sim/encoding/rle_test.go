package encoding

import (
	"strings"
	"testing"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]uint16, 0, 200)
	in = append(in, 1, 1, 1, 2, 2, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 7)
	}
	in = append(in, 9, 10, 10, 10)

	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRLE_Empty(t *testing.T) {
	out, err := DecodeRLE(EncodeRLE(nil))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty, got %d ids", len(out))
	}
}

func TestRLE_ExactLength(t *testing.T) {
	cube := make([]uint16, 4096)
	for i := 512; i < 1024; i++ {
		cube[i] = 3
	}
	enc := EncodeRLE(cube)

	out, err := DecodeRLEN(enc, 4096)
	if err != nil {
		t.Fatalf("DecodeRLEN: %v", err)
	}
	if out[600] != 3 || out[0] != 0 {
		t.Fatalf("decoded content wrong: %d %d", out[600], out[0])
	}

	if _, err := DecodeRLEN(enc, 4095); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if !strings.Contains(err2str(DecodeRLEN(enc, 10)), "longer") {
		t.Fatalf("expected early overflow error")
	}
}

func TestRLE_RejectsGarbage(t *testing.T) {
	if _, err := DecodeRLE("not base64!!"); err == nil {
		t.Fatalf("expected base64 error")
	}
	// A run of zero is never produced by the encoder.
	if _, err := DecodeRLE("AQA="); err == nil {
		t.Fatalf("expected zero-run error")
	}
}

func err2str(_ []uint16, err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
