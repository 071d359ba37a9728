package imgcrypt

import (
	"bytes"
	"testing"
)

func TestDeriveParams(t *testing.T) {
	salt := []byte("0123456789abcdef")

	a, err := DeriveParams("correct-horse-battery-staple", salt, 12)
	if err != nil {
		t.Fatalf("DeriveParams failed: %v", err)
	}
	b, err := DeriveParams("correct-horse-battery-staple", salt, 12)
	if err != nil {
		t.Fatalf("DeriveParams failed: %v", err)
	}
	if a != b {
		t.Errorf("same passphrase and salt gave %+v and %+v", a, b)
	}
	if a.Iterations != 12 {
		t.Errorf("Iterations = %d; want 12", a.Iterations)
	}

	c, err := DeriveParams("correct-horse-battery-staple", []byte("fedcba9876543210"), 12)
	if err != nil {
		t.Fatalf("DeriveParams failed: %v", err)
	}
	if a == c {
		t.Error("different salts gave identical parameters")
	}

	for _, p := range []Params{a, c} {
		if !InChaoticRange(p.X0, p.R) || p.R >= ChaoticRMax {
			t.Errorf("derived x0=%v r=%v outside the chaotic range", p.X0, p.R)
		}
		if p.A < 1 || p.A > 31 || p.B < 1 || p.B > 31 {
			t.Errorf("derived a=%d b=%d outside [1, 31]", p.A, p.B)
		}
	}
}

func TestDeriveParamsRejectsEmptyInput(t *testing.T) {
	if _, err := DeriveParams("", []byte("salt"), 1); err == nil {
		t.Error("empty passphrase should fail")
	}
	if _, err := DeriveParams("pass", nil, 1); err == nil {
		t.Error("empty salt should fail")
	}
}

func TestUnitInterval(t *testing.T) {
	zeros := make([]byte, 8)
	ones := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

	lo := unitInterval(zeros)
	hi := unitInterval(ones)
	if lo <= 0 || hi >= 1 || lo >= hi {
		t.Errorf("unitInterval bounds = %v, %v; want inside (0, 1)", lo, hi)
	}

	rlo, rhi := chaoticR(zeros), chaoticR(ones)
	if rlo != ChaoticRMin || rhi >= ChaoticRMax || !InChaoticRange(hi, rhi) {
		t.Errorf("chaoticR bounds = %v, %v; want inside [%v, %v)", rlo, rhi, ChaoticRMin, ChaoticRMax)
	}

	// The extreme seed must still drive a keystream that changes the data.
	ks, err := Keystream(hi, rhi, 64)
	if err != nil {
		t.Fatalf("Keystream failed: %v", err)
	}
	if bytes.Count(ks, []byte{0}) == len(ks) {
		t.Error("keystream from the extreme seed is all zeros")
	}
}

func TestNewSalt(t *testing.T) {
	a, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}
	b, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}
	if len(a) != SaltSize || string(a) == string(b) {
		t.Errorf("NewSalt returned %x and %x", a, b)
	}
}
