package backend

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"
)

func TestChecksumIsDeterministicAndFramed(t *testing.T) {
	content := []byte("the same bytes every time")
	a, err := Checksum(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	b, err := Checksum(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if a != b {
		t.Fatalf("checksum not deterministic: %q vs %q", a, b)
	}

	raw, err := base64.StdEncoding.DecodeString(a)
	if err != nil {
		t.Fatalf("checksum is not valid base64: %v", err)
	}
	// [10, len, digest..., 16, 0] around a 20 byte SHA1 digest.
	if len(raw) != 24 {
		t.Fatalf("framed length %d, want 24", len(raw))
	}
	if raw[0] != 10 || raw[1] != 20 {
		t.Fatalf("bad frame header % d", raw[:2])
	}
	if raw[22] != 16 || raw[23] != 0 {
		t.Fatalf("bad frame trailer % d", raw[22:])
	}
}

func TestChecksumDiffersAcrossContent(t *testing.T) {
	a, _ := Checksum(strings.NewReader("aaa"))
	b, _ := Checksum(strings.NewReader("bbb"))
	if a == b {
		t.Fatalf("distinct content produced the same checksum")
	}
}

func TestChecksumIsSeeded(t *testing.T) {
	// The vendor checksum of empty content is seeded, so it must differ
	// from a plain framed SHA1 of nothing, and from the fixed folder value.
	sum, err := Checksum(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if sum == EmptyChecksum {
		t.Fatalf("file checksum of empty content collided with the folder constant")
	}

	h := sha1.Sum(nil)
	unseeded := append([]byte{10, 20}, h[:]...)
	unseeded = append(unseeded, 16, 0)
	if sum == base64.StdEncoding.EncodeToString(unseeded) {
		t.Fatalf("checksum ignored the seed")
	}
}
