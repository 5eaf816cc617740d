package checksum

import (
	"testing"

	"github.com/starford/taxport/internal/models"
)

func TestSum(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")); got != want {
		t.Errorf("Sum = %q, want %q", got, want)
	}
}

func TestFingerprint_OrderAndContent(t *testing.T) {
	a := models.SourceMeta{Path: "a.yaml", Checksum: "1"}
	b := models.SourceMeta{Path: "b.yaml", Checksum: "2"}

	if Fingerprint([]models.SourceMeta{a, b}) != Fingerprint([]models.SourceMeta{a, b}) {
		t.Error("fingerprint not stable")
	}
	if Fingerprint([]models.SourceMeta{a, b}) == Fingerprint([]models.SourceMeta{b, a}) {
		t.Error("fingerprint should depend on order")
	}
	changed := b
	changed.Checksum = "3"
	if Fingerprint([]models.SourceMeta{a, b}) == Fingerprint([]models.SourceMeta{a, changed}) {
		t.Error("fingerprint should depend on checksums")
	}
}
