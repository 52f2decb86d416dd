package core_test

import (
	"testing"

	"github.com/elajah-datadog/dogflare/internal/core"
	"github.com/elajah-datadog/dogflare/internal/testutil"
)

func TestHasher(t *testing.T) {
	t.Run("matches one-shot digest", func(t *testing.T) {
		data := []byte("flare contents")

		h := core.NewHasher()
		h.Write(data)

		if got, want := h.HexSum(), testutil.SHA256Hex(data); got != want {
			t.Errorf("HexSum() = %s, want %s", got, want)
		}
	})

	t.Run("incremental writes equal single write", func(t *testing.T) {
		h1 := core.NewHasher()
		h1.Write([]byte("flare "))
		h1.Write([]byte("contents"))

		h2 := core.NewHasher()
		h2.Write([]byte("flare contents"))

		if h1.HexSum() != h2.HexSum() {
			t.Errorf("incremental digest %s != single-write digest %s", h1.HexSum(), h2.HexSum())
		}
	})

	t.Run("empty input has a digest", func(t *testing.T) {
		h := core.NewHasher()
		if got, want := h.HexSum(), testutil.SHA256Hex(nil); got != want {
			t.Errorf("HexSum() = %s, want %s", got, want)
		}
	})
}

func TestHashSet(t *testing.T) {
	t.Run("seeded digests are contained", func(t *testing.T) {
		s := core.NewHashSet("aaa", "bbb")
		if !s.Contains("aaa") || !s.Contains("bbb") {
			t.Error("seeded digests missing from set")
		}
		if s.Contains("ccc") {
			t.Error("unexpected digest in set")
		}
	})

	t.Run("add then contains", func(t *testing.T) {
		s := core.NewHashSet()
		s.Add("ccc")
		if !s.Contains("ccc") {
			t.Error("added digest missing from set")
		}
		if s.Len() != 1 {
			t.Errorf("Len() = %d, want 1", s.Len())
		}
	})
}
