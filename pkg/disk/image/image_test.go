package image

import "testing"

func TestDetectType(t *testing.T) {
	cases := map[string]Type{
		"/a/b.atr":  ATR,
		"/a/b.ssd":  SSD,
		"/a/b.dsd":  DSD,
		"/a/b.img":  Raw,
		"/a/b.raw":  Raw,
		"/a/b.ATR":  ATR,
		"/a/b":      Auto,
		"/a/b.":     Auto,
		"noext":     Auto,
		"/a.b/c.ssd": SSD,
	}
	for path, want := range cases {
		if got := DetectType(path); got != want {
			t.Errorf("DetectType(%q) = %v, want %v", path, got, want)
		}
	}
}
