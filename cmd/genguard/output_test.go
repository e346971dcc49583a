package main

import "testing"

func TestParseOptions(t *testing.T) {
	opts, err := parseOptions([]string{"duration=5", "ratio=1.5", "loop=true", "style=noir", "title = a=b"})
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if opts["duration"] != int64(5) || opts["ratio"] != 1.5 || opts["loop"] != true || opts["style"] != "noir" {
		t.Fatalf("unexpected options %v", opts)
	}
	if opts["title"] != "a=b" {
		t.Fatalf("value should keep everything after the first '=', got %v", opts["title"])
	}
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseOptions([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if opts, err := parseOptions(nil); err != nil || opts != nil {
		t.Fatalf("empty input should yield nil options, got %v, %v", opts, err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("a  b\nc", 10); got != "a b c" {
		t.Fatalf("truncate collapsed to %q", got)
	}
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("truncate = %q", got)
	}
}
