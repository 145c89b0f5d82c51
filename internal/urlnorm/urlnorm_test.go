package urlnorm

import "testing"

func TestNormalizeLowercasesHostAndStripsFragment(t *testing.T) {
	got := Normalize("https://EX.com/a?utm_source=x#frag", true)
	want := "https://ex.com/a"
	if got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	u := "https://EX.com/a?utm_source=x&q=1#frag"
	once := Normalize(u, true)
	twice := Normalize(once, true)
	if once != twice {
		t.Fatalf("Normalize not idempotent: once=%q twice=%q", once, twice)
	}
}

func TestNormalizeTrackingParamEquivalence(t *testing.T) {
	a := Normalize("https://ex.com/p?utm_source=x", true)
	b := Normalize("https://ex.com/p?utm_source=y", true)
	if a != b {
		t.Fatalf("expected tracking-param-only URLs to normalize equal, got %q vs %q", a, b)
	}
}

func TestNormalizePreservesSchemeAndPort(t *testing.T) {
	got := Normalize("HTTP://Example.com:8080/Path?b=2&a=1", false)
	want := "http://example.com:8080/Path?b=2&a=1"
	if got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}
}

func TestNormalizeDoesNotCollapseSchemes(t *testing.T) {
	http := Normalize("http://ex.com/a", false)
	https := Normalize("https://ex.com/a", false)
	if http == https {
		t.Fatalf("scheme variants must remain distinct, got equal %q", http)
	}
}

func TestNormalizeFallsBackOnParseFailure(t *testing.T) {
	bad := "http://[::1"
	if got := Normalize(bad, true); got != bad {
		t.Fatalf("Normalize() = %q, want original input returned unchanged", got)
	}
}

func TestNormalizeWithoutTrackingStripKeepsQuery(t *testing.T) {
	got := Normalize("https://ex.com/p?utm_source=x", false)
	want := "https://ex.com/p?utm_source=x"
	if got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}
}
