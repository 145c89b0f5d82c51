package htmlconvert

import "testing"

func TestExtractLinksResolvesRelativeAndStripsFragment(t *testing.T) {
	html := `<html><body><a href="/a#frag">A</a><a href="https://other.com/b">B</a><a href="javascript:void(0)">skip</a></body></html>`
	links := ExtractLinks(html, "https://ex.com/page")
	want := map[string]bool{"https://ex.com/a": true, "https://other.com/b": true}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d (%v)", len(links), links)
	}
	for _, l := range links {
		if !want[l] {
			t.Fatalf("unexpected link %q", l)
		}
	}
}

func TestToMarkdownConvertsSimpleHTML(t *testing.T) {
	html := `<p>hello world</p>`
	md := ToMarkdown(html, "https://ex.com")
	if md == "" {
		t.Fatal("expected non-empty markdown")
	}
}

func TestExtractTitle(t *testing.T) {
	html := `<html><head><title> Example Title </title></head></html>`
	if got := ExtractTitle(html); got != "Example Title" {
		t.Fatalf("ExtractTitle() = %q", got)
	}
}
