// Package htmlconvert derives markdown and outbound links from an
// already-delivered HTML payload. Built around the
// live-page scraper (internal/scraper/scraper.go), repurposed from
// "fetch and convert a live page" to "convert a page the webhook already
// delivered" — this bridge never fetches pages itself.
package htmlconvert

import (
	"net/url"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// ToMarkdown converts htmlStr to Markdown using baseURL only to resolve the
// converter's domain context. Falls back to the document's plain text if
// the CommonMark converter errors.
func ToMarkdown(htmlStr, baseURL string) string {
	if strings.TrimSpace(htmlStr) == "" {
		return ""
	}

	host := baseURL
	if u, err := url.Parse(baseURL); err == nil {
		host = u.Hostname()
	}

	converter := htmlmd.NewConverter(host, true, nil)
	markdown, err := converter.ConvertString(htmlStr)
	if err == nil && strings.TrimSpace(markdown) != "" {
		return markdown
	}

	doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if parseErr != nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

// ExtractLinks parses htmlStr and returns absolute http(s) links with
// fragments stripped, resolved against baseURL.
func ExtractLinks(htmlStr, baseURL string) []string {
	if strings.TrimSpace(htmlStr) == "" {
		return nil
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil && !linkURL.IsAbs() {
			linkURL = base.ResolveReference(linkURL)
		}
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			return
		}
		linkURL.Fragment = ""
		final := linkURL.String()
		if _, exists := seen[final]; exists {
			return
		}
		seen[final] = struct{}{}
		links = append(links, final)
	})

	return links
}

// ExtractTitle returns the document's <title> text, or "" if absent.
func ExtractTitle(htmlStr string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
