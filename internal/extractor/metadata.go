package extractor

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pageMetadata is everything the metadata pass derives from a document.
type pageMetadata struct {
	title      string
	canonical  string
	pubDate    string
	authors    []string
	section    string
	tags       []string
	language   string
	extracted  map[string]string
	structured map[string]any
}

// parseMetadata walks structured data (JSON-LD) and DOM hints
// (OpenGraph, canonical link, article meta tags) for a page.
func parseMetadata(doc *goquery.Document, pageURL string) *pageMetadata {
	m := &pageMetadata{
		extracted:  make(map[string]string),
		structured: make(map[string]any),
	}
	base, _ := url.Parse(pageURL)

	// JSON-LD blocks first: publishers that ship NewsArticle markup give
	// us everything in one place.
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return
		}
		for _, node := range flattenJSONLD(payload) {
			mergeArticleNode(m, node)
		}
	})

	// OpenGraph and article meta tags.
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		if content == "" {
			return
		}
		prop, _ := s.Attr("property")
		name, _ := s.Attr("name")
		key := strings.ToLower(prop)
		if key == "" {
			key = strings.ToLower(name)
		}
		switch key {
		case "og:title":
			if m.title == "" {
				m.title = content
			}
			m.extracted["og:title"] = content
		case "og:url":
			if m.canonical == "" {
				m.canonical = content
			}
			m.extracted["og:url"] = content
		case "article:published_time":
			if m.pubDate == "" {
				m.pubDate = content
			}
			m.extracted["article:published_time"] = content
		case "author":
			m.authors = appendUnique(m.authors, strings.TrimSpace(content))
		case "article:section":
			if m.section == "" {
				m.section = content
			}
		case "article:tag":
			for _, tag := range strings.Split(content, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					m.tags = appendUnique(m.tags, tag)
				}
			}
		case "og:description", "description":
			if _, ok := m.extracted["description"]; !ok {
				m.extracted["description"] = content
			}
		}
	})

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && href != "" && m.canonical == "" {
		m.canonical = href
	}
	if m.title == "" {
		m.title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if lang, ok := doc.Find("html").Attr("lang"); ok {
		m.language = strings.TrimSpace(lang)
	}

	// Canonical is resolved relative to the source URL.
	if m.canonical != "" && base != nil {
		if ref, err := url.Parse(m.canonical); err == nil {
			m.canonical = base.ResolveReference(ref).String()
		}
	}
	return m
}

// flattenJSONLD yields the object nodes of a JSON-LD payload, unwrapping
// top-level arrays and @graph containers.
func flattenJSONLD(payload any) []map[string]any {
	var nodes []map[string]any
	switch v := payload.(type) {
	case []any:
		for _, item := range v {
			nodes = append(nodes, flattenJSONLD(item)...)
		}
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			for _, item := range graph {
				nodes = append(nodes, flattenJSONLD(item)...)
			}
		}
		nodes = append(nodes, v)
	}
	return nodes
}

// mergeArticleNode folds one JSON-LD node into the metadata, first
// non-empty value winning.
func mergeArticleNode(m *pageMetadata, node map[string]any) {
	typ, _ := node["@type"].(string)
	isArticle := strings.Contains(strings.ToLower(typ), "article")
	if isArticle {
		for k, v := range node {
			if _, exists := m.structured[k]; !exists {
				m.structured[k] = v
			}
		}
	}

	if headline, ok := node["headline"].(string); ok && m.title == "" {
		m.title = headline
	}
	if d, ok := node["datePublished"].(string); ok && m.pubDate == "" {
		m.pubDate = d
	}
	if s, ok := node["articleSection"].(string); ok && m.section == "" {
		m.section = s
	}
	if isArticle {
		if u, ok := node["url"].(string); ok && m.canonical == "" {
			m.canonical = u
		}
		if main, ok := node["mainEntityOfPage"].(map[string]any); ok {
			if id, ok := main["@id"].(string); ok && m.canonical == "" {
				m.canonical = id
			}
		}
	}
	switch kw := node["keywords"].(type) {
	case string:
		for _, tag := range strings.Split(kw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				m.tags = appendUnique(m.tags, tag)
			}
		}
	case []any:
		for _, item := range kw {
			if tag, ok := item.(string); ok && strings.TrimSpace(tag) != "" {
				m.tags = appendUnique(m.tags, strings.TrimSpace(tag))
			}
		}
	}
	switch author := node["author"].(type) {
	case map[string]any:
		if name, ok := author["name"].(string); ok {
			m.authors = appendUnique(m.authors, strings.TrimSpace(name))
		}
	case []any:
		for _, item := range author {
			if obj, ok := item.(map[string]any); ok {
				if name, ok := obj["name"].(string); ok {
					m.authors = appendUnique(m.authors, strings.TrimSpace(name))
				}
			}
		}
	case string:
		m.authors = appendUnique(m.authors, strings.TrimSpace(author))
	}
}

// applyMetadata copies parsed metadata onto an outcome.
func applyMetadata(out *Outcome, m *pageMetadata) {
	out.Title = m.title
	out.CanonicalURL = m.canonical
	out.PublicationDate = m.pubDate
	out.Authors = m.authors
	out.Section = m.section
	out.Tags = m.tags
	out.Language = m.language
	for k, v := range m.extracted {
		out.Metadata[k] = v
	}
	for k, v := range m.structured {
		out.StructuredMetadata[k] = v
	}
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
