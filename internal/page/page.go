// Package page encodes wiki pages: YAML front matter followed by a Markdown
// body.
//
// A document looks like:
//
//	---
//	title: Hello World
//	private: true
//	---
//	# Body
//
// Parse keeps the verbatim header so that serializing an unmodified page
// reproduces the input byte for byte.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

var (
	// ErrFormat is returned for a document without a well formed front matter.
	ErrFormat = errors.New("malformed page")
	// ErrEncoding is returned for a document that is not valid UTF-8.
	ErrEncoding = errors.New("page is not valid UTF-8")
)

// Delimiter opens and closes the front matter.
const Delimiter = "---"

// Metadata is the front matter of a page.
//
// Extra holds every field other than title and private, preserved as decoded.
type Metadata struct {
	Title   string
	Private bool
	Extra   map[string]any
}

// RawPage is a decoded page document.
type RawPage struct {
	Meta    Metadata
	Content string

	// header is the front matter exactly as parsed, delimiters included.
	header string
	// canon is the canonical encoding of Meta when header was captured.
	canon string
}

// PageEntry is one page of a directory listing.
type PageEntry struct {
	Meta Metadata `json:"meta"`
	Link string   `json:"link"`
}

// New returns a page that has never been parsed.
func New(meta Metadata, content string) *RawPage {
	return &RawPage{Meta: meta, Content: content}
}

// Decode parses raw blob content.
func Decode(data []byte) (*RawPage, error) {
	if !utf8.Valid(data) {
		return nil, ErrEncoding
	}
	return Parse(string(data))
}

// Parse parses a document.
//
// The first line must be the delimiter; the next delimiter line closes the
// front matter. Everything after the closing line is the body.
func Parse(text string) (*RawPage, error) {
	line, rest, ok := cutLine(text)
	if line != Delimiter || !ok {
		return nil, fmt.Errorf("%w: missing opening %q", ErrFormat, Delimiter)
	}
	start := len(text) - len(rest)
	off := start
	for {
		if off >= len(text) {
			return nil, fmt.Errorf("%w: missing closing %q", ErrFormat, Delimiter)
		}
		line, rest, _ = cutLine(text[off:])
		if line == Delimiter {
			break
		}
		off = len(text) - len(rest)
	}
	yamlEnd := off
	end := len(text) - len(rest)

	meta, err := decodeMeta([]byte(text[start:yamlEnd]))
	if err != nil {
		return nil, err
	}
	canon, err := encodeMeta(&meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return &RawPage{Meta: meta, Content: text[end:], header: text[:end], canon: canon}, nil
}

// Serialize encodes p as a document.
//
// When the metadata has not changed since Parse, the original header is
// reused verbatim.
func Serialize(p *RawPage) (string, error) {
	canon, err := encodeMeta(&p.Meta)
	if err != nil {
		return "", err
	}
	if p.header != "" && canon == p.canon {
		return p.header + p.Content, nil
	}
	return Delimiter + "\n" + canon + Delimiter + "\n" + p.Content, nil
}

// cutLine returns the first line of s without its terminator, tolerating a
// trailing carriage return, and the remainder after the terminator.
func cutLine(s string) (line, rest string, found bool) {
	line, rest, found = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest, found
}

func decodeMeta(data []byte) (Metadata, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Metadata{}, fmt.Errorf("%w: front matter: %w", ErrFormat, err)
	}
	return fromMap(raw)
}

// fromMap splits a decoded front matter into Metadata.
func fromMap(raw map[string]any) (Metadata, error) {
	var m Metadata
	title, ok := raw["title"].(string)
	if !ok {
		return m, fmt.Errorf("%w: title must be a string", ErrFormat)
	}
	m.Title = title
	if v, ok := raw["private"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return m, fmt.Errorf("%w: private must be a boolean", ErrFormat)
		}
		m.Private = b
	}
	for k, v := range raw {
		if k == "title" || k == "private" {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any, len(raw))
		}
		m.Extra[k] = v
	}
	return m, nil
}

// encodeMeta returns the canonical YAML of m: title, private when set, then
// the extra fields sorted by key.
func encodeMeta(m *Metadata) (string, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	add := func(k string, v any) error {
		var val yaml.Node
		if err := val.Encode(v); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, &val)
		return nil
	}
	if err := add("title", m.Title); err != nil {
		return "", err
	}
	if m.Private {
		if err := add("private", true); err != nil {
			return "", err
		}
	}
	for _, k := range slices.Sorted(maps.Keys(m.Extra)) {
		if k == "title" || k == "private" {
			continue
		}
		if err := add(k, m.Extra[k]); err != nil {
			return "", err
		}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
