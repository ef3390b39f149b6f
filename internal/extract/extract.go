// Package extract turns raw file bytes into indexable text, dispatched by
// file extension. Markdown gets frontmatter/heading-aware handling; other
// supported formats are treated as plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ErrUnsupported is returned for formats the extractor cannot handle.
// Callers skip such files for the current cycle; the error is never fatal.
var ErrUnsupported = errors.New("extract: unsupported format")

// Doc is the extracted representation of one file.
type Doc struct {
	Title string
	Text  string
}

// Parse extracts a Doc from raw file bytes. The path is used only for
// format dispatch and title fallback.
func Parse(path string, data []byte) (*Doc, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupported, filepath.Base(path))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return parseMarkdown(path, data), nil
	case ".txt", ".text", ".log", ".rst":
		return parsePlain(path, data), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

func parsePlain(path string, data []byte) *Doc {
	return &Doc{
		Title: titleFromPath(path),
		Text:  string(data),
	}
}

// parseMarkdown strips YAML frontmatter and derives the title from the
// frontmatter "title" field, the first H1 heading, or the file stem.
func parseMarkdown(path string, data []byte) *Doc {
	fm, body := splitFrontmatter(data)

	title := ""
	if fm != nil {
		if t, ok := fm["title"].(string); ok {
			title = strings.TrimSpace(t)
		}
	}
	if title == "" {
		title = firstHeading(body)
	}
	if title == "" {
		title = titleFromPath(path)
	}
	return &Doc{Title: title, Text: body}
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// delimiters) from the body. Without frontmatter, or with YAML that fails
// to parse, the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
