package query

import (
	"strconv"
	"strings"
)

// Filters are structured constraints lifted out of the query text.
type Filters struct {
	Tags  []string // every tag must be present on a hit
	Types []string // accepted file extensions, without the dot
	Limit int      // result cap, 0 = caller default
}

// Refine reduces a free-text query to its core terms. Inline key:value
// tokens (tag:, type:, limit:) are lifted into Filters; intent words and
// filler are dropped. Refinement is advisory: when nothing survives, the
// stripped raw text is returned unchanged so the search still runs.
func Refine(raw string) (string, Filters) {
	var f Filters
	var textTokens []string

	for _, tok := range strings.Fields(raw) {
		key, val, ok := strings.Cut(tok, ":")
		if ok && val != "" {
			switch strings.ToLower(key) {
			case "tag":
				f.Tags = append(f.Tags, splitList(val)...)
				continue
			case "type":
				for _, t := range splitList(val) {
					f.Types = append(f.Types, strings.TrimPrefix(t, "."))
				}
				continue
			case "limit":
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					f.Limit = n
				}
				continue
			}
		}
		textTokens = append(textTokens, tok)
	}

	stripped := strings.Join(textTokens, " ")

	var core []string
	for _, tok := range textTokens {
		w := strings.ToLower(strings.Trim(tok, `"'.,!?()`))
		if w == "" {
			continue
		}
		if _, skip := intentWords[w]; skip {
			continue
		}
		core = append(core, w)
	}
	if len(core) == 0 {
		return stripped, f
	}
	return strings.Join(core, " "), f
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// intentWords are question/filler words that carry no search signal.
var intentWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "in": {}, "on": {}, "to": {},
	"for": {}, "with": {}, "and": {}, "or": {}, "is": {}, "are": {},
	"find": {}, "search": {}, "show": {}, "give": {}, "get": {}, "list": {},
	"me": {}, "my": {}, "all": {}, "any": {}, "some": {},
	"file": {}, "files": {}, "document": {}, "documents": {}, "doc": {}, "docs": {},
	"about": {}, "containing": {}, "contains": {}, "mentioning": {},
	"that": {}, "which": {}, "what": {}, "where": {}, "related": {},
	"please": {}, "want": {}, "need": {}, "looking": {},
}
