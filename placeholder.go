package dbmo

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Syntax is the placeholder notation of a backend: a prefix character plus an identifier grammar.
// The zero value is not usable; build one with NewSyntax or use AtSyntax / ColonSyntax.
type Syntax struct {
	Prefix       rune
	IdentPattern string

	ident *regexp.Regexp // nil means DefaultIdentPattern, scanned without regexp
}

var (
	// AtSyntax is the default notation (@name): SQL Server, SQLite, MySQL, PostgreSQL front-end.
	AtSyntax = Syntax{Prefix: '@', IdentPattern: DefaultIdentPattern}

	// ColonSyntax is the Oracle notation (:name).
	ColonSyntax = Syntax{Prefix: ':', IdentPattern: DefaultIdentPattern}
)

// NewSyntax builds a Syntax with a custom identifier grammar.
// An empty pattern selects DefaultIdentPattern.
func NewSyntax(prefix rune, identPattern string) (Syntax, error) {
	if prefix == 0 || prefix == utf8.RuneError {
		return Syntax{}, fmt.Errorf("dbmo: invalid placeholder prefix %q", prefix)
	}
	if identPattern == "" || identPattern == DefaultIdentPattern {
		return Syntax{Prefix: prefix, IdentPattern: DefaultIdentPattern}, nil
	}
	re, err := regexp.Compile(`^(?:` + identPattern + `)`)
	if err != nil {
		return Syntax{}, fmt.Errorf("dbmo: invalid identifier pattern %q: %w", identPattern, err)
	}
	return Syntax{Prefix: prefix, IdentPattern: identPattern, ident: re}, nil
}

// MustSyntax is like NewSyntax but panics on error. Intended for package-level variables.
func MustSyntax(prefix rune, identPattern string) Syntax {
	s, err := NewSyntax(prefix, identPattern)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Syntax) String() string {
	return string(s.Prefix) + s.IdentPattern
}

// Placeholder is one named marker found in SQL text.
type Placeholder struct {
	Name  string // including the prefix, e.g. "@id"
	Start int    // byte offset of the prefix
	End   int    // byte offset just past the identifier
}

// Key returns the placeholder name without its prefix.
func (p Placeholder) Key() string {
	_, w := utf8.DecodeRuneInString(p.Name)
	return p.Name[w:]
}

// ParsePlaceholders scans sql for placeholders written in syn and returns them in order of
// appearance, duplicates included. Quoted literals and comments are skipped, and a doubled
// prefix (@@rowcount, ::int) is never a placeholder.
func ParsePlaceholders(sql string, syn Syntax) []Placeholder {
	if syn.Prefix == 0 {
		syn = AtSyntax
	}
	var out []Placeholder
	prev := rune(0)
	i := 0
	for i < len(sql) {
		r, w := utf8.DecodeRuneInString(sql[i:])
		switch {
		case r == '\'' || r == '"' || r == '`':
			i = skipQuoted(sql, i+w, byte(r))
			prev = r
			continue
		case r == '-' && strings.HasPrefix(sql[i:], "--"):
			i = skipLineComment(sql, i+2)
			prev = '\n'
			continue
		case r == '/' && strings.HasPrefix(sql[i:], "/*"):
			i = skipBlockComment(sql, i+2)
			prev = ' '
			continue
		case r == syn.Prefix:
			next, nw := utf8.DecodeRuneInString(sql[i+w:])
			if prev == syn.Prefix || next == syn.Prefix {
				// doubled prefix: step over the whole run
				i += w
				if next == syn.Prefix {
					i += nw
				}
				prev = syn.Prefix
				continue
			}
			if n := syn.matchIdent(sql[i+w:]); n > 0 {
				out = append(out, Placeholder{Name: sql[i : i+w+n], Start: i, End: i + w + n})
				i += w + n
				prev = 'a'
				continue
			}
		}
		prev = r
		i += w
	}
	return out
}

// matchIdent returns the byte length of the identifier at the start of s, 0 if none.
func (syn Syntax) matchIdent(s string) int {
	if syn.ident != nil {
		loc := syn.ident.FindStringIndex(s)
		if loc == nil {
			return 0
		}
		return loc[1]
	}
	if len(s) == 0 || !isASCIILetter(s[0]) {
		return 0
	}
	n := 1
	for n < len(s) && (isASCIILetter(s[n]) || isASCIIDigit(s[n]) || s[n] == '_') {
		n++
	}
	return n
}

func isASCIILetter(c byte) bool { return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') }
func isASCIIDigit(c byte) bool  { return '0' <= c && c <= '9' }

// skipQuoted returns the offset just past the closing quote; doubled quotes are escapes.
// An unterminated literal consumes the rest of the text.
func skipQuoted(s string, i int, q byte) int {
	for i < len(s) {
		if s[i] == q {
			if i+1 < len(s) && s[i+1] == q {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

func skipLineComment(s string, i int) int {
	if j := strings.IndexByte(s[i:], '\n'); j >= 0 {
		return i + j + 1
	}
	return len(s)
}

func skipBlockComment(s string, i int) int {
	if j := strings.Index(s[i:], "*/"); j >= 0 {
		return i + j + 2
	}
	return len(s)
}

// distinctNames returns placeholder names in first-appearance order without repeats.
func distinctNames(tokens []Placeholder) []string {
	seen := make(map[string]struct{}, len(tokens))
	names := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t.Name]; ok {
			continue
		}
		seen[t.Name] = struct{}{}
		names = append(names, t.Name)
	}
	return names
}

// parseCacheKey identifies a parse result; the same text parses differently per syntax.
type parseCacheKey struct {
	prefix  rune
	pattern string
	sql     string
}

// parseCache memoises ParsePlaceholders per (syntax, sql). Cached slices are shared and must not be modified.
type parseCache struct {
	lru *lru.Cache[parseCacheKey, []Placeholder]
}

func newParseCache(size int) *parseCache {
	if size <= 0 {
		return &parseCache{}
	}
	c, err := lru.New[parseCacheKey, []Placeholder](size)
	if err != nil {
		return &parseCache{}
	}
	return &parseCache{lru: c}
}

func (c *parseCache) parse(sql string, syn Syntax) []Placeholder {
	if c == nil || c.lru == nil {
		return ParsePlaceholders(sql, syn)
	}
	key := parseCacheKey{prefix: syn.Prefix, pattern: syn.IdentPattern, sql: sql}
	if toks, ok := c.lru.Get(key); ok {
		return toks
	}
	toks := ParsePlaceholders(sql, syn)
	c.lru.Add(key, toks)
	return toks
}

// Len reports the number of cached statements.
func (c *parseCache) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
