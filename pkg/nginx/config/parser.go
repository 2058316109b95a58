package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
)

// Directive is a single nginx configuration directive. Block is nil for
// simple directives and non-nil (possibly empty) for block directives.
type Directive struct {
	Name  string
	Args  []string
	Block []Directive
}

type tokenType int

const (
	tokenWord tokenType = iota
	tokenOpenBrace
	tokenCloseBrace
	tokenSemicolon
)

type token struct {
	typ  tokenType
	text string
}

func tokenize(data string) ([]token, error) {
	var tokens []token
	i := 0
	n := len(data)
	for i < n {
		ch := data[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			i++
		case ch == '#':
			for i < n && data[i] != '\n' {
				i++
			}
		case ch == '{':
			tokens = append(tokens, token{typ: tokenOpenBrace})
			i++
		case ch == '}':
			tokens = append(tokens, token{typ: tokenCloseBrace})
			i++
		case ch == ';':
			tokens = append(tokens, token{typ: tokenSemicolon})
			i++
		case ch == '"' || ch == '\'':
			quote := ch
			i++
			var sb strings.Builder
			for i < n && data[i] != quote {
				if data[i] == '\\' && i+1 < n {
					i++
				}
				sb.WriteByte(data[i])
				i++
			}
			if i >= n {
				return nil, fmt.Errorf("unterminated quoted string")
			}
			i++ // closing quote
			tokens = append(tokens, token{typ: tokenWord, text: sb.String()})
		default:
			start := i
			for i < n && !strings.ContainsRune(" \t\r\n;{}#", rune(data[i])) {
				i++
			}
			tokens = append(tokens, token{typ: tokenWord, text: data[start:i]})
		}
	}
	return tokens, nil
}

// parseTokens consumes tokens until the end of the current block
func parseTokens(tokens []token, pos int, depth int) ([]Directive, int, error) {
	var directives []Directive
	var words []string

	for pos < len(tokens) {
		tok := tokens[pos]
		switch tok.typ {
		case tokenWord:
			words = append(words, tok.text)
			pos++
		case tokenSemicolon:
			if len(words) > 0 {
				directives = append(directives, Directive{Name: words[0], Args: words[1:]})
				words = nil
			}
			pos++
		case tokenOpenBrace:
			if len(words) == 0 {
				return nil, pos, fmt.Errorf("unexpected '{'")
			}
			block, next, err := parseTokens(tokens, pos+1, depth+1)
			if err != nil {
				return nil, pos, err
			}
			directive := Directive{Name: words[0], Args: words[1:], Block: block}
			if directive.Block == nil {
				directive.Block = []Directive{}
			}
			directives = append(directives, directive)
			words = nil
			pos = next
		case tokenCloseBrace:
			if depth == 0 {
				return nil, pos, fmt.Errorf("unexpected '}'")
			}
			if len(words) > 0 {
				return nil, pos, fmt.Errorf("unexpected '}' after %q", words[0])
			}
			return directives, pos + 1, nil
		}
	}

	if depth > 0 {
		return nil, pos, fmt.Errorf("unexpected end of file inside block")
	}
	if len(words) > 0 {
		return nil, pos, fmt.Errorf("unexpected end of file after %q", words[0])
	}
	return directives, pos, nil
}

type parser struct {
	prefix string
	seen   map[string]bool
	files  []string
}

func (p *parser) parseFile(path string) ([]Directive, error) {
	path = filepath.Clean(path)
	if p.seen[path] {
		return nil, nil
	}
	p.seen[path] = true
	p.files = append(p.files, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("failed to read config file", err).WithContext("path", path)
	}

	tokens, err := tokenize(string(data))
	if err != nil {
		return nil, errors.NewConfigParseError("failed to tokenize config file", err).WithContext("path", path)
	}

	directives, _, err := parseTokens(tokens, 0, 0)
	if err != nil {
		return nil, errors.NewConfigParseError("failed to parse config file", err).WithContext("path", path)
	}

	return p.expandIncludes(directives)
}

// expandIncludes splices included files in place of their include directive
func (p *parser) expandIncludes(directives []Directive) ([]Directive, error) {
	var result []Directive
	for _, directive := range directives {
		if directive.Block == nil && directive.Name == "include" && len(directive.Args) == 1 {
			pattern := directive.Args[0]
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(p.prefix, pattern)
			}
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, errors.NewConfigParseError("bad include pattern", err).WithContext("pattern", pattern)
			}
			sort.Strings(matches)
			for _, match := range matches {
				included, err := p.parseFile(match)
				if err != nil {
					return nil, err
				}
				result = append(result, included...)
			}
			continue
		}
		if directive.Block != nil {
			block, err := p.expandIncludes(directive.Block)
			if err != nil {
				return nil, err
			}
			directive.Block = block
		}
		result = append(result, directive)
	}
	return result, nil
}
