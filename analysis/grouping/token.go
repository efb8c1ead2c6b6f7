// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package grouping

import (
	"strings"
	"unicode"
)

// tokenize splits a normalized Java statement into tokens: string and
// character literals, numbers, identifiers, and operators.  Whitespace is
// dropped.
func tokenize(content string) []string {
	var tokens []string
	runes := []rune(content)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"' || c == '\'':
			tokens = append(tokens, collectQuoted(runes, &i, c))
		case isDigit(c):
			tokens = append(tokens, collectNumber(runes, &i))
		case isIdentStart(c):
			tokens = append(tokens, collectIdent(runes, &i))
		default:
			if op := collectOperator(runes, &i); op != "" {
				tokens = append(tokens, op)
				continue
			}
			tokens = append(tokens, string(c))
			i++
		}
	}
	return tokens
}

func collectQuoted(runes []rune, i *int, quote rune) string {
	var sb strings.Builder
	sb.WriteRune(runes[*i])
	*i++
	for *i < len(runes) {
		c := runes[*i]
		sb.WriteRune(c)
		*i++
		if c == quote {
			break
		}
		if c == '\\' && *i < len(runes) {
			sb.WriteRune(runes[*i])
			*i++
		}
	}
	return sb.String()
}

func collectNumber(runes []rune, i *int) string {
	start := *i
	for *i < len(runes) {
		c := runes[*i]
		if isDigit(c) || c == '.' || c == '_' || c == 'x' || c == 'X' ||
			(c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') ||
			c == 'l' || c == 'L' {
			*i++
		} else {
			break
		}
	}
	return string(runes[start:*i])
}

func collectIdent(runes []rune, i *int) string {
	start := *i
	for *i < len(runes) && isIdentPart(runes[*i]) {
		*i++
	}
	return string(runes[start:*i])
}

var operators3 = []string{">>>", "<<=", ">>=", "..."}

var operators2 = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true, "&&": true, "||": true,
	"<<": true, ">>": true, "+=": true, "-=": true, "*=": true, "/=": true,
	"%=": true, "&=": true, "|=": true, "^=": true, "++": true, "--": true,
	"->": true, "::": true,
}

func collectOperator(runes []rune, i *int) string {
	if *i+2 < len(runes) {
		op := string(runes[*i : *i+3])
		for _, o := range operators3 {
			if op == o {
				*i += 3
				return op
			}
		}
	}
	if *i+1 < len(runes) {
		op := string(runes[*i : *i+2])
		if operators2[op] {
			*i += 2
			return op
		}
	}
	return ""
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_' || c == '$'
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || unicode.IsDigit(c)
}

// isLiteral returns true iff the token is a string, character, or numeric
// literal.
func isLiteral(token string) bool {
	if token == "" {
		return false
	}
	switch token[0] {
	case '"', '\'':
		return true
	}
	return isDigit(rune(token[0])) || token == "true" || token == "false" || token == "null"
}
