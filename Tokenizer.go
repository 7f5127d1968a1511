package main

import (
	"errors"
	"fmt"
	"strings"
)

// TokenKind classifies formula tokens.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenNumber
	TokenString
	TokenBoolean
	TokenIdentifier
	TokenCell
	TokenRange
	TokenOperator
	TokenPercent
	TokenComma
	TokenLeftParen
	TokenRightParen
)

// Token is one lexical unit of a formula. Immutable once produced.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

var LexicalError = errors.New("lexical error")

// Tokenizer converts formula text (leading `=` already stripped by the
// caller) into a flat token sequence. Sheet-qualified references keep their
// qualifier inside the reference token text (`Sheet2!A1`), identifiers are
// uppercased so `sum(...)` matches `SUM(...)`.
type Tokenizer struct {
	input []rune
	pos   int
}

func NewTokenizer(input string) *Tokenizer {
	return &Tokenizer{input: []rune(input)}
}

func (t *Tokenizer) Tokenize() ([]Token, error) {
	tokens := make([]Token, 0, len(t.input)/2+1)

	for {
		t.skipWhitespace()
		if t.pos >= len(t.input) {
			break
		}

		token, err := t.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	tokens = append(tokens, Token{Kind: TokenEOF, Pos: t.pos})
	return tokens, nil
}

func (t *Tokenizer) next() (Token, error) {
	start := t.pos
	ch := t.current()

	switch {
	case ch == '"':
		return t.scanString()
	case isDigit(ch) || (ch == '.' && isDigit(t.peek(1))):
		return t.scanNumber(), nil
	case isLetter(ch) || ch == '$' || ch == '_':
		return t.scanWord()
	}

	switch ch {
	case '(':
		t.pos++
		return Token{Kind: TokenLeftParen, Text: "(", Pos: start}, nil
	case ')':
		t.pos++
		return Token{Kind: TokenRightParen, Text: ")", Pos: start}, nil
	case ',':
		t.pos++
		return Token{Kind: TokenComma, Text: ",", Pos: start}, nil
	case '%':
		t.pos++
		return Token{Kind: TokenPercent, Text: "%", Pos: start}, nil
	case '+', '-', '*', '/', '^', '&', '=':
		t.pos++
		return Token{Kind: TokenOperator, Text: string(ch), Pos: start}, nil
	case '<':
		t.pos++
		if t.current() == '>' {
			t.pos++
			return Token{Kind: TokenOperator, Text: "<>", Pos: start}, nil
		}
		if t.current() == '=' {
			t.pos++
			return Token{Kind: TokenOperator, Text: "<=", Pos: start}, nil
		}
		return Token{Kind: TokenOperator, Text: "<", Pos: start}, nil
	case '>':
		t.pos++
		if t.current() == '=' {
			t.pos++
			return Token{Kind: TokenOperator, Text: ">=", Pos: start}, nil
		}
		return Token{Kind: TokenOperator, Text: ">", Pos: start}, nil
	}

	return Token{}, fmt.Errorf("%w: unexpected character %q at position %d", LexicalError, string(ch), start)
}

func (t *Tokenizer) scanNumber() Token {
	start := t.pos

	for isDigit(t.current()) {
		t.pos++
	}
	if t.current() == '.' && isDigit(t.peek(1)) {
		t.pos++
		for isDigit(t.current()) {
			t.pos++
		}
	}

	return Token{Kind: TokenNumber, Text: string(t.input[start:t.pos]), Pos: start}
}

func (t *Tokenizer) scanString() (Token, error) {
	start := t.pos
	t.pos++ // opening quote

	textStart := t.pos
	for t.pos < len(t.input) && t.current() != '"' {
		t.pos++
	}

	if t.pos >= len(t.input) {
		return Token{}, fmt.Errorf("%w: unbalanced string quote at position %d", LexicalError, start)
	}

	text := string(t.input[textStart:t.pos])
	t.pos++ // closing quote
	return Token{Kind: TokenString, Text: text, Pos: start}, nil
}

// scanWord reads a run of reference characters and classifies it as a
// boolean literal, cell reference, range reference, sheet-qualified
// reference or bare identifier.
func (t *Tokenizer) scanWord() (Token, error) {
	start := t.pos
	word := t.readWord()

	upper := strings.ToUpper(word)
	if upper == "TRUE" || upper == "FALSE" {
		return Token{Kind: TokenBoolean, Text: upper, Pos: start}, nil
	}

	// sheet qualifier: Identifier! before a cell or range reference
	if t.current() == '!' && isIdentifier(word) {
		t.pos++
		return t.scanQualifiedReference(word, start)
	}

	if isCellText(word) {
		if t.current() == ':' {
			if ref, ok := t.tryScanRangeTail(word, start); ok {
				return ref, nil
			}
		}
		return Token{Kind: TokenCell, Text: word, Pos: start}, nil
	}

	if isIdentifier(word) {
		return Token{Kind: TokenIdentifier, Text: upper, Pos: start}, nil
	}

	return Token{}, fmt.Errorf("%w: malformed reference %q at position %d", LexicalError, word, start)
}

func (t *Tokenizer) scanQualifiedReference(sheet string, start int) (Token, error) {
	first := t.readWord()
	if !isCellText(first) {
		return Token{}, fmt.Errorf("%w: invalid reference after sheet qualifier %q at position %d", LexicalError, sheet, start)
	}

	if t.current() == ':' {
		if ref, ok := t.tryScanRangeTail(first, start); ok {
			return Token{Kind: TokenRange, Text: sheet + "!" + ref.Text, Pos: start}, nil
		}
	}

	return Token{Kind: TokenCell, Text: sheet + "!" + first, Pos: start}, nil
}

// tryScanRangeTail attempts to extend a scanned cell reference into a range.
// On failure the position is restored and the plain cell token stands.
func (t *Tokenizer) tryScanRangeTail(first string, start int) (Token, bool) {
	saved := t.pos
	t.pos++ // consume ':'

	second := t.readWord()
	if !isCellText(second) {
		t.pos = saved
		return Token{}, false
	}

	return Token{Kind: TokenRange, Text: first + ":" + second, Pos: start}, true
}

func (t *Tokenizer) readWord() string {
	start := t.pos
	for t.pos < len(t.input) {
		ch := t.current()
		if isLetter(ch) || isDigit(ch) || ch == '$' || ch == '_' {
			t.pos++
		} else {
			break
		}
	}
	return string(t.input[start:t.pos])
}

func (t *Tokenizer) skipWhitespace() {
	for t.pos < len(t.input) {
		switch t.current() {
		case ' ', '\t', '\n', '\r':
			t.pos++
		default:
			return
		}
	}
}

func (t *Tokenizer) current() rune {
	if t.pos >= len(t.input) {
		return 0
	}
	return t.input[t.pos]
}

func (t *Tokenizer) peek(offset int) rune {
	if t.pos+offset >= len(t.input) {
		return 0
	}
	return t.input[t.pos+offset]
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// isCellText matches the reference shape [$]?[A-Z]+[$]?[0-9]+.
func isCellText(s string) bool {
	i := 0
	if i < len(s) && s[i] == '$' {
		i++
	}

	letters := 0
	for i < len(s) && isLetter(rune(s[i])) {
		i++
		letters++
	}
	if letters == 0 {
		return false
	}

	if i < len(s) && s[i] == '$' {
		i++
	}

	digits := 0
	for i < len(s) && isDigit(rune(s[i])) {
		i++
		digits++
	}

	return digits > 0 && i == len(s)
}

// isIdentifier matches bare function names: a letter or underscore followed
// by letters, digits or underscores.
func isIdentifier(s string) bool {
	if len(s) == 0 {
		return false
	}
	if !isLetter(rune(s[0])) && s[0] != '_' {
		return false
	}
	for _, ch := range s[1:] {
		if !isLetter(ch) && !isDigit(ch) && ch != '_' {
			return false
		}
	}
	return true
}
