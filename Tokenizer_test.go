package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizer_Tokenize(t *testing.T) {
	kinds := func(tokens []Token) []TokenKind {
		result := make([]TokenKind, 0, len(tokens))
		for _, token := range tokens {
			result = append(result, token.Kind)
		}
		return result
	}

	t.Run("numbers_and_operators", func(t *testing.T) {
		tokens, err := NewTokenizer("2+3*4").Tokenize()

		assert.NoError(t, err)
		assert.Equal(t, []TokenKind{
			TokenNumber, TokenOperator, TokenNumber, TokenOperator, TokenNumber, TokenEOF,
		}, kinds(tokens))
		assert.Equal(t, "2", tokens[0].Text)
		assert.Equal(t, "*", tokens[3].Text)
	})

	t.Run("decimal_number", func(t *testing.T) {
		tokens, err := NewTokenizer("3.25").Tokenize()

		assert.NoError(t, err)
		assert.Equal(t, TokenNumber, tokens[0].Kind)
		assert.Equal(t, "3.25", tokens[0].Text)
	})

	t.Run("two_char_operators", func(t *testing.T) {
		for _, op := range []string{"<=", ">=", "<>"} {
			tokens, err := NewTokenizer("1" + op + "2").Tokenize()

			assert.NoError(t, err)
			assert.Equal(t, TokenOperator, tokens[1].Kind)
			assert.Equal(t, op, tokens[1].Text)
		}
	})

	t.Run("string_literal", func(t *testing.T) {
		tokens, err := NewTokenizer(`"hello world"`).Tokenize()

		assert.NoError(t, err)
		assert.Equal(t, TokenString, tokens[0].Kind)
		assert.Equal(t, "hello world", tokens[0].Text)
	})

	t.Run("unbalanced_quote", func(t *testing.T) {
		_, err := NewTokenizer(`"broken`).Tokenize()

		assert.Error(t, err)
		assert.ErrorIs(t, err, LexicalError)
	})

	t.Run("cell_reference", func(t *testing.T) {
		tokens, err := NewTokenizer("A1+AA99").Tokenize()

		assert.NoError(t, err)
		assert.Equal(t, TokenCell, tokens[0].Kind)
		assert.Equal(t, "A1", tokens[0].Text)
		assert.Equal(t, TokenCell, tokens[2].Kind)
		assert.Equal(t, "AA99", tokens[2].Text)
	})

	t.Run("absolute_reference", func(t *testing.T) {
		tokens, err := NewTokenizer("$A$1").Tokenize()

		assert.NoError(t, err)
		assert.Equal(t, TokenCell, tokens[0].Kind)
		assert.Equal(t, "$A$1", tokens[0].Text)
	})

	t.Run("range_reference", func(t *testing.T) {
		tokens, err := NewTokenizer("A1:B3").Tokenize()

		assert.NoError(t, err)
		assert.Equal(t, TokenRange, tokens[0].Kind)
		assert.Equal(t, "A1:B3", tokens[0].Text)
		assert.Equal(t, TokenEOF, tokens[1].Kind)
	})

	t.Run("sheet_qualified_reference", func(t *testing.T) {
		tokens, err := NewTokenizer("Sheet2!A1").Tokenize()

		assert.NoError(t, err)
		assert.Equal(t, TokenCell, tokens[0].Kind)
		assert.Equal(t, "Sheet2!A1", tokens[0].Text)
	})

	t.Run("sheet_qualified_range", func(t *testing.T) {
		tokens, err := NewTokenizer("Data!A1:B2").Tokenize()

		assert.NoError(t, err)
		assert.Equal(t, TokenRange, tokens[0].Kind)
		assert.Equal(t, "Data!A1:B2", tokens[0].Text)
	})

	t.Run("identifier_is_uppercased", func(t *testing.T) {
		tokens, err := NewTokenizer("sum(1)").Tokenize()

		assert.NoError(t, err)
		assert.Equal(t, TokenIdentifier, tokens[0].Kind)
		assert.Equal(t, "SUM", tokens[0].Text)
		assert.Equal(t, TokenLeftParen, tokens[1].Kind)
	})

	t.Run("boolean_literals", func(t *testing.T) {
		tokens, err := NewTokenizer("true=FALSE").Tokenize()

		assert.NoError(t, err)
		assert.Equal(t, TokenBoolean, tokens[0].Kind)
		assert.Equal(t, "TRUE", tokens[0].Text)
		assert.Equal(t, TokenBoolean, tokens[2].Kind)
		assert.Equal(t, "FALSE", tokens[2].Text)
	})

	t.Run("percent_token", func(t *testing.T) {
		tokens, err := NewTokenizer("50%").Tokenize()

		assert.NoError(t, err)
		assert.Equal(t, TokenNumber, tokens[0].Kind)
		assert.Equal(t, TokenPercent, tokens[1].Kind)
	})

	t.Run("whitespace_ignored", func(t *testing.T) {
		tokens, err := NewTokenizer("  1 +\t2 ").Tokenize()

		assert.NoError(t, err)
		assert.Len(t, tokens, 4)
	})

	t.Run("unexpected_character", func(t *testing.T) {
		_, err := NewTokenizer("1 # 2").Tokenize()

		assert.Error(t, err)
		assert.ErrorIs(t, err, LexicalError)
	})
}
