package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sarathfrancis90/grid-space-sub002/contracts"
)

// AstNode is a closed tagged union over the six formula node kinds. Every
// operation over the tree (evaluation, reference extraction) dispatches with
// an exhaustive type switch, so adding a node kind is a compile-visible
// change everywhere it matters.
type AstNode interface {
	astNode()
}

type LiteralNode struct {
	Value contracts.FormulaValue
}

type CellRefNode struct {
	Sheet       string // empty for same-sheet references
	Col         int
	Row         int
	ColAbsolute bool
	RowAbsolute bool
}

type RangeRefNode struct {
	Sheet string
	Start CellRefNode
	End   CellRefNode
}

type UnaryOpNode struct {
	Op      string // "-", "+" or postfix "%"
	Operand AstNode
}

type BinaryOpNode struct {
	Op    string
	Left  AstNode
	Right AstNode
}

type FunctionCallNode struct {
	Name string
	Args []AstNode
}

func (*LiteralNode) astNode()      {}
func (*CellRefNode) astNode()      {}
func (*RangeRefNode) astNode()     {}
func (*UnaryOpNode) astNode()      {}
func (*BinaryOpNode) astNode()     {}
func (*FunctionCallNode) astNode() {}

var ParseError = errors.New("parse error")

// binaryPrecedence drives precedence climbing for the left-associative
// operators, low to high: comparison, concatenation, additive,
// multiplicative. Unary minus, right-associative `^` and postfix `%` bind
// tighter and are handled in dedicated levels below.
var binaryPrecedence = map[string]int{
	"=": 1, "<>": 1, "<": 1, ">": 1, "<=": 1, ">=": 1,
	"&": 2,
	"+": 3, "-": 3,
	"*": 4, "/": 4,
}

// Parser consumes the full token stream and produces one AST root.
type Parser struct {
	tokens []Token
	pos    int
}

// ParseFormula parses formula text (leading `=` already stripped) into an
// AST. Lexical failures surface through the same parse error taxonomy.
func ParseFormula(input string) (AstNode, error) {
	tokens, err := NewTokenizer(input).Tokenize()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ParseError, err)
	}

	parser := &Parser{tokens: tokens}
	node, err := parser.parseExpression(1)
	if err != nil {
		return nil, err
	}

	if parser.current().Kind != TokenEOF {
		return nil, fmt.Errorf("%w: unexpected token %q after expression", ParseError, parser.current().Text)
	}

	return node, nil
}

func (p *Parser) parseExpression(minPrecedence int) (AstNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		token := p.current()
		if token.Kind != TokenOperator {
			return left, nil
		}

		precedence, ok := binaryPrecedence[token.Text]
		if !ok || precedence < minPrecedence {
			return left, nil
		}

		p.pos++
		right, err := p.parseExpression(precedence + 1)
		if err != nil {
			return nil, err
		}

		left = &BinaryOpNode{Op: token.Text, Left: left, Right: right}
	}
}

// parseUnary handles prefix minus/plus, which bind tighter than `*` and `/`
// but looser than `^`: -2^2 parses as -(2^2).
func (p *Parser) parseUnary() (AstNode, error) {
	token := p.current()
	if token.Kind == TokenOperator && (token.Text == "-" || token.Text == "+") {
		p.pos++
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOpNode{Op: token.Text, Operand: operand}, nil
	}

	return p.parsePower()
}

// parsePower handles right-associative exponentiation: 2^3^2 is 2^(3^2).
func (p *Parser) parsePower() (AstNode, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}

	token := p.current()
	if token.Kind == TokenOperator && token.Text == "^" {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &BinaryOpNode{Op: "^", Left: left, Right: right}, nil
	}

	return left, nil
}

// parsePostfix handles the percent operator: 50% is 50/100.
func (p *Parser) parsePostfix() (AstNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.current().Kind == TokenPercent {
		p.pos++
		node = &UnaryOpNode{Op: "%", Operand: node}
	}

	return node, nil
}

func (p *Parser) parsePrimary() (AstNode, error) {
	token := p.current()

	switch token.Kind {
	case TokenNumber:
		number, err := strconv.ParseFloat(token.Text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed number %q", ParseError, token.Text)
		}
		p.pos++
		return &LiteralNode{Value: number}, nil

	case TokenString:
		p.pos++
		return &LiteralNode{Value: token.Text}, nil

	case TokenBoolean:
		p.pos++
		return &LiteralNode{Value: token.Text == "TRUE"}, nil

	case TokenCell:
		p.pos++
		return p.makeCellRef(token)

	case TokenRange:
		p.pos++
		return p.makeRangeRef(token)

	case TokenIdentifier:
		return p.parseFunctionCall()

	case TokenLeftParen:
		p.pos++
		node, err := p.parseExpression(1)
		if err != nil {
			return nil, err
		}
		if p.current().Kind != TokenRightParen {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ParseError)
		}
		p.pos++
		return node, nil

	case TokenEOF:
		return nil, fmt.Errorf("%w: unexpected end of formula", ParseError)
	}

	return nil, fmt.Errorf("%w: unexpected token %q", ParseError, token.Text)
}

func (p *Parser) parseFunctionCall() (AstNode, error) {
	name := p.current().Text
	p.pos++

	if p.current().Kind != TokenLeftParen {
		return nil, fmt.Errorf("%w: expected ( after %s", ParseError, name)
	}
	p.pos++

	args := make([]AstNode, 0, 4)

	// zero-argument calls are legal
	if p.current().Kind == TokenRightParen {
		p.pos++
		return &FunctionCallNode{Name: name, Args: args}, nil
	}

	for {
		arg, err := p.parseExpression(1)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		switch p.current().Kind {
		case TokenComma:
			p.pos++
		case TokenRightParen:
			p.pos++
			return &FunctionCallNode{Name: name, Args: args}, nil
		default:
			return nil, fmt.Errorf("%w: expected , or ) in %s argument list", ParseError, name)
		}
	}
}

func (p *Parser) makeCellRef(token Token) (AstNode, error) {
	node, err := parseCellRefText(token.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ParseError, err)
	}
	return node, nil
}

func (p *Parser) makeRangeRef(token Token) (AstNode, error) {
	sheet, rest := splitSheetQualifier(token.Text)

	colon := -1
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			colon = i
			break
		}
	}
	if colon < 0 {
		return nil, fmt.Errorf("%w: malformed range %q", ParseError, token.Text)
	}

	start, err := parseCellRefText(rest[:colon])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ParseError, err)
	}
	end, err := parseCellRefText(rest[colon+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ParseError, err)
	}

	return &RangeRefNode{Sheet: sheet, Start: *start, End: *end}, nil
}

func parseCellRefText(text string) (*CellRefNode, error) {
	sheet, rest := splitSheetQualifier(text)

	col, row, colAbsolute, rowAbsolute, err := parseA1(rest)
	if err != nil {
		return nil, err
	}

	return &CellRefNode{
		Sheet:       sheet,
		Col:         col,
		Row:         row,
		ColAbsolute: colAbsolute,
		RowAbsolute: rowAbsolute,
	}, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokenEOF}
	}
	return p.tokens[p.pos]
}
