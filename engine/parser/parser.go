package parser

import (
	"github.com/omniql-engine/hfql/engine/lexer"
	"github.com/omniql-engine/hfql/engine/models"
	"github.com/omniql-engine/hfql/mapping"
)

// CountAlias is the default alias of a Count(*) select clause
const CountAlias = "Count(*)"

// Parser implements a recursive descent parser for HFQL.
// A Parser is used for one statement; it is not safe for concurrent use.
type Parser struct {
	lex           *lexer.Lexer
	resourceTypes mapping.ResourceTypes
	stmt          *models.Statement
	seenWhere     bool
	seenHaving    bool
}

// Option configures a Parser
type Option func(*Parser)

// WithResourceTypes validates FROM targets against types instead of the FHIR R4 list
func WithResourceTypes(types mapping.ResourceTypes) Option {
	return func(p *Parser) {
		p.resourceTypes = types
	}
}

// Parse is the package-level entry point for parsing HFQL
func Parse(input string, opts ...Option) (*models.Statement, error) {
	return New(input, opts...).Parse()
}

// New creates a new parser from input string
func New(input string, opts ...Option) *Parser {
	p := &Parser{
		lex:           lexer.New(input),
		resourceTypes: mapping.DefaultResourceTypes,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses the input and returns the statement. No partial statement is
// returned on error.
func (p *Parser) Parse() (*models.Statement, error) {
	p.stmt = &models.Statement{}

	first, err := p.peek(lexer.ModePath)
	if err != nil {
		return nil, err
	}

	// Dispatch on the first keyword: exactly two clause orders are legal
	switch {
	case first.IsEOF():
		return nil, lexer.EndOfStreamExpected("FROM")
	case first.IsKeyword("SELECT"):
		err = p.parseSelectFirst()
	case first.IsKeyword("FROM"):
		err = p.parseFromFirst()
	default:
		return nil, lexer.UnexpectedTokenExpected(first, "SELECT")
	}
	if err != nil {
		return nil, err
	}

	// Ensure all tokens were consumed
	tok, err := p.next(lexer.ModePath)
	if err != nil {
		return nil, err
	}
	if !tok.IsEOF() {
		return nil, lexer.UnexpectedToken(tok)
	}

	return p.stmt, nil
}

// parseSelectFirst parses: SELECT list FROM type {WHERE|HAVING} tail
func (p *Parser) parseSelectFirst() error {
	if _, err := p.next(lexer.ModePath); err != nil { // consume SELECT
		return err
	}
	if err := p.parseSelectList(); err != nil {
		return err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return err
	}
	if err := p.parseFromTarget(); err != nil {
		return err
	}
	if err := p.parseFilters(); err != nil {
		return err
	}
	return p.parseTail()
}

// parseFromFirst parses: FROM type {WHERE|HAVING} SELECT list tail
func (p *Parser) parseFromFirst() error {
	if _, err := p.next(lexer.ModePath); err != nil { // consume FROM
		return err
	}
	if err := p.parseFromTarget(); err != nil {
		return err
	}
	if err := p.parseFilters(); err != nil {
		return err
	}
	if err := p.expectKeyword("SELECT"); err != nil {
		return err
	}
	if err := p.parseSelectList(); err != nil {
		return err
	}
	return p.parseTail()
}

// parseTail parses the optional trailing sections in their fixed order:
// [GROUP BY] [ORDER BY] [LIMIT n]
func (p *Parser) parseTail() error {
	tok, err := p.peek(lexer.ModePath)
	if err != nil {
		return err
	}
	if tok.IsKeyword("GROUP") {
		if err := p.parseGroupBy(); err != nil {
			return err
		}
		if tok, err = p.peek(lexer.ModePath); err != nil {
			return err
		}
	}
	if tok.IsKeyword("ORDER") {
		if err := p.parseOrderBy(); err != nil {
			return err
		}
		if tok, err = p.peek(lexer.ModePath); err != nil {
			return err
		}
	}
	if tok.IsKeyword("LIMIT") {
		return p.parseLimit()
	}
	return nil
}

// =============================================================================
// TOKEN NAVIGATION
// =============================================================================

// next consumes the next token
func (p *Parser) next(mode lexer.Mode) (lexer.Token, error) {
	return p.lex.Next(mode)
}

// peek looks ahead without advancing
func (p *Parser) peek(mode lexer.Mode) (lexer.Token, error) {
	return p.lex.Peek(mode)
}

// peekSecond looks two tokens ahead without advancing
func (p *Parser) peekSecond(mode lexer.Mode) (lexer.Token, error) {
	mark := p.lex.Mark()
	defer p.lex.Reset(mark)
	if _, err := p.lex.Next(mode); err != nil {
		return lexer.Token{}, err
	}
	return p.lex.Next(mode)
}

// expectKeyword consumes a keyword, otherwise error
func (p *Parser) expectKeyword(word string) error {
	tok, err := p.next(lexer.ModePath)
	if err != nil {
		return err
	}
	if tok.IsEOF() {
		return lexer.EndOfStreamExpected(word)
	}
	if !tok.IsKeyword(word) {
		return lexer.UnexpectedTokenExpected(tok, word)
	}
	return nil
}

// expectLiteral consumes and returns a quoted literal
func (p *Parser) expectLiteral() (string, error) {
	tok, err := p.next(lexer.ModePath)
	if err != nil {
		return "", err
	}
	if tok.IsEOF() {
		return "", lexer.EndOfStreamDescribed("quoted string")
	}
	if tok.Type != lexer.TOKEN_STRING {
		return "", lexer.UnexpectedTokenDescribed(tok, "quoted string")
	}
	return tok.Value, nil
}

// =============================================================================
// CLAUSE DETECTION (using mapping as SSOT)
// =============================================================================

// isSection checks if token starts a section (SELECT, FROM, WHERE, ...)
func isSection(tok lexer.Token) bool {
	return tok.Type == lexer.TOKEN_KEYWORD && mapping.IsClause(tok.Value)
}
