package parser

import (
	"strconv"
	"strings"

	"github.com/omniql-engine/hfql/engine/lexer"
	"github.com/omniql-engine/hfql/engine/models"
	"github.com/omniql-engine/hfql/mapping"
)

// parseSelectList parses: item [, item]*
func (p *Parser) parseSelectList() error {
	for {
		clause, err := p.parseSelectClause()
		if err != nil {
			return err
		}
		p.stmt.SelectClauses = append(p.stmt.SelectClauses, clause)

		tok, err := p.peek(lexer.ModePath)
		if err != nil {
			return err
		}
		if !tok.IsPunctuation(",") {
			return nil
		}
		p.next(lexer.ModePath) // consume ,
	}
}

// parseSelectClause parses: [Alias :] expr [AS Alias]
func (p *Parser) parseSelectClause() (models.SelectClause, error) {
	var clause models.SelectClause

	// Alias prefix needs two tokens of lookahead: Name ':'
	first, err := p.peek(lexer.ModePath)
	if err != nil {
		return clause, err
	}
	if first.Type == lexer.TOKEN_IDENTIFIER || first.Type == lexer.TOKEN_KEYWORD {
		sep, err := p.peekSecond(lexer.ModePath)
		if err != nil {
			return clause, err
		}
		if sep.IsPunctuation(":") {
			p.next(lexer.ModePath) // alias
			p.next(lexer.ModePath) // :
			clause.Alias = first.Value
		}
	}

	text, err := p.parseExpression(stopAtListEnd)
	if err != nil {
		return clause, err
	}

	tok, err := p.peek(lexer.ModePath)
	if err != nil {
		return clause, err
	}
	if tok.IsKeyword("AS") {
		if clause.Alias != "" {
			return clause, lexer.UnexpectedToken(tok)
		}
		p.next(lexer.ModePath) // consume AS
		alias, err := p.next(lexer.ModePath)
		if err != nil {
			return clause, err
		}
		if alias.IsEOF() {
			return clause, lexer.EndOfStream()
		}
		if alias.Type != lexer.TOKEN_IDENTIFIER {
			return clause, lexer.UnexpectedToken(alias)
		}
		clause.Alias = alias.Value
	}

	if strings.EqualFold(text, CountAlias) {
		clause.Clause = "*"
		clause.Operator = models.SelectOperatorCount
		if clause.Alias == "" {
			clause.Alias = CountAlias
		}
		return clause, nil
	}

	clause.Clause = text
	clause.Operator = models.SelectOperatorSelect
	if clause.Alias == "" {
		clause.Alias = text
	}
	return clause, nil
}

// parseFromTarget parses the resource type after FROM
func (p *Parser) parseFromTarget() error {
	tok, err := p.next(lexer.ModePath)
	if err != nil {
		return err
	}
	if tok.IsEOF() {
		return lexer.EndOfStreamDescribed("resource type")
	}
	if tok.Type != lexer.TOKEN_IDENTIFIER {
		return lexer.UnexpectedToken(tok)
	}
	if !p.resourceTypes.IsResourceType(tok.Value) {
		var known []string
		if named, ok := p.resourceTypes.(interface{ Names() []string }); ok {
			known = named.Names()
		}
		return lexer.InvalidFrom(tok, known)
	}
	p.stmt.FromResourceName = tok.Value
	return nil
}

// parseFilters parses WHERE and HAVING sections, each at most once, in any order
func (p *Parser) parseFilters() error {
	for {
		tok, err := p.peek(lexer.ModePath)
		if err != nil {
			return err
		}

		switch {
		case tok.IsKeyword("WHERE"):
			if p.seenWhere {
				return lexer.UnexpectedToken(tok)
			}
			p.seenWhere = true
			p.next(lexer.ModePath) // consume WHERE
			clauses, err := p.parseConditions(p.parseWhereTerm)
			if err != nil {
				return err
			}
			p.stmt.WhereClauses = clauses
		case tok.IsKeyword("HAVING"):
			if p.seenHaving {
				return lexer.UnexpectedToken(tok)
			}
			p.seenHaving = true
			p.next(lexer.ModePath) // consume HAVING
			clauses, err := p.parseConditions(p.parseHavingTerm)
			if err != nil {
				return err
			}
			p.stmt.HavingClauses = clauses
		default:
			return nil
		}
	}
}

// parseConditions parses: term [AND term]*. An empty list is allowed.
func (p *Parser) parseConditions(term func() (models.WhereClause, error)) ([]models.WhereClause, error) {
	clauses := []models.WhereClause{}

	tok, err := p.peek(lexer.ModePath)
	if err != nil {
		return nil, err
	}
	if tok.IsEOF() || isSection(tok) {
		return clauses, nil
	}

	for {
		clause, err := term()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)

		tok, err := p.peek(lexer.ModePath)
		if err != nil {
			return nil, err
		}
		if !tok.IsKeyword("AND") {
			return clauses, nil
		}
		p.next(lexer.ModePath) // consume AND
	}
}

// parseWhereTerm parses a search parameter term. The left side is one token
// lexed in search parameter mode.
func (p *Parser) parseWhereTerm() (models.WhereClause, error) {
	tok, err := p.next(lexer.ModeSearchParam)
	if err != nil {
		return models.WhereClause{}, err
	}
	if tok.IsEOF() {
		return models.WhereClause{}, lexer.EndOfStream()
	}
	if tok.Type != lexer.TOKEN_IDENTIFIER {
		return models.WhereClause{}, lexer.UnexpectedToken(tok)
	}
	return p.parseCondition(tok.Value)
}

// parseHavingTerm parses a path expression term. A comparison operator that
// is not followed by a quoted literal belongs to the expression.
func (p *Parser) parseHavingTerm() (models.WhereClause, error) {
	left, err := p.parseExpression(p.stopAtCondition)
	if err != nil {
		return models.WhereClause{}, err
	}
	return p.parseCondition(left)
}

// parseCondition parses the operator and right side of a term
func (p *Parser) parseCondition(left string) (models.WhereClause, error) {
	clause := models.WhereClause{Left: left}

	op, err := p.peek(lexer.ModePath)
	if err != nil {
		return clause, err
	}

	switch {
	case op.IsOperator("="):
		p.next(lexer.ModePath) // consume =
		literal, err := p.expectLiteral()
		if err != nil {
			return clause, err
		}
		clause.Operator = models.OperatorEquals
		clause.Right = []string{literal}

	case op.IsKeyword("IN"):
		p.next(lexer.ModePath) // consume IN
		literals, err := p.parseInList(op)
		if err != nil {
			return clause, err
		}
		clause.Operator = models.OperatorIn
		clause.Right = literals

	case op.Type == lexer.TOKEN_OPERATOR && mapping.IsComparisonOperator(op.Value):
		p.next(lexer.ModePath) // consume operator
		literal, err := p.expectLiteral()
		if err != nil {
			return clause, err
		}
		name, _ := mapping.GetConditionOperator(op.Value)
		clause.Operator = models.WhereClauseOperator(name)
		clause.Right = []string{literal}

	default:
		clause.Operator = models.OperatorUnaryBoolean
		clause.Right = []string{}
	}

	return clause, nil
}

// parseInList parses: ( 'a' | 'b' | ... ). The IN token is reported when '(' is missing.
func (p *Parser) parseInList(in lexer.Token) ([]string, error) {
	open, err := p.next(lexer.ModePath)
	if err != nil {
		return nil, err
	}
	if open.IsEOF() {
		return nil, lexer.EndOfStream()
	}
	if !open.IsPunctuation("(") {
		return nil, lexer.UnexpectedTokenExpected(in, "(")
	}

	var literals []string
	for {
		tok, err := p.next(lexer.ModePath)
		if err != nil {
			return nil, err
		}
		if tok.IsEOF() {
			return nil, lexer.EndOfStream()
		}
		if tok.Type != lexer.TOKEN_STRING {
			return nil, lexer.UnexpectedTokenDescribed(tok, "quoted string")
		}
		literals = append(literals, tok.Value)

		sep, err := p.next(lexer.ModePath)
		if err != nil {
			return nil, err
		}
		switch {
		case sep.IsEOF():
			return nil, lexer.EndOfStream()
		case sep.IsPunctuation("|"):
			continue
		case sep.IsPunctuation(")"):
			return literals, nil
		default:
			return nil, lexer.UnexpectedToken(sep)
		}
	}
}

// parseGroupBy parses: GROUP BY expr [, expr]*
func (p *Parser) parseGroupBy() error {
	p.next(lexer.ModePath) // consume GROUP
	if err := p.expectKeyword(mapping.ClauseFollower("GROUP")); err != nil {
		return err
	}

	for {
		text, err := p.parseExpression(stopAtListEnd)
		if err != nil {
			return err
		}
		p.stmt.GroupByClauses = append(p.stmt.GroupByClauses, text)

		tok, err := p.peek(lexer.ModePath)
		if err != nil {
			return err
		}
		if !tok.IsPunctuation(",") {
			return nil
		}
		p.next(lexer.ModePath) // consume ,
	}
}

// parseOrderBy parses: ORDER BY expr [ASC|DESC] [, expr [ASC|DESC]]*
func (p *Parser) parseOrderBy() error {
	p.next(lexer.ModePath) // consume ORDER
	if err := p.expectKeyword(mapping.ClauseFollower("ORDER")); err != nil {
		return err
	}

	for {
		text, err := p.parseExpression(stopAtListEnd)
		if err != nil {
			return err
		}
		clause := models.OrderByClause{Clause: text, Ascending: true}

		tok, err := p.peek(lexer.ModePath)
		if err != nil {
			return err
		}
		switch {
		case tok.IsKeyword("ASC"):
			p.next(lexer.ModePath)
		case tok.IsKeyword("DESC"):
			p.next(lexer.ModePath)
			clause.Ascending = false
		}
		p.stmt.OrderByClauses = append(p.stmt.OrderByClauses, clause)

		if tok, err = p.peek(lexer.ModePath); err != nil {
			return err
		}
		if !tok.IsPunctuation(",") {
			return nil
		}
		p.next(lexer.ModePath) // consume ,
	}
}

// parseLimit parses: LIMIT n
func (p *Parser) parseLimit() error {
	p.next(lexer.ModePath) // consume LIMIT

	tok, err := p.next(lexer.ModePath)
	if err != nil {
		return err
	}
	if tok.IsEOF() {
		return lexer.EndOfStreamDescribed("integer value")
	}
	if tok.Type != lexer.TOKEN_NUMBER {
		return lexer.UnexpectedTokenDescribed(tok, "integer value")
	}
	limit, err := strconv.Atoi(tok.Value)
	if err != nil {
		return lexer.UnexpectedTokenDescribed(tok, "integer value")
	}
	p.stmt.Limit = &limit
	return nil
}
