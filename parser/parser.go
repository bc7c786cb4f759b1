// Package parser turns a token stream into the typed ast.Statement
// sequence the compiler consumes, interning every identifier and string
// literal through the agent as it goes -- the compiler and interpreter only
// ever see interned ids, never raw strings.
package parser

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ktstephano/corevm/agent"
	"github.com/ktstephano/corevm/ast"
	"github.com/ktstephano/corevm/lexer"
)

// Parser is a simple recursive-descent parser over a lexer.Lexer's token
// stream. The grammar below never needs more than the current token to
// decide how to proceed, so the parser carries no lookahead buffer.
type Parser struct {
	ag  *agent.Agent
	lex *lexer.Lexer
	cur lexer.Token
}

// New returns a Parser reading from lx, interning identifiers and string
// literals into ag.
func New(ag *agent.Agent, lx *lexer.Lexer) (*Parser, error) {
	p := &Parser{ag: ag, lex: lx}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) expect(k lexer.TokenKind, what string) error {
	if p.cur.Kind != k {
		return fmt.Errorf("parser: expected %s at line %d", what, p.cur.Line)
	}
	return p.advance()
}

// Parse consumes the entire token stream and returns the top-level
// statement sequence. Per-statement parse failures are aggregated with
// go-multierror rather than aborting at the first one, so a source file
// with several bad statements reports them all in one pass.
func Parse(ag *agent.Agent, src string) ([]ast.Statement, error) {
	p, err := New(ag, lexer.New(src))
	if err != nil {
		return nil, err
	}

	var stmts []ast.Statement
	var errs *multierror.Error
	for p.cur.Kind != lexer.EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			errs = multierror.Append(errs, err)
			// best-effort resync: advance past the failing token so later
			// statements still get a chance to parse and report their own
			// errors too.
			if adverr := p.advance(); adverr != nil {
				break
			}
			continue
		}
		stmts = append(stmts, *stmt)
	}

	if errs.ErrorOrNil() != nil {
		return nil, errs.ErrorOrNil()
	}
	return stmts, nil
}

func (p *Parser) parseStatement() (*ast.Statement, error) {
	switch p.cur.Kind {
	case lexer.Let:
		return p.parseLet()
	case lexer.Function:
		return p.parseFunctionDecl()
	case lexer.If:
		return p.parseIf()
	case lexer.While:
		return p.parseWhile()
	case lexer.For:
		return p.parseFor()
	case lexer.Break:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(lexer.Semi, "';'"); err != nil {
			return nil, err
		}
		return &ast.Statement{Kind: ast.Break}, nil
	case lexer.Continue:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(lexer.Semi, "';'"); err != nil {
			return nil, err
		}
		return &ast.Statement{Kind: ast.Continue}, nil
	default:
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.Semi, "';'"); err != nil {
			return nil, err
		}
		return &ast.Statement{Kind: ast.ExprStatement, Expr: expr}, nil
	}
}

func (p *Parser) parseBlock() ([]ast.Statement, error) {
	if err := p.expect(lexer.LBrace, "'{'"); err != nil {
		return nil, err
	}
	var stmts []ast.Statement
	for p.cur.Kind != lexer.RBrace && p.cur.Kind != lexer.EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, *stmt)
	}
	if err := p.expect(lexer.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) parseLet() (*ast.Statement, error) {
	if err := p.advance(); err != nil { // consume 'let'
		return nil, err
	}
	if p.cur.Kind != lexer.Ident {
		return nil, fmt.Errorf("parser: expected identifier after 'let' at line %d", p.cur.Line)
	}
	name := p.ag.InternString(p.cur.Text)
	if err := p.advance(); err != nil {
		return nil, err
	}

	var value *ast.Expression
	if p.cur.Kind == lexer.Eq {
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		value = v
	}

	if err := p.expect(lexer.Semi, "';'"); err != nil {
		return nil, err
	}
	return &ast.Statement{Kind: ast.Let, LetName: name, LetValue: value}, nil
}

func (p *Parser) parseFunctionDecl() (*ast.Statement, error) {
	if err := p.advance(); err != nil { // consume 'function'
		return nil, err
	}
	if p.cur.Kind != lexer.Ident {
		return nil, fmt.Errorf("parser: expected function name at line %d", p.cur.Line)
	}
	name := p.ag.InternString(p.cur.Text)
	if err := p.advance(); err != nil {
		return nil, err
	}

	if err := p.expect(lexer.LParen, "'('"); err != nil {
		return nil, err
	}
	var params []uint64
	for p.cur.Kind != lexer.RParen {
		if p.cur.Kind != lexer.Ident {
			return nil, fmt.Errorf("parser: expected parameter name at line %d", p.cur.Line)
		}
		params = append(params, p.ag.InternString(p.cur.Text))
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == lexer.Comma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.advance(); err != nil { // consume ')'
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ast.Statement{Kind: ast.FunctionDecl, FuncName: name, Parameters: params, Body: body}, nil
}

func (p *Parser) parseIf() (*ast.Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(lexer.LParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.RParen, "')'"); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseBody []ast.Statement
	if p.cur.Kind == lexer.Else {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == lexer.If {
			elseIf, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			elseBody = []ast.Statement{*elseIf}
		} else {
			elseBody, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
	}
	return &ast.Statement{Kind: ast.If, Condition: cond, Then: then, Else: elseBody}, nil
}

func (p *Parser) parseWhile() (*ast.Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(lexer.LParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.RParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Statement{Kind: ast.While, Condition: cond, Then: body}, nil
}

func (p *Parser) parseFor() (*ast.Statement, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(lexer.LParen, "'('"); err != nil {
		return nil, err
	}

	var init *ast.Statement
	if p.cur.Kind != lexer.Semi {
		s, err := p.parseStatement() // consumes trailing ';' itself for let/expr forms
		if err != nil {
			return nil, err
		}
		init = s
	} else {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	var cond *ast.Expression
	if p.cur.Kind != lexer.Semi {
		c, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		cond = c
	}
	if err := p.expect(lexer.Semi, "';'"); err != nil {
		return nil, err
	}

	var incr *ast.Expression
	if p.cur.Kind != lexer.RParen {
		inc, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		incr = inc
	}
	if err := p.expect(lexer.RParen, "')'"); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ast.Statement{
		Kind:         ast.For,
		ForInit:      init,
		ForCond:      cond,
		ForIncrement: incr,
		ForBody:      body,
	}, nil
}

// --- expressions: standard precedence-climbing recursive descent -------
// assignment < logical-or < logical-and < equality < relational < additive
// < multiplicative < exponent < unary < call < primary

func (p *Parser) parseExpression() (*ast.Expression, error) {
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() (*ast.Expression, error) {
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.Eq {
		if left.Kind != ast.Identifier {
			return nil, fmt.Errorf("parser: invalid assignment target at line %d", p.cur.Line)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		value, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return &ast.Expression{Kind: ast.Assignment, Left: left, Right: value}, nil
	}
	return left, nil
}

func (p *Parser) parseLogicalOr() (*ast.Expression, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.PipePipe {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Kind: ast.Logical, LogOp: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseLogicalAnd() (*ast.Expression, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.AmpAmp {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Kind: ast.Logical, LogOp: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (*ast.Expression, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.EqEq || p.cur.Kind == lexer.BangEq {
		op := ast.OpEq
		if p.cur.Kind == lexer.BangEq {
			op = ast.OpNotEq
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Kind: ast.Binary, BinOp: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseRelational() (*ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur.Kind {
		case lexer.Less:
			op = ast.OpLess
		case lexer.LessEq:
			op = ast.OpLessEq
		case lexer.Greater:
			op = ast.OpGreater
		case lexer.GreaterEq:
			op = ast.OpGreaterEq
		default:
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Kind: ast.Binary, BinOp: op, Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() (*ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Plus || p.cur.Kind == lexer.Minus {
		op := ast.OpAdd
		if p.cur.Kind == lexer.Minus {
			op = ast.OpSub
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Kind: ast.Binary, BinOp: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (*ast.Expression, error) {
	left, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.Star || p.cur.Kind == lexer.Slash || p.cur.Kind == lexer.Percent {
		var op ast.BinaryOp
		switch p.cur.Kind {
		case lexer.Star:
			op = ast.OpMul
		case lexer.Slash:
			op = ast.OpDiv
		case lexer.Percent:
			op = ast.OpMod
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		left = &ast.Expression{Kind: ast.Binary, BinOp: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseExponent() (*ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.StarStar {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseExponent() // right-associative
		if err != nil {
			return nil, err
		}
		return &ast.Expression{Kind: ast.Binary, BinOp: ast.OpExp, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseUnary() (*ast.Expression, error) {
	switch p.cur.Kind {
	case lexer.Minus:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Expression{Kind: ast.Unary, UnOp: ast.OpNeg, Operand: operand}, nil
	case lexer.Bang:
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Expression{Kind: ast.Unary, UnOp: ast.OpNot, Operand: operand}, nil
	default:
		return p.parseCall()
	}
}

func (p *Parser) parseCall() (*ast.Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.LParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		var args []*ast.Expression
		for p.cur.Kind != lexer.RParen {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur.Kind == lexer.Comma {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		if err := p.advance(); err != nil { // consume ')'
			return nil, err
		}
		expr = &ast.Expression{Kind: ast.Call, Callee: expr, Arguments: args}
	}
	return expr, nil
}

func (p *Parser) parsePrimary() (*ast.Expression, error) {
	switch p.cur.Kind {
	case lexer.Int:
		v := p.cur.IntVal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Expression{Kind: ast.IntLiteral, IntValue: v}, nil
	case lexer.Double:
		v := p.cur.DblVal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Expression{Kind: ast.DoubleLiteral, DoubleValue: v}, nil
	case lexer.Str:
		id := p.ag.InternString(p.cur.StrVal)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Expression{Kind: ast.StringLiteral, StringID: id}, nil
	case lexer.True:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Expression{Kind: ast.BoolLiteral, BoolValue: true}, nil
	case lexer.False:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Expression{Kind: ast.BoolLiteral, BoolValue: false}, nil
	case lexer.Null:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Expression{Kind: ast.NullLiteral}, nil
	case lexer.Ident:
		id := p.ag.InternString(p.cur.Text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Expression{Kind: ast.Identifier, Name: id}, nil
	case lexer.LParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.RParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, fmt.Errorf("parser: unexpected token at line %d", p.cur.Line)
	}
}
