package parser

import (
	"strconv"
	"unicode"

	"ctrlscript/internal/errors"
	"ctrlscript/internal/lexer"
	"ctrlscript/internal/value"
)

// Parse tokenizes and parses a single DSL line into a Statement. The
// grammar (precedence, the "join"/"await" action keywords, the
// "name := (...)"/"when cond (...)" forms) is this repo's own design —
// spec.md deliberately leaves the DSL's concrete grammar unspecified
// (§1 Non-goals) and only prescribes the statement *effects* the
// compiler must produce (§4.2).
func Parse(line string) (Statement, error) {
	tokens, err := lexer.NewScanner(line).ScanTokens()
	if err != nil {
		return nil, errors.NewParseError(0, 0, "%s", err)
	}
	p := &parser{tokens: tokens}
	stmt, err := p.statement()
	if err != nil {
		return nil, err
	}
	if !p.isAtEnd() {
		return nil, p.errorf("unexpected trailing input %q", p.peek().Lexeme)
	}
	return stmt, nil
}

type parser struct {
	tokens  []lexer.Token
	current int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.NewParseError(0, p.peek().Column, format, args...)
}

func (p *parser) peek() lexer.Token     { return p.tokens[p.current] }
func (p *parser) previous() lexer.Token { return p.tokens[p.current-1] }
func (p *parser) isAtEnd() bool         { return p.peek().Type == lexer.TokenEOF }

func (p *parser) check(t lexer.TokenType) bool {
	return !p.isAtEnd() && p.peek().Type == t
}

func (p *parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *parser) match(types ...lexer.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *parser) expect(t lexer.TokenType, what string) (lexer.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return lexer.Token{}, p.errorf("expected %s, got %q", what, p.peek().Lexeme)
}

// --- statements ------------------------------------------------------

func (p *parser) statement() (Statement, error) {
	switch {
	case p.match(lexer.TokenBooleanType, lexer.TokenIntegerType, lexer.TokenNumberType, lexer.TokenStringType):
		return p.declStatement()
	case p.match(lexer.TokenWhen):
		return p.ruleStatement()
	case p.check(lexer.TokenIdent):
		return p.identLedStatement()
	default:
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Value: expr}, nil
	}
}

func (p *parser) declStatement() (Statement, error) {
	kind := p.previous().Lexeme
	name, err := p.expect(lexer.TokenIdent, "variable name")
	if err != nil {
		return nil, err
	}
	decl := &Decl{Kind: kind, Name: name.Lexeme}
	if p.match(lexer.TokenAssign) {
		init, err := p.expression()
		if err != nil {
			return nil, err
		}
		decl.Init = init
	}
	return decl, nil
}

func (p *parser) ruleStatement() (Statement, error) {
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	actions, err := p.parenActionList()
	if err != nil {
		return nil, err
	}
	return &RuleDef{Condition: cond, Actions: actions}, nil
}

// identLedStatement disambiguates the five statement forms that begin
// with a bare identifier (§4.2 items 2–6) by looking ahead after
// consuming the name.
func (p *parser) identLedStatement() (Statement, error) {
	name := p.advance().Lexeme

	if p.match(lexer.TokenWalrus) {
		actions, err := p.parenActionList()
		if err != nil {
			return nil, err
		}
		return &RoutineDef{Name: name, Actions: actions}, nil
	}

	if p.match(lexer.TokenDot) {
		member, err := p.expect(lexer.TokenIdent, "member name")
		if err != nil {
			return nil, err
		}
		if p.check(lexer.TokenLParen) {
			args, err := p.argList()
			if err != nil {
				return nil, err
			}
			return &MethodCallStmt{Target: name, Method: member.Lexeme, Args: args}, nil
		}
		if p.match(lexer.TokenAssign) {
			val, err := p.expression()
			if err != nil {
				return nil, err
			}
			return &PropertyAssignStmt{Module: name, Property: member.Lexeme, Value: val}, nil
		}
		// Bare property read, e.g. `m.level` or `m.level + 1`.
		expr, err := p.expressionFrom(&PropertyAccess{Module: name, Property: member.Lexeme})
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Value: expr}, nil
	}

	if p.check(lexer.TokenLParen) {
		args, err := p.argList()
		if err != nil {
			return nil, err
		}
		if len(args) != 0 {
			return nil, p.errorf("routine calls take no arguments")
		}
		return &RoutineCallStmt{Name: name}, nil
	}

	if p.match(lexer.TokenAssign) {
		if ctor, ok, err := p.tryConstructor(); err != nil {
			return nil, err
		} else if ok {
			ctor.Name = name
			return ctor, nil
		}
		val, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &VarAssignStmt{Name: name, Value: val}, nil
	}

	// Bare identifier expression statement, e.g. `x` or `x + 1`.
	expr, err := p.expressionFrom(&Ident{Name: name})
	if err != nil {
		return nil, err
	}
	return &ExprStmt{Value: expr}, nil
}

// tryConstructor recognizes `Type(args…)` or `Expander.Type(args…)`
// where Type starts with an uppercase letter (§4.2 item 2). It does
// not consume input on a non-match.
func (p *parser) tryConstructor() (*Constructor, bool, error) {
	if !p.check(lexer.TokenIdent) {
		return nil, false, nil
	}
	start := p.current
	first := p.advance().Lexeme

	if startsUpper(first) && p.check(lexer.TokenLParen) {
		args, err := p.argList()
		if err != nil {
			return nil, false, err
		}
		return &Constructor{TypeName: first, Args: args}, true, nil
	}
	if p.match(lexer.TokenDot) {
		typeName, err := p.expect(lexer.TokenIdent, "module type name")
		if err != nil || !startsUpper(typeName.Lexeme) {
			p.current = start
			return nil, false, nil
		}
		if !p.check(lexer.TokenLParen) {
			p.current = start
			return nil, false, nil
		}
		args, err := p.argList()
		if err != nil {
			return nil, false, err
		}
		return &Constructor{ExpanderName: first, TypeName: typeName.Lexeme, Args: args}, true, nil
	}
	p.current = start
	return nil, false, nil
}

func startsUpper(s string) bool {
	return len(s) > 0 && unicode.IsUpper(rune(s[0]))
}

func (p *parser) argList() ([]Expr, error) {
	if _, err := p.expect(lexer.TokenLParen, "'('"); err != nil {
		return nil, err
	}
	var args []Expr
	if !p.check(lexer.TokenRParen) {
		for {
			e, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

// --- action lists (routine/rule bodies) -------------------------------

func (p *parser) parenActionList() ([]Action, error) {
	if _, err := p.expect(lexer.TokenLParen, "'('"); err != nil {
		return nil, err
	}
	var actions []Action
	if !p.check(lexer.TokenRParen) {
		for {
			a, err := p.action()
			if err != nil {
				return nil, err
			}
			actions = append(actions, a)
			if !p.match(lexer.TokenSemicolon) {
				break
			}
		}
	}
	if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
		return nil, err
	}
	return actions, nil
}

func (p *parser) action() (Action, error) {
	if p.match(lexer.TokenAwait) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &AwaitConditionAction{Cond: cond}, nil
	}
	if p.match(lexer.TokenJoin) {
		name, err := p.expect(lexer.TokenIdent, "routine name")
		if err != nil {
			return nil, err
		}
		return &AwaitRoutineAction{Target: name.Lexeme}, nil
	}
	name, err := p.expect(lexer.TokenIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if p.match(lexer.TokenDot) {
		member, err := p.expect(lexer.TokenIdent, "member name")
		if err != nil {
			return nil, err
		}
		if p.check(lexer.TokenLParen) {
			args, err := p.argList()
			if err != nil {
				return nil, err
			}
			return &MethodCallAction{Target: name.Lexeme, Method: member.Lexeme, Args: args}, nil
		}
		if _, err := p.expect(lexer.TokenAssign, "'='"); err != nil {
			return nil, err
		}
		val, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &PropertyAssignAction{Module: name.Lexeme, Property: member.Lexeme, Value: val}, nil
	}
	if p.check(lexer.TokenLParen) {
		args, err := p.argList()
		if err != nil {
			return nil, err
		}
		if len(args) != 0 {
			return nil, p.errorf("routine calls take no arguments")
		}
		return &RoutineCallAction{Target: name.Lexeme}, nil
	}
	if _, err := p.expect(lexer.TokenAssign, "'='"); err != nil {
		return nil, err
	}
	val, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &VarAssignAction{Name: name.Lexeme, Value: val}, nil
}

// --- expressions -------------------------------------------------------
//
// Precedence, loosest to tightest: or, and, not, comparison,
// bitwise-or, bitwise-xor, bitwise-and, shift, additive, multiplicative,
// power, unary, primary.

func (p *parser) expression() (Expr, error) { return p.orExpr() }

// expressionFrom continues parsing a binary expression whose leftmost
// primary (an identifier) has already been consumed by statement-form
// lookahead.
func (p *parser) expressionFrom(left Expr) (Expr, error) {
	return p.orExprFrom(left)
}

func (p *parser) orExpr() (Expr, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	return p.orExprFrom(left)
}

func (p *parser) orExprFrom(left Expr) (Expr, error) {
	left, err := p.andExprFrom(left)
	if err != nil {
		return nil, err
	}
	for p.match(lexer.TokenOr) {
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) andExpr() (Expr, error) {
	left, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	return p.andExprFrom(left)
}

// notExpr parses a leading "not", which binds looser than comparison:
// `not x > 3` reads as not (x > 3).
func (p *parser) notExpr() (Expr, error) {
	if p.match(lexer.TokenNot) {
		operand, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "not", Operand: operand}, nil
	}
	return p.comparison()
}

func (p *parser) andExprFrom(left Expr) (Expr, error) {
	left, err := p.comparisonFrom(left)
	if err != nil {
		return nil, err
	}
	for p.match(lexer.TokenAnd) {
		right, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

var comparisonOps = map[lexer.TokenType]string{
	lexer.TokenLT: "<", lexer.TokenLE: "<=", lexer.TokenGT: ">",
	lexer.TokenGE: ">=", lexer.TokenEqEq: "==", lexer.TokenNotEq: "!=",
}

func (p *parser) comparison() (Expr, error) {
	left, err := p.bitwiseOr()
	if err != nil {
		return nil, err
	}
	return p.comparisonFrom(left)
}

func (p *parser) comparisonFrom(left Expr) (Expr, error) {
	left, err := p.bitwiseOrFrom(left)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := comparisonOps[p.peek().Type]
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := p.bitwiseOr()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) bitwiseOr() (Expr, error) {
	left, err := p.bitwiseXor()
	if err != nil {
		return nil, err
	}
	return p.bitwiseOrFrom(left)
}

func (p *parser) bitwiseOrFrom(left Expr) (Expr, error) {
	left, err := p.bitwiseXorFrom(left)
	if err != nil {
		return nil, err
	}
	for p.match(lexer.TokenPipe) {
		right, err := p.bitwiseXor()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "|", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) bitwiseXor() (Expr, error) {
	left, err := p.bitwiseAnd()
	if err != nil {
		return nil, err
	}
	return p.bitwiseXorFrom(left)
}

func (p *parser) bitwiseXorFrom(left Expr) (Expr, error) {
	left, err := p.bitwiseAndFrom(left)
	if err != nil {
		return nil, err
	}
	for p.match(lexer.TokenCaret) {
		right, err := p.bitwiseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "^", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) bitwiseAnd() (Expr, error) {
	left, err := p.shift()
	if err != nil {
		return nil, err
	}
	return p.bitwiseAndFrom(left)
}

func (p *parser) bitwiseAndFrom(left Expr) (Expr, error) {
	left, err := p.shiftFrom(left)
	if err != nil {
		return nil, err
	}
	for p.match(lexer.TokenAmp) {
		right, err := p.shift()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "&", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) shift() (Expr, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	return p.shiftFrom(left)
}

func (p *parser) shiftFrom(left Expr) (Expr, error) {
	left, err := p.additiveFrom(left)
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenShl) || p.check(lexer.TokenShr) {
		op := "<<"
		if p.peek().Type == lexer.TokenShr {
			op = ">>"
		}
		p.advance()
		right, err := p.additive()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) additive() (Expr, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	return p.additiveFrom(left)
}

func (p *parser) additiveFrom(left Expr) (Expr, error) {
	left, err := p.multiplicativeFrom(left)
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) {
		op := p.advance().Lexeme
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

var multOps = map[lexer.TokenType]string{
	lexer.TokenStar: "*", lexer.TokenSlash: "/", lexer.TokenSlash2: "//", lexer.TokenPercent: "mod",
}

func (p *parser) multiplicative() (Expr, error) {
	left, err := p.power()
	if err != nil {
		return nil, err
	}
	return p.multiplicativeFrom(left)
}

func (p *parser) multiplicativeFrom(left Expr) (Expr, error) {
	left, err := p.powerFrom(left)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := multOps[p.peek().Type]
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := p.power()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) power() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	return p.powerFrom(left)
}

func (p *parser) powerFrom(left Expr) (Expr, error) {
	if p.match(lexer.TokenStarStar) {
		right, err := p.power() // right-associative
		if err != nil {
			return nil, err
		}
		return &Binary{Op: "**", Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	if p.match(lexer.TokenMinus) {
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", Operand: operand}, nil
	}
	if p.match(lexer.TokenNot) {
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "not", Operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Expr, error) {
	switch {
	case p.match(lexer.TokenTrue):
		return &Literal{Value: value.Bool(true)}, nil
	case p.match(lexer.TokenFalse):
		return &Literal{Value: value.Bool(false)}, nil
	case p.match(lexer.TokenIntLit):
		n, err := strconv.ParseInt(p.previous().Lexeme, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer literal %q", p.previous().Lexeme)
		}
		return &Literal{Value: value.Int(n)}, nil
	case p.match(lexer.TokenNumLit):
		n, err := strconv.ParseFloat(p.previous().Lexeme, 64)
		if err != nil {
			return nil, p.errorf("invalid number literal %q", p.previous().Lexeme)
		}
		return &Literal{Value: value.Num(n)}, nil
	case p.match(lexer.TokenStringLit):
		return &Literal{Value: value.Str(p.previous().Lexeme)}, nil
	case p.match(lexer.TokenLParen):
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case p.match(lexer.TokenIdent):
		name := p.previous().Lexeme
		return p.identPrimary(name)
	default:
		return nil, p.errorf("unexpected token %q", p.peek().Lexeme)
	}
}

func (p *parser) identPrimary(name string) (Expr, error) {
	if p.match(lexer.TokenDot) {
		member, err := p.expect(lexer.TokenIdent, "property name")
		if err != nil {
			return nil, err
		}
		return &PropertyAccess{Module: name, Property: member.Lexeme}, nil
	}
	return &Ident{Name: name}, nil
}
