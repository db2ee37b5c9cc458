package grl

import (
	"fmt"
	"strconv"
)

// Parse compiles GRL source into a list of Rule IR records. An empty
// rule list is treated as a distinct failure (NO_RULES_FOUND is the
// boundary's mapping of that case; this package just reports it as a
// plain error since it has no error-code concept of its own).
func Parse(src string) ([]Rule, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var rules []Rule
	for p.tok.kind != tokEOF {
		rule, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("grl: no rules found in source")
	}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if seen[r.Name] {
			return nil, fmt.Errorf("grl: duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true
	}
	return rules, nil
}

// ParseGoal parses a single boolean expression in isolation — the
// goal form backward.Query and backward.CanProve consume (§4.7: "a
// single boolean comparison like User.CanVote == true"), reusing the
// same operator-precedence grammar a rule's `when` clause uses.
func ParseGoal(src string) (Expr, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return Expr{}, err
	}
	e, err := p.parseOrExpr()
	if err != nil {
		return Expr{}, err
	}
	if p.tok.kind != tokEOF {
		return Expr{}, p.errorf("unexpected trailing input %q", p.tok.text)
	}
	return e, nil
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("grl: line %d: %s", p.tok.line, fmt.Sprintf(format, args...))
}

func (p *parser) atIdent(text string) bool {
	return p.tok.kind == tokIdent && p.tok.text == text
}

func (p *parser) atPunct(text string) bool {
	return p.tok.kind == tokPunct && p.tok.text == text
}

func (p *parser) expectPunct(text string) error {
	if !p.atPunct(text) {
		return p.errorf("expected %q, got %q", text, p.tok.text)
	}
	return p.advance()
}

func (p *parser) expectIdent(text string) error {
	if !p.atIdent(text) {
		return p.errorf("expected keyword %q, got %q", text, p.tok.text)
	}
	return p.advance()
}

// parseRule parses:
//
//	rule "<name>" [salience N] [no-loop] [lock-on-active] { when <cond> then <actions> }
func (p *parser) parseRule() (Rule, error) {
	var r Rule
	r.AgendaGroup = defaultAgendaGroup

	if err := p.expectIdent("rule"); err != nil {
		return r, err
	}
	if p.tok.kind != tokString {
		return r, p.errorf("expected rule name string, got %q", p.tok.text)
	}
	r.Name = p.tok.text
	if err := p.advance(); err != nil {
		return r, err
	}

	for p.tok.kind == tokIdent && (p.tok.text == "salience" || p.tok.text == "no-loop" || p.tok.text == "lock-on-active" || p.tok.text == "agenda-group") {
		switch p.tok.text {
		case "salience":
			if err := p.advance(); err != nil {
				return r, err
			}
			if p.tok.kind != tokNumber {
				return r, p.errorf("expected integer after 'salience', got %q", p.tok.text)
			}
			n, err := strconv.Atoi(p.tok.text)
			if err != nil {
				return r, p.errorf("invalid salience %q", p.tok.text)
			}
			r.Salience = n
			r.HasSalience = true
			if err := p.advance(); err != nil {
				return r, err
			}
		case "no-loop":
			r.Control.NoLoop = true
			if err := p.advance(); err != nil {
				return r, err
			}
		case "lock-on-active":
			r.Control.LockOnActive = true
			if err := p.advance(); err != nil {
				return r, err
			}
		case "agenda-group":
			if err := p.advance(); err != nil {
				return r, err
			}
			if p.tok.kind != tokString {
				return r, p.errorf("expected string after 'agenda-group', got %q", p.tok.text)
			}
			r.AgendaGroup = p.tok.text
			if err := p.advance(); err != nil {
				return r, err
			}
		}
	}

	if err := p.expectPunct("{"); err != nil {
		return r, err
	}
	if err := p.expectIdent("when"); err != nil {
		return r, err
	}
	cond, err := p.parseOrExpr()
	if err != nil {
		return r, err
	}
	r.Conditions = cond
	if err := p.expectIdent("then"); err != nil {
		return r, err
	}
	actions, err := p.parseActions()
	if err != nil {
		return r, err
	}
	r.Actions = actions
	if err := p.expectPunct("}"); err != nil {
		return r, err
	}
	return r, nil
}

// parseOrExpr := andExpr ('||' andExpr)*
func (p *parser) parseOrExpr() (Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return Expr{}, err
	}
	operands := []Expr{left}
	for p.atPunct("||") {
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		right, err := p.parseAndExpr()
		if err != nil {
			return Expr{}, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return Expr{Kind: ExprOr, Operands: operands}, nil
}

// parseAndExpr := unary ('&&' unary)*
func (p *parser) parseAndExpr() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return Expr{}, err
	}
	operands := []Expr{left}
	for p.atPunct("&&") {
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		operands = append(operands, right)
	}
	if len(operands) == 1 {
		return operands[0], nil
	}
	return Expr{Kind: ExprAnd, Operands: operands}, nil
}

// parseUnary := '!' unary | primary
func (p *parser) parseUnary() (Expr, error) {
	if p.atPunct("!") {
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprNot, Operand: &operand}, nil
	}
	return p.parsePrimary()
}

// parsePrimary := '(' orExpr ')' | comparison
func (p *parser) parsePrimary() (Expr, error) {
	if p.atPunct("(") {
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		e, err := p.parseOrExpr()
		if err != nil {
			return Expr{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return Expr{}, err
		}
		return e, nil
	}
	return p.parseComparison()
}

// parseComparison := operand OP operand | operand (a bare operand,
// e.g. a boolean function call, is also a valid condition by itself)
func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return Expr{}, err
	}
	op, ok := p.compareOp()
	if !ok {
		return left, nil
	}
	if err := p.advance(); err != nil {
		return Expr{}, err
	}
	right, err := p.parseOperand()
	if err != nil {
		return Expr{}, err
	}
	return Expr{Kind: ExprCompare, CompareOp: op, Left: &left, Right: &right}, nil
}

func (p *parser) compareOp() (Op, bool) {
	if p.tok.kind != tokPunct {
		return "", false
	}
	switch p.tok.text {
	case "==":
		return OpEq, true
	case "!=":
		return OpNeq, true
	case "<":
		return OpLt, true
	case "<=":
		return OpLte, true
	case ">":
		return OpGt, true
	case ">=":
		return OpGte, true
	default:
		return "", false
	}
}

// parseOperand parses a fact path, a literal, or a function call —
// the leaves of a condition's comparison per §4.2.
func (p *parser) parseOperand() (Expr, error) {
	switch p.tok.kind {
	case tokString:
		lit := Literal{Kind: "string", Str: p.tok.text}
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprLiteral, Lit: lit}, nil
	case tokNumber:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprLiteral, Lit: numberLiteral(text)}, nil
	case tokIdent:
		name := p.tok.text
		switch name {
		case "true", "false":
			if err := p.advance(); err != nil {
				return Expr{}, err
			}
			return Expr{Kind: ExprLiteral, Lit: Literal{Kind: "boolean", Bool: name == "true"}}, nil
		case "nil", "null":
			if err := p.advance(); err != nil {
				return Expr{}, err
			}
			return Expr{Kind: ExprLiteral, Lit: Literal{Kind: "null"}}, nil
		}
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		if p.atPunct("(") {
			return p.parseCallArgs(name)
		}
		return Expr{Kind: ExprPath, Path: name}, nil
	default:
		return Expr{}, p.errorf("expected operand, got %q", p.tok.text)
	}
}

func numberLiteral(text string) Literal {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Literal{Kind: "integer", Int: i}
	}
	f, _ := strconv.ParseFloat(text, 64)
	return Literal{Kind: "number", Float: f}
}

// parseCallArgs parses the '(' arg (',' arg)* ')' tail of a function
// call whose name has already been consumed.
func (p *parser) parseCallArgs(name string) (Expr, error) {
	if err := p.expectPunct("("); err != nil {
		return Expr{}, err
	}
	var args []Expr
	for !p.atPunct(")") {
		arg, err := p.parseArithExpr()
		if err != nil {
			return Expr{}, err
		}
		args = append(args, arg)
		if p.atPunct(",") {
			if err := p.advance(); err != nil {
				return Expr{}, err
			}
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return Expr{}, err
	}
	return Expr{Kind: ExprCall, CallName: name, CallArgs: args}, nil
}

// parseActions := action (';' action)* ';'?
func (p *parser) parseActions() ([]Action, error) {
	var actions []Action
	for !p.atPunct("}") {
		a, err := p.parseAction()
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
		if p.atPunct(";") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return actions, nil
}

// parseAction parses either `Path = expr` or `handler(args...)`.
func (p *parser) parseAction() (Action, error) {
	if p.tok.kind != tokIdent {
		return Action{}, p.errorf("expected action, got %q", p.tok.text)
	}
	name := p.tok.text
	if err := p.advance(); err != nil {
		return Action{}, err
	}
	if p.atPunct("(") {
		call, err := p.parseCallArgs(name)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: ActionHandlerCall, HandlerName: name, HandlerArgs: call.CallArgs}, nil
	}
	if err := p.expectPunct("="); err != nil {
		return Action{}, err
	}
	value, err := p.parseArithExpr()
	if err != nil {
		return Action{}, err
	}
	return Action{Kind: ActionAssign, TargetPath: name, ValueExpr: value}, nil
}

// parseArithExpr := term (('+'|'-') term)*
func (p *parser) parseArithExpr() (Expr, error) {
	left, err := p.parseArithTerm()
	if err != nil {
		return Expr{}, err
	}
	for p.atPunct("+") || p.atPunct("-") {
		op := ArithOp(p.tok.text)
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		right, err := p.parseArithTerm()
		if err != nil {
			return Expr{}, err
		}
		prev := left
		left = Expr{Kind: ExprBinaryArith, ArithOp: op, ArithLeft: &prev, ArithRight: &right}
	}
	return left, nil
}

// parseArithTerm := factor (('*'|'/') factor)*
func (p *parser) parseArithTerm() (Expr, error) {
	left, err := p.parseArithFactor()
	if err != nil {
		return Expr{}, err
	}
	for p.atPunct("*") || p.atPunct("/") {
		op := ArithOp(p.tok.text)
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		right, err := p.parseArithFactor()
		if err != nil {
			return Expr{}, err
		}
		prev := left
		left = Expr{Kind: ExprBinaryArith, ArithOp: op, ArithLeft: &prev, ArithRight: &right}
	}
	return left, nil
}

// parseArithFactor := '(' arithExpr ')' | operand
func (p *parser) parseArithFactor() (Expr, error) {
	if p.atPunct("(") {
		if err := p.advance(); err != nil {
			return Expr{}, err
		}
		e, err := p.parseArithExpr()
		if err != nil {
			return Expr{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return Expr{}, err
		}
		return e, nil
	}
	return p.parseOperand()
}
