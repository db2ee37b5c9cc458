// Package grl parses GRL (Generic Rule Language) source into the rule
// IR described in spec §3/§4.2: name, salience, control flags,
// conditions, and actions.
//
// The teacher's core.Rule (core/rules.go) is a JSON-first rule format
// with a pattern-matching When clause and a Javascript Condition/
// Action — no text grammar at all. This package's lexer/parser is new
// code, grounded in the spec's own grammar in §4.2 and in the GRL
// fuzz corpus under original_source/fuzz/fuzz_targets/fuzz_grl_parser.rs,
// which confirms the `rule "<name>" { when ... then ...; }` surface
// syntax. The IR *types* keep the teacher's field-naming conventions
// (Id/Name, doc comments on every exported field) and its
// CleanX/UnmarshalJSON idiom is mirrored by this package's two-stage
// parse-then-validate shape (see parser.go's Parse, which rejects
// duplicate rule names after parsing every rule).
package grl

// Op is a comparison operator in a condition.
type Op string

const (
	OpEq  Op = "=="
	OpNeq Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// ExprKind tags the variant of an Expr node.
type ExprKind int

const (
	ExprPath ExprKind = iota
	ExprLiteral
	ExprCall
	ExprCompare
	ExprAnd
	ExprOr
	ExprNot
	ExprBinaryArith
)

// ArithOp is a '+ - * /' operator used in action-side expressions.
type ArithOp string

const (
	ArithAdd ArithOp = "+"
	ArithSub ArithOp = "-"
	ArithMul ArithOp = "*"
	ArithDiv ArithOp = "/"
)

// Literal holds a parsed literal's value, tagged by Kind.
type Literal struct {
	Kind  string // "string", "integer", "number", "boolean", "null"
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// Expr is a node in a condition or action-expression tree. Exactly
// one of the variant-specific fields is meaningful, selected by Kind.
type Expr struct {
	Kind ExprKind

	// ExprPath
	Path string

	// ExprLiteral
	Lit Literal

	// ExprCall
	CallName string
	CallArgs []Expr

	// ExprCompare
	CompareOp Op
	Left      *Expr
	Right     *Expr

	// ExprAnd / ExprOr: Operands holds two or more conjuncts/disjuncts
	Operands []Expr

	// ExprNot
	Operand *Expr

	// ExprBinaryArith
	ArithOp    ArithOp
	ArithLeft  *Expr
	ArithRight *Expr
}

// ActionKind distinguishes the two forms of action named in §3.
type ActionKind int

const (
	ActionAssign ActionKind = iota
	ActionHandlerCall
)

// Action is one entry in a rule's `then` clause.
type Action struct {
	Kind ActionKind

	// ActionAssign
	TargetPath string
	ValueExpr  Expr

	// ActionHandlerCall
	HandlerName string
	HandlerArgs []Expr
}

// ControlFlags are the per-rule boolean attributes named in §3.
type ControlFlags struct {
	NoLoop       bool
	LockOnActive bool
}

// Rule is one parsed GRL rule: the text-language counterpart of
// spec §3's Rule IR record.
type Rule struct {
	Name         string
	Salience     int
	HasSalience  bool
	Control      ControlFlags
	AgendaGroup  string
	Conditions   Expr
	Actions      []Action
}

const defaultAgendaGroup = "default"
