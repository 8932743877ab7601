package wrangle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"datawhisperer/domain/dataset"
)

// The expression language covers row predicates and column formulas:
// comparisons, and/or/not, arithmetic with ** for powers, numeric and
// string literals, and column references (backtick-quoted when the
// name has spaces). It deliberately has no function calls or indexing,
// so an expression can only read columns.

type valueKind int

const (
	kindMissing valueKind = iota
	kindNumber
	kindString
	kindBool
)

type value struct {
	kind valueKind
	num  float64
	str  string
	b    bool
}

func numberValue(n float64) value { return value{kind: kindNumber, num: n} }
func stringValue(s string) value  { return value{kind: kindString, str: s} }
func boolValue(b bool) value      { return value{kind: kindBool, b: b} }

var missingValue = value{kind: kindMissing}

// truthy converts a value to a predicate outcome. Missing is false,
// matching the rule that comparisons against missing cells never
// select a row.
func (v value) truthy() bool {
	switch v.kind {
	case kindBool:
		return v.b
	case kindNumber:
		return v.num != 0
	case kindString:
		return v.str != ""
	default:
		return false
	}
}

// rowReader resolves a column reference for the current row.
type rowReader func(name string) (value, error)

type exprNode interface {
	eval(row rowReader) (value, error)
}

// columns reports every column name an AST references.
func collectColumns(node exprNode, into map[string]bool) {
	switch n := node.(type) {
	case *identNode:
		into[n.name] = true
	case *unaryNode:
		collectColumns(n.operand, into)
	case *binaryNode:
		collectColumns(n.left, into)
		collectColumns(n.right, into)
	}
}

type literalNode struct {
	val value
}

func (n *literalNode) eval(rowReader) (value, error) { return n.val, nil }

type identNode struct {
	name string
}

func (n *identNode) eval(row rowReader) (value, error) { return row(n.name) }

type unaryNode struct {
	op      string
	operand exprNode
}

func (n *unaryNode) eval(row rowReader) (value, error) {
	v, err := n.operand.eval(row)
	if err != nil {
		return missingValue, err
	}
	switch n.op {
	case "-":
		if v.kind == kindMissing {
			return missingValue, nil
		}
		if v.kind != kindNumber {
			return missingValue, fmt.Errorf("unary minus needs a number")
		}
		return numberValue(-v.num), nil
	case "not":
		return boolValue(!v.truthy()), nil
	}
	return missingValue, fmt.Errorf("unknown unary operator %q", n.op)
}

type binaryNode struct {
	op          string
	left, right exprNode
}

func (n *binaryNode) eval(row rowReader) (value, error) {
	// Logical operators short-circuit.
	switch n.op {
	case "and":
		l, err := n.left.eval(row)
		if err != nil {
			return missingValue, err
		}
		if !l.truthy() {
			return boolValue(false), nil
		}
		r, err := n.right.eval(row)
		if err != nil {
			return missingValue, err
		}
		return boolValue(r.truthy()), nil
	case "or":
		l, err := n.left.eval(row)
		if err != nil {
			return missingValue, err
		}
		if l.truthy() {
			return boolValue(true), nil
		}
		r, err := n.right.eval(row)
		if err != nil {
			return missingValue, err
		}
		return boolValue(r.truthy()), nil
	}

	l, err := n.left.eval(row)
	if err != nil {
		return missingValue, err
	}
	r, err := n.right.eval(row)
	if err != nil {
		return missingValue, err
	}

	switch n.op {
	case "==", "!=", "<", "<=", ">", ">=":
		return compare(n.op, l, r)
	case "+", "-", "*", "/", "%", "**":
		return arithmetic(n.op, l, r)
	}
	return missingValue, fmt.Errorf("unknown operator %q", n.op)
}

// compare evaluates a comparison. Any missing operand yields false.
func compare(op string, l, r value) (value, error) {
	if l.kind == kindMissing || r.kind == kindMissing {
		return boolValue(false), nil
	}

	if op == "==" || op == "!=" {
		eq, err := equalValues(l, r)
		if err != nil {
			return missingValue, err
		}
		if op == "!=" {
			eq = !eq
		}
		return boolValue(eq), nil
	}

	// Ordering requires matching operand kinds.
	switch {
	case l.kind == kindNumber && r.kind == kindNumber:
		return boolValue(orderedCompare(op, l.num, r.num)), nil
	case l.kind == kindString && r.kind == kindString:
		return boolValue(orderedCompare(op, strings.Compare(l.str, r.str), 0)), nil
	default:
		return missingValue, fmt.Errorf("cannot order %s against %s", kindName(l.kind), kindName(r.kind))
	}
}

func equalValues(l, r value) (bool, error) {
	if l.kind != r.kind {
		return false, nil
	}
	switch l.kind {
	case kindNumber:
		return l.num == r.num, nil
	case kindString:
		return l.str == r.str, nil
	case kindBool:
		return l.b == r.b, nil
	}
	return false, nil
}

func orderedCompare[T int | float64](op string, l, r T) bool {
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	}
	return false
}

func arithmetic(op string, l, r value) (value, error) {
	if l.kind == kindMissing || r.kind == kindMissing {
		return missingValue, nil
	}
	if op == "+" && l.kind == kindString && r.kind == kindString {
		return stringValue(l.str + r.str), nil
	}
	if l.kind != kindNumber || r.kind != kindNumber {
		return missingValue, fmt.Errorf("operator %q needs numeric operands, got %s and %s",
			op, kindName(l.kind), kindName(r.kind))
	}
	switch op {
	case "+":
		return numberValue(l.num + r.num), nil
	case "-":
		return numberValue(l.num - r.num), nil
	case "*":
		return numberValue(l.num * r.num), nil
	case "/":
		if r.num == 0 {
			return missingValue, nil
		}
		return numberValue(l.num / r.num), nil
	case "%":
		if r.num == 0 {
			return missingValue, nil
		}
		return numberValue(math.Mod(l.num, r.num)), nil
	case "**":
		return numberValue(math.Pow(l.num, r.num)), nil
	}
	return missingValue, fmt.Errorf("unknown operator %q", op)
}

func kindName(k valueKind) string {
	switch k {
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	case kindBool:
		return "bool"
	default:
		return "missing"
	}
}

// cellValue converts a stored cell into an expression value.
func cellValue(col dataset.Column, i int) value {
	v := col.Values[i]
	if !v.Valid {
		return missingValue
	}
	switch col.DType {
	case dataset.DTypeInt, dataset.DTypeFloat:
		return numberValue(v.Num)
	case dataset.DTypeBool:
		return boolValue(v.Bool)
	case dataset.DTypeDatetime:
		return numberValue(float64(v.Time.UnixNano()) / 1e9)
	default:
		return stringValue(v.Str)
	}
}

// ---- tokenizer ----

type tokenType int

const (
	tokEOF tokenType = iota
	tokNumber
	tokString
	tokIdent
	tokOperator
	tokLParen
	tokRParen
)

type token struct {
	typ tokenType
	lit string
	num float64
	pos int
}

func tokenize(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{typ: tokLParen, pos: i})
			i++
		case c == ')':
			toks = append(toks, token{typ: tokRParen, pos: i})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(input) && input[j] != quote {
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("unterminated string at position %d", i)
			}
			toks = append(toks, token{typ: tokString, lit: input[i+1 : j], pos: i})
			i = j + 1
		case c == '`':
			j := i + 1
			for j < len(input) && input[j] != '`' {
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("unterminated backtick name at position %d", i)
			}
			toks = append(toks, token{typ: tokIdent, lit: input[i+1 : j], pos: i})
			i = j + 1
		case isDigit(c) || (c == '.' && i+1 < len(input) && isDigit(input[i+1])):
			j := i
			for j < len(input) && (isDigit(input[j]) || input[j] == '.' || input[j] == 'e' || input[j] == 'E' ||
				((input[j] == '+' || input[j] == '-') && j > i && (input[j-1] == 'e' || input[j-1] == 'E'))) {
				j++
			}
			num, err := strconv.ParseFloat(input[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q at position %d", input[i:j], i)
			}
			toks = append(toks, token{typ: tokNumber, num: num, pos: i})
			i = j
		case isIdentStart(rune(c)):
			j := i
			for j < len(input) && isIdentPart(rune(input[j])) {
				j++
			}
			word := input[i:j]
			switch strings.ToLower(word) {
			case "and", "or", "not":
				toks = append(toks, token{typ: tokOperator, lit: strings.ToLower(word), pos: i})
			default:
				toks = append(toks, token{typ: tokIdent, lit: word, pos: i})
			}
			i = j
		default:
			op, n := matchOperator(input[i:])
			if n == 0 {
				return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
			}
			toks = append(toks, token{typ: tokOperator, lit: op, pos: i})
			i += n
		}
	}
	toks = append(toks, token{typ: tokEOF, pos: len(input)})
	return toks, nil
}

// matchOperator recognizes the longest operator at the start of s.
func matchOperator(s string) (string, int) {
	for _, op := range []string{"**", "==", "!=", "<=", ">=", "&&", "||", "<", ">", "+", "-", "*", "/", "%", "!", "="} {
		if strings.HasPrefix(s, op) {
			switch op {
			case "&&":
				return "and", 2
			case "||":
				return "or", 2
			case "!":
				return "not", 1
			case "=":
				// Lone = reads as equality, a common slip.
				return "==", 1
			}
			return op, len(op)
		}
	}
	return "", 0
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// ---- parser ----

type parser struct {
	toks []token
	pos  int
}

// parseExpr compiles an expression string into an AST.
func parseExpr(input string) (exprNode, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("expression is empty")
	}
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().typ != tokEOF {
		return nil, fmt.Errorf("unexpected trailing input at position %d", p.peek().pos)
	}
	return node, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.typ != tokOperator {
		return "", false
	}
	for _, op := range ops {
		if t.lit == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("or"); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "or", left: left, right: right}
	}
}

func (p *parser) parseAnd() (exprNode, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("and"); !ok {
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "and", left: left, right: right}
	}
}

func (p *parser) parseNot() (exprNode, error) {
	if _, ok := p.acceptOp("not"); ok {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: "not", operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (exprNode, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := p.acceptOp("==", "!=", "<", "<=", ">", ">=")
	if !ok {
		return left, nil
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &binaryNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseAdditive() (exprNode, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseMultiplicative() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (exprNode, error) {
	if _, ok := p.acceptOp("-"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: "-", operand: operand}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (exprNode, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.acceptOp("**"); ok {
		// Right associative.
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: "**", left: base, right: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (exprNode, error) {
	t := p.next()
	switch t.typ {
	case tokNumber:
		return &literalNode{val: numberValue(t.num)}, nil
	case tokString:
		return &literalNode{val: stringValue(t.lit)}, nil
	case tokIdent:
		switch strings.ToLower(t.lit) {
		case "true":
			return &literalNode{val: boolValue(true)}, nil
		case "false":
			return &literalNode{val: boolValue(false)}, nil
		}
		return &identNode{name: t.lit}, nil
	case tokLParen:
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next().typ != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return node, nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected token at position %d", t.pos)
	}
}
