package eval

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hunglin/spark-kernel/engine"
)

// errIncomplete classifies input that ends mid-expression (trailing operator,
// unclosed parenthesis). It is not an evaluation fault.
var errIncomplete = errors.New("incomplete input")

// thrownError carries a runtime exception destined for the engine's
// last-exception slot.
type thrownError struct {
	detail *engine.Thrown
}

func (t *thrownError) Error() string {
	return t.detail.Kind + ": " + t.detail.Message
}

type tokKind int

const (
	tokNumber tokKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
	num  int64
}

func lex(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case '0' <= c && c <= '9':
			j := i
			for j < len(src) && '0' <= src[j] && src[j] <= '9' {
				j++
			}
			n, err := strconv.ParseInt(src[i:j], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("integer literal out of range: %s", src[i:j])
			}
			toks = append(toks, token{kind: tokNumber, num: n})
			i = j
		case c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
			j := i
			for j < len(src) && (src[j] == '_' || src[j] == '.' ||
				'0' <= src[j] && src[j] <= '9' ||
				'a' <= src[j] && src[j] <= 'z' ||
				'A' <= src[j] && src[j] <= 'Z') {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j]})
			i = j
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '%':
			toks = append(toks, token{kind: tokOp, text: string(c)})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen})
			i++
		default:
			return nil, fmt.Errorf("illegal character %q in expression", string(c))
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
	ns   *namespace
}

// evalExpr parses and evaluates an integer expression against the namespace.
func evalExpr(src string, ns *namespace) (int64, error) {
	toks, err := lex(src)
	if err != nil {
		return 0, err
	}
	if len(toks) == 0 {
		return 0, errIncomplete
	}

	p := &parser{toks: toks, ns: ns}
	v, err := p.sum()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.toks) {
		return 0, fmt.Errorf("unexpected token after expression")
	}
	return v, nil
}

func (p *parser) sum() (int64, error) {
	v, err := p.product()
	if err != nil {
		return 0, err
	}
	for p.peekOp("+") || p.peekOp("-") {
		op := p.next().text
		rhs, err := p.product()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			v += rhs
		} else {
			v -= rhs
		}
	}
	return v, nil
}

func (p *parser) product() (int64, error) {
	v, err := p.atom()
	if err != nil {
		return 0, err
	}
	for p.peekOp("*") || p.peekOp("/") || p.peekOp("%") {
		op := p.next().text
		rhs, err := p.atom()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			v *= rhs
		default:
			if rhs == 0 {
				return 0, &thrownError{detail: &engine.Thrown{
					Kind:        "ArithmeticException",
					Message:     "/ by zero",
					StackFrames: []string{"at eval.divide(parse.go)", "at eval.Run(eval.go)"},
				}}
			}
			if op == "/" {
				v /= rhs
			} else {
				v %= rhs
			}
		}
	}
	return v, nil
}

func (p *parser) atom() (int64, error) {
	if p.pos >= len(p.toks) {
		return 0, errIncomplete
	}
	t := p.next()
	switch t.kind {
	case tokNumber:
		return t.num, nil
	case tokIdent:
		b, ok := p.ns.Lookup(t.text)
		if !ok {
			return 0, fmt.Errorf("not found: value %s", t.text)
		}
		v, ok := toInt64(b.Value)
		if !ok {
			return 0, fmt.Errorf("value %s is not an Int", t.text)
		}
		return v, nil
	case tokOp:
		if t.text == "-" {
			v, err := p.atom()
			if err != nil {
				return 0, err
			}
			return -v, nil
		}
		return 0, fmt.Errorf("unexpected operator %q", t.text)
	case tokLParen:
		v, err := p.sum()
		if err != nil {
			return 0, err
		}
		if p.pos >= len(p.toks) {
			return 0, errIncomplete
		}
		if p.next().kind != tokRParen {
			return 0, fmt.Errorf("expected closing parenthesis")
		}
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected token")
	}
}

func (p *parser) peekOp(op string) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].kind == tokOp && p.toks[p.pos].text == op
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	p.pos++
	return t
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	default:
		return 0, false
	}
}
