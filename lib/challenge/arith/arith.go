// Package arith implements the "math" challenge: a one-operator arithmetic
// question over single-digit operands.
package arith

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"

	"github.com/uvensys/captchad/lib/challenge"
)

func init() {
	challenge.Register(challenge.TypeMath, &Impl{})
}

type Operator byte

const (
	Add      Operator = '+'
	Subtract Operator = '-'
	Multiply Operator = '*'
)

var Operators = []Operator{Add, Subtract, Multiply}

func (o Operator) Apply(a, b int) int {
	switch o {
	case Subtract:
		return a - b
	case Multiply:
		return a * b
	default:
		return a + b
	}
}

// Problem is a single question. The answer may be negative.
type Problem struct {
	A, B int
	Op   Operator
}

// NewProblem draws a and b uniformly from 1..9 and the operator uniformly
// from Operators.
func NewProblem(rnd *rand.Rand) Problem {
	a := rnd.IntN(9) + 1
	b := rnd.IntN(9) + 1
	op := Operators[rnd.IntN(len(Operators))]

	return Problem{A: a, B: b, Op: op}
}

func (p Problem) Question() string {
	return fmt.Sprintf("%d %c %d = ?", p.A, p.Op, p.B)
}

func (p Problem) Answer() int {
	return p.Op.Apply(p.A, p.B)
}

type Impl struct{}

func (i *Impl) Issue(lg *slog.Logger, in *challenge.IssueInput) (*challenge.Issued, error) {
	p := NewProblem(in.Rand)

	return &challenge.Issued{
		Payload: challenge.MathPayload{
			Question:     p.Question(),
			Instructions: in.Localizer.T("instructions_math"),
		},
		Solution: strconv.Itoa(p.Answer()),
	}, nil
}

func (i *Impl) Validate(lg *slog.Logger, in *challenge.ValidateInput) bool {
	return challenge.MatchFold(in.Challenge.Solution, in.Answer)
}
