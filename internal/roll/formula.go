package roll

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyFormula   = errors.New("roll: empty formula")
	ErrInvalidFormula = errors.New("roll: invalid formula")
)

// Limits on a single term.
const (
	MaxDice  = 1000
	MaxSides = 1000
	MaxFlat  = 1_000_000
)

// Term is either a dice term (Sides > 0) or a flat modifier.
type Term struct {
	Sign  int
	Count int
	Sides int
	Flat  int
}

func (t Term) Dice() bool { return t.Sides > 0 }

// Formula is a parsed dice expression such as "2d6 + 1d4 - 1".
type Formula struct {
	Terms []Term
	raw   string
}

func (f Formula) String() string { return f.raw }

// Parse reads terms of the form NdM, dM or N joined by + and -.
func Parse(s string) (Formula, error) {
	raw := strings.TrimSpace(s)
	compact := strings.ReplaceAll(raw, " ", "")
	if compact == "" {
		return Formula{}, ErrEmptyFormula
	}

	f := Formula{raw: raw}
	sign := 1
	start := 0

	flush := func(end int) error {
		tok := compact[start:end]
		if tok == "" {
			return fmt.Errorf("%w: %q", ErrInvalidFormula, raw)
		}
		term, err := parseTerm(tok)
		if err != nil {
			return fmt.Errorf("%w: %q", err, raw)
		}
		term.Sign = sign
		f.Terms = append(f.Terms, term)
		return nil
	}

	for i := 0; i < len(compact); i++ {
		c := compact[i]
		if c != '+' && c != '-' {
			continue
		}
		if i == 0 {
			if c == '-' {
				sign = -1
			}
			start = 1
			continue
		}
		if err := flush(i); err != nil {
			return Formula{}, err
		}
		sign = 1
		if c == '-' {
			sign = -1
		}
		start = i + 1
	}

	if err := flush(len(compact)); err != nil {
		return Formula{}, err
	}

	return f, nil
}

func parseTerm(tok string) (Term, error) {
	d := strings.IndexAny(tok, "dD")
	if d < 0 {
		n, err := strconv.Atoi(tok)
		if err != nil || n > MaxFlat {
			return Term{}, ErrInvalidFormula
		}
		return Term{Flat: n}, nil
	}

	count := 1
	if d > 0 {
		n, err := strconv.Atoi(tok[:d])
		if err != nil || n <= 0 || n > MaxDice {
			return Term{}, ErrInvalidFormula
		}
		count = n
	}

	sides, err := strconv.Atoi(tok[d+1:])
	if err != nil || sides <= 0 || sides > MaxSides {
		return Term{}, ErrInvalidFormula
	}

	return Term{Count: count, Sides: sides}, nil
}

// check applies the parse limits to a term built by hand.
func (t Term) check() error {
	if t.Count < 0 || t.Count > MaxDice || t.Sides < 0 || t.Sides > MaxSides ||
		t.Flat < -MaxFlat || t.Flat > MaxFlat || (t.Sides > 0 && t.Count == 0) {
		return fmt.Errorf("%w: term %+v out of range", ErrInvalidFormula, t)
	}
	return nil
}
