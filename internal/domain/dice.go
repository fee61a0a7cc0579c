package domain

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxFormulaLength = 64

// termPattern matches one formula term: a dice group like 2d6 or a flat
// modifier like 5, each with a leading sign after the first term.
var termPattern = regexp.MustCompile(`^([+-]?)(?:(\d*)[dD](\d+)|(\d+))`)

// DiceSpec is one NdS group inside a formula.
type DiceSpec struct {
	Count    int  `json:"count"`
	Sides    int  `json:"sides"`
	Negative bool `json:"negative,omitempty"`
}

// DiceGroup holds the rolled values for one spec.
type DiceGroup struct {
	Sides    int   `json:"sides"`
	Results  []int `json:"results"`
	Total    int   `json:"total"`
	Negative bool  `json:"negative,omitempty"`
}

// DiceFormula is a parsed roll expression, e.g. "1d20+5" or "2d6+1d4-1".
type DiceFormula struct {
	Raw      string     `json:"formula"`
	Dice     []DiceSpec `json:"dice"`
	Modifier int        `json:"modifier"`
}

// DiceResult is the authoritative outcome of a dice:roll intent, broadcast
// verbatim to every room member so all clients show the same roll.
type DiceResult struct {
	ID       string      `json:"id"`
	Formula  string      `json:"formula"`
	Label    string      `json:"label,omitempty"`
	Roller   Participant `json:"roller"`
	Groups   []DiceGroup `json:"groups"`
	Modifier int         `json:"modifier"`
	Total    int         `json:"total"`
	RolledAt time.Time   `json:"rolledAt"`
}

// ParseDiceFormula validates and decomposes a roll expression. Whitespace is
// ignored; at least one dice group is required.
func ParseDiceFormula(raw string) (DiceFormula, error) {
	compact := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if compact == "" {
		return DiceFormula{}, ErrMissingDice
	}
	if len(compact) > maxFormulaLength {
		return DiceFormula{}, ErrFormulaTooLong
	}

	formula := DiceFormula{Raw: compact}
	rest := compact
	first := true

	for rest != "" {
		m := termPattern.FindStringSubmatch(rest)
		if m == nil {
			return DiceFormula{}, fmt.Errorf("%w: %q", ErrInvalidDiceFormula, raw)
		}
		if !first && m[1] == "" {
			return DiceFormula{}, fmt.Errorf("%w: missing operator in %q", ErrInvalidDiceFormula, raw)
		}
		negative := m[1] == "-"

		if m[3] != "" {
			count := 1
			if m[2] != "" {
				parsed, err := strconv.Atoi(m[2])
				if err != nil || parsed <= 0 {
					return DiceFormula{}, fmt.Errorf("%w: %q", ErrInvalidDiceFormula, raw)
				}
				count = parsed
			}
			sides, err := strconv.Atoi(m[3])
			if err != nil || sides <= 1 {
				return DiceFormula{}, fmt.Errorf("%w: %q", ErrInvalidDiceFormula, raw)
			}
			if count > 100 || sides > 1000 {
				return DiceFormula{}, fmt.Errorf("%w: %q", ErrInvalidDiceFormula, raw)
			}
			formula.Dice = append(formula.Dice, DiceSpec{Count: count, Sides: sides, Negative: negative})
		} else {
			mod, err := strconv.Atoi(m[4])
			if err != nil {
				return DiceFormula{}, fmt.Errorf("%w: %q", ErrInvalidDiceFormula, raw)
			}
			if negative {
				mod = -mod
			}
			formula.Modifier += mod
		}

		rest = rest[len(m[0]):]
		first = false
	}

	if len(formula.Dice) == 0 {
		return DiceFormula{}, ErrMissingDice
	}
	return formula, nil
}

// Roll evaluates the formula with the provided random source. Given the same
// source state and formula, the result is deterministic.
func (f DiceFormula) Roll(rng *rand.Rand, roller Participant, label string) DiceResult {
	groups := make([]DiceGroup, 0, len(f.Dice))
	total := f.Modifier

	for _, spec := range f.Dice {
		results := make([]int, spec.Count)
		groupTotal := 0
		for i := 0; i < spec.Count; i++ {
			v := rng.Intn(spec.Sides) + 1
			results[i] = v
			groupTotal += v
		}
		if spec.Negative {
			total -= groupTotal
		} else {
			total += groupTotal
		}
		groups = append(groups, DiceGroup{
			Sides:    spec.Sides,
			Results:  results,
			Total:    groupTotal,
			Negative: spec.Negative,
		})
	}

	return DiceResult{
		ID:       uuid.NewString(),
		Formula:  f.Raw,
		Label:    label,
		Roller:   roller,
		Groups:   groups,
		Modifier: f.Modifier,
		Total:    total,
		RolledAt: time.Now().UTC(),
	}
}
