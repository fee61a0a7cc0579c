package domain

import (
	"errors"
	"math/rand"
	"testing"
)

func TestParseDiceFormula(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantErr  error
		dice     int
		modifier int
	}{
		{name: "plain d20", raw: "d20", dice: 1},
		{name: "attack roll", raw: "1d20+5", dice: 1, modifier: 5},
		{name: "mixed groups", raw: "2d6+1d4-1", dice: 2, modifier: -1},
		{name: "whitespace tolerated", raw: " 1d8 + 2 ", dice: 1, modifier: 2},
		{name: "negative group", raw: "1d20-1d4", dice: 2},
		{name: "modifier only", raw: "5", wantErr: ErrMissingDice},
		{name: "empty", raw: "", wantErr: ErrMissingDice},
		{name: "garbage", raw: "fireball", wantErr: ErrInvalidDiceFormula},
		{name: "missing operator", raw: "1d6 1d4", wantErr: ErrInvalidDiceFormula},
		{name: "one-sided die", raw: "3d1", wantErr: ErrInvalidDiceFormula},
		{name: "absurd count", raw: "999d6", wantErr: ErrInvalidDiceFormula},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseDiceFormula(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(f.Dice) != tt.dice {
				t.Errorf("dice groups = %d, want %d", len(f.Dice), tt.dice)
			}
			if f.Modifier != tt.modifier {
				t.Errorf("modifier = %d, want %d", f.Modifier, tt.modifier)
			}
		})
	}
}

func TestRoll_Deterministic(t *testing.T) {
	f, err := ParseDiceFormula("2d6+1d8+3")
	if err != nil {
		t.Fatalf("ParseDiceFormula: %v", err)
	}

	roller := Participant{UserID: "u1", Username: "aria", Role: RolePlayer}
	a := f.Roll(rand.New(rand.NewSource(7)), roller, "")
	b := f.Roll(rand.New(rand.NewSource(7)), roller, "")

	if a.Total != b.Total {
		t.Errorf("same seed produced totals %d and %d", a.Total, b.Total)
	}
	if len(a.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(a.Groups))
	}
	for gi, g := range a.Groups {
		for di, v := range g.Results {
			if v != b.Groups[gi].Results[di] {
				t.Errorf("group %d die %d differs: %d vs %d", gi, di, v, b.Groups[gi].Results[di])
			}
		}
	}
}

func TestRoll_TotalsAndBounds(t *testing.T) {
	f, err := ParseDiceFormula("1d20+5")
	if err != nil {
		t.Fatalf("ParseDiceFormula: %v", err)
	}
	roller := Participant{UserID: "u1", Username: "aria", Role: RolePlayer}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		r := f.Roll(rng, roller, "attack")
		if r.Total < 6 || r.Total > 25 {
			t.Fatalf("1d20+5 total = %d, out of [6,25]", r.Total)
		}
		if r.Roller.Username != "aria" {
			t.Fatalf("roller identity lost: %+v", r.Roller)
		}
		sum := r.Modifier
		for _, g := range r.Groups {
			if g.Negative {
				sum -= g.Total
			} else {
				sum += g.Total
			}
		}
		if sum != r.Total {
			t.Fatalf("total %d does not match group sums %d", r.Total, sum)
		}
	}
}

func TestRoll_NegativeGroupSubtracts(t *testing.T) {
	f, err := ParseDiceFormula("1d4-1d4")
	if err != nil {
		t.Fatalf("ParseDiceFormula: %v", err)
	}
	rng := rand.New(rand.NewSource(3))
	r := f.Roll(rng, Participant{UserID: "u1"}, "")
	want := r.Groups[0].Total - r.Groups[1].Total
	if r.Total != want {
		t.Errorf("total = %d, want %d", r.Total, want)
	}
}
