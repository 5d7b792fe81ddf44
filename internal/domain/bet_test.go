package domain

import (
	"errors"
	"testing"
)

func TestNewBetOptions(t *testing.T) {
	opts, err := NewBetOptions([]string{"Yes", " No "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts[0] != (BetOption{ID: "opt_1", Text: "Yes"}) || opts[1] != (BetOption{ID: "opt_2", Text: "No"}) {
		t.Fatalf("unexpected options %+v", opts)
	}

	if _, err := NewBetOptions([]string{"only"}); !errors.Is(err, ErrInvalidBet) {
		t.Fatalf("expected ErrInvalidBet, got %v", err)
	}
	if _, err := NewBetOptions([]string{"a", ""}); !errors.Is(err, ErrInvalidBet) {
		t.Fatalf("expected ErrInvalidBet, got %v", err)
	}
}

func TestBet_Payouts(t *testing.T) {
	tests := []struct {
		name         string
		wagers       []Wager
		winner       string
		wantPayouts  []Payout
		wantResidual int64
	}{
		{
			name: "exact split",
			wagers: []Wager{
				{OwnerID: "A", OptionID: "opt_1", Amount: 100},
				{OwnerID: "B", OptionID: "opt_2", Amount: 100},
				{OwnerID: "C", OptionID: "opt_2", Amount: 100},
			},
			winner:      "opt_2",
			wantPayouts: []Payout{{OwnerID: "B", Amount: 150}, {OwnerID: "C", Amount: 150}},
		},
		{
			name: "rounding dust",
			wagers: []Wager{
				{OwnerID: "A", OptionID: "opt_1", Amount: 10},
				{OwnerID: "B", OptionID: "opt_1", Amount: 10},
				{OwnerID: "C", OptionID: "opt_1", Amount: 10},
				{OwnerID: "D", OptionID: "opt_2", Amount: 70},
			},
			winner:       "opt_1",
			wantPayouts:  []Payout{{OwnerID: "A", Amount: 33}, {OwnerID: "B", Amount: 33}, {OwnerID: "C", Amount: 33}},
			wantResidual: 1,
		},
		{
			name: "nobody backed the winner",
			wagers: []Wager{
				{OwnerID: "A", OptionID: "opt_1", Amount: 40},
			},
			winner:       "opt_2",
			wantResidual: 40,
		},
		{
			name:   "empty pot",
			winner: "opt_1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Bet{Wagers: tt.wagers}
			payouts, residual := b.Payouts(tt.winner)

			if len(payouts) != len(tt.wantPayouts) {
				t.Fatalf("expected %d payouts, got %+v", len(tt.wantPayouts), payouts)
			}
			for i := range payouts {
				if payouts[i] != tt.wantPayouts[i] {
					t.Errorf("payout %d: got %+v, want %+v", i, payouts[i], tt.wantPayouts[i])
				}
			}
			if residual != tt.wantResidual {
				t.Errorf("residual = %d, want %d", residual, tt.wantResidual)
			}

			var paid int64
			for _, p := range payouts {
				paid += p.Amount
			}
			if paid+residual != b.Pot() {
				t.Errorf("payouts %d + residual %d != pot %d", paid, residual, b.Pot())
			}
		})
	}
}

func TestBet_Clone(t *testing.T) {
	b := &Bet{ID: "b1", Wagers: []Wager{{OwnerID: "A", Amount: 1}}}
	c := b.Clone()
	c.Wagers[0].Amount = 99

	if b.Wagers[0].Amount != 1 {
		t.Fatal("clone shares wager storage with original")
	}
}

func TestDare_References(t *testing.T) {
	d := &Dare{CreatorID: "c", TargetID: "t", Pledges: []Pledge{{OwnerID: "p", Amount: 5}}}

	for _, id := range []string{"c", "t", "p"} {
		if !d.References(id) {
			t.Errorf("expected dare to reference %s", id)
		}
	}
	if d.References("x") {
		t.Error("unexpected reference to x")
	}
}
