package domain

import "time"

type DareStatus string

const (
	DareStatusActive    DareStatus = "ACTIVE"
	DareStatusCompleted DareStatus = "COMPLETED"
)

// Pledge is a contribution to a dare bounty.
type Pledge struct {
	OwnerID   string    `json:"userId"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"timestamp"`
}

// Dare is a bounty escrowed by SYSTEM and released in full to the target.
type Dare struct {
	ID          string     `json:"id"`
	CreatorID   string     `json:"creatorId"`
	TargetID    string     `json:"targetId"`
	Description string     `json:"description"`
	Bounty      int64      `json:"bounty"`
	Pledges     []Pledge   `json:"pledges"`
	Status      DareStatus `json:"status"`
	Proof       string     `json:"proof,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// References reports whether accountID takes part in the dare.
func (d *Dare) References(accountID string) bool {
	if d.CreatorID == accountID || d.TargetID == accountID {
		return true
	}
	for _, p := range d.Pledges {
		if p.OwnerID == accountID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the dare.
func (d *Dare) Clone() *Dare {
	c := *d
	c.Pledges = append([]Pledge(nil), d.Pledges...)
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
