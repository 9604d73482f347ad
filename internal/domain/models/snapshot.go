package models

import "time"

// DomainState is the store-side record for a single data domain. Value is
// treated as immutable once stored; refreshes and patches install a
// replacement value instead of writing through it.
type DomainState struct {
	Value       any       `json:"value"`
	Seq         uint64    `json:"seq"`
	Loading     bool      `json:"loading"`
	Fresh       bool      `json:"fresh"`
	Err         string    `json:"error,omitempty"`
	RefreshedAt time.Time `json:"last_refreshed_at"`
}

// AggregateSnapshot is the merged view model for one scope. Epoch increments
// on every scope change; fetch results carrying an older epoch are discarded.
type AggregateSnapshot struct {
	Scope   ViewScope              `json:"scope"`
	Epoch   uint64                 `json:"epoch"`
	Domains map[Domain]DomainState `json:"domains"`
	TakenAt time.Time              `json:"taken_at"`
}

func NewAggregateSnapshot(scope ViewScope, epoch uint64) AggregateSnapshot {
	domains := make(map[Domain]DomainState, len(AllDomains()))
	for _, d := range AllDomains() {
		domains[d] = DomainState{}
	}
	return AggregateSnapshot{Scope: scope, Epoch: epoch, Domains: domains}
}

// Clone returns a copy that is safe to hand out. Domain values are immutable,
// so copying the map entries is enough.
func (s AggregateSnapshot) Clone() AggregateSnapshot {
	out := s
	out.Domains = make(map[Domain]DomainState, len(s.Domains))
	for d, st := range s.Domains {
		out.Domains[d] = st
	}
	return out
}

func (s AggregateSnapshot) State(d Domain) DomainState {
	return s.Domains[d]
}

// SummaryValue returns the typed summary domain value when present.
func (s AggregateSnapshot) SummaryValue() (Summary, bool) {
	v, ok := s.Domains[DomainSummary].Value.(Summary)
	return v, ok
}

// HoldingsValue returns the typed holdings domain value when present.
func (s AggregateSnapshot) HoldingsValue() ([]Holding, bool) {
	v, ok := s.Domains[DomainHoldings].Value.([]Holding)
	return v, ok
}
