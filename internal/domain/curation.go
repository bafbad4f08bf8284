package domain

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the manual verdict recorded for a paper.
type Outcome string

const (
	OutcomePositive Outcome = "positive"
	OutcomeNegative Outcome = "negative"
)

// Outcomes lists every valid outcome in directory order.
var Outcomes = []Outcome{OutcomePositive, OutcomeNegative}

// ParseOutcome accepts "positive" or "negative" in any case.
func ParseOutcome(value string) (Outcome, error) {
	switch Outcome(strings.ToLower(strings.TrimSpace(value))) {
	case OutcomePositive:
		return OutcomePositive, nil
	case OutcomeNegative:
		return OutcomeNegative, nil
	default:
		return "", fmt.Errorf("%w: unknown curation outcome %q", ErrInvalidArgument, value)
	}
}

// Opposite returns the other outcome.
func (o Outcome) Opposite() Outcome {
	if o == OutcomePositive {
		return OutcomeNegative
	}
	return OutcomePositive
}

// CurationStatus reports whether, and how, a paper was curated.
// An empty Outcome means the paper has not been curated.
type CurationStatus struct {
	PMID      int64     `db:"pmid" json:"pmid"`
	Outcome   Outcome   `db:"outcome" json:"outcome,omitempty"`
	CuratedAt time.Time `db:"curated_at" json:"curatedAt,omitzero"`
}

// Curated reports whether a flag exists.
func (s CurationStatus) Curated() bool {
	return s.Outcome != ""
}
