package models

import "time"

// VoterEvent is one grant or revocation of voter eligibility. Current
// status is the most recent event; historical status is the most recent
// event at or before the asked-for time.
type VoterEvent struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	IsVoter       bool      `json:"is_voter"`
	EffectiveTime time.Time `json:"effective_time"`
}
