package models

import "time"

// Poll is one voting window of the ranked-ballot mode.
// (season, week) is unique. Results are derived from ballots, never
// authored directly.
type Poll struct {
	ID        int       `json:"id"`
	Season    int       `json:"season"`
	Week      int       `json:"week"`
	WeekName  string    `json:"week_name,omitempty"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`

	Ballots []Ballot     `json:"ballots,omitempty"`
	Results []PollResult `json:"results,omitempty"`
}

// IsOpenAt reports whether the poll accepts ballots at t. The window is
// half-open: [OpenTime, CloseTime).
func (p Poll) IsOpenAt(t time.Time) bool {
	return !t.Before(p.OpenTime) && t.Before(p.CloseTime)
}

// HasCompletedAt reports whether the voting window has passed at t.
func (p Poll) HasCompletedAt(t time.Time) bool {
	return !t.Before(p.CloseTime)
}

// PollResult is one row of a poll's aggregate ranking: a team's summed
// score and its count of first-place votes.
type PollResult struct {
	PollID          int    `json:"poll_id"`
	TeamID          int    `json:"team_id"`
	Rank            int    `json:"rank"`
	Score           int    `json:"score"`
	FirstPlaceVotes int    `json:"first_place_votes"`
	TeamName        string `json:"team_name,omitempty"`
	TeamSlug        string `json:"team_slug,omitempty"`
}
