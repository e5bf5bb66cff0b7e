package models

import "time"

// Ballot is one user's ranked list of teams for one poll.
// (user_id, poll_id) is unique; resubmitting replaces the whole ballot.
type Ballot struct {
	ID      int       `json:"id"`
	UserID  int       `json:"user_id"`
	PollID  int       `json:"poll_id"`
	Updated time.Time `json:"updated"`

	Votes []Vote `json:"votes,omitempty"`
}

// Vote pairs one ranked position on a ballot with a team. Ranks within a
// ballot are unique and contiguous starting at 1.
type Vote struct {
	ID       int    `json:"id"`
	BallotID int    `json:"ballot_id"`
	TeamID   int    `json:"team_id"`
	Rank     int    `json:"rank"`
	Reason   string `json:"reason,omitempty"`
}

// MaxVoteReasonLen bounds the free-text reason attached to a vote.
const MaxVoteReasonLen = 140
