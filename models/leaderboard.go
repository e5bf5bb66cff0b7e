package models

// LeaderboardEntry is one row of the season prediction standings.
type LeaderboardEntry struct {
	UserID   int    `json:"user_id"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}
