package models

import "time"

// GameResult records the realized winner of a completed game.
// One-to-one with Game; creating it is the trigger for bracket advancement.
type GameResult struct {
	ID           int       `json:"id"`
	GameID       int       `json:"game_id"`
	WinnerTeamID int       `json:"winner_team_id"`
	RecordedAt   time.Time `json:"recorded_at"`
}
