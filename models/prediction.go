package models

import "time"

// Prediction is a single predicted winner for one game by one user.
// (user_id, game_id) is unique; submitting again replaces the pick.
type Prediction struct {
	ID      int       `json:"id"`
	UserID  int       `json:"user_id"`
	GameID  int       `json:"game_id"`
	TeamID  int       `json:"team_id"`
	Updated time.Time `json:"updated"`
}
