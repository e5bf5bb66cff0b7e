package models

// Game is one node of the bracket graph. Home/away entrants may be unset
// until the upstream games feeding this one are resolved. NextGameID points
// at the game the winner advances into; WinnerToHome selects the slot there.
// At most one game may feed each (next_game_id, winner_to_home) pair.
type Game struct {
	ID             int   `json:"id"`
	ConferenceID   int   `json:"conference_id"`
	PointValue     int   `json:"point_value"`
	HomeTeamID     *int  `json:"home_team_id,omitempty"`
	AwayTeamID     *int  `json:"away_team_id,omitempty"`
	NextGameID     *int  `json:"next_game_id,omitempty"`
	WinnerToHome   *bool `json:"winner_to_home,omitempty"`
	IsChampionship bool  `json:"is_championship"`

	HomeTeam *Team       `json:"home_team,omitempty"`
	AwayTeam *Team       `json:"away_team,omitempty"`
	Result   *GameResult `json:"result,omitempty"`
}

// HasEntrant reports whether teamID currently occupies one of the game's
// two slots.
func (g Game) HasEntrant(teamID int) bool {
	if g.HomeTeamID != nil && *g.HomeTeamID == teamID {
		return true
	}
	if g.AwayTeamID != nil && *g.AwayTeamID == teamID {
		return true
	}
	return false
}

// EntrantsResolved reports whether both slots are populated.
func (g Game) EntrantsResolved() bool {
	return g.HomeTeamID != nil && g.AwayTeamID != nil
}
