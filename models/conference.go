package models

// Conference groups the games of one bracket for one season.
// (name, season) is unique.
type Conference struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Season int    `json:"season"`

	Games []Game `json:"games,omitempty"`
}
