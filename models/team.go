package models

// Team is static reference data. Rows are created and edited only by
// administrators; everything else treats them as read-only.
type Team struct {
	ID         int     `json:"id"`
	FullName   string  `json:"full_name"`
	ShortName  string  `json:"short_name"`
	Nickname   string  `json:"nickname"`
	Slug       string  `json:"slug"`
	Conference string  `json:"conference"`
	LogoKey    *string `json:"-"`
	LogoURL    *string `json:"logo_url,omitempty"`
}

// DisplayName is the short name when present, the full name otherwise.
func (t Team) DisplayName() string {
	if t.ShortName != "" {
		return t.ShortName
	}
	return t.FullName
}
