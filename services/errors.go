package services

import "errors"

// Shared sentinel errors. Handlers map these onto HTTP statuses; each group
// below corresponds to one status class.
var (
	// Not found
	ErrNotFound           = errors.New("requested resource not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrConferenceNotFound = errors.New("conference not found")
	ErrGameNotFound       = errors.New("game not found")
	ErrPollNotFound       = errors.New("poll not found")
	ErrBallotNotFound     = errors.New("ballot not found")
	ErrPredictionNotFound = errors.New("prediction not found")

	// Validation and business rules
	ErrValidationFailed      = errors.New("validation failed")
	ErrWinnerNotEntrant      = errors.New("winning team is not an entrant of this game")
	ErrGameNotReady          = errors.New("game entrants are not resolved yet")
	ErrGameAlreadyDecided    = errors.New("game already has a result, voting is closed")
	ErrPollClosed            = errors.New("poll is not open for voting")
	ErrBallotWrongSize       = errors.New("ballot does not have the required number of ranked teams")
	ErrBallotDuplicateTeam   = errors.New("ballot ranks the same team more than once")
	ErrVoteReasonTooLong     = errors.New("vote reason exceeds the maximum length")
	ErrTeamNameRequired      = errors.New("team full name is required")
	ErrPollWindowInvalid     = errors.New("poll close time must be after open time")
	ErrChampionshipAdvances  = errors.New("championship game cannot have a next game")
	ErrFeederSlotUnspecified = errors.New("game with a next game needs a winner slot flag")

	// Conflicts
	ErrResultAlreadyRecorded = errors.New("result already recorded for this game")
	ErrBracketSlotConflict   = errors.New("another game already feeds that bracket slot")
	ErrTeamSlugConflict      = errors.New("a team with that name already exists")
	ErrConferenceConflict    = errors.New("conference already exists for that season")
	ErrPollWeekConflict      = errors.New("a poll already exists for that season and week")
	ErrBallotRace            = errors.New("ballot was submitted concurrently, try again")

	// Authentication and authorization
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrTokenInvalidOrExpired = errors.New("confirmation link is invalid or has expired")
	ErrForbiddenOperation    = errors.New("operation not allowed for the current user")
)
