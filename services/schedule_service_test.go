package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/courtside/cbbpoll/models"
)

func TestValidateWiring_NegativePointValue(t *testing.T) {
	s := &scheduleService{}

	err := s.validateWiring(&models.Game{PointValue: -1})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestValidateWiring_ChampionshipCannotFeedAnotherGame(t *testing.T) {
	s := &scheduleService{}
	next := 9
	toHome := true

	err := s.validateWiring(&models.Game{
		IsChampionship: true,
		NextGameID:     &next,
		WinnerToHome:   &toHome,
	})
	assert.ErrorIs(t, err, ErrChampionshipAdvances)
}

func TestValidateWiring_FeederNeedsBothLinkAndSlot(t *testing.T) {
	s := &scheduleService{}
	next := 9
	toHome := true

	err := s.validateWiring(&models.Game{NextGameID: &next})
	assert.ErrorIs(t, err, ErrFeederSlotUnspecified)

	err = s.validateWiring(&models.Game{WinnerToHome: &toHome})
	assert.ErrorIs(t, err, ErrFeederSlotUnspecified)

	assert.NoError(t, s.validateWiring(&models.Game{NextGameID: &next, WinnerToHome: &toHome}))
}

func TestValidateWiring_SameTeamInBothSlots(t *testing.T) {
	s := &scheduleService{}
	team := 4

	err := s.validateWiring(&models.Game{HomeTeamID: &team, AwayTeamID: &team})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestValidateWiring_StandaloneGameIsValid(t *testing.T) {
	s := &scheduleService{}
	home, away := 4, 5

	assert.NoError(t, s.validateWiring(&models.Game{
		PointValue: 2, HomeTeamID: &home, AwayTeamID: &away, IsChampionship: true,
	}))
}

func TestGameHasEntrant(t *testing.T) {
	home, away := 4, 5
	game := models.Game{HomeTeamID: &home, AwayTeamID: &away}

	assert.True(t, game.HasEntrant(4))
	assert.True(t, game.HasEntrant(5))
	assert.False(t, game.HasEntrant(6))

	assert.False(t, models.Game{}.HasEntrant(4))
}
