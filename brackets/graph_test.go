package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/cbbpoll/models"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// semifinalBracket is a three-game bracket: games 1 and 2 feed the home
// and away slots of championship game 3.
func semifinalBracket() []models.Game {
	return []models.Game{
		{ID: 1, ConferenceID: 1, PointValue: 1, HomeTeamID: intPtr(10), AwayTeamID: intPtr(11), NextGameID: intPtr(3), WinnerToHome: boolPtr(true)},
		{ID: 2, ConferenceID: 1, PointValue: 1, HomeTeamID: intPtr(12), AwayTeamID: intPtr(13), NextGameID: intPtr(3), WinnerToHome: boolPtr(false)},
		{ID: 3, ConferenceID: 1, PointValue: 2, IsChampionship: true},
	}
}

func TestApplyResult_AdvancesWinnerIntoDesignatedSlot(t *testing.T) {
	g, err := NewGraph(semifinalBracket())
	require.NoError(t, err)

	adv, err := g.ApplyResult(1, 10)
	require.NoError(t, err)
	require.NotNil(t, adv)
	assert.Equal(t, 3, adv.NextGameID)
	assert.True(t, adv.ToHome)
	assert.Equal(t, 10, adv.TeamID)

	home, away := g.Entrants(3)
	require.NotNil(t, home)
	assert.Equal(t, 10, *home)
	assert.Nil(t, away)

	adv, err = g.ApplyResult(2, 13)
	require.NoError(t, err)
	require.NotNil(t, adv)
	assert.False(t, adv.ToHome)

	home, away = g.Entrants(3)
	require.NotNil(t, home)
	require.NotNil(t, away)
	assert.Equal(t, 10, *home)
	assert.Equal(t, 13, *away)
}

func TestApplyResult_WinnerMustBeEntrant(t *testing.T) {
	g, err := NewGraph(semifinalBracket())
	require.NoError(t, err)

	_, err = g.ApplyResult(1, 99)
	assert.ErrorIs(t, err, ErrNotEntrant)
}

func TestApplyResult_UnresolvedEntrantsRejected(t *testing.T) {
	g, err := NewGraph(semifinalBracket())
	require.NoError(t, err)

	// Game 3 has no entrants until its feeders resolve.
	_, err = g.ApplyResult(3, 10)
	assert.ErrorIs(t, err, ErrEntrantsUnresolved)
}

func TestApplyResult_SecondResultConflicts(t *testing.T) {
	g, err := NewGraph(semifinalBracket())
	require.NoError(t, err)

	_, err = g.ApplyResult(1, 10)
	require.NoError(t, err)

	// Same winner again is a no-op.
	_, err = g.ApplyResult(1, 10)
	assert.NoError(t, err)

	// A different winner is rejected.
	_, err = g.ApplyResult(1, 11)
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	home, _ := g.Entrants(3)
	require.NotNil(t, home)
	assert.Equal(t, 10, *home)
}

func TestApplyResult_ChampionshipNeverAdvances(t *testing.T) {
	g, err := NewGraph(semifinalBracket())
	require.NoError(t, err)

	_, err = g.ApplyResult(1, 10)
	require.NoError(t, err)
	_, err = g.ApplyResult(2, 12)
	require.NoError(t, err)

	adv, err := g.ApplyResult(3, 10)
	require.NoError(t, err)
	assert.Nil(t, adv)
}

func TestNewGraph_SecondFeederIntoSameSlotConflicts(t *testing.T) {
	games := semifinalBracket()
	// Game 2 also tries to feed the home slot of game 3.
	games[1].WinnerToHome = boolPtr(true)

	_, err := NewGraph(games)
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestNewGraph_ChampionshipWithNextGameRejected(t *testing.T) {
	games := semifinalBracket()
	games[2].NextGameID = intPtr(1)
	games[2].WinnerToHome = boolPtr(true)

	_, err := NewGraph(games)
	assert.ErrorIs(t, err, ErrChampionshipNext)
}

func TestNewGraph_MissingSlotFlagRejected(t *testing.T) {
	games := semifinalBracket()
	games[0].WinnerToHome = nil

	_, err := NewGraph(games)
	assert.ErrorIs(t, err, ErrMissingSlotFlag)
}

func TestNewGraph_CycleRejected(t *testing.T) {
	games := []models.Game{
		{ID: 1, HomeTeamID: intPtr(10), AwayTeamID: intPtr(11), NextGameID: intPtr(2), WinnerToHome: boolPtr(true)},
		{ID: 2, HomeTeamID: intPtr(12), AwayTeamID: intPtr(13), NextGameID: intPtr(1), WinnerToHome: boolPtr(false)},
	}

	_, err := NewGraph(games)
	assert.ErrorIs(t, err, ErrCycle)
}

// Full recomputation from stored results must land on the same state the
// incremental applications produced, regardless of result order.
func TestRebuild_EqualsIncrementalPropagation(t *testing.T) {
	incremental, err := NewGraph(semifinalBracket())
	require.NoError(t, err)
	_, err = incremental.ApplyResult(1, 11)
	require.NoError(t, err)
	_, err = incremental.ApplyResult(2, 12)
	require.NoError(t, err)
	_, err = incremental.ApplyResult(3, 12)
	require.NoError(t, err)

	results := []models.GameResult{
		{GameID: 3, WinnerTeamID: 12}, // deliberately out of order
		{GameID: 1, WinnerTeamID: 11},
		{GameID: 2, WinnerTeamID: 12},
	}
	rebuilt, err := NewGraph(semifinalBracket())
	require.NoError(t, err)
	require.NoError(t, rebuilt.Rebuild(results))

	assert.Equal(t, incremental.Games(), rebuilt.Games())
}

func TestRebuild_IsIdempotent(t *testing.T) {
	g, err := NewGraph(semifinalBracket())
	require.NoError(t, err)

	results := []models.GameResult{
		{GameID: 1, WinnerTeamID: 10},
		{GameID: 2, WinnerTeamID: 13},
	}
	require.NoError(t, g.Rebuild(results))
	first := g.Games()

	require.NoError(t, g.Rebuild(results))
	assert.Equal(t, first, g.Games())
}

func TestRebuild_ClearsStaleFedSlots(t *testing.T) {
	games := semifinalBracket()
	// Simulate a stored slot that no current result supports.
	games[2].HomeTeamID = intPtr(10)

	g, err := NewGraph(games)
	require.NoError(t, err)
	require.NoError(t, g.Rebuild(nil))

	home, away := g.Entrants(3)
	assert.Nil(t, home)
	assert.Nil(t, away)

	// Seeded slots with no feeder survive a rebuild.
	home, away = g.Entrants(1)
	require.NotNil(t, home)
	require.NotNil(t, away)
	assert.Equal(t, 10, *home)
	assert.Equal(t, 11, *away)
}
