package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/repositories"
)

// txRecorder counts transaction outcomes on the stub database below. The
// repositories are faked out, so no statement ever reaches the driver; only
// Begin/Commit/Rollback matter.
type txRecorder struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
}

type stubConnector struct{ rec *txRecorder }

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn{rec: c.rec}, nil
}

func (c stubConnector) Driver() driver.Driver { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open not supported")
}

type stubConn struct{ rec *txRecorder }

func (stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (stubConn) Close() error { return nil }

func (c stubConn) Begin() (driver.Tx, error) { return stubTx{rec: c.rec}, nil }

type stubTx struct{ rec *txRecorder }

func (t stubTx) Commit() error {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.commits++
	return nil
}

func (t stubTx) Rollback() error {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.rollbacks++
	return nil
}

func stubDB() (*sql.DB, *txRecorder) {
	rec := &txRecorder{}
	return sql.OpenDB(stubConnector{rec: rec}), rec
}

type entrantWrite struct {
	gameID  int
	teamID  *int
	home    bool
	cleared bool
}

type fakeGameRepo struct {
	games  map[int]*models.Game
	writes []entrantWrite
}

func newFakeGameRepo(games ...models.Game) *fakeGameRepo {
	r := &fakeGameRepo{games: make(map[int]*models.Game)}
	for _, g := range games {
		stored := g
		r.games[g.ID] = &stored
	}
	return r
}

func (r *fakeGameRepo) Create(ctx context.Context, game *models.Game) error {
	stored := *game
	r.games[game.ID] = &stored
	return nil
}

func (r *fakeGameRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
	game, ok := r.games[id]
	if !ok {
		return nil, repositories.ErrGameNotFound
	}
	copied := *game
	return &copied, nil
}

func (r *fakeGameRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Game, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *fakeGameRepo) ListByConference(ctx context.Context, exec repositories.SQLExecutor, conferenceID int) ([]models.Game, error) {
	var games []models.Game
	for id := 1; id <= maxFakeGameID; id++ {
		if game, ok := r.games[id]; ok && game.ConferenceID == conferenceID {
			games = append(games, *game)
		}
	}
	return games, nil
}

func (r *fakeGameRepo) Update(ctx context.Context, game *models.Game) error {
	stored := *game
	r.games[game.ID] = &stored
	return nil
}

func (r *fakeGameRepo) SetEntrant(ctx context.Context, exec repositories.SQLExecutor, gameID int, teamID int, home bool) error {
	game, ok := r.games[gameID]
	if !ok {
		return repositories.ErrGameNotFound
	}
	id := teamID
	if home {
		game.HomeTeamID = &id
	} else {
		game.AwayTeamID = &id
	}
	r.writes = append(r.writes, entrantWrite{gameID: gameID, teamID: &id, home: home})
	return nil
}

func (r *fakeGameRepo) ClearEntrant(ctx context.Context, exec repositories.SQLExecutor, gameID int, home bool) error {
	game, ok := r.games[gameID]
	if !ok {
		return repositories.ErrGameNotFound
	}
	if home {
		game.HomeTeamID = nil
	} else {
		game.AwayTeamID = nil
	}
	r.writes = append(r.writes, entrantWrite{gameID: gameID, home: home, cleared: true})
	return nil
}

func (r *fakeGameRepo) Delete(ctx context.Context, id int) error {
	delete(r.games, id)
	return nil
}

type fakeResultRepo struct {
	results map[int]models.GameResult
}

func newFakeResultRepo(results ...models.GameResult) *fakeResultRepo {
	r := &fakeResultRepo{results: make(map[int]models.GameResult)}
	for _, res := range results {
		r.results[res.GameID] = res
	}
	return r
}

func (r *fakeResultRepo) Create(ctx context.Context, exec repositories.SQLExecutor, result *models.GameResult) error {
	if _, exists := r.results[result.GameID]; exists {
		return repositories.ErrResultExists
	}
	r.results[result.GameID] = *result
	return nil
}

func (r *fakeResultRepo) GetByGameID(ctx context.Context, exec repositories.SQLExecutor, gameID int) (*models.GameResult, error) {
	result, ok := r.results[gameID]
	if !ok {
		return nil, repositories.ErrResultNotFound
	}
	return &result, nil
}

func (r *fakeResultRepo) ListByConference(ctx context.Context, exec repositories.SQLExecutor, conferenceID int) ([]models.GameResult, error) {
	var results []models.GameResult
	for id := 1; id <= maxFakeGameID; id++ {
		if result, ok := r.results[id]; ok {
			results = append(results, result)
		}
	}
	return results, nil
}

func (r *fakeResultRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, gameID int) error {
	if _, ok := r.results[gameID]; !ok {
		return repositories.ErrResultNotFound
	}
	delete(r.results, gameID)
	return nil
}

const maxFakeGameID = 16

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

// semisAndFinal is a four-team bracket: games 1 and 2 feed the home and
// away slots of championship game 3.
func semisAndFinal() []models.Game {
	return []models.Game{
		{ID: 1, ConferenceID: 1, PointValue: 1, HomeTeamID: intPtr(10), AwayTeamID: intPtr(20), NextGameID: intPtr(3), WinnerToHome: boolPtr(true)},
		{ID: 2, ConferenceID: 1, PointValue: 1, HomeTeamID: intPtr(30), AwayTeamID: intPtr(40), NextGameID: intPtr(3), WinnerToHome: boolPtr(false)},
		{ID: 3, ConferenceID: 1, PointValue: 2, IsChampionship: true},
	}
}

func newTestBracketService(games *fakeGameRepo, results *fakeResultRepo) (BracketService, *txRecorder) {
	db, rec := stubDB()
	return &bracketService{
		db:         db,
		gameRepo:   games,
		resultRepo: results,
		logger:     testLogger(),
	}, rec
}

func TestDeleteResult_ClearsFedSlot(t *testing.T) {
	fixture := semisAndFinal()
	fixture[2].HomeTeamID = intPtr(10) // game 1 already propagated
	games := newFakeGameRepo(fixture...)
	results := newFakeResultRepo(models.GameResult{ID: 1, GameID: 1, WinnerTeamID: 10})
	s, rec := newTestBracketService(games, results)

	require.NoError(t, s.DeleteResult(context.Background(), 1))

	_, stillRecorded := results.results[1]
	assert.False(t, stillRecorded)
	assert.Nil(t, games.games[3].HomeTeamID)
	require.Len(t, games.writes, 1)
	assert.Equal(t, entrantWrite{gameID: 3, home: true, cleared: true}, games.writes[0])
	assert.Equal(t, 1, rec.commits)
	assert.Equal(t, 0, rec.rollbacks)
}

func TestDeleteResult_RejectedWhileDownstreamResultExists(t *testing.T) {
	fixture := semisAndFinal()
	fixture[2].HomeTeamID = intPtr(10)
	fixture[2].AwayTeamID = intPtr(30)
	games := newFakeGameRepo(fixture...)
	results := newFakeResultRepo(
		models.GameResult{ID: 1, GameID: 1, WinnerTeamID: 10},
		models.GameResult{ID: 2, GameID: 2, WinnerTeamID: 30},
		models.GameResult{ID: 3, GameID: 3, WinnerTeamID: 10},
	)
	s, rec := newTestBracketService(games, results)

	// Retracting a semifinal result would orphan the championship's
	// recorded winner, so the whole operation rolls back.
	err := s.DeleteResult(context.Background(), 1)
	assert.ErrorIs(t, err, ErrGameNotReady)
	assert.Empty(t, games.writes)
	assert.Equal(t, 0, rec.commits)
	assert.Equal(t, 1, rec.rollbacks)
}

func TestDeleteResult_NoResultRecorded(t *testing.T) {
	games := newFakeGameRepo(semisAndFinal()...)
	results := newFakeResultRepo()
	s, rec := newTestBracketService(games, results)

	err := s.DeleteResult(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, rec.commits)
	assert.Equal(t, 1, rec.rollbacks)
}

func TestDeleteResult_UnknownGame(t *testing.T) {
	games := newFakeGameRepo(semisAndFinal()...)
	s, rec := newTestBracketService(games, newFakeResultRepo())

	err := s.DeleteResult(context.Background(), 99)
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.Equal(t, 0, rec.commits)
	assert.Equal(t, 1, rec.rollbacks)
}
