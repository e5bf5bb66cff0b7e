package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/courtside/cbbpoll/brackets"
	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/repositories"
)

type BracketService interface {
	// RecordResult declares the winner of a game and, when the game feeds a
	// later one, advances the winner into the designated slot there. The
	// result row and the slot write commit or roll back together.
	RecordResult(ctx context.Context, gameID, winnerTeamID int) (*models.GameResult, error)
	// ResolvedEntrants returns the current entrants of a game; either may be
	// nil while the bracket has not reached the game yet.
	ResolvedEntrants(ctx context.Context, gameID int) (home, away *int, err error)
	// ConferenceBracket returns a conference's games with entrants and
	// results attached.
	ConferenceBracket(ctx context.Context, conferenceID int) ([]models.Game, error)
	// Recompute re-derives every fed slot of a conference's bracket from its
	// stored results. The outcome always equals the incrementally
	// propagated state; running it twice changes nothing.
	Recompute(ctx context.Context, conferenceID int) ([]models.Game, error)
	// DeleteResult retracts a recorded result and re-derives the bracket
	// without it. Results downstream of the retracted one must be deleted
	// first or the recompute will reject them.
	DeleteResult(ctx context.Context, gameID int) error
}

type bracketService struct {
	db         *sql.DB
	gameRepo   repositories.GameRepository
	resultRepo repositories.ResultRepository
	hub        *brackets.Hub
	logger     *slog.Logger
}

func NewBracketService(
	db *sql.DB,
	gameRepo repositories.GameRepository,
	resultRepo repositories.ResultRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		db:         db,
		gameRepo:   gameRepo,
		resultRepo: resultRepo,
		hub:        hub,
		logger:     logger,
	}
}

func (s *bracketService) RecordResult(ctx context.Context, gameID, winnerTeamID int) (*models.GameResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed after record result error",
					slog.Int("game_id", gameID), slog.Any("error", rbErr))
			}
		}
	}()

	// Row lock serializes concurrent result submissions for the same game;
	// the unique index on game_results is the backstop.
	game, err := s.gameRepo.GetByIDForUpdate(ctx, tx, gameID)
	if err != nil {
		txErr = mapGameRepoError(err)
		return nil, txErr
	}

	if _, err := s.resultRepo.GetByGameID(ctx, tx, gameID); err == nil {
		txErr = ErrResultAlreadyRecorded
		return nil, txErr
	} else if !errors.Is(err, repositories.ErrResultNotFound) {
		txErr = err
		return nil, txErr
	}

	if !game.EntrantsResolved() {
		txErr = fmt.Errorf("%w: game %d", ErrGameNotReady, gameID)
		return nil, txErr
	}
	if !game.HasEntrant(winnerTeamID) {
		txErr = fmt.Errorf("%w: team %d, game %d", ErrWinnerNotEntrant, winnerTeamID, gameID)
		return nil, txErr
	}

	result := &models.GameResult{GameID: gameID, WinnerTeamID: winnerTeamID}
	if err := s.resultRepo.Create(ctx, tx, result); err != nil {
		if errors.Is(err, repositories.ErrResultExists) {
			txErr = ErrResultAlreadyRecorded
		} else {
			txErr = fmt.Errorf("failed to create result for game %d: %w", gameID, err)
		}
		return nil, txErr
	}

	if game.NextGameID != nil && !game.IsChampionship {
		if err := s.gameRepo.SetEntrant(ctx, tx, *game.NextGameID, winnerTeamID, *game.WinnerToHome); err != nil {
			txErr = fmt.Errorf("failed to advance winner into game %d: %w", *game.NextGameID, err)
			return nil, txErr
		}
	}

	if err := tx.Commit(); err != nil {
		txErr = fmt.Errorf("failed to commit result for game %d: %w", gameID, err)
		return nil, txErr
	}

	if s.hub != nil {
		s.hub.Publish(brackets.Event{
			Type:         brackets.EventResultRecorded,
			ConferenceID: game.ConferenceID,
			Payload:      result,
		})
	}
	return result, nil
}

func (s *bracketService) ResolvedEntrants(ctx context.Context, gameID int) (home, away *int, err error) {
	game, err := s.gameRepo.GetByID(ctx, nil, gameID)
	if err != nil {
		return nil, nil, mapGameRepoError(err)
	}
	return game.HomeTeamID, game.AwayTeamID, nil
}

func (s *bracketService) ConferenceBracket(ctx context.Context, conferenceID int) ([]models.Game, error) {
	games, err := s.gameRepo.ListByConference(ctx, nil, conferenceID)
	if err != nil {
		return nil, err
	}
	results, err := s.resultRepo.ListByConference(ctx, nil, conferenceID)
	if err != nil {
		return nil, err
	}

	byGame := make(map[int]models.GameResult, len(results))
	for _, result := range results {
		byGame[result.GameID] = result
	}
	for i := range games {
		if result, ok := byGame[games[i].ID]; ok {
			r := result
			games[i].Result = &r
		}
	}
	return games, nil
}

func (s *bracketService) Recompute(ctx context.Context, conferenceID int) ([]models.Game, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	rebuilt, err := s.recomputeIn(ctx, tx, conferenceID)
	if err != nil {
		txErr = err
		return nil, txErr
	}

	if err := tx.Commit(); err != nil {
		txErr = fmt.Errorf("failed to commit bracket recompute: %w", err)
		return nil, txErr
	}

	if s.hub != nil {
		s.hub.Publish(brackets.Event{
			Type:         brackets.EventBracketRebuilt,
			ConferenceID: conferenceID,
			Payload:      rebuilt,
		})
	}
	return rebuilt, nil
}

// recomputeIn rebuilds a conference's derived entrants on the caller's
// executor and writes only the slots that changed. The caller owns the
// transaction boundary.
func (s *bracketService) recomputeIn(ctx context.Context, exec repositories.SQLExecutor, conferenceID int) ([]models.Game, error) {
	stored, err := s.gameRepo.ListByConference(ctx, exec, conferenceID)
	if err != nil {
		return nil, err
	}
	results, err := s.resultRepo.ListByConference(ctx, exec, conferenceID)
	if err != nil {
		return nil, err
	}

	graph, err := brackets.NewGraph(stored)
	if err != nil {
		return nil, mapBracketError(err)
	}
	if err := graph.Rebuild(results); err != nil {
		return nil, mapBracketError(err)
	}

	rebuilt := graph.Games()
	byID := make(map[int]models.Game, len(stored))
	for _, game := range stored {
		byID[game.ID] = game
	}
	for _, game := range rebuilt {
		prev := byID[game.ID]
		if !sameEntrant(prev.HomeTeamID, game.HomeTeamID) {
			if err := s.writeEntrant(ctx, exec, game.ID, game.HomeTeamID, true); err != nil {
				return nil, err
			}
		}
		if !sameEntrant(prev.AwayTeamID, game.AwayTeamID) {
			if err := s.writeEntrant(ctx, exec, game.ID, game.AwayTeamID, false); err != nil {
				return nil, err
			}
		}
	}
	return rebuilt, nil
}

func (s *bracketService) DeleteResult(ctx context.Context, gameID int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	var txErr error
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	game, err := s.gameRepo.GetByIDForUpdate(ctx, tx, gameID)
	if err != nil {
		txErr = mapGameRepoError(err)
		return txErr
	}

	if err := s.resultRepo.Delete(ctx, tx, gameID); err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			txErr = ErrNotFound
		} else {
			txErr = fmt.Errorf("failed to delete result for game %d: %w", gameID, err)
		}
		return txErr
	}

	// Downstream slots fed by the retracted winner are stale now; rebuild
	// the conference from the remaining results. Running it on the same
	// transaction means a rebuild failure rolls the deletion back too.
	rebuilt, err := s.recomputeIn(ctx, tx, game.ConferenceID)
	if err != nil {
		txErr = fmt.Errorf("bracket recompute after result deletion: %w", err)
		return txErr
	}

	if err := tx.Commit(); err != nil {
		txErr = fmt.Errorf("failed to commit result deletion for game %d: %w", gameID, err)
		return txErr
	}
	s.logger.Info("result retracted", slog.Int("game_id", gameID))

	if s.hub != nil {
		s.hub.Publish(brackets.Event{
			Type:         brackets.EventBracketRebuilt,
			ConferenceID: game.ConferenceID,
			Payload:      rebuilt,
		})
	}
	return nil
}

func (s *bracketService) writeEntrant(ctx context.Context, exec repositories.SQLExecutor, gameID int, teamID *int, home bool) error {
	if teamID == nil {
		return s.gameRepo.ClearEntrant(ctx, exec, gameID, home)
	}
	return s.gameRepo.SetEntrant(ctx, exec, gameID, *teamID, home)
}

func sameEntrant(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mapGameRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrGameNotFound):
		return ErrGameNotFound
	case errors.Is(err, repositories.ErrGameFeederSlotTaken):
		return ErrBracketSlotConflict
	default:
		return err
	}
}

func mapBracketError(err error) error {
	switch {
	case errors.Is(err, brackets.ErrSlotConflict):
		return fmt.Errorf("%w: %v", ErrBracketSlotConflict, err)
	case errors.Is(err, brackets.ErrNotEntrant):
		return fmt.Errorf("%w: %v", ErrWinnerNotEntrant, err)
	case errors.Is(err, brackets.ErrEntrantsUnresolved):
		return fmt.Errorf("%w: %v", ErrGameNotReady, err)
	case errors.Is(err, brackets.ErrAlreadyResolved):
		return fmt.Errorf("%w: %v", ErrResultAlreadyRecorded, err)
	case errors.Is(err, brackets.ErrUnknownGame):
		return fmt.Errorf("%w: %v", ErrGameNotFound, err)
	default:
		return err
	}
}
