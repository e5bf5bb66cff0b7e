package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/repositories"
)

type PredictionService interface {
	// Submit records or replaces the user's pick for a game. Once a result
	// exists for the game the pick window is closed.
	Submit(ctx context.Context, userID, gameID, teamID int) (*models.Prediction, error)
	Get(ctx context.Context, userID, gameID int) (*models.Prediction, error)
	ListForSeason(ctx context.Context, userID, season int) ([]models.Prediction, error)
	// Score sums point values of the user's correct picks across a season.
	// Games without a recorded result contribute nothing.
	Score(ctx context.Context, userID, season int) (int, error)
	Leaderboard(ctx context.Context, season, limit int) ([]models.LeaderboardEntry, error)
}

type predictionService struct {
	db             *sql.DB
	predictionRepo repositories.PredictionRepository
	gameRepo       repositories.GameRepository
	resultRepo     repositories.ResultRepository
}

func NewPredictionService(
	db *sql.DB,
	predictionRepo repositories.PredictionRepository,
	gameRepo repositories.GameRepository,
	resultRepo repositories.ResultRepository,
) PredictionService {
	return &predictionService{
		db:             db,
		predictionRepo: predictionRepo,
		gameRepo:       gameRepo,
		resultRepo:     resultRepo,
	}
}

func (s *predictionService) Submit(ctx context.Context, userID, gameID, teamID int) (*models.Prediction, error) {
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

	// Lock the game row so a result cannot land between the window check
	// and the upsert.
	game, err := s.gameRepo.GetByIDForUpdate(ctx, tx, gameID)
	if err != nil {
		txErr = mapGameRepoError(err)
		return nil, txErr
	}

	if _, err := s.resultRepo.GetByGameID(ctx, tx, gameID); err == nil {
		txErr = fmt.Errorf("%w: game %d", ErrGameAlreadyDecided, gameID)
		return nil, txErr
	} else if !errors.Is(err, repositories.ErrResultNotFound) {
		txErr = err
		return nil, txErr
	}

	// Picks may be made before the bracket reaches the game; once entrants
	// are known the pick must be one of them.
	if game.EntrantsResolved() && !game.HasEntrant(teamID) {
		txErr = fmt.Errorf("%w: team %d, game %d", ErrWinnerNotEntrant, teamID, gameID)
		return nil, txErr
	}

	prediction := &models.Prediction{UserID: userID, GameID: gameID, TeamID: teamID}
	if err := s.predictionRepo.Upsert(ctx, tx, prediction); err != nil {
		if errors.Is(err, repositories.ErrPredictionInvalid) {
			txErr = fmt.Errorf("%w: %v", ErrValidationFailed, err)
		} else {
			txErr = err
		}
		return nil, txErr
	}

	if err := tx.Commit(); err != nil {
		txErr = fmt.Errorf("failed to commit prediction: %w", err)
		return nil, txErr
	}
	return prediction, nil
}

func (s *predictionService) Get(ctx context.Context, userID, gameID int) (*models.Prediction, error) {
	prediction, err := s.predictionRepo.GetByUserAndGame(ctx, userID, gameID)
	if err != nil {
		if errors.Is(err, repositories.ErrPredictionNotFound) {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	return prediction, nil
}

func (s *predictionService) ListForSeason(ctx context.Context, userID, season int) ([]models.Prediction, error) {
	return s.predictionRepo.ListByUserAndSeason(ctx, userID, season)
}

func (s *predictionService) Score(ctx context.Context, userID, season int) (int, error) {
	return s.predictionRepo.ScoreByUserAndSeason(ctx, userID, season)
}

func (s *predictionService) Leaderboard(ctx context.Context, season, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.predictionRepo.SeasonLeaderboard(ctx, season, limit)
}
