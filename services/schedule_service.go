package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/repositories"
)

type CreateGameInput struct {
	ConferenceID   int   `json:"conference_id"`
	PointValue     int   `json:"point_value"`
	HomeTeamID     *int  `json:"home_team_id"`
	AwayTeamID     *int  `json:"away_team_id"`
	NextGameID     *int  `json:"next_game_id"`
	WinnerToHome   *bool `json:"winner_to_home"`
	IsChampionship bool  `json:"is_championship"`
}

// ScheduleService maintains the static bracket structure: conferences and
// the games wired between them. Results and propagation live on
// BracketService.
type ScheduleService interface {
	CreateConference(ctx context.Context, conference *models.Conference) error
	GetConference(ctx context.Context, id int) (*models.Conference, error)
	ListConferences(ctx context.Context, season int) ([]models.Conference, error)
	DeleteConference(ctx context.Context, id int) error

	CreateGame(ctx context.Context, input CreateGameInput) (*models.Game, error)
	GetGame(ctx context.Context, id int) (*models.Game, error)
	UpdateGame(ctx context.Context, game *models.Game) error
	DeleteGame(ctx context.Context, id int) error
}

type scheduleService struct {
	conferenceRepo repositories.ConferenceRepository
	gameRepo       repositories.GameRepository
	logger         *slog.Logger
}

func NewScheduleService(
	conferenceRepo repositories.ConferenceRepository,
	gameRepo repositories.GameRepository,
	logger *slog.Logger,
) ScheduleService {
	return &scheduleService{
		conferenceRepo: conferenceRepo,
		gameRepo:       gameRepo,
		logger:         logger,
	}
}

func (s *scheduleService) CreateConference(ctx context.Context, conference *models.Conference) error {
	conference.Name = strings.TrimSpace(conference.Name)
	if conference.Name == "" {
		return fmt.Errorf("%w: conference name is required", ErrValidationFailed)
	}
	if conference.Season <= 0 {
		return fmt.Errorf("%w: season is required", ErrValidationFailed)
	}
	if err := s.conferenceRepo.Create(ctx, conference); err != nil {
		if errors.Is(err, repositories.ErrConferenceNameConflict) {
			return ErrConferenceConflict
		}
		return fmt.Errorf("failed to create conference: %w", err)
	}
	s.logger.Info("conference created",
		slog.Int("conference_id", conference.ID),
		slog.String("name", conference.Name),
		slog.Int("season", conference.Season))
	return nil
}

func (s *scheduleService) GetConference(ctx context.Context, id int) (*models.Conference, error) {
	conference, err := s.conferenceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrConferenceNotFound) {
			return nil, ErrConferenceNotFound
		}
		return nil, err
	}
	games, err := s.gameRepo.ListByConference(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	conference.Games = games
	return conference, nil
}

func (s *scheduleService) ListConferences(ctx context.Context, season int) ([]models.Conference, error) {
	return s.conferenceRepo.ListBySeason(ctx, season)
}

func (s *scheduleService) DeleteConference(ctx context.Context, id int) error {
	if err := s.conferenceRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrConferenceNotFound) {
			return ErrConferenceNotFound
		}
		return err
	}
	return nil
}

func (s *scheduleService) CreateGame(ctx context.Context, input CreateGameInput) (*models.Game, error) {
	game := &models.Game{
		ConferenceID:   input.ConferenceID,
		PointValue:     input.PointValue,
		HomeTeamID:     input.HomeTeamID,
		AwayTeamID:     input.AwayTeamID,
		NextGameID:     input.NextGameID,
		WinnerToHome:   input.WinnerToHome,
		IsChampionship: input.IsChampionship,
	}
	if err := s.validateWiring(game); err != nil {
		return nil, err
	}
	if err := s.gameRepo.Create(ctx, game); err != nil {
		return nil, s.mapGameError(err)
	}
	return game, nil
}

func (s *scheduleService) GetGame(ctx context.Context, id int) (*models.Game, error) {
	game, err := s.gameRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return game, nil
}

func (s *scheduleService) UpdateGame(ctx context.Context, game *models.Game) error {
	if err := s.validateWiring(game); err != nil {
		return err
	}
	if err := s.gameRepo.Update(ctx, game); err != nil {
		return s.mapGameError(err)
	}
	return nil
}

func (s *scheduleService) DeleteGame(ctx context.Context, id int) error {
	if err := s.gameRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return ErrGameNotFound
		}
		return err
	}
	return nil
}

// validateWiring enforces the structural rules on a single node; the
// cross-game rules (one feeder per slot, acyclicity) are enforced by the
// DB index and the bracket graph.
func (s *scheduleService) validateWiring(game *models.Game) error {
	if game.PointValue < 0 {
		return fmt.Errorf("%w: point value cannot be negative", ErrValidationFailed)
	}
	if game.IsChampionship && game.NextGameID != nil {
		return ErrChampionshipAdvances
	}
	if (game.NextGameID == nil) != (game.WinnerToHome == nil) {
		return ErrFeederSlotUnspecified
	}
	if game.HomeTeamID != nil && game.AwayTeamID != nil && *game.HomeTeamID == *game.AwayTeamID {
		return fmt.Errorf("%w: a team cannot occupy both slots", ErrValidationFailed)
	}
	return nil
}

func (s *scheduleService) mapGameError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrGameNotFound):
		return ErrGameNotFound
	case errors.Is(err, repositories.ErrGameFeederSlotTaken):
		return ErrBracketSlotConflict
	case errors.Is(err, repositories.ErrGameReferenceInvalid):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	default:
		return err
	}
}
