package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/repositories"
)

// batchWorkers bounds concurrent per-user work in batch operations.
const batchWorkers = 8

// BatchOutcome reports what happened to one id of a batch request.
type BatchOutcome struct {
	UserID int    `json:"user_id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

type AdminService interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListApplicants(ctx context.Context) ([]models.User, error)
	SetRole(ctx context.Context, userID int, role models.UserRole) error

	// PromoteVoters and DemoteVoters process each id independently; one
	// failing id never aborts the rest.
	PromoteVoters(ctx context.Context, userIDs []int) []BatchOutcome
	DemoteVoters(ctx context.Context, userIDs []int) []BatchOutcome
	ClearApplicationFlags(ctx context.Context, userIDs []int) []BatchOutcome

	// DeleteUser removes the account and everything hanging off it in one
	// transaction. Child rows are deleted explicitly, leaves first.
	DeleteUser(ctx context.Context, userID int) error
}

type adminService struct {
	db             *sql.DB
	userRepo       repositories.UserRepository
	ballotRepo     repositories.BallotRepository
	predictionRepo repositories.PredictionRepository
	apiKeyRepo     repositories.APIKeyRepository
	voterEvents    repositories.VoterEventRepository
	voters         VoterDirectory
	logger         *slog.Logger
}

func NewAdminService(
	db *sql.DB,
	userRepo repositories.UserRepository,
	ballotRepo repositories.BallotRepository,
	predictionRepo repositories.PredictionRepository,
	apiKeyRepo repositories.APIKeyRepository,
	voterEvents repositories.VoterEventRepository,
	voters VoterDirectory,
	logger *slog.Logger,
) AdminService {
	return &adminService{
		db:             db,
		userRepo:       userRepo,
		ballotRepo:     ballotRepo,
		predictionRepo: predictionRepo,
		apiKeyRepo:     apiKeyRepo,
		voterEvents:    voterEvents,
		voters:         voters,
		logger:         logger,
	}
}

func (s *adminService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

func (s *adminService) ListApplicants(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListFlagged(ctx)
}

func (s *adminService) SetRole(ctx context.Context, userID int, role models.UserRole) error {
	if role != models.RoleUser && role != models.RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", ErrValidationFailed, role)
	}
	if err := s.userRepo.SetRole(ctx, userID, role); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.logger.Info("user role changed", slog.Int("user_id", userID), slog.String("role", string(role)))
	return nil
}

func (s *adminService) PromoteVoters(ctx context.Context, userIDs []int) []BatchOutcome {
	return s.runBatch(ctx, userIDs, func(ctx context.Context, userID int) error {
		if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := s.voters.SetVoter(ctx, userID, true); err != nil {
			return err
		}
		// Promotion resolves any pending application.
		return s.userRepo.SetApplicationFlag(ctx, userID, false)
	})
}

func (s *adminService) DemoteVoters(ctx context.Context, userIDs []int) []BatchOutcome {
	return s.runBatch(ctx, userIDs, func(ctx context.Context, userID int) error {
		if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return s.voters.SetVoter(ctx, userID, false)
	})
}

func (s *adminService) ClearApplicationFlags(ctx context.Context, userIDs []int) []BatchOutcome {
	return s.runBatch(ctx, userIDs, func(ctx context.Context, userID int) error {
		err := s.userRepo.SetApplicationFlag(ctx, userID, false)
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	})
}

// runBatch applies fn to every id with bounded concurrency and collects
// per-id outcomes in input order.
func (s *adminService) runBatch(ctx context.Context, userIDs []int, fn func(context.Context, int) error) []BatchOutcome {
	outcomes := make([]BatchOutcome, 0, len(userIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchWorkers)
	for _, userID := range userIDs {
		userID := userID
		g.Go(func() error {
			outcome := BatchOutcome{UserID: userID, OK: true}
			if err := fn(gctx, userID); err != nil {
				outcome.OK = false
				outcome.Error = err.Error()
				s.logger.Warn("batch operation failed for user",
					slog.Int("user_id", userID), slog.Any("error", err))
			}
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
			return nil // errors are reported per id, never group-fatal
		})
	}
	_ = g.Wait()

	order := make(map[int]int, len(userIDs))
	for i, id := range userIDs {
		if _, ok := order[id]; !ok {
			order[id] = i
		}
	}
	sort.SliceStable(outcomes, func(i, j int) bool {
		return order[outcomes[i].UserID] < order[outcomes[j].UserID]
	})
	return outcomes
}

func (s *adminService) DeleteUser(ctx context.Context, userID int) error {
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

	if err := s.ballotRepo.DeleteByUser(ctx, tx, userID); err != nil {
		txErr = fmt.Errorf("failed to delete ballots: %w", err)
		return txErr
	}
	if err := s.predictionRepo.DeleteByUser(ctx, tx, userID); err != nil {
		txErr = fmt.Errorf("failed to delete predictions: %w", err)
		return txErr
	}
	if err := s.apiKeyRepo.DeleteByUser(ctx, tx, userID); err != nil {
		txErr = fmt.Errorf("failed to delete api keys: %w", err)
		return txErr
	}
	if err := s.voterEvents.DeleteByUser(ctx, tx, userID); err != nil {
		txErr = fmt.Errorf("failed to delete voter events: %w", err)
		return txErr
	}
	if err := s.userRepo.Delete(ctx, tx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			txErr = ErrUserNotFound
		} else {
			txErr = fmt.Errorf("failed to delete user: %w", err)
		}
		return txErr
	}

	if err := tx.Commit(); err != nil {
		txErr = fmt.Errorf("failed to commit user delete: %w", err)
		return txErr
	}
	s.logger.Info("user deleted", slog.Int("user_id", userID))
	return nil
}
