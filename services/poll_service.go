package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/repositories"
)

// BallotEntry is one ranked slot of an incoming ballot, best team first.
type BallotEntry struct {
	TeamID int    `json:"team_id"`
	Reason string `json:"reason,omitempty"`
}

type PollService interface {
	CreatePoll(ctx context.Context, poll *models.Poll) error
	GetPoll(ctx context.Context, pollID int) (*models.Poll, error)
	GetPollForWeek(ctx context.Context, season, week int) (*models.Poll, error)
	ListSeason(ctx context.Context, season int) ([]models.Poll, error)
	// SubmitBallot replaces the user's ballot for an open poll with the
	// given ranking, first entry = rank 1.
	SubmitBallot(ctx context.Context, userID, pollID int, entries []BallotEntry) (*models.Ballot, error)
	GetBallot(ctx context.Context, userID, pollID int) (*models.Ballot, error)
	// Aggregate computes the poll's ranking from its ballots. Pure over the
	// stored ballots: permuting submission order changes nothing.
	Aggregate(ctx context.Context, pollID int) ([]models.PollResult, error)
	// RecomputeResults realizes the aggregate into poll_results.
	RecomputeResults(ctx context.Context, pollID int) ([]models.PollResult, error)
	Results(ctx context.Context, pollID int) ([]models.PollResult, error)
	// SweepClosedPolls recomputes results for polls that closed within the
	// lookback window. The scheduler calls this periodically.
	SweepClosedPolls(ctx context.Context, lookback time.Duration) error
	DeletePoll(ctx context.Context, pollID int) error
}

type pollService struct {
	db         *sql.DB
	pollRepo   repositories.PollRepository
	ballotRepo repositories.BallotRepository
	ballotSize int
	logger     *slog.Logger
	now        func() time.Time
}

func NewPollService(
	db *sql.DB,
	pollRepo repositories.PollRepository,
	ballotRepo repositories.BallotRepository,
	ballotSize int,
	logger *slog.Logger,
) PollService {
	return &pollService{
		db:         db,
		pollRepo:   pollRepo,
		ballotRepo: ballotRepo,
		ballotSize: ballotSize,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *pollService) CreatePoll(ctx context.Context, poll *models.Poll) error {
	if !poll.OpenTime.Before(poll.CloseTime) {
		return ErrPollWindowInvalid
	}
	if err := s.pollRepo.Create(ctx, poll); err != nil {
		if errors.Is(err, repositories.ErrPollWeekConflict) {
			return ErrPollWeekConflict
		}
		return err
	}
	return nil
}

func (s *pollService) GetPoll(ctx context.Context, pollID int) (*models.Poll, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		if errors.Is(err, repositories.ErrPollNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	return poll, nil
}

func (s *pollService) GetPollForWeek(ctx context.Context, season, week int) (*models.Poll, error) {
	poll, err := s.pollRepo.GetBySeasonWeek(ctx, season, week)
	if err != nil {
		if errors.Is(err, repositories.ErrPollNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, err
	}
	return poll, nil
}

func (s *pollService) ListSeason(ctx context.Context, season int) ([]models.Poll, error) {
	return s.pollRepo.ListBySeason(ctx, season)
}

func (s *pollService) SubmitBallot(ctx context.Context, userID, pollID int, entries []BallotEntry) (*models.Ballot, error) {
	poll, err := s.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.IsOpenAt(s.now()) {
		return nil, fmt.Errorf("%w: poll %d", ErrPollClosed, pollID)
	}
	votes, err := s.validateEntries(entries)
	if err != nil {
		return nil, err
	}

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

	ballot := &models.Ballot{UserID: userID, PollID: pollID, Votes: votes}
	if err := s.ballotRepo.Replace(ctx, tx, ballot); err != nil {
		switch {
		case errors.Is(err, repositories.ErrBallotConflict):
			txErr = ErrBallotRace
		case errors.Is(err, repositories.ErrBallotInvalid):
			txErr = fmt.Errorf("%w: %v", ErrValidationFailed, err)
		default:
			txErr = err
		}
		return nil, txErr
	}

	if err := tx.Commit(); err != nil {
		txErr = fmt.Errorf("failed to commit ballot: %w", err)
		return nil, txErr
	}
	return ballot, nil
}

func (s *pollService) validateEntries(entries []BallotEntry) ([]models.Vote, error) {
	if len(entries) != s.ballotSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBallotWrongSize, len(entries), s.ballotSize)
	}
	seen := make(map[int]bool, len(entries))
	votes := make([]models.Vote, 0, len(entries))
	for i, entry := range entries {
		if seen[entry.TeamID] {
			return nil, fmt.Errorf("%w: team %d", ErrBallotDuplicateTeam, entry.TeamID)
		}
		seen[entry.TeamID] = true
		if len(entry.Reason) > models.MaxVoteReasonLen {
			return nil, fmt.Errorf("%w: rank %d", ErrVoteReasonTooLong, i+1)
		}
		votes = append(votes, models.Vote{TeamID: entry.TeamID, Rank: i + 1, Reason: entry.Reason})
	}
	return votes, nil
}

func (s *pollService) GetBallot(ctx context.Context, userID, pollID int) (*models.Ballot, error) {
	ballot, err := s.ballotRepo.GetByUserAndPoll(ctx, userID, pollID)
	if err != nil {
		if errors.Is(err, repositories.ErrBallotNotFound) {
			return nil, ErrBallotNotFound
		}
		return nil, err
	}
	return ballot, nil
}

func (s *pollService) Aggregate(ctx context.Context, pollID int) ([]models.PollResult, error) {
	if _, err := s.GetPoll(ctx, pollID); err != nil {
		return nil, err
	}
	ballots, err := s.ballotRepo.ListByPoll(ctx, nil, pollID)
	if err != nil {
		return nil, err
	}
	return AggregateBallots(pollID, ballots, s.ballotSize), nil
}

// AggregateBallots folds ballots into the poll ranking. A vote at rank r
// earns ballotSize-r+1 points; teams order by score, then first-place
// votes, then team id for determinism.
func AggregateBallots(pollID int, ballots []models.Ballot, ballotSize int) []models.PollResult {
	type tally struct {
		score      int
		firstPlace int
	}
	tallies := make(map[int]*tally)
	for _, ballot := range ballots {
		for _, vote := range ballot.Votes {
			t, ok := tallies[vote.TeamID]
			if !ok {
				t = &tally{}
				tallies[vote.TeamID] = t
			}
			points := ballotSize - vote.Rank + 1
			if points < 0 {
				points = 0
			}
			t.score += points
			if vote.Rank == 1 {
				t.firstPlace++
			}
		}
	}

	results := make([]models.PollResult, 0, len(tallies))
	for teamID, t := range tallies {
		results = append(results, models.PollResult{
			PollID:          pollID,
			TeamID:          teamID,
			Score:           t.score,
			FirstPlaceVotes: t.firstPlace,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].FirstPlaceVotes != results[j].FirstPlaceVotes {
			return results[i].FirstPlaceVotes > results[j].FirstPlaceVotes
		}
		return results[i].TeamID < results[j].TeamID
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

func (s *pollService) RecomputeResults(ctx context.Context, pollID int) ([]models.PollResult, error) {
	if _, err := s.GetPoll(ctx, pollID); err != nil {
		return nil, err
	}

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

	// Ballots are read on the same transaction as the rewrite so the
	// persisted ranking matches one consistent snapshot.
	ballots, err := s.ballotRepo.ListByPoll(ctx, tx, pollID)
	if err != nil {
		txErr = err
		return nil, txErr
	}
	results := AggregateBallots(pollID, ballots, s.ballotSize)

	if err := s.pollRepo.ReplaceResults(ctx, tx, pollID, results); err != nil {
		txErr = err
		return nil, txErr
	}
	if err := tx.Commit(); err != nil {
		txErr = fmt.Errorf("failed to commit poll results: %w", err)
		return nil, txErr
	}
	return results, nil
}

func (s *pollService) Results(ctx context.Context, pollID int) ([]models.PollResult, error) {
	return s.pollRepo.GetResults(ctx, pollID)
}

func (s *pollService) SweepClosedPolls(ctx context.Context, lookback time.Duration) error {
	now := s.now()
	polls, err := s.pollRepo.ListClosedSince(ctx, now.Add(-lookback), now)
	if err != nil {
		return err
	}
	for _, poll := range polls {
		if _, err := s.RecomputeResults(ctx, poll.ID); err != nil {
			s.logger.Error("failed to recompute poll results",
				slog.Int("poll_id", poll.ID), slog.Any("error", err))
			continue
		}
		s.logger.Info("poll results recomputed",
			slog.Int("poll_id", poll.ID), slog.Int("season", poll.Season), slog.Int("week", poll.Week))
	}
	return nil
}

func (s *pollService) DeletePoll(ctx context.Context, pollID int) error {
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

	// Children before parent: votes, ballots and results hang off the poll.
	if err := s.ballotRepo.DeleteByPoll(ctx, tx, pollID); err != nil {
		txErr = err
		return txErr
	}
	if err := s.pollRepo.ReplaceResults(ctx, tx, pollID, nil); err != nil {
		txErr = err
		return txErr
	}
	if err := s.pollRepo.Delete(ctx, tx, pollID); err != nil {
		if errors.Is(err, repositories.ErrPollNotFound) {
			txErr = ErrPollNotFound
		} else {
			txErr = err
		}
		return txErr
	}
	if err := tx.Commit(); err != nil {
		txErr = fmt.Errorf("failed to commit poll delete: %w", err)
		return txErr
	}
	return nil
}
