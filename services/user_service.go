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

// UserProfile is the outward view of an account, including derived voter
// status.
type UserProfile struct {
	models.User
	IsVoter bool `json:"is_voter"`
}

// UpdateProfileInput carries the editable fields. Nil pointers leave the
// current value untouched.
type UpdateProfileInput struct {
	Email          *string `json:"email"`
	EmailReminders *bool   `json:"email_reminders"`
	PMReminders    *bool   `json:"pm_reminders"`
}

type UserService interface {
	GetProfile(ctx context.Context, userID int) (*UserProfile, error)
	GetProfileByNickname(ctx context.Context, nickname string) (*UserProfile, error)
	List(ctx context.Context) ([]models.User, error)
	// UpdateProfile applies the edits; changing the email resets the
	// confirmed flag and re-sends the confirmation link.
	UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput) (*models.User, error)
	// ApplyAsVoter flags the account for moderator review.
	ApplyAsVoter(ctx context.Context, userID int) error
}

type userService struct {
	userRepo  repositories.UserRepository
	voters    VoterDirectory
	auth      AuthService
	email     *EmailService
	pm        PMSender
	logger    *slog.Logger
	sendAsync func(fn func())
}

func NewUserService(
	userRepo repositories.UserRepository,
	voters VoterDirectory,
	auth AuthService,
	email *EmailService,
	pm PMSender,
	logger *slog.Logger,
) UserService {
	return &userService{
		userRepo:  userRepo,
		voters:    voters,
		auth:      auth,
		email:     email,
		pm:        pm,
		logger:    logger,
		sendAsync: func(fn func()) { go fn() },
	}
}

func (s *userService) GetProfile(ctx context.Context, userID int) (*UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.buildProfile(ctx, user)
}

func (s *userService) GetProfileByNickname(ctx context.Context, nickname string) (*UserProfile, error) {
	user, err := s.userRepo.GetByNickname(ctx, nickname)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.buildProfile(ctx, user)
}

func (s *userService) buildProfile(ctx context.Context, user *models.User) (*UserProfile, error) {
	isVoter, err := s.voters.IsVoter(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve voter status: %w", err)
	}
	return &UserProfile{User: *user, IsVoter: isVoter}, nil
}

func (s *userService) List(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

func (s *userService) UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	emailChanged := false
	if input.Email != nil {
		addr := strings.TrimSpace(*input.Email)
		if addr == "" || !strings.Contains(addr, "@") {
			return nil, fmt.Errorf("%w: invalid email address", ErrValidationFailed)
		}
		if user.Email == nil || *user.Email != addr {
			user.Email = &addr
			// A new address starts unconfirmed until its link is followed.
			user.EmailConfirmed = false
			emailChanged = true
		}
	}
	if input.EmailReminders != nil {
		user.EmailReminders = *input.EmailReminders
	}
	if input.PMReminders != nil {
		user.PMReminders = *input.PMReminders
	}

	if err := s.userRepo.Update(ctx, nil, user); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if emailChanged {
		s.sendConfirmation(user)
	}
	return user, nil
}

// sendConfirmation delivers the link off the request path. Failures are
// logged; the user can request a resend.
func (s *userService) sendConfirmation(user *models.User) {
	token, err := s.auth.GenerateConfirmationToken(user)
	if err != nil {
		s.logger.Error("failed to generate confirmation token",
			slog.Int("user_id", user.ID), slog.Any("error", err))
		return
	}
	email := *user.Email
	nickname := user.Nickname
	userID := user.ID
	s.sendAsync(func() {
		if err := s.email.SendConfirmationEmail(email, nickname, token); err != nil {
			s.logger.Error("failed to send confirmation email",
				slog.Int("user_id", userID), slog.Any("error", err))
		}
	})
}

func (s *userService) ApplyAsVoter(ctx context.Context, userID int) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	isVoter, err := s.voters.IsVoter(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve voter status: %w", err)
	}
	if isVoter {
		return fmt.Errorf("%w: already a voter", ErrValidationFailed)
	}
	if !user.EmailConfirmed {
		return fmt.Errorf("%w: a confirmed email address is required to apply", ErrValidationFailed)
	}

	if err := s.userRepo.SetApplicationFlag(ctx, userID, true); err != nil {
		return err
	}
	s.logger.Info("voter application submitted", slog.Int("user_id", userID))

	if user.Email != nil && user.EmailReminders {
		email := *user.Email
		nickname := user.Nickname
		s.sendAsync(func() {
			if err := s.email.SendApplicationNotice(email, nickname); err != nil {
				s.logger.Error("failed to send application notice",
					slog.Int("user_id", userID), slog.Any("error", err))
			}
		})
	}
	if s.pm != nil && user.PMReminders {
		nickname := user.Nickname
		s.sendAsync(func() {
			if err := s.pm.SendPM(context.Background(), nickname,
				"Voter application received",
				"Your application is in the moderation queue."); err != nil {
				s.logger.Error("failed to send application pm",
					slog.Int("user_id", userID), slog.Any("error", err))
			}
		})
	}
	return nil
}
