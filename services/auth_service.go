package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/repositories"
)

const (
	sessionTokenTTL      = 24 * time.Hour
	confirmationTokenTTL = 48 * time.Hour
)

// RemoteIdentity is what the identity provider vouches for after a
// successful OAuth exchange.
type RemoteIdentity struct {
	Nickname     string
	AccessToken  string
	RefreshToken string
	RefreshAfter time.Time
}

// RemoteIdentityProvider exchanges an OAuth authorization code for the
// remote account's identity. The production implementation talks to reddit.
type RemoteIdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*RemoteIdentity, error)
}

type AuthService interface {
	// LoginURL returns the provider URL to redirect the browser to,
	// together with the state nonce the callback must echo.
	LoginURL() (url string, state string)
	// CompleteLogin finishes the OAuth round trip, creating the account on
	// first login, and returns the user with a signed session token.
	CompleteLogin(ctx context.Context, code string) (*models.User, string, error)
	CurrentUser(ctx context.Context, userID int) (*models.User, error)

	// GenerateConfirmationToken issues a signed token binding the user to
	// the email address it was sent to.
	GenerateConfirmationToken(user *models.User) (string, error)
	// ConfirmEmail validates a confirmation token on behalf of the
	// authenticated user; a token minted for anyone else is rejected.
	ConfirmEmail(ctx context.Context, userID int, token string) error

	// IssueAPIKey creates a bot credential; the raw key is returned once.
	IssueAPIKey(ctx context.Context, userID int, label string) (*models.APIKey, string, error)
	VerifyAPIKey(ctx context.Context, rawKey string) (*models.User, error)
	RevokeAPIKey(ctx context.Context, userID int, keyID string) error
}

type authService struct {
	userRepo   repositories.UserRepository
	apiKeyRepo repositories.APIKeyRepository
	provider   RemoteIdentityProvider
	jwtSecret  []byte
	logger     *slog.Logger
	now        func() time.Time
}

func NewAuthService(
	userRepo repositories.UserRepository,
	apiKeyRepo repositories.APIKeyRepository,
	provider RemoteIdentityProvider,
	jwtSecret string,
	logger *slog.Logger,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		apiKeyRepo: apiKeyRepo,
		provider:   provider,
		jwtSecret:  []byte(jwtSecret),
		logger:     logger,
		now:        time.Now,
	}
}

func (s *authService) LoginURL() (string, string) {
	state := uuid.NewString()
	return s.provider.AuthURL(state), state
}

func (s *authService) CompleteLogin(ctx context.Context, code string) (*models.User, string, error) {
	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	user, err := s.upsertByIdentity(ctx, identity)
	if err != nil {
		return nil, "", err
	}

	token, err := s.signSessionToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// upsertByIdentity finds or creates the account for the remote nickname.
// A creation that loses the insert race to a concurrent first login falls
// back to the row the winner created.
func (s *authService) upsertByIdentity(ctx context.Context, identity *RemoteIdentity) (*models.User, error) {
	user, err := s.userRepo.GetByNickname(ctx, identity.Nickname)
	switch {
	case err == nil:
	case errors.Is(err, repositories.ErrUserNotFound):
		user = &models.User{
			Nickname:       identity.Nickname,
			Role:           models.RoleUser,
			EmailReminders: true,
		}
		if createErr := s.userRepo.Create(ctx, user); createErr != nil {
			if !errors.Is(createErr, repositories.ErrUserNicknameConflict) {
				return nil, fmt.Errorf("failed to create user: %w", createErr)
			}
			user, err = s.userRepo.GetByNickname(ctx, identity.Nickname)
			if err != nil {
				return nil, fmt.Errorf("failed to load user after conflict: %w", err)
			}
		} else {
			s.logger.Info("account created", slog.Int("user_id", user.ID), slog.String("nickname", user.Nickname))
		}
	default:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	refreshAfter := identity.RefreshAfter
	if err := s.userRepo.UpdateRemoteTokens(ctx, user.ID,
		&identity.AccessToken, &identity.RefreshToken, &refreshAfter); err != nil {
		return nil, fmt.Errorf("failed to store remote tokens: %w", err)
	}
	return user, nil
}

func (s *authService) signSessionToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"name":    user.Nickname,
		"iat":     now.Unix(),
		"exp":     now.Add(sessionTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func (s *authService) CurrentUser(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// confirmationClaims carries the user id and the address the link was sent
// to. Binding the email into the token means a link issued for an old
// address cannot confirm a newer one.
type confirmationClaims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (s *authService) GenerateConfirmationToken(user *models.User) (string, error) {
	if user.Email == nil || *user.Email == "" {
		return "", fmt.Errorf("%w: user has no email address", ErrValidationFailed)
	}
	now := s.now()
	claims := confirmationClaims{
		UserID: user.ID,
		Email:  *user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "email_confirmation",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(confirmationTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign confirmation token: %w", err)
	}
	return signed, nil
}

func (s *authService) ConfirmEmail(ctx context.Context, userID int, tokenString string) error {
	claims := &confirmationClaims{}
	// Expiry is checked against s.now below, not the parser's clock.
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.Subject != "email_confirmation" {
		return ErrTokenInvalidOrExpired
	}
	if claims.ExpiresAt == nil || !s.now().Before(claims.ExpiresAt.Time) {
		return ErrTokenInvalidOrExpired
	}
	// A token minted for a different account is useless to the caller.
	if claims.UserID != userID {
		return ErrTokenInvalidOrExpired
	}

	// The update matches on both id and email, so a stale token for a
	// replaced address confirms nothing.
	err = s.userRepo.SetEmailConfirmed(ctx, nil, claims.UserID, claims.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrTokenInvalidOrExpired
		}
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	s.logger.Info("email confirmed", slog.Int("user_id", claims.UserID))
	return nil
}

func (s *authService) IssueAPIKey(ctx context.Context, userID int, label string) (*models.APIKey, string, error) {
	if _, err := s.CurrentUser(ctx, userID); err != nil {
		return nil, "", err
	}

	keyID := uuid.NewString()
	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash api key secret: %w", err)
	}

	key := &models.APIKey{
		ID:         keyID,
		UserID:     userID,
		Label:      label,
		SecretHash: string(hash),
	}
	if err := s.apiKeyRepo.Create(ctx, key); err != nil {
		return nil, "", fmt.Errorf("failed to store api key: %w", err)
	}

	// Raw key format is "<id>.<secret>"; only the hash survives.
	return key, keyID + "." + secret, nil
}

func (s *authService) VerifyAPIKey(ctx context.Context, rawKey string) (*models.User, error) {
	keyID, secret, found := strings.Cut(rawKey, ".")
	if !found || keyID == "" || secret == "" {
		return nil, ErrAuthenticationFailed
	}

	key, err := s.apiKeyRepo.GetByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, repositories.ErrAPIKeyNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)) != nil {
		return nil, ErrAuthenticationFailed
	}
	return s.CurrentUser(ctx, key.UserID)
}

func (s *authService) RevokeAPIKey(ctx context.Context, userID int, keyID string) error {
	key, err := s.apiKeyRepo.GetByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, repositories.ErrAPIKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	if key.UserID != userID {
		return ErrForbiddenOperation
	}
	return s.apiKeyRepo.Delete(ctx, keyID)
}
