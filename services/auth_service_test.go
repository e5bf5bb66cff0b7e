package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/repositories"
)

type fakeUserRepo struct {
	mu         sync.Mutex
	users      map[int]*models.User
	nextID     int
	confirmed  []int
	createFail error
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int]*models.User), nextID: 1}
	for _, u := range users {
		r.users[u.ID] = u
		if u.ID >= r.nextID {
			r.nextID = u.ID + 1
		}
	}
	return r
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createFail != nil {
		return r.createFail
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByNickname(ctx context.Context, nickname string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Nickname == nickname {
			return user, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) List(ctx context.Context) ([]models.User, error)        { return nil, nil }
func (r *fakeUserRepo) ListFlagged(ctx context.Context) ([]models.User, error) { return nil, nil }

func (r *fakeUserRepo) Update(ctx context.Context, exec repositories.SQLExecutor, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) UpdateRemoteTokens(ctx context.Context, id int, access, refresh *string, refreshAfter *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.AccessToken = access
	user.RefreshToken = refresh
	user.RefreshAfter = refreshAfter
	return nil
}

func (r *fakeUserRepo) SetEmailConfirmed(ctx context.Context, exec repositories.SQLExecutor, id int, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok || user.Email == nil || *user.Email != email {
		return repositories.ErrUserNotFound
	}
	user.EmailConfirmed = true
	r.confirmed = append(r.confirmed, id)
	return nil
}

func (r *fakeUserRepo) SetApplicationFlag(ctx context.Context, id int, flagged bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.ApplicationFlag = flagged
	return nil
}

func (r *fakeUserRepo) SetRole(ctx context.Context, id int, role models.UserRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.Role = role
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeAPIKeyRepo struct {
	keys map[string]*models.APIKey
}

func newFakeAPIKeyRepo() *fakeAPIKeyRepo {
	return &fakeAPIKeyRepo{keys: make(map[string]*models.APIKey)}
}

func (r *fakeAPIKeyRepo) Create(ctx context.Context, key *models.APIKey) error {
	r.keys[key.ID] = key
	return nil
}

func (r *fakeAPIKeyRepo) GetByID(ctx context.Context, id string) (*models.APIKey, error) {
	key, ok := r.keys[id]
	if !ok {
		return nil, repositories.ErrAPIKeyNotFound
	}
	return key, nil
}

func (r *fakeAPIKeyRepo) DeleteByUser(ctx context.Context, exec repositories.SQLExecutor, userID int) error {
	for id, key := range r.keys {
		if key.UserID == userID {
			delete(r.keys, id)
		}
	}
	return nil
}

func (r *fakeAPIKeyRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.keys[id]; !ok {
		return repositories.ErrAPIKeyNotFound
	}
	delete(r.keys, id)
	return nil
}

type fakeProvider struct {
	identity *RemoteIdentity
	err      error
}

func (p *fakeProvider) AuthURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*RemoteIdentity, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.identity, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthService(users *fakeUserRepo, keys *fakeAPIKeyRepo, provider RemoteIdentityProvider) *authService {
	return &authService{
		userRepo:   users,
		apiKeyRepo: keys,
		provider:   provider,
		jwtSecret:  []byte("test-secret"),
		logger:     testLogger(),
		now:        time.Now,
	}
}

func strPtr(s string) *string { return &s }

func TestCompleteLogin_CreatesAccountOnFirstLogin(t *testing.T) {
	users := newFakeUserRepo()
	provider := &fakeProvider{identity: &RemoteIdentity{
		Nickname:     "hoops_fan",
		AccessToken:  "access",
		RefreshToken: "refresh",
		RefreshAfter: time.Now().Add(time.Hour),
	}}
	s := newTestAuthService(users, newFakeAPIKeyRepo(), provider)

	user, token, err := s.CompleteLogin(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "hoops_fan", user.Nickname)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.True(t, user.EmailReminders)
	require.NotNil(t, user.AccessToken)
	assert.Equal(t, "access", *user.AccessToken)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	assert.Equal(t, float64(user.ID), claims["user_id"])
	assert.Equal(t, "user", claims["role"])
	assert.Equal(t, "hoops_fan", claims["name"])
}

func TestCompleteLogin_ReusesExistingAccount(t *testing.T) {
	existing := &models.User{ID: 7, Nickname: "hoops_fan", Role: models.RoleAdmin}
	users := newFakeUserRepo(existing)
	provider := &fakeProvider{identity: &RemoteIdentity{Nickname: "hoops_fan"}}
	s := newTestAuthService(users, newFakeAPIKeyRepo(), provider)

	user, _, err := s.CompleteLogin(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Len(t, users.users, 1)
}

func TestCompleteLogin_InsertRaceFallsBackToWinner(t *testing.T) {
	users := newFakeUserRepo()
	users.createFail = repositories.ErrUserNicknameConflict
	winner := &models.User{ID: 3, Nickname: "hoops_fan", Role: models.RoleUser}
	provider := &fakeProvider{identity: &RemoteIdentity{Nickname: "hoops_fan"}}
	s := newTestAuthService(users, newFakeAPIKeyRepo(), provider)

	// Simulate the concurrent winner's row appearing between the failed
	// lookup and the conflicting insert.
	users.users[winner.ID] = winner

	user, _, err := s.CompleteLogin(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, 3, user.ID)
}

func TestCompleteLogin_ExchangeFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider down")}
	s := newTestAuthService(newFakeUserRepo(), newFakeAPIKeyRepo(), provider)

	_, _, err := s.CompleteLogin(context.Background(), "code")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestConfirmEmail_RoundTrip(t *testing.T) {
	user := &models.User{ID: 5, Nickname: "hoops_fan", Email: strPtr("fan@example.com")}
	users := newFakeUserRepo(user)
	s := newTestAuthService(users, newFakeAPIKeyRepo(), &fakeProvider{})

	token, err := s.GenerateConfirmationToken(user)
	require.NoError(t, err)

	require.NoError(t, s.ConfirmEmail(context.Background(), 5, token))
	assert.True(t, user.EmailConfirmed)
	assert.Equal(t, []int{5}, users.confirmed)
}

func TestConfirmEmail_TamperedToken(t *testing.T) {
	user := &models.User{ID: 5, Nickname: "hoops_fan", Email: strPtr("fan@example.com")}
	users := newFakeUserRepo(user)
	s := newTestAuthService(users, newFakeAPIKeyRepo(), &fakeProvider{})

	token, err := s.GenerateConfirmationToken(user)
	require.NoError(t, err)

	err = s.ConfirmEmail(context.Background(), 5, token+"x")
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
	assert.Empty(t, users.confirmed)
}

func TestConfirmEmail_ExpiredToken(t *testing.T) {
	user := &models.User{ID: 5, Nickname: "hoops_fan", Email: strPtr("fan@example.com")}
	users := newFakeUserRepo(user)
	s := newTestAuthService(users, newFakeAPIKeyRepo(), &fakeProvider{})

	issued := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	token, err := s.GenerateConfirmationToken(user)
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(confirmationTokenTTL + time.Minute) }
	err = s.ConfirmEmail(context.Background(), 5, token)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
	assert.Empty(t, users.confirmed)
}

func TestConfirmEmail_TokenForAnotherUser(t *testing.T) {
	owner := &models.User{ID: 7, Nickname: "ball_knower", Email: strPtr("knower@example.com")}
	users := newFakeUserRepo(owner, &models.User{ID: 5, Nickname: "hoops_fan", Email: strPtr("fan@example.com")})
	s := newTestAuthService(users, newFakeAPIKeyRepo(), &fakeProvider{})

	token, err := s.GenerateConfirmationToken(owner)
	require.NoError(t, err)

	// User 5 presenting user 7's link confirms nobody.
	err = s.ConfirmEmail(context.Background(), 5, token)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
	assert.False(t, owner.EmailConfirmed)
	assert.Empty(t, users.confirmed)
}

func TestConfirmEmail_StaleTokenForReplacedAddress(t *testing.T) {
	user := &models.User{ID: 5, Nickname: "hoops_fan", Email: strPtr("old@example.com")}
	users := newFakeUserRepo(user)
	s := newTestAuthService(users, newFakeAPIKeyRepo(), &fakeProvider{})

	token, err := s.GenerateConfirmationToken(user)
	require.NoError(t, err)

	// The address changed after the link went out.
	user.Email = strPtr("new@example.com")

	err = s.ConfirmEmail(context.Background(), 5, token)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
	assert.False(t, user.EmailConfirmed)
	assert.Empty(t, users.confirmed)
}

func TestGenerateConfirmationToken_RequiresEmail(t *testing.T) {
	s := newTestAuthService(newFakeUserRepo(), newFakeAPIKeyRepo(), &fakeProvider{})

	_, err := s.GenerateConfirmationToken(&models.User{ID: 5, Nickname: "hoops_fan"})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestIssueAPIKey_VerifiesWithRawKeyOnly(t *testing.T) {
	user := &models.User{ID: 5, Nickname: "hoops_fan"}
	users := newFakeUserRepo(user)
	keys := newFakeAPIKeyRepo()
	s := newTestAuthService(users, keys, &fakeProvider{})

	key, rawKey, err := s.IssueAPIKey(context.Background(), 5, "scoreboard bot")
	require.NoError(t, err)
	assert.Equal(t, "scoreboard bot", key.Label)
	assert.NotContains(t, rawKey, key.SecretHash)

	got, err := s.VerifyAPIKey(context.Background(), rawKey)
	require.NoError(t, err)
	assert.Equal(t, 5, got.ID)
}

func TestVerifyAPIKey_WrongSecret(t *testing.T) {
	user := &models.User{ID: 5, Nickname: "hoops_fan"}
	users := newFakeUserRepo(user)
	s := newTestAuthService(users, newFakeAPIKeyRepo(), &fakeProvider{})

	key, _, err := s.IssueAPIKey(context.Background(), 5, "bot")
	require.NoError(t, err)

	_, err = s.VerifyAPIKey(context.Background(), key.ID+".wrong-secret")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestVerifyAPIKey_MalformedKey(t *testing.T) {
	s := newTestAuthService(newFakeUserRepo(), newFakeAPIKeyRepo(), &fakeProvider{})

	for _, raw := range []string{"", "no-separator", ".secret-only", "id-only."} {
		_, err := s.VerifyAPIKey(context.Background(), raw)
		assert.ErrorIs(t, err, ErrAuthenticationFailed, "raw key %q", raw)
	}
}

func TestRevokeAPIKey_OwnerOnly(t *testing.T) {
	owner := &models.User{ID: 5, Nickname: "hoops_fan"}
	users := newFakeUserRepo(owner)
	keys := newFakeAPIKeyRepo()
	s := newTestAuthService(users, keys, &fakeProvider{})

	key, _, err := s.IssueAPIKey(context.Background(), 5, "bot")
	require.NoError(t, err)

	err = s.RevokeAPIKey(context.Background(), 6, key.ID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)
	assert.Len(t, keys.keys, 1)

	require.NoError(t, s.RevokeAPIKey(context.Background(), 5, key.ID))
	assert.Empty(t, keys.keys)
}
