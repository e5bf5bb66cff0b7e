package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/cbbpoll/models"
)

// newTestUserService wires a user service whose async sends are recorded
// instead of executed, so no SMTP traffic happens in tests.
func newTestUserService(users *fakeUserRepo, voters VoterDirectory, scheduled *int) *userService {
	return &userService{
		userRepo:  users,
		voters:    voters,
		auth:      newTestAuthService(users, newFakeAPIKeyRepo(), &fakeProvider{}),
		pm:        NewNoopPMSender(testLogger()),
		logger:    testLogger(),
		sendAsync: func(fn func()) { *scheduled++ },
	}
}

func TestUpdateProfile_EmailChangeResetsConfirmation(t *testing.T) {
	user := &models.User{ID: 1, Nickname: "hoops_fan", Email: strPtr("old@example.com"), EmailConfirmed: true}
	users := newFakeUserRepo(user)
	var scheduled int
	s := newTestUserService(users, newFakeVoterDirectory(), &scheduled)

	updated, err := s.UpdateProfile(context.Background(), 1, UpdateProfileInput{Email: strPtr("new@example.com")})
	require.NoError(t, err)

	require.NotNil(t, updated.Email)
	assert.Equal(t, "new@example.com", *updated.Email)
	assert.False(t, updated.EmailConfirmed)
	assert.Equal(t, 1, scheduled, "a confirmation email should be scheduled")
}

func TestUpdateProfile_UnchangedEmailKeepsConfirmation(t *testing.T) {
	user := &models.User{ID: 1, Nickname: "hoops_fan", Email: strPtr("fan@example.com"), EmailConfirmed: true}
	users := newFakeUserRepo(user)
	var scheduled int
	s := newTestUserService(users, newFakeVoterDirectory(), &scheduled)

	updated, err := s.UpdateProfile(context.Background(), 1, UpdateProfileInput{Email: strPtr("fan@example.com")})
	require.NoError(t, err)
	assert.True(t, updated.EmailConfirmed)
	assert.Zero(t, scheduled)
}

func TestUpdateProfile_InvalidEmailRejected(t *testing.T) {
	user := &models.User{ID: 1, Nickname: "hoops_fan"}
	users := newFakeUserRepo(user)
	var scheduled int
	s := newTestUserService(users, newFakeVoterDirectory(), &scheduled)

	for _, addr := range []string{"", "   ", "not-an-address"} {
		_, err := s.UpdateProfile(context.Background(), 1, UpdateProfileInput{Email: strPtr(addr)})
		assert.ErrorIs(t, err, ErrValidationFailed, "email %q", addr)
	}
	assert.Zero(t, scheduled)
}

func TestUpdateProfile_TogglesReminderFlags(t *testing.T) {
	user := &models.User{ID: 1, Nickname: "hoops_fan", EmailReminders: true}
	users := newFakeUserRepo(user)
	var scheduled int
	s := newTestUserService(users, newFakeVoterDirectory(), &scheduled)

	off := false
	on := true
	updated, err := s.UpdateProfile(context.Background(), 1, UpdateProfileInput{
		EmailReminders: &off,
		PMReminders:    &on,
	})
	require.NoError(t, err)
	assert.False(t, updated.EmailReminders)
	assert.True(t, updated.PMReminders)
	assert.Zero(t, scheduled)
}

func TestApplyAsVoter_FlagsAccountAndSchedulesNotice(t *testing.T) {
	user := &models.User{
		ID: 1, Nickname: "hoops_fan",
		Email: strPtr("fan@example.com"), EmailConfirmed: true, EmailReminders: true,
	}
	users := newFakeUserRepo(user)
	var scheduled int
	s := newTestUserService(users, newFakeVoterDirectory(), &scheduled)

	require.NoError(t, s.ApplyAsVoter(context.Background(), 1))
	assert.True(t, users.users[1].ApplicationFlag)
	assert.Equal(t, 1, scheduled)
}

func TestApplyAsVoter_NoticeSkippedWhenRemindersOff(t *testing.T) {
	user := &models.User{
		ID: 1, Nickname: "hoops_fan",
		Email: strPtr("fan@example.com"), EmailConfirmed: true, EmailReminders: false,
	}
	users := newFakeUserRepo(user)
	var scheduled int
	s := newTestUserService(users, newFakeVoterDirectory(), &scheduled)

	require.NoError(t, s.ApplyAsVoter(context.Background(), 1))
	assert.True(t, users.users[1].ApplicationFlag)
	assert.Zero(t, scheduled)
}

func TestApplyAsVoter_PMNoticeFollowsPMReminders(t *testing.T) {
	user := &models.User{
		ID: 1, Nickname: "hoops_fan",
		Email: strPtr("fan@example.com"), EmailConfirmed: true, PMReminders: true,
	}
	users := newFakeUserRepo(user)
	var scheduled int
	s := newTestUserService(users, newFakeVoterDirectory(), &scheduled)

	require.NoError(t, s.ApplyAsVoter(context.Background(), 1))
	assert.Equal(t, 1, scheduled, "the pm notice alone should be scheduled")
}

func TestApplyAsVoter_RequiresConfirmedEmail(t *testing.T) {
	user := &models.User{ID: 1, Nickname: "hoops_fan", Email: strPtr("fan@example.com")}
	users := newFakeUserRepo(user)
	var scheduled int
	s := newTestUserService(users, newFakeVoterDirectory(), &scheduled)

	err := s.ApplyAsVoter(context.Background(), 1)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.False(t, users.users[1].ApplicationFlag)
}

func TestApplyAsVoter_AlreadyVoterRejected(t *testing.T) {
	user := &models.User{ID: 1, Nickname: "hoops_fan", Email: strPtr("fan@example.com"), EmailConfirmed: true}
	users := newFakeUserRepo(user)
	var scheduled int
	s := newTestUserService(users, newFakeVoterDirectory(1), &scheduled)

	err := s.ApplyAsVoter(context.Background(), 1)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestGetProfile_IncludesVoterStatus(t *testing.T) {
	user := &models.User{ID: 1, Nickname: "hoops_fan"}
	users := newFakeUserRepo(user)
	var scheduled int
	s := newTestUserService(users, newFakeVoterDirectory(1), &scheduled)

	profile, err := s.GetProfile(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, profile.IsVoter)
	assert.Equal(t, "hoops_fan", profile.Nickname)
}
