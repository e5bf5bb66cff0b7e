package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/cbbpoll/models"
)

type fakeVoterDirectory struct {
	mu     sync.Mutex
	voters map[int]bool
}

func newFakeVoterDirectory(voterIDs ...int) *fakeVoterDirectory {
	d := &fakeVoterDirectory{voters: make(map[int]bool)}
	for _, id := range voterIDs {
		d.voters[id] = true
	}
	return d
}

func (d *fakeVoterDirectory) IsVoter(ctx context.Context, userID int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voters[userID], nil
}

func (d *fakeVoterDirectory) WasVoterAt(ctx context.Context, userID int, at time.Time) (bool, error) {
	return d.IsVoter(ctx, userID)
}

func (d *fakeVoterDirectory) SetVoter(ctx context.Context, userID int, isVoter bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.voters[userID] = isVoter
	return nil
}

func newTestAdminService(users *fakeUserRepo, voters VoterDirectory) *adminService {
	return &adminService{
		userRepo: users,
		voters:   voters,
		logger:   testLogger(),
	}
}

func TestPromoteVoters_GrantsStatusAndClearsApplication(t *testing.T) {
	users := newFakeUserRepo(
		&models.User{ID: 1, Nickname: "a", ApplicationFlag: true},
		&models.User{ID: 2, Nickname: "b", ApplicationFlag: true},
	)
	voters := newFakeVoterDirectory()
	s := newTestAdminService(users, voters)

	outcomes := s.PromoteVoters(context.Background(), []int{1, 2})
	require.Len(t, outcomes, 2)
	for _, outcome := range outcomes {
		assert.True(t, outcome.OK, "user %d", outcome.UserID)
	}

	for _, id := range []int{1, 2} {
		isVoter, err := voters.IsVoter(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, isVoter)
		assert.False(t, users.users[id].ApplicationFlag)
	}
}

func TestPromoteVoters_OneMissingUserDoesNotAbortTheRest(t *testing.T) {
	users := newFakeUserRepo(
		&models.User{ID: 1, Nickname: "a"},
		&models.User{ID: 3, Nickname: "c"},
	)
	voters := newFakeVoterDirectory()
	s := newTestAdminService(users, voters)

	outcomes := s.PromoteVoters(context.Background(), []int{1, 2, 3})
	require.Len(t, outcomes, 3)

	assert.True(t, outcomes[0].OK)
	assert.False(t, outcomes[1].OK)
	assert.Contains(t, outcomes[1].Error, "user not found")
	assert.True(t, outcomes[2].OK)

	isVoter, _ := voters.IsVoter(context.Background(), 3)
	assert.True(t, isVoter)
}

func TestPromoteVoters_OutcomesFollowInputOrder(t *testing.T) {
	userIDs := make([]int, 0, 40)
	seeded := make([]*models.User, 0, 40)
	for id := 1; id <= 40; id++ {
		userIDs = append(userIDs, id)
		seeded = append(seeded, &models.User{ID: id, Nickname: "u"})
	}
	s := newTestAdminService(newFakeUserRepo(seeded...), newFakeVoterDirectory())

	outcomes := s.PromoteVoters(context.Background(), userIDs)
	require.Len(t, outcomes, 40)
	for i, outcome := range outcomes {
		assert.Equal(t, userIDs[i], outcome.UserID)
	}
}

func TestDemoteVoters_RevokesStatus(t *testing.T) {
	users := newFakeUserRepo(&models.User{ID: 1, Nickname: "a"})
	voters := newFakeVoterDirectory(1)
	s := newTestAdminService(users, voters)

	outcomes := s.DemoteVoters(context.Background(), []int{1})
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].OK)

	isVoter, _ := voters.IsVoter(context.Background(), 1)
	assert.False(t, isVoter)
}

func TestClearApplicationFlags_LeavesVoterStatusAlone(t *testing.T) {
	users := newFakeUserRepo(&models.User{ID: 1, Nickname: "a", ApplicationFlag: true})
	voters := newFakeVoterDirectory(1)
	s := newTestAdminService(users, voters)

	outcomes := s.ClearApplicationFlags(context.Background(), []int{1})
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].OK)
	assert.False(t, users.users[1].ApplicationFlag)

	isVoter, _ := voters.IsVoter(context.Background(), 1)
	assert.True(t, isVoter)
}

func TestSetRole_RejectsUnknownRole(t *testing.T) {
	s := newTestAdminService(newFakeUserRepo(), newFakeVoterDirectory())

	err := s.SetRole(context.Background(), 1, models.UserRole("superuser"))
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestSetRole_MissingUser(t *testing.T) {
	s := newTestAdminService(newFakeUserRepo(), newFakeVoterDirectory())

	err := s.SetRole(context.Background(), 99, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
