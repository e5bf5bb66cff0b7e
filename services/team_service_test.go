package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/repositories"
)

type fakeTeamRepo struct {
	teams  map[int]*models.Team
	nextID int
}

func newFakeTeamRepo(teams ...*models.Team) *fakeTeamRepo {
	r := &fakeTeamRepo{teams: make(map[int]*models.Team), nextID: 1}
	for _, team := range teams {
		r.teams[team.ID] = team
		if team.ID >= r.nextID {
			r.nextID = team.ID + 1
		}
	}
	return r
}

func (r *fakeTeamRepo) Create(ctx context.Context, team *models.Team) error {
	for _, existing := range r.teams {
		if existing.Slug == team.Slug {
			return repositories.ErrTeamSlugConflict
		}
	}
	team.ID = r.nextID
	r.nextID++
	r.teams[team.ID] = team
	return nil
}

func (r *fakeTeamRepo) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	copied := *team
	return &copied, nil
}

func (r *fakeTeamRepo) GetBySlug(ctx context.Context, teamSlug string) (*models.Team, error) {
	for _, team := range r.teams {
		if team.Slug == teamSlug {
			copied := *team
			return &copied, nil
		}
	}
	return nil, repositories.ErrTeamNotFound
}

func (r *fakeTeamRepo) List(ctx context.Context) ([]models.Team, error) {
	teams := make([]models.Team, 0, len(r.teams))
	for id := 1; id < r.nextID; id++ {
		if team, ok := r.teams[id]; ok {
			teams = append(teams, *team)
		}
	}
	return teams, nil
}

func (r *fakeTeamRepo) Update(ctx context.Context, team *models.Team) error {
	if _, ok := r.teams[team.ID]; !ok {
		return repositories.ErrTeamNotFound
	}
	for _, existing := range r.teams {
		if existing.ID != team.ID && existing.Slug == team.Slug {
			return repositories.ErrTeamSlugConflict
		}
	}
	copied := *team
	r.teams[team.ID] = &copied
	return nil
}

func (r *fakeTeamRepo) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	team, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.LogoKey = logoKey
	return nil
}

func (r *fakeTeamRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.teams, id)
	return nil
}

func newTestTeamService(repo *fakeTeamRepo) TeamService {
	return NewTeamService(repo, nil, testLogger())
}

func TestCreateTeam_DerivesSlugFromFullName(t *testing.T) {
	s := newTestTeamService(newFakeTeamRepo())

	team, err := s.CreateTeam(context.Background(), CreateTeamInput{
		FullName:  "  University of North Carolina  ",
		ShortName: "UNC",
		Nickname:  "Tar Heels",
	})
	require.NoError(t, err)
	assert.Equal(t, "University of North Carolina", team.FullName)
	assert.Equal(t, "university-of-north-carolina", team.Slug)
}

func TestCreateTeam_BlankNameRejected(t *testing.T) {
	s := newTestTeamService(newFakeTeamRepo())

	_, err := s.CreateTeam(context.Background(), CreateTeamInput{FullName: "   "})
	assert.ErrorIs(t, err, ErrTeamNameRequired)
}

func TestCreateTeam_DuplicateSlugConflicts(t *testing.T) {
	s := newTestTeamService(newFakeTeamRepo())

	_, err := s.CreateTeam(context.Background(), CreateTeamInput{FullName: "Duke University"})
	require.NoError(t, err)

	_, err = s.CreateTeam(context.Background(), CreateTeamInput{FullName: "Duke  University"})
	assert.ErrorIs(t, err, ErrTeamSlugConflict)
}

func TestUpdateTeam_RenameRederivesSlug(t *testing.T) {
	repo := newFakeTeamRepo(&models.Team{ID: 1, FullName: "Old Name", Slug: "old-name"})
	s := newTestTeamService(repo)

	newName := "Gonzaga University"
	team, err := s.UpdateTeam(context.Background(), 1, UpdateTeamInput{FullName: &newName})
	require.NoError(t, err)
	assert.Equal(t, "gonzaga-university", team.Slug)
}

func TestUpdateTeam_PartialUpdateKeepsOtherFields(t *testing.T) {
	repo := newFakeTeamRepo(&models.Team{
		ID: 1, FullName: "Gonzaga University", Slug: "gonzaga-university",
		ShortName: "Gonzaga", Nickname: "Bulldogs",
	})
	s := newTestTeamService(repo)

	nickname := "Zags"
	team, err := s.UpdateTeam(context.Background(), 1, UpdateTeamInput{Nickname: &nickname})
	require.NoError(t, err)
	assert.Equal(t, "Zags", team.Nickname)
	assert.Equal(t, "Gonzaga University", team.FullName)
	assert.Equal(t, "gonzaga-university", team.Slug)
}

func TestSearchTeams_ExactNameBeatsLooserMatch(t *testing.T) {
	repo := newFakeTeamRepo(
		&models.Team{ID: 1, FullName: "University of Kansas", ShortName: "Kansas", Slug: "university-of-kansas"},
		&models.Team{ID: 2, FullName: "Kansas State University", ShortName: "Kansas State", Slug: "kansas-state-university"},
		&models.Team{ID: 3, FullName: "Duke University", ShortName: "Duke", Slug: "duke-university"},
	)
	s := newTestTeamService(repo)

	teams, err := s.SearchTeams(context.Background(), "Kansas", 10)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "Kansas", teams[0].ShortName)
	assert.Equal(t, "Kansas State", teams[1].ShortName)
}

func TestSearchTeams_MatchesNickname(t *testing.T) {
	repo := newFakeTeamRepo(
		&models.Team{ID: 1, FullName: "Gonzaga University", ShortName: "Gonzaga", Nickname: "Zags", Slug: "gonzaga-university"},
		&models.Team{ID: 2, FullName: "Duke University", ShortName: "Duke", Slug: "duke-university"},
	)
	s := newTestTeamService(repo)

	teams, err := s.SearchTeams(context.Background(), "zags", 10)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, 1, teams[0].ID)
}

func TestSearchTeams_BlankQueryReturnsNothing(t *testing.T) {
	repo := newFakeTeamRepo(&models.Team{ID: 1, FullName: "Duke University", Slug: "duke-university"})
	s := newTestTeamService(repo)

	teams, err := s.SearchTeams(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, teams)
}

func TestSearchTeams_LimitCapsResults(t *testing.T) {
	repo := newFakeTeamRepo(
		&models.Team{ID: 1, FullName: "Kansas Alpha", Slug: "kansas-alpha"},
		&models.Team{ID: 2, FullName: "Kansas Beta", Slug: "kansas-beta"},
		&models.Team{ID: 3, FullName: "Kansas Gamma", Slug: "kansas-gamma"},
	)
	s := newTestTeamService(repo)

	teams, err := s.SearchTeams(context.Background(), "Kansas", 2)
	require.NoError(t, err)
	assert.Len(t, teams, 2)
}

func TestBestRank_NoMatch(t *testing.T) {
	assert.Equal(t, -1, bestRank("xyzzy", "Duke University", "Duke", ""))
}

func TestDeleteTeam_MissingTeam(t *testing.T) {
	s := newTestTeamService(newFakeTeamRepo())

	err := s.DeleteTeam(context.Background(), 42)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}
