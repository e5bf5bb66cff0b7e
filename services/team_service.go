package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/repositories"
	"github.com/courtside/cbbpoll/storage"
)

type CreateTeamInput struct {
	FullName   string `json:"full_name"`
	ShortName  string `json:"short_name"`
	Nickname   string `json:"nickname"`
	Conference string `json:"conference"`
}

type UpdateTeamInput struct {
	FullName   *string `json:"full_name"`
	ShortName  *string `json:"short_name"`
	Nickname   *string `json:"nickname"`
	Conference *string `json:"conference"`
}

type TeamService interface {
	CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error)
	GetTeam(ctx context.Context, id int) (*models.Team, error)
	GetTeamBySlug(ctx context.Context, teamSlug string) (*models.Team, error)
	ListTeams(ctx context.Context) ([]models.Team, error)
	// SearchTeams fuzzy-matches the query against full names, short names
	// and nicknames, best matches first.
	SearchTeams(ctx context.Context, query string, limit int) ([]models.Team, error)
	UpdateTeam(ctx context.Context, id int, input UpdateTeamInput) (*models.Team, error)
	UpdateTeamLogo(ctx context.Context, id int, file io.Reader, contentType string) (*models.Team, error)
	DeleteTeam(ctx context.Context, id int) error
}

type teamService struct {
	teamRepo repositories.TeamRepository
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewTeamService(teamRepo repositories.TeamRepository, uploader storage.FileUploader, logger *slog.Logger) TeamService {
	return &teamService{teamRepo: teamRepo, uploader: uploader, logger: logger}
}

func (s *teamService) CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error) {
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, ErrTeamNameRequired
	}

	team := &models.Team{
		FullName:   fullName,
		ShortName:  strings.TrimSpace(input.ShortName),
		Nickname:   strings.TrimSpace(input.Nickname),
		Slug:       slug.Make(fullName),
		Conference: strings.TrimSpace(input.Conference),
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamSlugConflict) {
			return nil, ErrTeamSlugConflict
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	s.logger.Info("team created", slog.Int("team_id", team.ID), slog.String("slug", team.Slug))
	s.populateLogoURL(team)
	return team, nil
}

func (s *teamService) GetTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	s.populateLogoURL(team)
	return team, nil
}

func (s *teamService) GetTeamBySlug(ctx context.Context, teamSlug string) (*models.Team, error) {
	team, err := s.teamRepo.GetBySlug(ctx, teamSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	s.populateLogoURL(team)
	return team, nil
}

func (s *teamService) ListTeams(ctx context.Context) ([]models.Team, error) {
	teams, err := s.teamRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		s.populateLogoURL(&teams[i])
	}
	return teams, nil
}

func (s *teamService) SearchTeams(ctx context.Context, query string, limit int) ([]models.Team, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Team{}, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	teams, err := s.teamRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		team models.Team
		rank int
	}
	matches := make([]scored, 0)
	for _, team := range teams {
		rank := bestRank(query, team.FullName, team.ShortName, team.Nickname)
		if rank < 0 {
			continue
		}
		matches = append(matches, scored{team: team, rank: rank})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].rank < matches[j].rank })

	if len(matches) > limit {
		matches = matches[:limit]
	}
	result := make([]models.Team, 0, len(matches))
	for _, m := range matches {
		s.populateLogoURL(&m.team)
		result = append(result, m.team)
	}
	return result, nil
}

// bestRank returns the lowest Levenshtein rank across the candidate
// names, or -1 when none matches.
func bestRank(query string, names ...string) int {
	best := -1
	for _, name := range names {
		if name == "" {
			continue
		}
		rank := fuzzy.RankMatchNormalizedFold(query, name)
		if rank < 0 {
			continue
		}
		if best < 0 || rank < best {
			best = rank
		}
	}
	return best
}

func (s *teamService) UpdateTeam(ctx context.Context, id int, input UpdateTeamInput) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	if input.FullName != nil {
		fullName := strings.TrimSpace(*input.FullName)
		if fullName == "" {
			return nil, ErrTeamNameRequired
		}
		team.FullName = fullName
		team.Slug = slug.Make(fullName)
	}
	if input.ShortName != nil {
		team.ShortName = strings.TrimSpace(*input.ShortName)
	}
	if input.Nickname != nil {
		team.Nickname = strings.TrimSpace(*input.Nickname)
	}
	if input.Conference != nil {
		team.Conference = strings.TrimSpace(*input.Conference)
	}

	if err := s.teamRepo.Update(ctx, team); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNotFound):
			return nil, ErrTeamNotFound
		case errors.Is(err, repositories.ErrTeamSlugConflict):
			return nil, ErrTeamSlugConflict
		default:
			return nil, fmt.Errorf("failed to update team: %w", err)
		}
	}
	s.populateLogoURL(team)
	return team, nil
}

func (s *teamService) UpdateTeamLogo(ctx context.Context, id int, file io.Reader, contentType string) (*models.Team, error) {
	team, err := s.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}

	ext, err := extensionForContentType(contentType)
	if err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: file storage is not configured", ErrValidationFailed)
	}

	key := fmt.Sprintf("logos/teams/%d%s", team.ID, ext)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}

	if err := s.teamRepo.UpdateLogoKey(ctx, team.ID, &result.Key); err != nil {
		return nil, fmt.Errorf("failed to store team logo key: %w", err)
	}
	team.LogoKey = &result.Key
	s.populateLogoURL(team)
	return team, nil
}

func extensionForContentType(contentType string) (string, error) {
	switch contentType {
	case "image/png":
		return ".png", nil
	case "image/jpeg":
		return ".jpg", nil
	case "image/svg+xml":
		return ".svg", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("%w: unsupported logo content type %q", ErrValidationFailed, contentType)
	}
}

func (s *teamService) DeleteTeam(ctx context.Context, id int) error {
	team, err := s.GetTeam(ctx, id)
	if err != nil {
		return err
	}

	if err := s.teamRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return err
	}

	if team.LogoKey != nil && s.uploader != nil {
		if err := s.uploader.Delete(ctx, *team.LogoKey); err != nil {
			s.logger.Warn("failed to delete team logo object",
				slog.Int("team_id", id), slog.Any("error", err))
		}
	}
	return nil
}

func (s *teamService) populateLogoURL(team *models.Team) {
	if team == nil || team.LogoKey == nil || *team.LogoKey == "" || s.uploader == nil {
		return
	}
	if url := s.uploader.GetPublicURL(*team.LogoKey); url != "" {
		team.LogoURL = &url
	}
}
