package services

import (
	"context"
	"time"

	"github.com/courtside/cbbpoll/models"
	"github.com/courtside/cbbpoll/repositories"
)

// VoterDirectory answers voter-eligibility questions. Eligibility is
// decided by the voter-application workflow, which lives outside this
// module; the domain services only depend on this small surface so they
// stay testable without it.
type VoterDirectory interface {
	IsVoter(ctx context.Context, userID int) (bool, error)
	WasVoterAt(ctx context.Context, userID int, at time.Time) (bool, error)
	SetVoter(ctx context.Context, userID int, isVoter bool) error
}

// eventVoterDirectory derives status from an append-only event log.
type eventVoterDirectory struct {
	events repositories.VoterEventRepository
}

func NewEventVoterDirectory(events repositories.VoterEventRepository) VoterDirectory {
	return &eventVoterDirectory{events: events}
}

func (d *eventVoterDirectory) IsVoter(ctx context.Context, userID int) (bool, error) {
	event, err := d.events.LatestForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return event != nil && event.IsVoter, nil
}

func (d *eventVoterDirectory) WasVoterAt(ctx context.Context, userID int, at time.Time) (bool, error) {
	event, err := d.events.LatestForUserAt(ctx, userID, at)
	if err != nil {
		return false, err
	}
	return event != nil && event.IsVoter, nil
}

func (d *eventVoterDirectory) SetVoter(ctx context.Context, userID int, isVoter bool) error {
	return d.events.Append(ctx, &models.VoterEvent{UserID: userID, IsVoter: isVoter})
}
