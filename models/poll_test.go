package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollIsOpenAt_WindowIsHalfOpen(t *testing.T) {
	open := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
	poll := Poll{OpenTime: open, CloseTime: open.Add(48 * time.Hour)}

	assert.False(t, poll.IsOpenAt(open.Add(-time.Second)))
	assert.True(t, poll.IsOpenAt(open), "open instant is inclusive")
	assert.True(t, poll.IsOpenAt(open.Add(24*time.Hour)))
	assert.False(t, poll.IsOpenAt(poll.CloseTime), "close instant is exclusive")
	assert.False(t, poll.IsOpenAt(poll.CloseTime.Add(time.Hour)))
}

func TestPollHasCompletedAt(t *testing.T) {
	open := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
	poll := Poll{OpenTime: open, CloseTime: open.Add(48 * time.Hour)}

	assert.False(t, poll.HasCompletedAt(open))
	assert.False(t, poll.HasCompletedAt(poll.CloseTime.Add(-time.Second)))
	assert.True(t, poll.HasCompletedAt(poll.CloseTime))
	assert.True(t, poll.HasCompletedAt(poll.CloseTime.Add(time.Hour)))
}
