package service

import (
	"context"
	"testing"
	"time"

	apperrors "coworking/pkg/errors"
	"coworking/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartLine(res *model.ReservationResult) model.CartLine {
	return model.CartLine{ResourceID: res.ResourceID, Start: res.Start, End: res.End, LockToken: res.Token}
}

func TestRevalidate_ActiveLockIsKeptAndRefreshed(t *testing.T) {
	h := newHarness(Config{})
	res := reserve(t, h, "meeting", "2025-06-10", "")

	h.clock.Advance(15 * time.Minute)
	result, err := h.svc.Revalidate(context.Background(), &model.RevalidationRequest{Lines: []model.CartLine{cartLine(res)}})
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, model.OutcomeKept, result.Lines[0].Outcome)
	assert.Zero(t, result.Evicted)

	h.clock.Advance(15 * time.Minute)
	assert.Equal(t, []string{res.Token}, activeTokens(t, h, "meeting"))
}

func TestRevalidate_ExpiredLockIsRestored(t *testing.T) {
	h := newHarness(Config{})
	res := reserve(t, h, "meeting", "2025-06-10", "")

	h.clock.Advance(25 * time.Minute)
	require.Empty(t, activeTokens(t, h, "meeting"))

	result, err := h.svc.Revalidate(context.Background(), &model.RevalidationRequest{Lines: []model.CartLine{cartLine(res)}})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeRestored, result.Lines[0].Outcome)
	assert.Equal(t, []string{res.Token}, activeTokens(t, h, "meeting"))
	assert.Empty(t, h.orderSystem.removed)
}

func TestRevalidate_TakenRangeIsEvicted(t *testing.T) {
	h := newHarness(Config{})
	res := reserve(t, h, "meeting", "2025-06-10", "2025-06-11")

	h.clock.Advance(25 * time.Minute)
	reserve(t, h, "meeting", "2025-06-11", "")

	result, err := h.svc.Revalidate(context.Background(), &model.RevalidationRequest{Lines: []model.CartLine{cartLine(res)}})
	require.NoError(t, err)

	require.Len(t, result.Lines, 1)
	line := result.Lines[0]
	assert.Equal(t, model.OutcomeEvicted, line.Outcome)
	assert.Equal(t, "2025-06-11", line.FailingDate)
	assert.Equal(t, 1, result.Evicted)

	assert.Equal(t, []string{res.Token}, h.orderSystem.removed)
	assert.Equal(t, model.StateReleased, h.drafts.get(res.Token).State)
	assert.Contains(t, h.publisher.types(), model.EventReservationEvicted)
}

func TestRevalidate_LeadTimeAndUnknownResource(t *testing.T) {
	h := newHarness(Config{})
	res := reserve(t, h, "meeting", "2025-06-02", "")

	h.clock.Advance(24 * time.Hour)

	result, err := h.svc.Revalidate(context.Background(), &model.RevalidationRequest{Lines: []model.CartLine{
		cartLine(res),
		{ResourceID: "ghost", Start: "2025-06-20", End: "2025-06-20", LockToken: "t-ghost"},
	}})
	require.NoError(t, err)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, model.OutcomeEvicted, result.Lines[0].Outcome)
	assert.Equal(t, "2025-06-02", result.Lines[0].FailingDate)
	assert.Equal(t, model.OutcomeEvicted, result.Lines[1].Outcome)
	assert.Equal(t, "resource no longer exists", result.Lines[1].Message)
	assert.Equal(t, 2, result.Evicted)
}

func TestRevalidate_Validation(t *testing.T) {
	h := newHarness(Config{})

	_, err := h.svc.Revalidate(context.Background(), &model.RevalidationRequest{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
