package service

import (
	"context"
	"errors"

	"coworking/internal/calendar"
	"coworking/internal/locks"
	apperrors "coworking/pkg/errors"
	"coworking/pkg/model"
	"coworking/pkg/sanitizer"
)

// Revalidate is run before payment. A line whose hold is still active is
// refreshed; an expired one is re-acquired under the same token if the range
// is still free, and evicted from the cart otherwise.
func (s *bookingService) Revalidate(ctx context.Context, req *model.RevalidationRequest) (*model.RevalidationResult, error) {
	for i := range req.Lines {
		req.Lines[i].ResourceID = sanitizer.NormalizeIdentifier(req.Lines[i].ResourceID)
		req.Lines[i].LockToken = sanitizer.NormalizeIdentifier(req.Lines[i].LockToken)
	}
	if err := s.validator.ValidateRevalidation(req); err != nil {
		s.log.Warn("Revalidation request validation failed", "error", err)
		return nil, apperrors.Validation("Revalidation request validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	result := &model.RevalidationResult{Lines: make([]model.LineResult, 0, len(req.Lines))}
	for _, line := range req.Lines {
		lr, err := s.revalidateLine(ctx, line)
		if err != nil {
			return nil, err
		}
		if lr.Outcome == model.OutcomeEvicted {
			result.Evicted++
		}
		result.Lines = append(result.Lines, lr)
	}

	s.log.Info("Cart revalidated",
		"lines", len(result.Lines),
		"evicted", result.Evicted,
	)
	return result, nil
}

func (s *bookingService) revalidateLine(ctx context.Context, line model.CartLine) (model.LineResult, error) {
	lr := model.LineResult{LockToken: line.LockToken, ResourceID: line.ResourceID}

	r, err := calendar.ParseRange(line.Start, line.End)
	if err != nil {
		return s.evict(ctx, line, lr, "", err.Error()), nil
	}

	if _, held, err := s.locks.Refresh(ctx, line.ResourceID, line.LockToken); err != nil {
		return lr, s.lockError(line.ResourceID, err)
	} else if held {
		lr.Outcome = model.OutcomeKept
		return lr, nil
	}

	if err := s.availability.CheckLeadTime(r.Start); err != nil {
		return s.evict(ctx, line, lr, r.Start.String(), errorMessage(err)), nil
	}

	snapshot, err := s.availability.Snapshot(ctx, line.ResourceID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return s.evict(ctx, line, lr, "", "resource no longer exists"), nil
		}
		return lr, err
	}

	_, err = s.locks.Acquire(ctx, locks.LockRequest{
		ResourceID: line.ResourceID,
		Range:      r,
		Token:      line.LockToken,
		Quantity:   1,
		Capacity:   snapshot.Capacity,
	}, s.availability.Guard(ctx, snapshot, r, 1))
	if err == nil {
		lr.Outcome = model.OutcomeRestored
		s.log.Info("Expired lock restored",
			"resource_id", line.ResourceID,
			"token", line.LockToken,
		)
		return lr, nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.CodeRangeUnavailable {
		date, _ := appErr.Details["date"].(string)
		return s.evict(ctx, line, lr, date, appErr.Message), nil
	}
	return lr, s.lockError(line.ResourceID, err)
}

// evict removes the line from the cart and releases its draft. Cart removal
// failures are logged only; the line is reported evicted either way.
func (s *bookingService) evict(ctx context.Context, line model.CartLine, lr model.LineResult, failingDate, message string) model.LineResult {
	detached := context.WithoutCancel(ctx)
	if err := s.orderSystem.RemoveFromCart(detached, line.LockToken); err != nil {
		s.log.Warn("Failed to remove evicted line from cart",
			"token", line.LockToken,
			"error", err,
		)
	}
	s.releaseDraft(detached, line.LockToken)

	s.publish(detached, model.BookingEvent{
		Type:        model.EventReservationEvicted,
		ResourceID:  line.ResourceID,
		Token:       line.LockToken,
		Start:       line.Start,
		End:         line.End,
		FailingDate: failingDate,
	})
	s.log.Info("Cart line evicted",
		"resource_id", line.ResourceID,
		"token", line.LockToken,
		"failing_date", failingDate,
	)

	lr.Outcome = model.OutcomeEvicted
	lr.FailingDate = failingDate
	lr.Message = message
	return lr
}

func errorMessage(err error) string {
	return apperrors.AsAppError(err).Message
}
