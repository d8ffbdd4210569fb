package service

import (
	"context"
	"errors"
	"time"

	bookingserrors "coworking/internal/bookings/errors"
	"coworking/internal/bookings/repository"
	"coworking/internal/calendar"
	apperrors "coworking/pkg/errors"
	"coworking/pkg/model"
	"coworking/pkg/sanitizer"
)

// HandleOrderEvent routes an order lifecycle notification. Statuses that
// neither confirm nor undo a reservation are acknowledged and ignored.
func (s *bookingService) HandleOrderEvent(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
	if err := s.checkOrderEvent(event); err != nil {
		return nil, err
	}

	switch {
	case event.Status.Finalizes():
		return s.finalize(ctx, event)
	case event.Status.Releases():
		return s.cancel(ctx, event)
	default:
		s.log.Debug("Ignoring order event", "order_id", event.OrderID, "status", event.Status)
		return &model.OrderOutcome{OrderID: event.OrderID, Action: model.ActionIgnored}, nil
	}
}

func (s *bookingService) Finalize(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
	if err := s.checkOrderEvent(event); err != nil {
		return nil, err
	}
	return s.finalize(ctx, event)
}

func (s *bookingService) Cancel(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
	if err := s.checkOrderEvent(event); err != nil {
		return nil, err
	}
	return s.cancel(ctx, event)
}

func (s *bookingService) checkOrderEvent(event *model.OrderEvent) error {
	event.OrderID = sanitizer.NormalizeIdentifier(event.OrderID)
	if event.Customer != nil {
		event.Customer.Name = sanitizer.NormalizeName(event.Customer.Name)
		event.Customer.Email = sanitizer.NormalizeEmail(event.Customer.Email)
	}
	for i := range event.Lines {
		event.Lines[i].LockToken = sanitizer.NormalizeIdentifier(event.Lines[i].LockToken)
		event.Lines[i].ResourceID = sanitizer.NormalizeIdentifier(event.Lines[i].ResourceID)
	}

	if err := s.validator.ValidateOrderEvent(event); err != nil {
		s.log.Warn("Order event validation failed",
			"order_id", event.OrderID,
			"error", err,
		)
		return apperrors.Validation("Order event validation failed", map[string]any{
			"error": err.Error(),
		})
	}
	return nil
}

// finalize confirms every line of the order in one transaction guarded by
// the order's processed flag, then releases the locks. A replayed event
// changes nothing.
func (s *bookingService) finalize(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
	record := event.Consent || s.cfg.RecordAnonymousSpans

	var (
		outcome   *model.OrderOutcome
		lines     []model.OrderLine
		duplicate bool
	)
	err := s.drafts.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		outcome = &model.OrderOutcome{OrderID: event.OrderID, Action: model.ActionFinalized}
		duplicate = false

		existing, err := s.orders.FindByID(txCtx, event.OrderID)
		if err != nil && !errors.Is(err, bookingserrors.ErrOrderNotFound) {
			return apperrors.Internal("Failed to read order", err)
		}
		if existing != nil && existing.Processed {
			duplicate = true
			return nil
		}

		lines, outcome.Skipped, err = s.resolveLines(txCtx, event.Lines)
		if err != nil {
			return err
		}

		if record {
			if outcome.Recorded, err = s.recordLines(txCtx, event, lines); err != nil {
				return err
			}
		}
		if err := s.settleDrafts(txCtx, event, lines, record); err != nil {
			return err
		}

		order := &model.Order{
			ID:      event.OrderID,
			Status:  event.Status,
			Consent: event.Consent,
			Lines:   lines,
		}
		if err := s.orders.MarkProcessed(txCtx, order); err != nil {
			return apperrors.Internal("Failed to mark order processed", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("Failed to finalize order",
			"order_id", event.OrderID,
			"error", err,
		)
		return nil, s.storeError("Failed to finalize order", err)
	}

	if duplicate {
		s.log.Info("Order already processed", "order_id", event.OrderID)
		outcome.Action = model.ActionDuplicate
		return outcome, nil
	}

	outcome.LocksReleased = s.releaseLocks(ctx, lines)

	eventType := model.EventReservationConfirmed
	if !record {
		eventType = model.EventReservationReleased
	}
	for _, line := range lines {
		s.publish(ctx, model.BookingEvent{
			Type:       eventType,
			ResourceID: line.ResourceID,
			Token:      line.LockToken,
			OrderID:    event.OrderID,
			Start:      line.Start,
			End:        line.End,
		})
	}

	if !event.Consent {
		s.log.Info("Order finalized without consent, personal data not stored",
			"order_id", event.OrderID,
			"spans_recorded", record,
		)
	}
	s.log.Info("Order finalized",
		"order_id", event.OrderID,
		"lines", len(lines),
		"recorded", outcome.Recorded,
		"locks_released", outcome.LocksReleased,
	)
	return outcome, nil
}

// cancel undoes a finalized order. For an order that was never finalized it
// only releases whatever holds are left.
func (s *bookingService) cancel(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
	outcome := &model.OrderOutcome{OrderID: event.OrderID, Action: model.ActionCancelled}

	order, err := s.orders.FindByID(ctx, event.OrderID)
	if err != nil && !errors.Is(err, bookingserrors.ErrOrderNotFound) {
		s.log.Error("Failed to read order", "order_id", event.OrderID, "error", err)
		return nil, apperrors.Internal("Failed to read order", err)
	}

	if order == nil || !order.Processed {
		lines, skipped, err := s.resolveLines(ctx, event.Lines)
		if err != nil {
			return nil, s.storeError("Failed to cancel order", err)
		}
		outcome.Skipped = skipped
		for _, line := range lines {
			s.releaseDraft(ctx, line.LockToken)
		}
		outcome.LocksReleased = s.releaseLocks(ctx, lines)
		s.publishReleased(ctx, event.OrderID, lines)
		s.log.Info("Cancelled order was never finalized", "order_id", event.OrderID, "locks_released", outcome.LocksReleased)
		return outcome, nil
	}

	err = s.drafts.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		outcome.Removed = 0
		for _, resourceID := range resourceIDs(order.Lines) {
			n, err := s.reservations.RemoveByOrder(txCtx, resourceID, order.ID)
			if err != nil {
				return apperrors.Internal("Failed to remove confirmed reservations", err)
			}
			outcome.Removed += n
		}
		if _, err := s.drafts.ReleaseByOrder(txCtx, order.ID); err != nil {
			return apperrors.Internal("Failed to release drafts", err)
		}
		if err := s.orders.ClearProcessed(txCtx, order.ID, event.Status); err != nil {
			return apperrors.Internal("Failed to clear processed flag", err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("Failed to cancel order", "order_id", event.OrderID, "error", err)
		return nil, s.storeError("Failed to cancel order", err)
	}

	outcome.LocksReleased = s.releaseLocks(ctx, order.Lines)
	s.publishReleased(ctx, order.ID, order.Lines)

	s.log.Info("Order cancelled",
		"order_id", order.ID,
		"status", event.Status,
		"removed", outcome.Removed,
	)
	return outcome, nil
}

// Rebuild recomputes a resource's confirmed set from the processed orders
// that reference it.
func (s *bookingService) Rebuild(ctx context.Context, resourceID string) (*model.RebuildResult, error) {
	resourceID = sanitizer.NormalizeIdentifier(resourceID)
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}
	if _, err := s.availability.Snapshot(ctx, resourceID); err != nil {
		return nil, err
	}

	orders, err := s.orders.FindProcessedByResource(ctx, resourceID)
	if err != nil {
		s.log.Error("Failed to load processed orders", "resource_id", resourceID, "error", err)
		return nil, apperrors.Internal("Failed to load processed orders", err)
	}

	result := &model.RebuildResult{ResourceID: resourceID}
	records := []model.OccupancyRecord{}
	for _, order := range orders {
		if !order.Consent && !s.cfg.RecordAnonymousSpans {
			continue
		}
		result.Orders++
		for _, line := range order.Lines {
			if line.ResourceID != resourceID {
				continue
			}
			r, err := calendar.ParseRange(line.Start, line.End)
			if err != nil {
				s.log.Warn("Skipping unreadable order line", "order_id", order.ID, "token", line.LockToken, "error", err)
				continue
			}
			records = append(records, occupancyFor(order.ID, line, r, order.Consent))
		}
	}

	if err := s.reservations.Replace(ctx, resourceID, records); err != nil {
		s.log.Error("Failed to replace confirmed reservations", "resource_id", resourceID, "error", err)
		return nil, apperrors.Internal("Failed to rebuild confirmed reservations", err)
	}
	result.Records = len(records)

	s.log.Info("Confirmed reservations rebuilt",
		"resource_id", resourceID,
		"orders", result.Orders,
		"records", result.Records,
	)
	return result, nil
}

// resolveLines completes each line from its draft and drops lines that still
// lack a resource or a readable range. Duplicate tokens are collapsed.
func (s *bookingService) resolveLines(ctx context.Context, in []model.OrderLine) ([]model.OrderLine, []string, error) {
	resolved := make([]model.OrderLine, 0, len(in))
	var skipped []string
	seen := make(map[string]struct{}, len(in))

	for _, line := range in {
		if _, dup := seen[line.LockToken]; dup {
			continue
		}
		seen[line.LockToken] = struct{}{}

		draft, err := s.drafts.FindByToken(ctx, line.LockToken)
		switch {
		case err == nil:
			line = fillFromDraft(line, draft)
		case !errors.Is(err, bookingserrors.ErrDraftNotFound):
			return nil, nil, apperrors.Internal("Failed to load reservation draft", err)
		}

		if line.ResourceID == "" {
			skipped = append(skipped, line.LockToken)
			continue
		}
		r, err := calendar.ParseRange(line.Start, line.End)
		if err != nil {
			skipped = append(skipped, line.LockToken)
			continue
		}
		line.Start, line.End = r.Start.String(), r.End.String()
		resolved = append(resolved, line)
	}

	if len(skipped) > 0 {
		s.log.Warn("Order lines could not be resolved", "tokens", skipped)
	}
	return resolved, skipped, nil
}

func fillFromDraft(line model.OrderLine, draft *model.Draft) model.OrderLine {
	if line.ResourceID == "" {
		line.ResourceID = draft.ResourceID
	}
	if line.Tier == "" {
		line.Tier = draft.Tier
	}
	if line.Start == "" {
		line.Start = draft.Start
	}
	if line.End == "" {
		line.End = draft.End
	}
	if line.Price == 0 {
		line.Price = draft.Price
	}
	return line
}

func (s *bookingService) recordLines(ctx context.Context, event *model.OrderEvent, lines []model.OrderLine) (int, error) {
	byResource := make(map[string][]model.OccupancyRecord)
	for _, line := range lines {
		r, _ := calendar.ParseRange(line.Start, line.End)
		byResource[line.ResourceID] = append(byResource[line.ResourceID], occupancyFor(event.OrderID, line, r, event.Consent))
	}

	added := 0
	for _, resourceID := range resourceIDs(lines) {
		n, err := s.reservations.Append(ctx, resourceID, byResource[resourceID])
		if err != nil {
			return 0, apperrors.Internal("Failed to record confirmed reservation", err)
		}
		added += n
	}
	return added, nil
}

// occupancyFor builds the confirmed record of a line. Without consent only
// dates, quantity, order reference and the dedupe token are kept.
func occupancyFor(orderID string, line model.OrderLine, r calendar.Range, consent bool) model.OccupancyRecord {
	record := model.OccupancyRecord{
		Start:    r.Start,
		End:      r.End,
		Quantity: 1,
		OrderID:  orderID,
		Token:    line.LockToken,
	}
	if consent {
		record.Tier = line.Tier
	}
	return record
}

func (s *bookingService) settleDrafts(ctx context.Context, event *model.OrderEvent, lines []model.OrderLine, recorded bool) error {
	promotion := repository.Promotion{OrderID: event.OrderID}
	if event.Consent {
		if event.Customer != nil {
			promotion.CustomerName = event.Customer.Name
			promotion.CustomerEmail = event.Customer.Email
		}
		promotion.ConsentAt = consentTime(event)
	}

	for _, line := range lines {
		var err error
		if recorded {
			err = s.drafts.Promote(ctx, line.LockToken, promotion)
		} else {
			err = s.drafts.UpdateState(ctx, line.LockToken, model.StateReleased)
		}
		if err != nil && !errors.Is(err, bookingserrors.ErrDraftNotFound) {
			return apperrors.Internal("Failed to update reservation draft", err)
		}
	}
	return nil
}

func consentTime(event *model.OrderEvent) *time.Time {
	switch {
	case event.ConsentAt != nil:
		return event.ConsentAt
	case !event.OccurredAt.IsZero():
		t := event.OccurredAt
		return &t
	default:
		t := time.Now().UTC()
		return &t
	}
}

// releaseLocks is best effort: a lock left behind expires on its own.
func (s *bookingService) releaseLocks(ctx context.Context, lines []model.OrderLine) int {
	ctx = context.WithoutCancel(ctx)
	released := 0
	for _, line := range lines {
		if line.ResourceID == "" || line.LockToken == "" {
			continue
		}
		if err := s.locks.RemoveLockByToken(ctx, line.ResourceID, line.LockToken); err != nil {
			s.log.Warn("Failed to release lock",
				"resource_id", line.ResourceID,
				"token", line.LockToken,
				"error", err,
			)
			continue
		}
		released++
	}
	return released
}

func (s *bookingService) publishReleased(ctx context.Context, orderID string, lines []model.OrderLine) {
	for _, line := range lines {
		s.publish(ctx, model.BookingEvent{
			Type:       model.EventReservationReleased,
			ResourceID: line.ResourceID,
			Token:      line.LockToken,
			OrderID:    orderID,
			Start:      line.Start,
			End:        line.End,
		})
	}
}

func (s *bookingService) storeError(message string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal(message, err)
}

// resourceIDs lists the distinct resources of lines in first-seen order.
func resourceIDs(lines []model.OrderLine) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ResourceID)
	}
	return sanitizer.NormalizeIdentifiers(ids)
}
