package service

import (
	"context"
	"errors"
	"fmt"

	availabilityservice "coworking/internal/availability/service"
	bookingserrors "coworking/internal/bookings/errors"
	"coworking/internal/bookings/events"
	"coworking/internal/bookings/ordersystem"
	"coworking/internal/bookings/repository"
	"coworking/internal/calendar"
	"coworking/internal/locks"
	apperrors "coworking/pkg/errors"
	"coworking/pkg/logger"
	"coworking/pkg/model"
	"coworking/pkg/sanitizer"

	"github.com/google/uuid"
)

type Availability interface {
	Snapshot(ctx context.Context, resourceID string) (*availabilityservice.Snapshot, error)
	Guard(ctx context.Context, snapshot *availabilityservice.Snapshot, r calendar.Range, quantity int) func(active []model.Lock) error
	CheckLeadTime(start calendar.Date) error
}

type LockManager interface {
	Acquire(ctx context.Context, req locks.LockRequest, admit locks.AdmitFunc) (*model.Lock, error)
	RemoveLockByToken(ctx context.Context, resourceID, token string) error
	ActiveLocks(ctx context.Context, resourceID string) ([]model.Lock, error)
	Refresh(ctx context.Context, resourceID, token string) (*model.Lock, bool, error)
}

type ReservationStore interface {
	Append(ctx context.Context, resourceID string, records []model.OccupancyRecord) (int, error)
	RemoveByOrder(ctx context.Context, resourceID, orderID string) (int, error)
	Replace(ctx context.Context, resourceID string, records []model.OccupancyRecord) error
}

type RequestValidator interface {
	ValidateReservation(req *model.ReservationRequest) error
	ValidateRevalidation(req *model.RevalidationRequest) error
	ValidateOrderEvent(event *model.OrderEvent) error
}

type Config struct {
	// ProductMapping maps a resource ID to the product the order system sells it as.
	ProductMapping map[string]string
	// RecordAnonymousSpans keeps the confirmed span of orders without consent,
	// stripped of everything but dates, quantity and order reference.
	RecordAnonymousSpans bool
}

type BookingService interface {
	Reserve(ctx context.Context, req *model.ReservationRequest) (*model.ReservationResult, error)
	HandleOrderEvent(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error)
	Finalize(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error)
	Cancel(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error)
	Revalidate(ctx context.Context, req *model.RevalidationRequest) (*model.RevalidationResult, error)
	ListLocks(ctx context.Context, resourceID string) ([]model.Lock, error)
	ForceUnlock(ctx context.Context, resourceID, token string) error
	Planning(ctx context.Context, from, to string) ([]*model.Draft, error)
	Rebuild(ctx context.Context, resourceID string) (*model.RebuildResult, error)
}

type bookingService struct {
	availability Availability
	locks        LockManager
	reservations ReservationStore
	drafts       repository.DraftRepository
	orders       repository.OrderRepository
	orderSystem  ordersystem.Client
	publisher    events.Publisher
	validator    RequestValidator
	cfg          Config
	log          *logger.Logger
}

func NewBookingService(
	availability Availability,
	lockManager LockManager,
	reservations ReservationStore,
	drafts repository.DraftRepository,
	orders repository.OrderRepository,
	orderSystem ordersystem.Client,
	publisher events.Publisher,
	validator RequestValidator,
	cfg Config,
	log *logger.Logger,
) BookingService {
	return &bookingService{
		availability: availability,
		locks:        lockManager,
		reservations: reservations,
		drafts:       drafts,
		orders:       orders,
		orderSystem:  orderSystem,
		publisher:    publisher,
		validator:    validator,
		cfg:          cfg,
		log:          log,
	}
}

// Reserve validates the request, places a guarded lock and hands the attempt
// to the order system. Once the lock is held, any later failure releases it.
func (s *bookingService) Reserve(ctx context.Context, req *model.ReservationRequest) (*model.ReservationResult, error) {
	req.ResourceID = sanitizer.NormalizeIdentifier(req.ResourceID)
	if err := s.validator.ValidateReservation(req); err != nil {
		s.log.Warn("Reservation validation failed",
			"resource_id", req.ResourceID,
			"error", err,
		)
		return nil, apperrors.Validation("Reservation request validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	r, err := calendar.ParseRange(req.Start, req.End)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if err := s.availability.CheckLeadTime(r.Start); err != nil {
		return nil, err
	}

	snapshot, err := s.availability.Snapshot(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}

	price := availabilityservice.ResolvePrice(snapshot.Resource.Prices, req.Tier)
	if price <= 0 {
		s.log.Error("Resource has no resolvable price",
			"resource_id", req.ResourceID,
			"tier", req.Tier,
		)
		return nil, apperrors.Misconfiguration(fmt.Sprintf("no %s price configured for resource %s", req.Tier, req.ResourceID))
	}
	productID := s.cfg.ProductMapping[req.ResourceID]
	if productID == "" {
		s.log.Error("Resource has no product mapping", "resource_id", req.ResourceID)
		return nil, apperrors.Misconfiguration(fmt.Sprintf("%v: %s", bookingserrors.ErrProductUnmapped, req.ResourceID))
	}

	token := uuid.NewString()
	lock, err := s.locks.Acquire(ctx, locks.LockRequest{
		ResourceID: req.ResourceID,
		Range:      r,
		Token:      token,
		Quantity:   1,
		Capacity:   snapshot.Capacity,
	}, s.availability.Guard(ctx, snapshot, r, 1))
	if err != nil {
		return nil, s.lockError(req.ResourceID, err)
	}

	draft := &model.Draft{
		Token:        token,
		ResourceID:   req.ResourceID,
		ResourceName: snapshot.Resource.Name,
		ProductID:    productID,
		Tier:         req.Tier,
		Start:        r.Start.String(),
		End:          r.End.String(),
		Price:        price,
		State:        model.StateLocked,
	}
	if err := s.drafts.Create(ctx, draft); err != nil {
		s.log.Error("Failed to save reservation draft",
			"resource_id", req.ResourceID,
			"token", token,
			"error", err,
		)
		s.abandon(ctx, req.ResourceID, token, false)
		return nil, apperrors.Internal("Failed to save reservation draft", err)
	}

	redirectURL, err := s.orderSystem.AddToCart(ctx, model.CartHandoff{
		Token:      token,
		ProductID:  productID,
		ResourceID: req.ResourceID,
		Tier:       req.Tier,
		Start:      draft.Start,
		End:        draft.End,
		Price:      price,
	})
	if err != nil {
		s.log.Error("Cart handoff failed",
			"resource_id", req.ResourceID,
			"token", token,
			"error", err,
		)
		s.abandon(ctx, req.ResourceID, token, true)
		return nil, apperrors.Unavailable("Order system", err)
	}

	s.publish(ctx, model.BookingEvent{
		Type:       model.EventReservationLocked,
		ResourceID: req.ResourceID,
		Token:      token,
		Start:      draft.Start,
		End:        draft.End,
	})

	s.log.Info("Reservation locked",
		"resource_id", req.ResourceID,
		"token", token,
		"range", r.String(),
		"lock_type", lock.Kind,
		"expires_at", lock.ExpiresAt,
	)

	return &model.ReservationResult{
		Token:       token,
		RedirectURL: redirectURL,
		ResourceID:  req.ResourceID,
		Tier:        req.Tier,
		Start:       draft.Start,
		End:         draft.End,
		Price:       price,
		ExpiresAt:   lock.ExpiresAt,
		LockType:    lock.Kind,
	}, nil
}

func (s *bookingService) ListLocks(ctx context.Context, resourceID string) ([]model.Lock, error) {
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}
	active, err := s.locks.ActiveLocks(ctx, resourceID)
	if err != nil {
		s.log.Error("Failed to list locks", "resource_id", resourceID, "error", err)
		return nil, apperrors.Unavailable("Lock store", err)
	}
	return active, nil
}

// ForceUnlock drops a hold regardless of its owner and releases its draft.
func (s *bookingService) ForceUnlock(ctx context.Context, resourceID, token string) error {
	if resourceID == "" || token == "" {
		return apperrors.InvalidInput("Resource ID and token are required")
	}
	if err := s.locks.RemoveLockByToken(ctx, resourceID, token); err != nil {
		s.log.Error("Failed to force unlock",
			"resource_id", resourceID,
			"token", token,
			"error", err,
		)
		return apperrors.Unavailable("Lock store", err)
	}
	s.releaseDraft(ctx, token)

	s.publish(ctx, model.BookingEvent{
		Type:       model.EventReservationReleased,
		ResourceID: resourceID,
		Token:      token,
	})
	s.log.Warn("Lock force released", "resource_id", resourceID, "token", token)
	return nil
}

// Planning lists confirmed reservations overlapping [from, to].
func (s *bookingService) Planning(ctx context.Context, from, to string) ([]*model.Draft, error) {
	r, err := calendar.ParseRange(from, to)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	drafts, err := s.drafts.FindConfirmedOverlapping(ctx, r.Start.String(), r.End.String())
	if err != nil {
		s.log.Error("Failed to load planning", "range", r.String(), "error", err)
		return nil, apperrors.Internal("Failed to load planning", err)
	}
	return drafts, nil
}

func (s *bookingService) lockError(resourceID string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, locks.ErrContention) {
		s.log.Warn("Lock collection under contention", "resource_id", resourceID, "error", err)
		return apperrors.Conflict("Resource is busy, please retry")
	}
	s.log.Error("Failed to acquire lock", "resource_id", resourceID, "error", err)
	return apperrors.Unavailable("Lock store", err)
}

// abandon undoes a half-built reservation. It runs detached from ctx so a
// cancelled request still cleans up.
func (s *bookingService) abandon(ctx context.Context, resourceID, token string, draftSaved bool) {
	ctx = context.WithoutCancel(ctx)
	if err := s.locks.RemoveLockByToken(ctx, resourceID, token); err != nil {
		s.log.Warn("Failed to release lock of abandoned reservation",
			"resource_id", resourceID,
			"token", token,
			"error", err,
		)
	}
	if draftSaved {
		if err := s.drafts.Delete(ctx, token); err != nil {
			s.log.Warn("Failed to delete draft of abandoned reservation", "token", token, "error", err)
		}
	}
}

// releaseDraft moves the token's draft to RELEASED when its state allows.
func (s *bookingService) releaseDraft(ctx context.Context, token string) {
	draft, err := s.drafts.FindByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, bookingserrors.ErrDraftNotFound) {
			s.log.Warn("Failed to load draft", "token", token, "error", err)
		}
		return
	}
	if !draft.State.CanTransition(model.StateReleased) {
		return
	}
	if err := s.drafts.UpdateState(ctx, token, model.StateReleased); err != nil && !errors.Is(err, bookingserrors.ErrDraftNotFound) {
		s.log.Warn("Failed to release draft", "token", token, "error", err)
	}
}

func (s *bookingService) publish(ctx context.Context, event model.BookingEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("Failed to publish booking event",
			"type", event.Type,
			"resource_id", event.ResourceID,
			"token", event.Token,
			"error", err,
		)
	}
}
