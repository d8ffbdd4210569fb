package service

import (
	"context"
	"errors"
	"fmt"

	"coworking/internal/calendar"
	"coworking/internal/capacity"
	inventoryerrors "coworking/internal/inventory/errors"
	apperrors "coworking/pkg/errors"
	"coworking/pkg/logger"
	"coworking/pkg/model"
)

type ResourceReader interface {
	FindByID(ctx context.Context, id string) (*model.Resource, error)
}

type ReservationReader interface {
	Load(ctx context.Context, resourceID string) ([]model.OccupancyRecord, error)
}

type LockReader interface {
	ActiveLocks(ctx context.Context, resourceID string) ([]model.Lock, error)
}

type QuoteValidator interface {
	ValidateQuote(req *model.QuoteRequest) error
}

type Config struct {
	DefaultCapacity int
	Capacity        capacity.Policy
	// MinLeadDays is how many days after today the earliest bookable day
	// lies. Values below one are treated as one.
	MinLeadDays int
}

type AvailabilityService interface {
	GetMonth(ctx context.Context, resourceID string, month calendar.MonthKey) (*model.MonthAvailability, error)
	CheckRangeBookable(ctx context.Context, resourceID string, r calendar.Range) (model.RangeCheck, error)
	Quote(ctx context.Context, req *model.QuoteRequest) (*model.Quote, error)
	Snapshot(ctx context.Context, resourceID string) (*Snapshot, error)
	Guard(ctx context.Context, snapshot *Snapshot, r calendar.Range, quantity int) func(active []model.Lock) error
	CheckLeadTime(start calendar.Date) error
	CurrentMonth() calendar.MonthKey
}

type availabilityService struct {
	resources    ResourceReader
	reservations ReservationReader
	locks        LockReader
	validator    QuoteValidator
	calendar     *calendar.Calendar
	cfg          Config
	log          *logger.Logger
}

func NewAvailabilityService(
	resources ResourceReader,
	reservations ReservationReader,
	locks LockReader,
	validator QuoteValidator,
	cal *calendar.Calendar,
	cfg Config,
	log *logger.Logger,
) AvailabilityService {
	if cfg.DefaultCapacity < 1 {
		cfg.DefaultCapacity = 1
	}
	return &availabilityService{
		resources:    resources,
		reservations: reservations,
		locks:        locks,
		validator:    validator,
		calendar:     cal,
		cfg:          cfg,
		log:          log,
	}
}

func (s *availabilityService) GetMonth(ctx context.Context, resourceID string, month calendar.MonthKey) (*model.MonthAvailability, error) {
	if resourceID == "" {
		return nil, apperrors.InvalidInput("Resource ID cannot be empty")
	}

	snapshot, err := s.Snapshot(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	active, err := s.activeLocks(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	occupancy := snapshot.Occupancy(active)
	days := capacity.ComputeMonth(month, s.calendar.Today(), snapshot.Capacity, occupancy, snapshot.Blocks, s.cfg.Capacity)

	return &model.MonthAvailability{
		ResourceID:   resourceID,
		Month:        month,
		Availability: days,
		Prices:       ResolvePrices(snapshot.Resource.Prices),
	}, nil
}

func (s *availabilityService) CheckRangeBookable(ctx context.Context, resourceID string, r calendar.Range) (model.RangeCheck, error) {
	if err := r.Validate(); err != nil {
		return model.RangeCheck{}, apperrors.InvalidInput(err.Error())
	}

	snapshot, err := s.Snapshot(ctx, resourceID)
	if err != nil {
		return model.RangeCheck{}, err
	}
	active, err := s.activeLocks(ctx, resourceID)
	if err != nil {
		return model.RangeCheck{}, err
	}

	return Evaluate(snapshot, active, r, 1), nil
}

// Quote checks lead time, range availability and price for a prospective
// booking without holding anything.
func (s *availabilityService) Quote(ctx context.Context, req *model.QuoteRequest) (*model.Quote, error) {
	if err := s.validator.ValidateQuote(req); err != nil {
		s.log.Warn("Quote validation failed",
			"resource_id", req.ResourceID,
			"error", err,
		)
		return nil, apperrors.Validation("Quote request validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	r, err := calendar.ParseRange(req.Start, req.End)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if err := s.CheckLeadTime(r.Start); err != nil {
		return nil, err
	}

	snapshot, err := s.Snapshot(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	active, err := s.activeLocks(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if check := Evaluate(snapshot, active, r, 1); !check.Bookable {
		return nil, apperrors.RangeUnavailable(check.FirstFailingDate.String())
	}

	price := ResolvePrice(snapshot.Resource.Prices, req.Tier)
	if price <= 0 {
		s.log.Error("Resource has no resolvable price",
			"resource_id", req.ResourceID,
			"tier", req.Tier,
		)
		return nil, apperrors.Misconfiguration(fmt.Sprintf("no %s price configured for resource %s", req.Tier, req.ResourceID))
	}

	return &model.Quote{
		ResourceID: req.ResourceID,
		Tier:       req.Tier,
		Start:      r.Start,
		End:        r.End,
		Price:      price,
	}, nil
}

// Snapshot reads the resource and its confirmed set. Capacity is resolved
// here once per call and never cached.
func (s *availabilityService) Snapshot(ctx context.Context, resourceID string) (*Snapshot, error) {
	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, inventoryerrors.ErrResourceNotFound) {
			return nil, apperrors.NotFoundWithID("Resource", resourceID)
		}
		if errors.Is(err, inventoryerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid resource ID")
		}
		s.log.Error("Failed to load resource",
			"resource_id", resourceID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to load resource", err)
	}

	confirmed, err := s.reservations.Load(ctx, resourceID)
	if err != nil {
		s.log.Error("Failed to load confirmed reservations",
			"resource_id", resourceID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to load confirmed reservations", err)
	}

	return &Snapshot{
		Resource:  resource,
		Capacity:  resource.EffectiveCapacity(s.cfg.DefaultCapacity),
		Confirmed: confirmed,
		Blocks:    capacity.ParseBlocks(resource.BlockedDates),
	}, nil
}

// Guard is the lock admission check for r. It reloads the confirmed set when
// the lock store runs it, after the lock collection has been read, so a
// confirmation written before its lock was removed is always counted.
func (s *availabilityService) Guard(ctx context.Context, snapshot *Snapshot, r calendar.Range, quantity int) func(active []model.Lock) error {
	return func(active []model.Lock) error {
		confirmed, err := s.reservations.Load(ctx, snapshot.Resource.ID)
		if err != nil {
			s.log.Error("Failed to reload confirmed reservations",
				"resource_id", snapshot.Resource.ID,
				"error", err,
			)
			return apperrors.Internal("Failed to load confirmed reservations", err)
		}
		current := *snapshot
		current.Confirmed = confirmed
		return current.Admit(r, quantity)(active)
	}
}

// CheckLeadTime rejects a start earlier than MinLeadDays after today.
func (s *availabilityService) CheckLeadTime(start calendar.Date) error {
	earliest := s.earliestStart()
	if start.Before(earliest) {
		return apperrors.LeadTimeViolation(earliest.String())
	}
	return nil
}

func (s *availabilityService) CurrentMonth() calendar.MonthKey {
	return s.calendar.CurrentMonth()
}

func (s *availabilityService) earliestStart() calendar.Date {
	return s.calendar.Today().AddDays(max(1, s.cfg.MinLeadDays))
}

func (s *availabilityService) activeLocks(ctx context.Context, resourceID string) ([]model.Lock, error) {
	active, err := s.locks.ActiveLocks(ctx, resourceID)
	if err != nil {
		s.log.Error("Failed to read active locks",
			"resource_id", resourceID,
			"error", err,
		)
		return nil, apperrors.Unavailable("Lock store", err)
	}
	return active, nil
}
