package service

import (
	"context"
	"slices"
	"sync"
	"time"

	availabilityservice "coworking/internal/availability/service"
	bookingserrors "coworking/internal/bookings/errors"
	"coworking/internal/bookings/repository"
	"coworking/internal/bookings/validator"
	"coworking/internal/calendar"
	"coworking/internal/capacity"
	inventoryerrors "coworking/internal/inventory/errors"
	"coworking/internal/locks"
	"coworking/pkg/clock"
	mongotx "coworking/pkg/db/mongo"
	"coworking/pkg/logger"
	"coworking/pkg/model"
)

var epoch = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

type fakeResources struct {
	mu   sync.Mutex
	byID map[string]*model.Resource
	err  error
}

func (f *fakeResources) FindByID(_ context.Context, id string) (*model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.byID[id]
	if !ok {
		return nil, inventoryerrors.ErrResourceNotFound
	}
	return r, nil
}

func (f *fakeResources) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeReservations struct {
	mu        sync.Mutex
	records   map[string][]model.OccupancyRecord
	appendErr error
	// afterLoad runs once, after the next Load has taken its copy.
	afterLoad func()
}

func newFakeReservations() *fakeReservations {
	return &fakeReservations{records: make(map[string][]model.OccupancyRecord)}
}

func (f *fakeReservations) Load(_ context.Context, resourceID string) ([]model.OccupancyRecord, error) {
	f.mu.Lock()
	out := slices.Clone(f.records[resourceID])
	hook := f.afterLoad
	f.afterLoad = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeReservations) Append(_ context.Context, resourceID string, records []model.OccupancyRecord) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	added := 0
	for _, rec := range records {
		dup := rec.Token != "" && slices.ContainsFunc(f.records[resourceID], func(o model.OccupancyRecord) bool {
			return o.Token == rec.Token
		})
		if dup {
			continue
		}
		f.records[resourceID] = append(f.records[resourceID], rec)
		added++
	}
	return added, nil
}

func (f *fakeReservations) RemoveByOrder(_ context.Context, resourceID, orderID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.records[resourceID])
	f.records[resourceID] = slices.DeleteFunc(f.records[resourceID], func(o model.OccupancyRecord) bool {
		return o.OrderID == orderID
	})
	return before - len(f.records[resourceID]), nil
}

func (f *fakeReservations) Replace(_ context.Context, resourceID string, records []model.OccupancyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[resourceID] = slices.Clone(records)
	return nil
}

type fakeDrafts struct {
	mu        sync.Mutex
	drafts    map[string]*model.Draft
	txRuns    int
	createErr func() error
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{drafts: make(map[string]*model.Draft)}
}

func (f *fakeDrafts) get(token string) *model.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[token]
	if !ok {
		return nil
	}
	cp := *d
	return &cp
}

func (f *fakeDrafts) Create(_ context.Context, draft *model.Draft) error {
	if f.createErr != nil {
		if err := f.createErr(); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *draft
	cp.CreatedAt = epoch
	f.drafts[draft.Token] = &cp
	return nil
}

func (f *fakeDrafts) FindByToken(_ context.Context, token string) (*model.Draft, error) {
	if d := f.get(token); d != nil {
		return d, nil
	}
	return nil, bookingserrors.ErrDraftNotFound
}

func (f *fakeDrafts) FindByOrder(_ context.Context, orderID string) ([]*model.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Draft
	for _, d := range f.drafts {
		if d.OrderID == orderID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDrafts) FindConfirmedOverlapping(_ context.Context, from, to string) ([]*model.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Draft
	for _, d := range f.drafts {
		if d.State == model.StateConfirmed && d.Start <= to && d.End >= from {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDrafts) Promote(_ context.Context, token string, p repository.Promotion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[token]
	if !ok {
		return bookingserrors.ErrDraftNotFound
	}
	d.State = model.StateConfirmed
	d.OrderID = p.OrderID
	if p.CustomerName != "" {
		d.CustomerName = p.CustomerName
	}
	if p.CustomerEmail != "" {
		d.CustomerEmail = p.CustomerEmail
	}
	if p.ConsentAt != nil {
		d.ConsentAt = p.ConsentAt
	}
	return nil
}

func (f *fakeDrafts) UpdateState(_ context.Context, token string, state model.AttemptState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[token]
	if !ok {
		return bookingserrors.ErrDraftNotFound
	}
	d.State = state
	return nil
}

func (f *fakeDrafts) ReleaseByOrder(_ context.Context, orderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, d := range f.drafts {
		if d.OrderID == orderID {
			d.State = model.StateReleased
			d.CustomerName, d.CustomerEmail, d.ConsentAt = "", "", nil
			n++
		}
	}
	return n, nil
}

func (f *fakeDrafts) Delete(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, token)
	return nil
}

func (f *fakeDrafts) DeleteStale(_ context.Context, createdBefore time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for token, d := range f.drafts {
		if d.State == model.StateLocked && d.CreatedAt.Before(createdBefore) {
			delete(f.drafts, token)
			n++
		}
	}
	return n, nil
}

func (f *fakeDrafts) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	f.mu.Lock()
	f.txRuns++
	f.mu.Unlock()
	return fn(ctx)
}

type fakeOrders struct {
	mu      sync.Mutex
	orders  map[string]*model.Order
	markErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[string]*model.Order)}
}

func (f *fakeOrders) FindByID(_ context.Context, id string) (*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, bookingserrors.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) MarkProcessed(_ context.Context, order *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	now := epoch
	cp := *order
	cp.Processed = true
	cp.ProcessedAt = &now
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrders) ClearProcessed(_ context.Context, id string, status model.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return bookingserrors.ErrOrderNotFound
	}
	o.Processed = false
	o.ProcessedAt = nil
	o.Status = status
	return nil
}

func (f *fakeOrders) FindProcessedByResource(_ context.Context, resourceID string) ([]*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Order
	for _, o := range f.orders {
		if !o.Processed {
			continue
		}
		if slices.ContainsFunc(o.Lines, func(l model.OrderLine) bool { return l.ResourceID == resourceID }) {
			cp := *o
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.Order) int {
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return out, nil
}

type fakeOrderSystem struct {
	mu          sync.Mutex
	addErr      error
	handoffs    []model.CartHandoff
	removed     []string
	redirectURL string
}

func (f *fakeOrderSystem) AddToCart(_ context.Context, h model.CartHandoff) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	f.handoffs = append(f.handoffs, h)
	return f.redirectURL, nil
}

func (f *fakeOrderSystem) RemoveFromCart(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, token)
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []model.BookingEvent
}

func (p *capturePublisher) Publish(_ context.Context, event model.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	svc          BookingService
	clock        *clock.Manual
	locks        *locks.Manager
	resources    *fakeResources
	reservations *fakeReservations
	drafts       *fakeDrafts
	orders       *fakeOrders
	orderSystem  *fakeOrderSystem
	publisher    *capturePublisher
}

func newHarness(cfg Config) *harness {
	clk := clock.NewManual(epoch)
	log := logger.Discard()
	resources := &fakeResources{byID: map[string]*model.Resource{
		"meeting": {ID: "meeting", Name: "Meeting room", Capacity: 1, Prices: model.Prices{Day: 80, Week: 350}},
		"desks":   {ID: "desks", Name: "Open desks", Capacity: 2, Prices: model.Prices{Day: 25, Week: 110, Month: 400}},
		"free":    {ID: "free", Name: "Unpriced", Capacity: 1},
		"orphan":  {ID: "orphan", Name: "Unmapped", Capacity: 1, Prices: model.Prices{Day: 10}},
	}}
	if cfg.ProductMapping == nil {
		cfg.ProductMapping = map[string]string{"meeting": "p-meeting", "desks": "p-desks", "free": "p-free"}
	}

	lockManager := locks.NewManager(locks.NewMemoryStore(clk), resources,
		locks.Config{Policy: locks.DefaultPolicy(), DefaultCapacity: 1}, clk, log)
	reservations := newFakeReservations()
	v := validator.NewBookingValidator(log)
	availability := availabilityservice.NewAvailabilityService(resources, reservations, lockManager, v,
		calendar.New(clk, time.UTC),
		availabilityservice.Config{DefaultCapacity: 1, Capacity: capacity.DefaultPolicy(), MinLeadDays: 1}, log)

	h := &harness{
		clock:        clk,
		locks:        lockManager,
		resources:    resources,
		reservations: reservations,
		drafts:       newFakeDrafts(),
		orders:       newFakeOrders(),
		orderSystem:  &fakeOrderSystem{redirectURL: "https://shop.example.com/cart"},
		publisher:    &capturePublisher{},
	}
	h.svc = NewBookingService(availability, lockManager, reservations, h.drafts, h.orders,
		h.orderSystem, h.publisher, v, cfg, log)
	return h
}
