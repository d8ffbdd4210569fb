package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "coworking/internal/bookings/errors"
	"coworking/pkg/config"
	mongotx "coworking/pkg/db/mongo"
	"coworking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DraftsCollection = "Drafts"
)

// Promotion carries what a finalized order adds to a draft. Customer fields
// stay empty when the order carries no consent.
type Promotion struct {
	OrderID       string
	CustomerName  string
	CustomerEmail string
	ConsentAt     *time.Time
}

type DraftRepository interface {
	Create(ctx context.Context, draft *model.Draft) error
	FindByToken(ctx context.Context, token string) (*model.Draft, error)
	FindByOrder(ctx context.Context, orderID string) ([]*model.Draft, error)
	FindConfirmedOverlapping(ctx context.Context, from, to string) ([]*model.Draft, error)
	Promote(ctx context.Context, token string, p Promotion) error
	UpdateState(ctx context.Context, token string, state model.AttemptState) error
	ReleaseByOrder(ctx context.Context, orderID string) (int64, error)
	Delete(ctx context.Context, token string) error
	DeleteStale(ctx context.Context, createdBefore time.Time) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoDraftRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoDraftRepository(cfg *config.Config) DraftRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoDraftRepository{
		cfg:        cfg,
		collection: db.Collection(DraftsCollection),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoDraftRepository) Create(ctx context.Context, draft *model.Draft) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	draft.CreatedAt = now
	draft.UpdatedAt = now
	if draft.State == "" {
		draft.State = model.StateLocked
	}

	if _, err := r.collection.InsertOne(ctx, draft); err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}
	return nil
}

func (r *mongoDraftRepository) FindByToken(ctx context.Context, token string) (*model.Draft, error) {
	if token == "" {
		return nil, bookingserrors.ErrInvalidToken
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var draft model.Draft
	err := r.collection.FindOne(ctx, bson.M{"_id": token}).Decode(&draft)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrDraftNotFound
		}
		return nil, fmt.Errorf("failed to find draft: %w", err)
	}
	return &draft, nil
}

func (r *mongoDraftRepository) FindByOrder(ctx context.Context, orderID string) ([]*model.Draft, error) {
	return r.findMany(ctx, bson.M{"order_id": orderID}, options.Find())
}

// FindConfirmedOverlapping returns confirmed drafts whose inclusive range
// meets [from, to]. Dates are ISO strings so lexical order is date order.
func (r *mongoDraftRepository) FindConfirmedOverlapping(ctx context.Context, from, to string) ([]*model.Draft, error) {
	filter := bson.M{
		"state": model.StateConfirmed,
		"start": bson.M{"$lte": to},
		"end":   bson.M{"$gte": from},
	}
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "resource_id", Value: 1}})
	return r.findMany(ctx, filter, opts)
}

func (r *mongoDraftRepository) findMany(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Draft, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find drafts: %w", err)
	}
	defer cursor.Close(ctx)

	drafts := []*model.Draft{}
	if err = cursor.All(ctx, &drafts); err != nil {
		return nil, fmt.Errorf("failed to decode drafts: %w", err)
	}
	return drafts, nil
}

func (r *mongoDraftRepository) Promote(ctx context.Context, token string, p Promotion) error {
	set := bson.M{
		"state":      model.StateConfirmed,
		"order_id":   p.OrderID,
		"updated_at": time.Now().UTC(),
	}
	if p.CustomerName != "" {
		set["customer_name"] = p.CustomerName
	}
	if p.CustomerEmail != "" {
		set["customer_email"] = p.CustomerEmail
	}
	if p.ConsentAt != nil {
		set["consent_at"] = p.ConsentAt.UTC()
	}
	return r.updateOne(ctx, token, bson.M{"$set": set})
}

func (r *mongoDraftRepository) UpdateState(ctx context.Context, token string, state model.AttemptState) error {
	return r.updateOne(ctx, token, bson.M{"$set": bson.M{"state": state, "updated_at": time.Now().UTC()}})
}

func (r *mongoDraftRepository) updateOne(ctx context.Context, token string, update bson.M) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": token}, update)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrDraftNotFound
	}
	return nil
}

// ReleaseByOrder marks every draft of the order released and drops the
// personal data it carried.
func (r *mongoDraftRepository) ReleaseByOrder(ctx context.Context, orderID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set":   bson.M{"state": model.StateReleased, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"customer_name": "", "customer_email": ""},
	}
	result, err := r.collection.UpdateMany(ctx, bson.M{"order_id": orderID}, update)
	if err != nil {
		return 0, fmt.Errorf("failed to release drafts: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoDraftRepository) Delete(ctx context.Context, token string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": token}); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// DeleteStale removes drafts that never left LOCKED and were created before
// the cutoff.
func (r *mongoDraftRepository) DeleteStale(ctx context.Context, createdBefore time.Time) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"state":      model.StateLocked,
		"created_at": bson.M{"$lt": createdBefore.UTC()},
	}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale drafts: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoDraftRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
