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
	OrdersCollection = "Orders"
)

// OrderRepository keeps the processed flag of external orders together with
// the lines that were finalized.
type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*model.Order, error)
	MarkProcessed(ctx context.Context, order *model.Order) error
	ClearProcessed(ctx context.Context, id string, status model.OrderStatus) error
	FindProcessedByResource(ctx context.Context, resourceID string) ([]*model.Order, error)
}

type mongoOrderRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoOrderRepository(cfg *config.Config) OrderRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoOrderRepository{
		cfg:        cfg,
		collection: db.Collection(OrdersCollection),
	}
}

func (r *mongoOrderRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var order model.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &order, nil
}

func (r *mongoOrderRepository) MarkProcessed(ctx context.Context, order *model.Order) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	order.Processed = true
	order.ProcessedAt = &now
	order.UpdatedAt = now

	update := bson.M{"$set": bson.M{
		"processed":    true,
		"processed_at": now,
		"status":       order.Status,
		"consent":      order.Consent,
		"lines":        order.Lines,
		"updated_at":   now,
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": order.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to mark order processed: %w", err)
	}
	return nil
}

func (r *mongoOrderRepository) ClearProcessed(ctx context.Context, id string, status model.OrderStatus) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set":   bson.M{"processed": false, "status": status, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"processed_at": ""},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to clear processed flag: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrOrderNotFound
	}
	return nil
}

func (r *mongoOrderRepository) FindProcessedByResource(ctx context.Context, resourceID string) ([]*model.Order, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"processed": true, "lines.resource_id": resourceID}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "processed_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find processed orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []*model.Order{}
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}
