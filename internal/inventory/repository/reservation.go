package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coworking/pkg/config"
	mongotx "coworking/pkg/db/mongo"
	"coworking/pkg/logger"
	"coworking/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ReservationsCollection = "Reservations"

	maxRewriteAttempts = 3
)

var ErrConcurrentRewrite = errors.New("occupancy changed during rewrite")

// ReservationRepository owns the confirmed set of every resource: one
// document per resource holding the raw occupancy value.
type ReservationRepository interface {
	Load(ctx context.Context, resourceID string) ([]model.OccupancyRecord, error)
	Append(ctx context.Context, resourceID string, records []model.OccupancyRecord) (int, error)
	RemoveByOrder(ctx context.Context, resourceID, orderID string) (int, error)
	Replace(ctx context.Context, resourceID string, records []model.OccupancyRecord) error
	Repair(ctx context.Context) (RepairReport, error)
	ResourceIDs(ctx context.Context) ([]string, error)
}

type RepairReport struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

type reservationDocument struct {
	ID        string        `bson:"_id"`
	Occupancy bson.RawValue `bson:"occupancy"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	log        *logger.Logger
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(ReservationsCollection),
		log:        cfg.Log,
	}
}

// Load returns the parsed confirmed set. A missing document or an unreadable
// value yields an empty set.
func (r *mongoReservationRepository) Load(ctx context.Context, resourceID string) ([]model.OccupancyRecord, error) {
	doc, err := r.find(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return []model.OccupancyRecord{}, nil
	}

	records, clean := ParseOccupancy(doc.Occupancy)
	if !clean {
		r.log.Warn("Stored occupancy is malformed, using readable entries only",
			"resource_id", resourceID,
			"readable_entries", len(records),
		)
	}
	return records, nil
}

// Append adds records to the confirmed set. A record whose token is already
// present is skipped, so redelivered confirmations are harmless. It returns
// the number of records actually added.
func (r *mongoReservationRepository) Append(ctx context.Context, resourceID string, records []model.OccupancyRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := r.ensureClean(ctx, resourceID); err != nil {
		return 0, err
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	appended := 0
	for _, stored := range toStored(records) {
		filter := bson.M{"_id": resourceID}
		if stored.Token != "" {
			filter["occupancy.token"] = bson.M{"$ne": stored.Token}
		}
		update := bson.M{
			"$push": bson.M{"occupancy": stored},
			"$set":  bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
		}
		result, err := r.collection.UpdateOne(ctx, filter, update)
		if err != nil {
			return appended, fmt.Errorf("failed to append occupancy to %s: %w", resourceID, err)
		}
		appended += int(result.ModifiedCount)
	}

	return appended, nil
}

// RemoveByOrder deletes every record tagged with orderID.
func (r *mongoReservationRepository) RemoveByOrder(ctx context.Context, resourceID, orderID string) (int, error) {
	if orderID == "" {
		return 0, nil
	}
	if err := r.ensureClean(ctx, resourceID); err != nil {
		return 0, err
	}

	records, err := r.Load(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	matching := 0
	for _, rec := range records {
		if rec.OrderID == orderID {
			matching++
		}
	}
	if matching == 0 {
		return 0, nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$pull": bson.M{"occupancy": bson.M{"order": orderID}},
		"$set":  bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": resourceID}, update); err != nil {
		return 0, fmt.Errorf("failed to remove order %s from %s: %w", orderID, resourceID, err)
	}
	return matching, nil
}

// Replace overwrites the confirmed set, creating the document if needed.
func (r *mongoReservationRepository) Replace(ctx context.Context, resourceID string, records []model.OccupancyRecord) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"occupancy":  toStored(records),
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": resourceID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to replace occupancy of %s: %w", resourceID, err)
	}
	return nil
}

// Repair rewrites every malformed stored value as a clean array of its
// readable entries. Documents are repaired independently.
func (r *mongoReservationRepository) Repair(ctx context.Context) (RepairReport, error) {
	var report RepairReport

	ids, err := r.ResourceIDs(ctx)
	if err != nil {
		return report, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		repaired, err := r.repair(ctx, id)
		if err != nil {
			report.Failed++
			r.log.Error("Failed to repair stored occupancy", "resource_id", id, "error", err)
			continue
		}
		if repaired {
			report.Repaired++
			r.log.Info("Stored occupancy repaired", "resource_id", id)
		}
	}

	return report, nil
}

func (r *mongoReservationRepository) ResourceIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservation documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reservation documents: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// ensureClean creates the document if absent and rewrites a malformed
// value, so that array operators can be applied.
func (r *mongoReservationRepository) ensureClean(ctx context.Context, resourceID string) error {
	if err := r.ensureDocument(ctx, resourceID); err != nil {
		return err
	}
	_, err := r.repair(ctx, resourceID)
	return err
}

func (r *mongoReservationRepository) ensureDocument(ctx context.Context, resourceID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$setOnInsert": bson.M{
		"occupancy":  bson.A{},
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": resourceID}, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to initialise occupancy of %s: %w", resourceID, err)
	}
	return nil
}

// repair rewrites the stored value only if it is still the one that was
// read, retrying when a concurrent writer got there first.
func (r *mongoReservationRepository) repair(ctx context.Context, resourceID string) (bool, error) {
	for attempt := 0; attempt < maxRewriteAttempts; attempt++ {
		doc, err := r.find(ctx, resourceID)
		if err != nil || doc == nil {
			return false, err
		}
		records, clean := ParseOccupancy(doc.Occupancy)
		if clean && doc.Occupancy.Type == bsontype.Array {
			return false, nil
		}

		wctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
		filter := bson.M{"_id": resourceID, "occupancy": doc.Occupancy}
		if doc.Occupancy.Type == 0 {
			filter["occupancy"] = bson.M{"$exists": false}
		}
		update := bson.M{"$set": bson.M{
			"occupancy":  toStored(records),
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		}}
		result, err := r.collection.UpdateOne(wctx, filter, update)
		cancel()
		if err != nil {
			return false, fmt.Errorf("failed to rewrite occupancy of %s: %w", resourceID, err)
		}
		if result.MatchedCount == 1 {
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrConcurrentRewrite, resourceID)
}

func (r *mongoReservationRepository) find(ctx context.Context, resourceID string) (*reservationDocument, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var doc reservationDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": resourceID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read occupancy of %s: %w", resourceID, err)
	}
	return &doc, nil
}
