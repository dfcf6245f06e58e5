package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	locationserrors "meetly/internal/locations/errors"
	"meetly/pkg/config"
	mongotx "meetly/pkg/db/mongo"
	"meetly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Meeting_locations"
)

type LocationRepository interface {
	Create(ctx context.Context, location *model.MeetingLocation) error
	FindByID(ctx context.Context, id string) (*model.MeetingLocation, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.MeetingLocation, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.MeetingLocation, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, location *model.MeetingLocation) error
	Delete(ctx context.Context, id string) error
}

type mongoLocationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoLocationRepository(cfg *config.Config) LocationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLocationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoLocationRepository) Create(ctx context.Context, location *model.MeetingLocation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	location.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to create meeting location: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		location.ID = oid.Hex()
	}
	return nil
}

func (r *mongoLocationRepository) FindByID(ctx context.Context, id string) (*model.MeetingLocation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", locationserrors.ErrInvalidID, id)
	}

	var location model.MeetingLocation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&location)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, locationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find meeting location: %w", err)
	}

	return &location, nil
}

func (r *mongoLocationRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.MeetingLocation, error) {
	result := make(map[string]*model.MeetingLocation, len(ids))
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			objectIDs = append(objectIDs, oid)
		}
	}
	if len(objectIDs) == 0 {
		return result, nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to find meeting locations: %w", err)
	}
	defer cursor.Close(ctx)

	var locations []*model.MeetingLocation
	if err = cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("failed to decode meeting locations: %w", err)
	}
	for _, l := range locations {
		result[l.ID] = l
	}
	return result, nil
}

func (r *mongoLocationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.MeetingLocation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find meeting locations: %w", err)
	}
	defer cursor.Close(ctx)

	var locations []*model.MeetingLocation
	if err = cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("failed to decode meeting locations: %w", err)
	}
	return locations, nil
}

func (r *mongoLocationRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count meeting locations: %w", err)
	}
	return count, nil
}

func (r *mongoLocationRepository) Update(ctx context.Context, id string, location *model.MeetingLocation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", locationserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"name":      location.Name,
			"address":   location.Address,
			"room_name": location.RoomName,
			"capacity":  location.Capacity,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update meeting location: %w", err)
	}
	if result.MatchedCount == 0 {
		return locationserrors.ErrNotFound
	}
	return nil
}

func (r *mongoLocationRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", locationserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete meeting location: %w", err)
	}
	if result.DeletedCount == 0 {
		return locationserrors.ErrNotFound
	}
	return nil
}
