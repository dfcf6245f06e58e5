package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	sessionrepo "meetly/internal/conferencing/repository"
	meetingserrors "meetly/internal/meetings/errors"
	"meetly/internal/scheduler"
	"meetly/pkg/config"
	mongotx "meetly/pkg/db/mongo"
	"meetly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Meetings"
)

type MeetingRepository interface {
	Create(ctx context.Context, meeting *model.Meeting) error
	FindByID(ctx context.Context, id string) (*model.Meeting, error)
	FindByUUID(ctx context.Context, uuid string) (*model.Meeting, error)
	FindAll(ctx context.Context, filter model.MeetingFilter, limit int, offset int64) ([]*model.Meeting, error)
	Count(ctx context.Context, filter model.MeetingFilter) (int64, error)
	Update(ctx context.Context, id string, meeting *model.Meeting) error
	SetStatus(ctx context.Context, id string, status model.MeetingStatus) error
	SetParticipants(ctx context.Context, id string, participants []string) error
	Delete(ctx context.Context, id string) error
	CountByLocation(ctx context.Context, locationID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error

	scheduler.BookingSource
}

type mongoMeetingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	sessions   sessionrepo.SessionRepository
	txManager  mongotx.TransactionManager
}

func NewMongoMeetingRepository(cfg *config.Config, sessions sessionrepo.SessionRepository) MeetingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoMeetingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		sessions:   sessions,
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoMeetingRepository) Create(ctx context.Context, meeting *model.Meeting) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	meeting.CreatedAt = now
	meeting.UpdatedAt = now
	if meeting.Participants == nil {
		meeting.Participants = []string{}
	}

	result, err := r.collection.InsertOne(ctx, meeting)
	if err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		meeting.ID = oid.Hex()
	}
	return nil
}

func (r *mongoMeetingRepository) FindByID(ctx context.Context, id string) (*model.Meeting, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", meetingserrors.ErrInvalidID, id)
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *mongoMeetingRepository) FindByUUID(ctx context.Context, uuid string) (*model.Meeting, error) {
	return r.findOne(ctx, bson.M{"uuid": uuid})
}

func (r *mongoMeetingRepository) findOne(ctx context.Context, filter bson.M) (*model.Meeting, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var meeting model.Meeting
	if err := r.collection.FindOne(ctx, filter).Decode(&meeting); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, meetingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find meeting: %w", err)
	}
	return &meeting, nil
}

func (r *mongoMeetingRepository) FindAll(ctx context.Context, filter model.MeetingFilter, limit int, offset int64) ([]*model.Meeting, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(offset)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find meetings: %w", err)
	}
	defer cursor.Close(ctx)

	var meetings []*model.Meeting
	if err = cursor.All(ctx, &meetings); err != nil {
		return nil, fmt.Errorf("failed to decode meetings: %w", err)
	}
	return meetings, nil
}

func (r *mongoMeetingRepository) Count(ctx context.Context, filter model.MeetingFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count meetings: %w", err)
	}
	return count, nil
}

// buildFilter turns a MeetingFilter into a query. From/To select meetings
// overlapping the window; Day selects meetings starting on that UTC date.
func buildFilter(f model.MeetingFilter) bson.M {
	filter := bson.M{}
	if f.Topic != "" {
		filter["topic"] = bson.M{"$regex": regexp.QuoteMeta(f.Topic), "$options": "i"}
	}
	if f.Type != "" {
		filter["type"] = f.Type
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.LocationID != "" {
		filter["location_id"] = f.LocationID
	}
	if f.OrganizerID != "" {
		filter["organizer_id"] = f.OrganizerID
	}

	var and []bson.M
	if f.Day != nil {
		day := time.Date(f.Day.Year(), f.Day.Month(), f.Day.Day(), 0, 0, 0, 0, time.UTC)
		and = append(and, bson.M{"start_time": bson.M{"$gte": day, "$lt": day.AddDate(0, 0, 1)}})
	}
	if f.To != nil {
		and = append(and, bson.M{"start_time": bson.M{"$lt": *f.To}})
	}
	if f.From != nil {
		and = append(and, bson.M{"end_time": bson.M{"$gt": *f.From}})
	}
	if len(and) > 0 {
		filter["$and"] = and
	}
	return filter
}

func (r *mongoMeetingRepository) Update(ctx context.Context, id string, meeting *model.Meeting) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", meetingserrors.ErrInvalidID, id)
	}

	meeting.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	return r.updateOne(ctx, objectID, bson.M{
		"topic":        meeting.Topic,
		"description":  meeting.Description,
		"start_time":   meeting.StartTime,
		"duration":     meeting.Duration,
		"end_time":     meeting.EndTime,
		"type":         meeting.Type,
		"status":       meeting.Status,
		"location_id":  meeting.LocationID,
		"notes":        meeting.Notes,
		"participants": meeting.Participants,
		"updated_at":   meeting.UpdatedAt,
	})
}

func (r *mongoMeetingRepository) SetStatus(ctx context.Context, id string, status model.MeetingStatus) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", meetingserrors.ErrInvalidID, id)
	}
	return r.updateOne(ctx, objectID, bson.M{
		"status":     status,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	})
}

func (r *mongoMeetingRepository) SetParticipants(ctx context.Context, id string, participants []string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", meetingserrors.ErrInvalidID, id)
	}
	if participants == nil {
		participants = []string{}
	}
	return r.updateOne(ctx, objectID, bson.M{
		"participants": participants,
		"updated_at":   time.Now().UTC().Truncate(time.Millisecond),
	})
}

func (r *mongoMeetingRepository) updateOne(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	if result.MatchedCount == 0 {
		return meetingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoMeetingRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", meetingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if result.DeletedCount == 0 {
		return meetingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoMeetingRepository) CountByLocation(ctx context.Context, locationID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"location_id": locationID})
	if err != nil {
		return 0, fmt.Errorf("failed to count meetings by location: %w", err)
	}
	return count, nil
}

// LocationBookings returns offline and hybrid meetings at the location whose
// interval intersects [start,end). Status is not filtered.
func (r *mongoMeetingRepository) LocationBookings(ctx context.Context, locationID string, start, end time.Time, excludeMeetingID string) ([]scheduler.Interval, error) {
	filter := bson.M{
		"location_id": locationID,
		"type":        bson.M{"$in": []model.MeetingType{model.MeetingTypeOffline, model.MeetingTypeHybrid}},
		"start_time":  bson.M{"$lt": end},
		"end_time":    bson.M{"$gt": start},
	}
	if oid, err := primitive.ObjectIDFromHex(excludeMeetingID); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}
	return r.intervals(ctx, filter)
}

// AccountBookings returns meetings whose session runs on the account and whose
// interval intersects [start,end).
func (r *mongoMeetingRepository) AccountBookings(ctx context.Context, accountID string, start, end time.Time, excludeMeetingID string) ([]scheduler.Interval, error) {
	meetingIDs, err := r.sessions.MeetingIDsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	objectIDs := make([]primitive.ObjectID, 0, len(meetingIDs))
	for _, id := range meetingIDs {
		if id == excludeMeetingID {
			continue
		}
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			objectIDs = append(objectIDs, oid)
		}
	}
	if len(objectIDs) == 0 {
		return nil, nil
	}

	return r.intervals(ctx, bson.M{
		"_id":        bson.M{"$in": objectIDs},
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	})
}

func (r *mongoMeetingRepository) intervals(ctx context.Context, filter bson.M) ([]scheduler.Interval, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"_id": 1, "start_time": 1, "end_time": 1})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping meetings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []scheduler.Interval
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode overlapping meetings: %w", err)
	}
	return bookings, nil
}

func (r *mongoMeetingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
