package repository

import (
	"context"
	"fmt"
	"time"

	meetingserrors "meetly/internal/meetings/errors"
	"meetly/pkg/config"
	mongotx "meetly/pkg/db/mongo"
	"meetly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	AttendanceCollectionName = "Meeting_attendances"
)

type AttendanceRepository interface {
	// Create stores a check-in. A second check-in with the same email for the
	// same meeting fails with ErrDuplicateAttendance.
	Create(ctx context.Context, attendance *model.Attendance) error
	FindByMeeting(ctx context.Context, meetingID string, limit int, offset int64) ([]*model.Attendance, error)
	CountByMeeting(ctx context.Context, meetingID string) (int64, error)
	DeleteByMeeting(ctx context.Context, meetingID string) error
}

type mongoAttendanceRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAttendanceRepository(cfg *config.Config) AttendanceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAttendanceRepository{
		cfg:        cfg,
		collection: db.Collection(AttendanceCollectionName),
	}
}

func (r *mongoAttendanceRepository) Create(ctx context.Context, attendance *model.Attendance) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if attendance.Email != "" {
		n, err := r.collection.CountDocuments(ctx, bson.M{"meeting_id": attendance.MeetingID, "email": attendance.Email})
		if err != nil {
			return fmt.Errorf("failed to check attendance: %w", err)
		}
		if n > 0 {
			return meetingserrors.ErrDuplicateAttendance
		}
	}

	attendance.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, attendance)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return meetingserrors.ErrDuplicateAttendance
		}
		return fmt.Errorf("failed to record attendance: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		attendance.ID = oid.Hex()
	}
	return nil
}

func (r *mongoAttendanceRepository) FindByMeeting(ctx context.Context, meetingID string, limit int, offset int64) ([]*model.Attendance, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"meeting_id": meetingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find attendances: %w", err)
	}
	defer cursor.Close(ctx)

	var attendances []*model.Attendance
	if err = cursor.All(ctx, &attendances); err != nil {
		return nil, fmt.Errorf("failed to decode attendances: %w", err)
	}
	return attendances, nil
}

func (r *mongoAttendanceRepository) CountByMeeting(ctx context.Context, meetingID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"meeting_id": meetingID})
	if err != nil {
		return 0, fmt.Errorf("failed to count attendances: %w", err)
	}
	return count, nil
}

func (r *mongoAttendanceRepository) DeleteByMeeting(ctx context.Context, meetingID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteMany(ctx, bson.M{"meeting_id": meetingID}); err != nil {
		return fmt.Errorf("failed to delete attendances: %w", err)
	}
	return nil
}
