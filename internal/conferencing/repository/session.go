package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	confErrors "meetly/internal/conferencing/errors"
	"meetly/pkg/config"
	mongotx "meetly/pkg/db/mongo"
	"meetly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Conferencing_sessions"
)

// SessionRepository stores the local mirror of provider sessions. Each
// meeting owns at most one session.
type SessionRepository interface {
	Upsert(ctx context.Context, session *model.ConferencingSession) error
	FindByMeetingID(ctx context.Context, meetingID string) (*model.ConferencingSession, error)
	FindByMeetingIDs(ctx context.Context, meetingIDs []string) (map[string]*model.ConferencingSession, error)
	FindByProviderID(ctx context.Context, providerID string) (*model.ConferencingSession, error)
	MeetingIDsByAccount(ctx context.Context, accountID string) ([]string, error)
	DeleteByMeetingID(ctx context.Context, meetingID string) error
	DeleteByProviderID(ctx context.Context, providerID string) error
}

type mongoSessionRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSessionRepository(cfg *config.Config) SessionRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSessionRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// Upsert writes the session keyed on its provider id, binding it to a meeting
// the first time it is seen.
func (r *mongoSessionRepository) Upsert(ctx context.Context, session *model.ConferencingSession) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	session.UpdatedAt = now

	set := bson.M{
		"provider_uuid":       session.ProviderUUID,
		"host_id":             session.HostID,
		"host_email":          session.HostEmail,
		"type":                session.Type,
		"status":              session.Status,
		"start_time":          session.StartTime,
		"duration":            session.Duration,
		"timezone":            session.Timezone,
		"created_at_provider": session.CreatedAtProvider,
		"start_url":           session.StartURL,
		"join_url":            session.JoinURL,
		"password":            session.Password,
		"settings":            session.Settings,
		"recording_play_url":  session.RecordingPlayURL,
		"recording_passcode":  session.RecordingPasscode,
		"summary_content":     session.SummaryContent,
		"updated_at":          now,
	}
	if session.MeetingID != "" {
		set["meeting_id"] = session.MeetingID
	}
	if session.AccountID != "" {
		set["account_id"] = session.AccountID
	}

	filter := bson.M{"provider_id": session.ProviderID}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored model.ConferencingSession
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return fmt.Errorf("failed to upsert conferencing session: %w", err)
	}
	*session = stored
	return nil
}

func (r *mongoSessionRepository) findOne(ctx context.Context, filter bson.M) (*model.ConferencingSession, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var session model.ConferencingSession
	if err := r.collection.FindOne(ctx, filter).Decode(&session); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, confErrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find conferencing session: %w", err)
	}
	return &session, nil
}

func (r *mongoSessionRepository) FindByMeetingID(ctx context.Context, meetingID string) (*model.ConferencingSession, error) {
	return r.findOne(ctx, bson.M{"meeting_id": meetingID})
}

func (r *mongoSessionRepository) FindByProviderID(ctx context.Context, providerID string) (*model.ConferencingSession, error) {
	return r.findOne(ctx, bson.M{"provider_id": providerID})
}

func (r *mongoSessionRepository) FindByMeetingIDs(ctx context.Context, meetingIDs []string) (map[string]*model.ConferencingSession, error) {
	result := make(map[string]*model.ConferencingSession, len(meetingIDs))
	if len(meetingIDs) == 0 {
		return result, nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"meeting_id": bson.M{"$in": meetingIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to find conferencing sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*model.ConferencingSession
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode conferencing sessions: %w", err)
	}
	for _, s := range sessions {
		result[s.MeetingID] = s
	}
	return result, nil
}

func (r *mongoSessionRepository) MeetingIDsByAccount(ctx context.Context, accountID string) ([]string, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"meeting_id": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"account_id": accountID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions by account: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		MeetingID string `bson:"meeting_id"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode sessions by account: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.MeetingID != "" {
			ids = append(ids, row.MeetingID)
		}
	}
	return ids, nil
}

func (r *mongoSessionRepository) DeleteByMeetingID(ctx context.Context, meetingID string) error {
	return r.deleteOne(ctx, bson.M{"meeting_id": meetingID})
}

func (r *mongoSessionRepository) DeleteByProviderID(ctx context.Context, providerID string) error {
	return r.deleteOne(ctx, bson.M{"provider_id": providerID})
}

func (r *mongoSessionRepository) deleteOne(ctx context.Context, filter bson.M) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete conferencing session: %w", err)
	}
	if result.DeletedCount == 0 {
		return confErrors.ErrNotFound
	}
	return nil
}
