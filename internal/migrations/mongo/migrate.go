// Package mongo creates the meetly collections with their JSON-schema
// validators and indexes. Every step is idempotent.
package mongo

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	accountrepo "meetly/internal/accounts/repository"
	sessionrepo "meetly/internal/conferencing/repository"
	locationrepo "meetly/internal/locations/repository"
	meetingrepo "meetly/internal/meetings/repository"
	"meetly/internal/migrations/mongo/validators"
	"meetly/internal/scheduler"
	userrepo "meetly/internal/users/repository"
	"meetly/pkg/logger"
)

var (
	MeetingsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "uuid", Value: 1}},
			Options: options.Index().SetName("uuid_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "start_time", Value: 1}, {Key: "end_time", Value: 1}},
			Options: options.Index().SetName("interval"),
		},
		{
			Keys: bson.D{
				{Key: "location_id", Value: 1},
				{Key: "start_time", Value: 1},
				{Key: "end_time", Value: 1},
			},
			Options: options.Index().SetName("location_interval"),
		},
		{
			Keys:    bson.D{{Key: "organizer_id", Value: 1}, {Key: "start_time", Value: -1}},
			Options: options.Index().SetName("organizer_start"),
		},
		{
			Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "start_time", Value: 1}},
			Options: options.Index().SetName("participant_start"),
		},
	}

	SessionsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "meeting_id", Value: 1}},
			Options: options.Index().SetName("meeting_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "provider_id", Value: 1}},
			Options: options.Index().SetName("provider_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "account_id", Value: 1}, {Key: "start_time", Value: 1}},
			Options: options.Index().SetName("account_start"),
		},
	}

	AccountsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("allocation_order"),
		},
		{
			Keys:    bson.D{{Key: "provider_account_id", Value: 1}},
			Options: options.Index().SetName("provider_account_unique").SetUnique(true),
		},
	}

	LocationsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("name"),
		},
	}

	AttendancesIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "meeting_id", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().
				SetName("meeting_email_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		},
		{
			Keys:    bson.D{{Key: "meeting_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("meeting_created"),
		},
	}

	UsersIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email"),
		},
	}

	LocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("lease_ttl").SetExpireAfterSeconds(0),
		},
	}
)

// Collection is one managed collection.
type Collection struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Collections lists every managed collection in a stable order.
func Collections() []Collection {
	collections := []Collection{
		{Name: meetingrepo.CollectionName, Indexes: MeetingsIndexes, Validator: validators.MeetingValidator},
		{Name: meetingrepo.AttendanceCollectionName, Indexes: AttendancesIndexes, Validator: validators.AttendanceValidator},
		{Name: sessionrepo.CollectionName, Indexes: SessionsIndexes, Validator: validators.SessionValidator},
		{Name: accountrepo.CollectionName, Indexes: AccountsIndexes, Validator: validators.AccountValidator},
		{Name: locationrepo.CollectionName, Indexes: LocationsIndexes, Validator: validators.LocationValidator},
		{Name: userrepo.CollectionName, Indexes: UsersIndexes, Validator: validators.UserValidator},
		{Name: scheduler.LocksCollection, Indexes: LocksIndexes, Validator: validators.LockValidator},
	}
	sort.Slice(collections, func(i, j int) bool { return collections[i].Name < collections[j].Name })
	return collections
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
