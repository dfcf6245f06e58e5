package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetly/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LocksCollection = "Meeting_locks"

// leaseStore is the persistence behind MongoLocker.
type leaseStore interface {
	// insert creates the lease; ok is false when the name is already held.
	insert(ctx context.Context, lease model.Lease) (ok bool, err error)
	// takeOver replaces a lease whose expiry is not after now.
	takeOver(ctx context.Context, lease model.Lease, now time.Time) (ok bool, err error)
	// held reports whether owner still holds an unexpired lease at now.
	held(ctx context.Context, name, owner string, now time.Time) (ok bool, err error)
	remove(ctx context.Context, name, owner string) (ok bool, err error)
}

// MongoLocker is a Locker shared by every instance using the same database.
type MongoLocker struct {
	store leaseStore
	wait  time.Duration
	hold  time.Duration
	poll  time.Duration
	now   func() time.Time
}

func NewMongoLocker(db *mongo.Database, wait, hold, poll time.Duration) *MongoLocker {
	return newMongoLocker(&mongoLeaseStore{collection: db.Collection(LocksCollection)}, wait, hold, poll)
}

func newMongoLocker(store leaseStore, wait, hold, poll time.Duration) *MongoLocker {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &MongoLocker{
		store: store,
		wait:  wait,
		hold:  hold,
		poll:  poll,
		now:   time.Now,
	}
}

func (l *MongoLocker) Acquire(ctx context.Context, name string) (Lease, error) {
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	owner := uuid.NewString()
	for {
		now := l.now()
		lease := model.Lease{
			ID:         name,
			Owner:      owner,
			AcquiredAt: now,
			ExpiresAt:  now.Add(l.hold),
		}

		ok, err := l.store.insert(waitCtx, lease)
		if err == nil && !ok {
			ok, err = l.store.takeOver(waitCtx, lease, now)
		}
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire lease %q: %w", name, err)
		}
		if ok {
			return &mongoLease{store: l.store, name: name, owner: owner, now: l.now}, nil
		}

		select {
		case <-time.After(l.poll):
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, ErrLockTimeout
		}
	}
}

type mongoLease struct {
	store leaseStore
	name  string
	owner string
	now   func() time.Time
}

func (lease *mongoLease) Held(ctx context.Context) error {
	ok, err := lease.store.held(ctx, lease.name, lease.owner, lease.now())
	if err != nil {
		return fmt.Errorf("failed to check lease %q: %w", lease.name, err)
	}
	if !ok {
		return ErrLeaseLost
	}
	return nil
}

func (lease *mongoLease) Release(ctx context.Context) error {
	ok, err := lease.store.remove(ctx, lease.name, lease.owner)
	if err != nil {
		return fmt.Errorf("failed to release lease %q: %w", lease.name, err)
	}
	if !ok {
		return ErrLeaseLost
	}
	return nil
}

type mongoLeaseStore struct {
	collection *mongo.Collection
}

func (s *mongoLeaseStore) insert(ctx context.Context, lease model.Lease) (bool, error) {
	_, err := s.collection.InsertOne(ctx, lease)
	if err == nil {
		return true, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	return false, err
}

func (s *mongoLeaseStore) takeOver(ctx context.Context, lease model.Lease, now time.Time) (bool, error) {
	filter := bson.M{"_id": lease.ID, "expires_at": bson.M{"$lte": now}}
	update := bson.M{"$set": bson.M{
		"owner":       lease.Owner,
		"expires_at":  lease.ExpiresAt,
		"acquired_at": lease.AcquiredAt,
	}}
	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

func (s *mongoLeaseStore) held(ctx context.Context, name, owner string, now time.Time) (bool, error) {
	filter := bson.M{"_id": name, "owner": owner, "expires_at": bson.M{"$gt": now}}
	n, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *mongoLeaseStore) remove(ctx context.Context, name, owner string) (bool, error) {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": name, "owner": owner})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return result.DeletedCount == 1, nil
}
