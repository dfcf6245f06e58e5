package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "meetly/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	labelTransient     = "TransientTransactionError"
	labelUnknownCommit = "UnknownTransactionCommitResult"

	// DefaultMaxAttempts bounds how often a transaction body runs.
	DefaultMaxAttempts = 3
	maxCommitAttempts  = 3
)

// TransactionFunc is a transaction body. It may run more than once when the
// server reports a transient failure, so it must tolerate re-entry.
type TransactionFunc func(ctx mongo.SessionContext) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client      *mongo.Client
	maxAttempts int
	txnOptions  *options.TransactionOptions
}

func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &mongoTransactionManager{
		client:      client,
		maxAttempts: DefaultMaxAttempts,
		txnOptions: options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority()).
			SetReadPreference(readpref.Primary()),
	}
}

// ExecuteTransaction runs fn inside a snapshot transaction with majority
// commit. AppErrors returned by fn abort the transaction and are passed
// through untouched.
func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	for attempt := 1; ; attempt++ {
		err = mongo.WithSession(ctx, session, func(sessCtx mongo.SessionContext) error {
			if err := sessCtx.StartTransaction(m.txnOptions); err != nil {
				return err
			}
			if err := fn(sessCtx); err != nil {
				_ = sessCtx.AbortTransaction(context.WithoutCancel(sessCtx))
				return err
			}
			return commit(sessCtx)
		})
		if err == nil {
			return nil
		}
		if apperrors.IsAppError(err) {
			return err
		}
		if attempt >= m.maxAttempts || ctx.Err() != nil || !hasLabel(err, labelTransient) {
			return fmt.Errorf("transaction failed after %d attempt(s): %w", attempt, err)
		}
	}
}

func commit(sessCtx mongo.SessionContext) error {
	var err error
	for i := 0; i < maxCommitAttempts; i++ {
		err = sessCtx.CommitTransaction(sessCtx)
		if err == nil || !hasLabel(err, labelUnknownCommit) {
			return err
		}
	}
	return err
}

func hasLabel(err error, label string) bool {
	var labeled mongo.LabeledError
	return errors.As(err, &labeled) && labeled.HasErrorLabel(label)
}

// WithTimeout wraps ctx with a timeout unless ctx is a transaction session,
// which cannot be wrapped without losing the session binding.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}

	return context.WithTimeout(ctx, timeout)
}
