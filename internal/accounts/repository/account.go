package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	accountserrors "meetly/internal/accounts/errors"
	sessionrepo "meetly/internal/conferencing/repository"
	"meetly/pkg/config"
	mongotx "meetly/pkg/db/mongo"
	"meetly/pkg/model"
	"meetly/pkg/sealer"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Conferencing_accounts"
)

type AccountRepository interface {
	Create(ctx context.Context, account *model.ConferencingAccount) error
	FindByID(ctx context.Context, id string) (*model.ConferencingAccount, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.ConferencingAccount, error)
	// ListOrdered returns every account in allocation order.
	ListOrdered(ctx context.Context) ([]*model.ConferencingAccount, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, account *model.ConferencingAccount) error
	// Delete removes the account and detaches it from the sessions it hosted.
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoAccountRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	sessions   *mongo.Collection
	txManager  mongotx.TransactionManager
	sealer     *sealer.Sealer
}

// NewMongoAccountRepository stores client secrets sealed when
// cfg.SecretSealingKey is set.
func NewMongoAccountRepository(cfg *config.Config) AccountRepository {
	secrets, err := sealer.New(cfg.SecretSealingKey)
	if err != nil {
		cfg.Log.Fatal("Invalid secret sealing key", "error", err)
	}

	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAccountRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		sessions:   db.Collection(sessionrepo.CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
		sealer:     secrets,
	}
}

func (r *mongoAccountRepository) Create(ctx context.Context, account *model.ConferencingAccount) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	account.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	secret, err := r.sealer.Seal(account.ClientSecret)
	if err != nil {
		return fmt.Errorf("failed to seal client secret: %w", err)
	}
	doc := *account
	doc.ClientSecret = secret

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create conferencing account: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		account.ID = oid.Hex()
	}
	return nil
}

func (r *mongoAccountRepository) FindByID(ctx context.Context, id string) (*model.ConferencingAccount, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", accountserrors.ErrInvalidID, id)
	}

	var account model.ConferencingAccount
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, accountserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find conferencing account: %w", err)
	}
	if err := r.open(&account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *mongoAccountRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.ConferencingAccount, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, opts)
}

func (r *mongoAccountRepository) ListOrdered(ctx context.Context) ([]*model.ConferencingAccount, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, opts)
}

func (r *mongoAccountRepository) find(ctx context.Context, opts *options.FindOptions) ([]*model.ConferencingAccount, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find conferencing accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []*model.ConferencingAccount
	if err = cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode conferencing accounts: %w", err)
	}
	for _, account := range accounts {
		if err := r.open(account); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

func (r *mongoAccountRepository) open(account *model.ConferencingAccount) error {
	secret, err := r.sealer.Open(account.ClientSecret)
	if err != nil {
		return fmt.Errorf("failed to open client secret of account %s: %w", account.ID, err)
	}
	account.ClientSecret = secret
	return nil
}

func (r *mongoAccountRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count conferencing accounts: %w", err)
	}
	return count, nil
}

func (r *mongoAccountRepository) Update(ctx context.Context, id string, account *model.ConferencingAccount) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", accountserrors.ErrInvalidID, id)
	}

	secret, err := r.sealer.Seal(account.ClientSecret)
	if err != nil {
		return fmt.Errorf("failed to seal client secret: %w", err)
	}

	update := bson.M{
		"$set": bson.M{
			"name":                account.Name,
			"provider_account_id": account.ProviderAccountID,
			"client_id":           account.ClientID,
			"client_secret":       secret,
			"host_key":            account.HostKey,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update conferencing account: %w", err)
	}
	if result.MatchedCount == 0 {
		return accountserrors.ErrNotFound
	}
	return nil
}

func (r *mongoAccountRepository) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", accountserrors.ErrInvalidID, id)
	}

	return r.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		result, err := r.collection.DeleteOne(sessCtx, bson.M{"_id": objectID})
		if err != nil {
			return fmt.Errorf("failed to delete conferencing account: %w", err)
		}
		if result.DeletedCount == 0 {
			return accountserrors.ErrNotFound
		}

		_, err = r.sessions.UpdateMany(sessCtx,
			bson.M{"account_id": id},
			bson.M{"$unset": bson.M{"account_id": ""}},
		)
		if err != nil {
			return fmt.Errorf("failed to detach sessions from account: %w", err)
		}
		return nil
	})
}

func (r *mongoAccountRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
