package service

import (
	"context"
	"errors"
	"testing"

	accountserrors "meetly/internal/accounts/errors"
	"meetly/internal/accounts/validator"
	"meetly/pkg/config"
	mongotx "meetly/pkg/db/mongo"
	apperrors "meetly/pkg/errors"
	"meetly/pkg/logger"
	"meetly/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAccountRepository struct {
	accounts map[string]*model.ConferencingAccount
	order    []string
	createFn func(account *model.ConferencingAccount) error
}

func newMockAccountRepository(accounts ...*model.ConferencingAccount) *mockAccountRepository {
	m := &mockAccountRepository{accounts: make(map[string]*model.ConferencingAccount)}
	for _, a := range accounts {
		m.accounts[a.ID] = a
		m.order = append(m.order, a.ID)
	}
	return m
}

func (m *mockAccountRepository) Create(_ context.Context, account *model.ConferencingAccount) error {
	if m.createFn != nil {
		return m.createFn(account)
	}
	account.ID = "acc-new"
	m.accounts[account.ID] = account
	m.order = append(m.order, account.ID)
	return nil
}

func (m *mockAccountRepository) FindByID(_ context.Context, id string) (*model.ConferencingAccount, error) {
	if id == "bad" {
		return nil, accountserrors.ErrInvalidID
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, accountserrors.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (m *mockAccountRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.ConferencingAccount, error) {
	return m.ListOrdered(ctx)
}

func (m *mockAccountRepository) ListOrdered(_ context.Context) ([]*model.ConferencingAccount, error) {
	out := make([]*model.ConferencingAccount, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.accounts[id])
	}
	return out, nil
}

func (m *mockAccountRepository) Count(_ context.Context) (int64, error) {
	return int64(len(m.accounts)), nil
}

func (m *mockAccountRepository) Update(_ context.Context, id string, account *model.ConferencingAccount) error {
	if _, ok := m.accounts[id]; !ok {
		return accountserrors.ErrNotFound
	}
	clone := *account
	m.accounts[id] = &clone
	return nil
}

func (m *mockAccountRepository) Delete(_ context.Context, id string) error {
	if _, ok := m.accounts[id]; !ok {
		return accountserrors.ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *mockAccountRepository) ExecuteTransaction(_ context.Context, _ mongotx.TransactionFunc) error {
	return errors.New("not supported")
}

func newTestService(repo *mockAccountRepository) AccountService {
	log := logger.Discard()
	return NewAccountService(repo, validator.NewAccountValidator(log), &config.Config{Log: log})
}

func TestCreate(t *testing.T) {
	t.Run("normalizes and stores", func(t *testing.T) {
		repo := newMockAccountRepository()
		svc := newTestService(repo)

		account, err := svc.Create(context.Background(), &model.ConferencingAccountInput{
			Name:              "  Primary   room ",
			ProviderAccountID: " acct-1 ",
			ClientID:          "client",
			ClientSecret:      "secret",
			HostKey:           "123456",
		})

		require.NoError(t, err)
		assert.Equal(t, "acc-new", account.ID)
		assert.Equal(t, "Primary room", account.Name)
		assert.Equal(t, "acct-1", account.ProviderAccountID)
		assert.Equal(t, "123456", repo.accounts["acc-new"].HostKey)
	})

	t.Run("rejects a non-numeric host key", func(t *testing.T) {
		svc := newTestService(newMockAccountRepository())

		_, err := svc.Create(context.Background(), &model.ConferencingAccountInput{
			Name:              "Primary",
			ProviderAccountID: "acct-1",
			ClientID:          "client",
			ClientSecret:      "secret",
			HostKey:           "12ab56",
		})

		appErr := apperrors.AsAppError(err)
		assert.Equal(t, apperrors.CodeValidation, appErr.Code)
		assert.Equal(t, "host_key", appErr.Field())
	})

	t.Run("repository failure is internal", func(t *testing.T) {
		repo := newMockAccountRepository()
		repo.createFn = func(*model.ConferencingAccount) error { return errors.New("write concern") }
		svc := newTestService(repo)

		_, err := svc.Create(context.Background(), &model.ConferencingAccountInput{
			Name: "Primary", ProviderAccountID: "acct-1", ClientID: "c", ClientSecret: "s",
		})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))
	})
}

func TestGetByID_Errors(t *testing.T) {
	svc := newTestService(newMockAccountRepository())

	_, err := svc.GetByID(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, err = svc.GetByID(context.Background(), "bad")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, err = svc.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestUpdate_MergesFields(t *testing.T) {
	repo := newMockAccountRepository(&model.ConferencingAccount{
		ID: "a1", Name: "Primary", ProviderAccountID: "acct-1", ClientID: "c", ClientSecret: "s",
	})
	svc := newTestService(repo)

	name := " Renamed "
	secret := "rotated"
	updated, err := svc.Update(context.Background(), "a1", &model.ConferencingAccountUpdate{
		Name:         &name,
		ClientSecret: &secret,
	})

	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "acct-1", updated.ProviderAccountID)
	assert.Equal(t, "rotated", repo.accounts["a1"].ClientSecret)
}

func TestResolve(t *testing.T) {
	first := &model.ConferencingAccount{ID: "a1", Name: "First"}
	second := &model.ConferencingAccount{ID: "a2", Name: "Second"}

	t.Run("explicit id", func(t *testing.T) {
		svc := newTestService(newMockAccountRepository(first, second))
		account, err := svc.Resolve(context.Background(), "a2")
		require.NoError(t, err)
		assert.Equal(t, "a2", account.ID)
	})

	t.Run("defaults to the first account", func(t *testing.T) {
		svc := newTestService(newMockAccountRepository(first, second))
		account, err := svc.Resolve(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, "a1", account.ID)
	})

	t.Run("no accounts", func(t *testing.T) {
		svc := newTestService(newMockAccountRepository())
		_, err := svc.Resolve(context.Background(), "")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeProviderUnconfigured))
	})
}

func TestGetAll_RaceCondition(t *testing.T) {
	repo := newMockAccountRepository(
		&model.ConferencingAccount{ID: "a1"},
		&model.ConferencingAccount{ID: "a2"},
	)
	svc := newTestService(repo)

	for i := 0; i < 20; i++ {
		accounts, count, err := svc.GetAll(context.Background(), 10, 0)
		require.NoError(t, err, "iteration %d", i)
		assert.Equal(t, int64(2), count)
		assert.Len(t, accounts, 2)
	}
}

func TestDelete(t *testing.T) {
	repo := newMockAccountRepository(&model.ConferencingAccount{ID: "a1"})
	svc := newTestService(repo)

	require.NoError(t, svc.Delete(context.Background(), "a1"))
	assert.Empty(t, repo.accounts)

	err := svc.Delete(context.Background(), "a1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
