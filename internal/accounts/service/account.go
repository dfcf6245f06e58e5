package service

import (
	"context"
	"errors"
	"sync"

	accountserrors "meetly/internal/accounts/errors"
	"meetly/internal/accounts/repository"
	"meetly/internal/accounts/validator"
	"meetly/pkg/config"
	apperrors "meetly/pkg/errors"
	"meetly/pkg/model"
	"meetly/pkg/sanitizer"
	"meetly/pkg/validation"
)

type AccountService interface {
	Create(ctx context.Context, input *model.ConferencingAccountInput) (*model.ConferencingAccount, error)
	GetByID(ctx context.Context, id string) (*model.ConferencingAccount, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.ConferencingAccount, int64, error)
	Update(ctx context.Context, id string, updates *model.ConferencingAccountUpdate) (*model.ConferencingAccount, error)
	Delete(ctx context.Context, id string) error
	// Resolve returns the account by id, or the first configured account when
	// id is empty.
	Resolve(ctx context.Context, id string) (*model.ConferencingAccount, error)
}

type accountService struct {
	repo      repository.AccountRepository
	validator *validator.AccountValidator
	cfg       *config.Config
}

func NewAccountService(repo repository.AccountRepository, validator *validator.AccountValidator, cfg *config.Config) AccountService {
	return &accountService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *accountService) Create(ctx context.Context, input *model.ConferencingAccountInput) (*model.ConferencingAccount, error) {
	input.Name = sanitizer.TrimAndNormalize(input.Name)
	input.ProviderAccountID = sanitizer.TrimAndNormalize(input.ProviderAccountID)
	input.ClientID = sanitizer.TrimAndNormalize(input.ClientID)
	if err := s.validator.ValidateInput(input); err != nil {
		return nil, s.validationError(err)
	}

	account := &model.ConferencingAccount{
		Name:              input.Name,
		ProviderAccountID: input.ProviderAccountID,
		ClientID:          input.ClientID,
		ClientSecret:      input.ClientSecret,
		HostKey:           input.HostKey,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		s.cfg.Log.Error("Failed to create conferencing account", "error", err)
		return nil, apperrors.Internal("Failed to create conferencing account", err)
	}

	s.cfg.Log.Info("Conferencing account created successfully", "id", account.ID, "name", account.Name)
	return account, nil
}

func (s *accountService) GetByID(ctx context.Context, id string) (*model.ConferencingAccount, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Account ID cannot be empty")
	}

	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id, "Failed to retrieve conferencing account")
	}
	return account, nil
}

func (s *accountService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.ConferencingAccount, int64, error) {
	var count int64
	var accounts []*model.ConferencingAccount
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count conferencing accounts", "error", errCount)
			errCount = apperrors.Internal("Failed to count conferencing accounts", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		accounts, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list conferencing accounts", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve conferencing accounts", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return accounts, count, nil
}

func (s *accountService) Update(ctx context.Context, id string, updates *model.ConferencingAccountUpdate) (*model.ConferencingAccount, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, s.validationError(err)
	}

	merged := *existing
	if updates.Name != nil {
		merged.Name = sanitizer.TrimAndNormalize(*updates.Name)
	}
	if updates.ProviderAccountID != nil {
		merged.ProviderAccountID = sanitizer.TrimAndNormalize(*updates.ProviderAccountID)
	}
	if updates.ClientID != nil {
		merged.ClientID = sanitizer.TrimAndNormalize(*updates.ClientID)
	}
	if updates.ClientSecret != nil {
		merged.ClientSecret = *updates.ClientSecret
	}
	if updates.HostKey != nil {
		merged.HostKey = *updates.HostKey
	}

	if err := s.repo.Update(ctx, id, &merged); err != nil {
		return nil, s.translate(err, id, "Failed to update conferencing account")
	}

	s.cfg.Log.Info("Conferencing account updated successfully", "id", id)
	return &merged, nil
}

func (s *accountService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Account ID cannot be empty")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.translate(err, id, "Failed to delete conferencing account")
	}

	s.cfg.Log.Info("Conferencing account deleted successfully", "id", id)
	return nil
}

func (s *accountService) Resolve(ctx context.Context, id string) (*model.ConferencingAccount, error) {
	if id != "" {
		return s.GetByID(ctx, id)
	}

	accounts, err := s.repo.ListOrdered(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to list conferencing accounts", err)
	}
	if len(accounts) == 0 {
		return nil, apperrors.ProviderUnconfigured("No conferencing account is configured")
	}
	return accounts[0], nil
}

func (s *accountService) validationError(err error) error {
	s.cfg.Log.Warn("Conferencing account validation failed", "error", err)
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs.AppError("Conferencing account validation failed")
	}
	return apperrors.Validation("Conferencing account validation failed", map[string]any{"error": err.Error()})
}

func (s *accountService) translate(err error, id, message string) error {
	switch {
	case errors.Is(err, accountserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Conferencing account", id)
	case errors.Is(err, accountserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid conferencing account ID format")
	}
	return apperrors.Internal(message, err)
}
