package accounts

import "context"

// Service is the read-only account directory consumed by the posting engine.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, companyID, accountID int64) (Account, error) {
	return s.repo.Get(ctx, companyID, accountID)
}

func (s *Service) GetMany(ctx context.Context, companyID int64, accountIDs []int64) (map[int64]Account, error) {
	return s.repo.GetMany(ctx, companyID, accountIDs)
}

func (s *Service) FindBySystemIdentifier(ctx context.Context, companyID int64, identifier string) (Account, error) {
	return s.repo.FindBySystemIdentifier(ctx, companyID, identifier)
}

func (s *Service) ListActive(ctx context.Context, companyID int64) ([]Account, error) {
	return s.repo.ListActive(ctx, companyID)
}

func (s *Service) ListByType(ctx context.Context, companyID int64, accountType AccountType, subtype AccountSubtype) ([]Account, error) {
	return s.repo.ListByType(ctx, companyID, accountType, subtype)
}
