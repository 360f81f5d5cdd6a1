package templates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/ledgerline/internal/ledger/shared"
)

// Service resolves posting templates for the entry builder.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ResolveTemplate selects the active default template for the document type
// whose effective range covers date. Callers are expected to have run the
// installer for the company beforehand.
func (s *Service) ResolveTemplate(ctx context.Context, companyID int64, docType DocType, date time.Time) (PostingTemplate, error) {
	t, err := s.repo.FindActiveDefault(ctx, companyID, docType, date)
	if err != nil {
		if errors.Is(err, shared.ErrNoActiveTemplate) {
			return PostingTemplate{}, fmt.Errorf("%w: company %d doc_type %s date %s",
				shared.ErrNoActiveTemplate, companyID, docType, date.Format("2006-01-02"))
		}
		return PostingTemplate{}, err
	}
	return t, nil
}
