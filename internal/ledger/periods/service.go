package periods

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerline/ledgerline/internal/ledger/company"
	"github.com/ledgerline/ledgerline/internal/ledger/shared"
)

type CompanyConfigPort interface {
	Get(ctx context.Context, companyID int64) (company.Config, error)
}

// Service resolves the open accounting period for a posting date, creating
// the next fiscal year lazily when the company is configured for it.
type Service struct {
	repo      Repository
	companies CompanyConfigPort
	logger    *slog.Logger
}

func NewService(repo Repository, companies CompanyConfigPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, companies: companies, logger: logger}
}

// ResolveOpenPeriod finds the postable period covering date. When none exists
// and the company auto-creates fiscal years, it synthesizes the fiscal year
// containing date with its periods and retries the lookup exactly once.
func (s *Service) ResolveOpenPeriod(ctx context.Context, companyID int64, date time.Time) (AccountingPeriod, error) {
	period, err := s.repo.FindOpenPeriodByDate(ctx, companyID, date)
	if err == nil {
		return period, nil
	}
	if !errors.Is(err, shared.ErrNoOpenPeriod) {
		return AccountingPeriod{}, err
	}

	// Distinguish "period exists but is closed" from "no period at all":
	// a closed period must never be recreated, only refused.
	if existing, lookupErr := s.repo.FindPeriodByDate(ctx, companyID, date); lookupErr == nil {
		if !existing.Status.Postable() {
			return AccountingPeriod{}, fmt.Errorf("%w: period %d (%s..%s) is %s",
				shared.ErrPeriodClosed, existing.ID,
				existing.StartDate.Format("2006-01-02"), existing.EndDate.Format("2006-01-02"), existing.Status)
		}
	}

	cfg, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return AccountingPeriod{}, err
	}
	if !cfg.AutoCreateFiscalYear {
		s.logger.Warn("no open accounting period",
			slog.Int64("company_id", companyID),
			slog.String("date", date.Format("2006-01-02")),
			slog.Bool("auto_create_fiscal_year", false))
		return AccountingPeriod{}, fmt.Errorf("%w: company %d date %s", shared.ErrNoOpenPeriod, companyID, date.Format("2006-01-02"))
	}

	start, end := FiscalYearRangeFor(date, cfg.FiscalYearStartMonth)
	spans := GenerateSpans(start, end, cfg.PeriodFrequency)
	fy := FiscalYear{CompanyID: companyID, StartDate: start, EndDate: end}
	if cfg.Defaults.RetainedEarnings != 0 {
		re := cfg.Defaults.RetainedEarnings
		fy.RetainedEarningsAccountID = &re
	}
	if _, err := s.repo.CreateFiscalYear(ctx, fy, spans); err != nil {
		return AccountingPeriod{}, fmt.Errorf("ledger: create fiscal year: %w", err)
	}

	period, err = s.repo.FindOpenPeriodByDate(ctx, companyID, date)
	if err != nil {
		if errors.Is(err, shared.ErrNoOpenPeriod) {
			s.logger.Error("no open accounting period after auto-create",
				slog.Int64("company_id", companyID),
				slog.String("date", date.Format("2006-01-02")),
				slog.Bool("auto_create_fiscal_year", true))
			return AccountingPeriod{}, fmt.Errorf("%w: company %d date %s", shared.ErrNoOpenPeriod, companyID, date.Format("2006-01-02"))
		}
		return AccountingPeriod{}, err
	}
	return period, nil
}

// GetPeriod loads one period scoped to the company.
func (s *Service) GetPeriod(ctx context.Context, companyID, periodID int64) (AccountingPeriod, error) {
	return s.repo.GetPeriod(ctx, companyID, periodID)
}
