package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/ledger/company"
	"github.com/ledgerline/ledgerline/internal/ledger/shared"
)

type mockRepository struct {
	fiscalYears map[int64]FiscalYear
	periods     map[int64]AccountingPeriod
	nextFYID    int64
	nextID      int64

	createCalls int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		fiscalYears: make(map[int64]FiscalYear),
		periods:     make(map[int64]AccountingPeriod),
		nextFYID:    1,
		nextID:      1,
	}
}

func (m *mockRepository) FindOpenPeriodByDate(ctx context.Context, companyID int64, date time.Time) (AccountingPeriod, error) {
	for _, p := range m.periods {
		fy := m.fiscalYears[p.FiscalYearID]
		if p.CompanyID == companyID && p.Contains(date) && p.Status.Postable() && !fy.IsClosed {
			return p, nil
		}
	}
	return AccountingPeriod{}, shared.ErrNoOpenPeriod
}

func (m *mockRepository) FindPeriodByDate(ctx context.Context, companyID int64, date time.Time) (AccountingPeriod, error) {
	for _, p := range m.periods {
		if p.CompanyID == companyID && p.Contains(date) {
			return p, nil
		}
	}
	return AccountingPeriod{}, shared.ErrNoOpenPeriod
}

func (m *mockRepository) CreateFiscalYear(ctx context.Context, fy FiscalYear, spans []Span) (FiscalYear, error) {
	m.createCalls++
	// Mimic find-or-create: a fiscal year with the same start survives.
	for _, existing := range m.fiscalYears {
		if existing.CompanyID == fy.CompanyID && existing.StartDate.Equal(fy.StartDate) {
			return existing, nil
		}
	}
	fy.ID = m.nextFYID
	m.nextFYID++
	m.fiscalYears[fy.ID] = fy
	for _, span := range spans {
		p := AccountingPeriod{
			ID:           m.nextID,
			FiscalYearID: fy.ID,
			CompanyID:    fy.CompanyID,
			StartDate:    span.StartDate,
			EndDate:      span.EndDate,
			PeriodNumber: span.PeriodNumber,
			PeriodType:   span.PeriodType,
			Status:       PeriodStatusOpen,
		}
		m.periods[p.ID] = p
		m.nextID++
	}
	return fy, nil
}

func (m *mockRepository) GetPeriod(ctx context.Context, companyID, periodID int64) (AccountingPeriod, error) {
	p, ok := m.periods[periodID]
	if !ok || p.CompanyID != companyID {
		return AccountingPeriod{}, shared.ErrNoOpenPeriod
	}
	return p, nil
}

type stubCompanies struct {
	cfg company.Config
}

func (s *stubCompanies) Get(ctx context.Context, companyID int64) (company.Config, error) {
	return s.cfg, nil
}

func autoCreateConfig() company.Config {
	return company.Config{
		ID:                   1,
		BaseCurrency:         "USD",
		FiscalYearStartMonth: time.January,
		PeriodFrequency:      company.FrequencyMonthly,
		AutoCreateFiscalYear: true,
	}
}

func TestResolveOpenPeriodExisting(t *testing.T) {
	repo := newMockRepository()
	repo.fiscalYears[1] = FiscalYear{ID: 1, CompanyID: 1}
	repo.periods[1] = AccountingPeriod{
		ID: 1, FiscalYearID: 1, CompanyID: 1,
		StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    PeriodStatusOpen,
	}
	svc := NewService(repo, &stubCompanies{cfg: autoCreateConfig()}, nil)

	period, err := svc.ResolveOpenPeriod(context.Background(), 1, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), period.ID)
	assert.Zero(t, repo.createCalls)
}

func TestResolveOpenPeriodAutoCreates(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &stubCompanies{cfg: autoCreateConfig()}, nil)

	period, err := svc.ResolveOpenPeriod(context.Background(), 1, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 1, repo.createCalls)
	assert.Len(t, repo.periods, 12)
	assert.True(t, period.Contains(time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 5, period.PeriodNumber)
}

func TestResolveOpenPeriodNoAutoCreate(t *testing.T) {
	repo := newMockRepository()
	cfg := autoCreateConfig()
	cfg.AutoCreateFiscalYear = false
	svc := NewService(repo, &stubCompanies{cfg: cfg}, nil)

	_, err := svc.ResolveOpenPeriod(context.Background(), 1, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, shared.ErrNoOpenPeriod)
	assert.Zero(t, repo.createCalls)
}

func TestResolveOpenPeriodClosedPeriodRefused(t *testing.T) {
	repo := newMockRepository()
	repo.fiscalYears[1] = FiscalYear{ID: 1, CompanyID: 1}
	repo.periods[1] = AccountingPeriod{
		ID: 1, FiscalYearID: 1, CompanyID: 1,
		StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    PeriodStatusClosed,
	}
	svc := NewService(repo, &stubCompanies{cfg: autoCreateConfig()}, nil)

	_, err := svc.ResolveOpenPeriod(context.Background(), 1, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, shared.ErrPeriodClosed)
	// A closed period is refused, never recreated.
	assert.Zero(t, repo.createCalls)
}

func TestResolveOpenPeriodClosingStillPostable(t *testing.T) {
	repo := newMockRepository()
	repo.fiscalYears[1] = FiscalYear{ID: 1, CompanyID: 1}
	repo.periods[1] = AccountingPeriod{
		ID: 1, FiscalYearID: 1, CompanyID: 1,
		StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    PeriodStatusClosing,
	}
	svc := NewService(repo, &stubCompanies{cfg: autoCreateConfig()}, nil)

	period, err := svc.ResolveOpenPeriod(context.Background(), 1, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), period.ID)
}

func TestResolveOpenPeriodDeterministic(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &stubCompanies{cfg: autoCreateConfig()}, nil)
	date := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)

	first, err := svc.ResolveOpenPeriod(context.Background(), 1, date)
	require.NoError(t, err)
	second, err := svc.ResolveOpenPeriod(context.Background(), 1, date)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.createCalls)
}
