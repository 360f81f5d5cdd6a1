package templates

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
	templates map[int64]PostingTemplate
	nextID    int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{templates: make(map[int64]PostingTemplate), nextID: 1}
}

func (m *mockRepository) FindActiveDefault(ctx context.Context, companyID int64, docType DocType, date time.Time) (PostingTemplate, error) {
	for _, t := range m.templates {
		if t.CompanyID == companyID && t.DocType == docType && t.IsActive && t.IsDefault {
			return t, nil
		}
	}
	return PostingTemplate{}, shared.ErrNoActiveTemplate
}

func (m *mockRepository) InsertTemplate(ctx context.Context, t PostingTemplate) (PostingTemplate, error) {
	t.ID = m.nextID
	m.nextID++
	for i := range t.Lines {
		t.Lines[i].TemplateID = t.ID
	}
	m.templates[t.ID] = t
	return t, nil
}

func (m *mockRepository) InsertLines(ctx context.Context, templateID int64, lines []PostingTemplateLine) error {
	t := m.templates[templateID]
	t.Lines = append(t.Lines, lines...)
	m.templates[templateID] = t
	return nil
}

func fullDefaults() company.DefaultAccounts {
	return company.DefaultAccounts{
		AccountsReceivable: 100,
		AccountsPayable:    200,
		Income:             300,
		Expense:            400,
		Bank:               500,
		Cash:               510,
		TaxPayable:         600,
		TaxReceivable:      610,
		DiscountGiven:      700,
		DiscountReceived:   710,
	}
}

func TestRoleAccountsLowestPrecedenceWins(t *testing.T) {
	template := PostingTemplate{Lines: []PostingTemplateLine{
		{Role: RoleRevenue, AccountID: 300, Precedence: 1},
		{Role: RoleRevenue, AccountID: 310, Precedence: 2},
		{Role: RoleAR, AccountID: 100, Precedence: 3},
	}}

	roles := RoleAccounts(template)
	assert.Equal(t, int64(300), roles[RoleRevenue])
	assert.Equal(t, int64(100), roles[RoleAR])
}

func TestDesiredLinesSkipsUnconfiguredDefaults(t *testing.T) {
	defaults := fullDefaults()
	defaults.TaxPayable = 0
	defaults.DiscountGiven = 0

	lines := DesiredLines(DocTypeARInvoice, defaults)
	require.Len(t, lines, 2)
	assert.Equal(t, RoleAR, lines[0].Role)
	assert.Equal(t, RoleRevenue, lines[1].Role)
}

func TestMissingLinesDiff(t *testing.T) {
	existing := PostingTemplate{Lines: []PostingTemplateLine{
		{Role: RoleAR, AccountID: 100, Precedence: 1},
	}}
	desired := DesiredLines(DocTypeARInvoice, fullDefaults())

	missing := MissingLines(existing, desired)
	require.Len(t, missing, 3)
	assert.Equal(t, RoleRevenue, missing[0].Role)
	// Appended lines continue after the existing max precedence.
	assert.Equal(t, 2, missing[0].Precedence)
	assert.Equal(t, 3, missing[1].Precedence)
	assert.Equal(t, 4, missing[2].Precedence)
}

func TestEnsureDefaultsInstallsTemplates(t *testing.T) {
	repo := newMockRepository()
	installer := NewInstaller(repo, nil)
	cfg := company.Config{ID: 1, Defaults: fullDefaults()}
	asOf := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	installed, err := installer.EnsureDefaults(context.Background(), cfg, asOf)
	require.NoError(t, err)
	assert.Positive(t, installed)
	// One template per doc type.
	assert.Len(t, repo.templates, 6)
	for _, tpl := range repo.templates {
		assert.True(t, tpl.IsDefault)
		assert.True(t, tpl.IsActive)
		assert.Equal(t, 1, tpl.Version)
		assert.NotEmpty(t, tpl.Lines)
	}
}

func TestEnsureDefaultsIsIdempotent(t *testing.T) {
	repo := newMockRepository()
	installer := NewInstaller(repo, nil)
	cfg := company.Config{ID: 1, Defaults: fullDefaults()}
	asOf := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	installed, err := installer.EnsureDefaults(context.Background(), cfg, asOf)
	require.NoError(t, err)
	assert.Positive(t, installed)
	countAfterFirst := len(repo.templates)
	linesAfterFirst := 0
	for _, tpl := range repo.templates {
		linesAfterFirst += len(tpl.Lines)
	}

	installed, err = installer.EnsureDefaults(context.Background(), cfg, asOf)
	require.NoError(t, err)
	assert.Zero(t, installed)
	assert.Len(t, repo.templates, countAfterFirst)
	linesAfterSecond := 0
	for _, tpl := range repo.templates {
		linesAfterSecond += len(tpl.Lines)
	}
	assert.Equal(t, linesAfterFirst, linesAfterSecond)
}

func TestEnsureDefaultsFillsMissingRoles(t *testing.T) {
	repo := newMockRepository()
	installer := NewInstaller(repo, nil)
	asOf := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	// First run without tax defaults.
	partial := fullDefaults()
	partial.TaxPayable = 0
	partial.TaxReceivable = 0
	_, err := installer.EnsureDefaults(context.Background(), company.Config{ID: 1, Defaults: partial}, asOf)
	require.NoError(t, err)

	// Tax accounts configured later; re-run fills only the gap: one tax role
	// per invoice, credit note, bill, and vendor credit template.
	installed, err := installer.EnsureDefaults(context.Background(), company.Config{ID: 1, Defaults: fullDefaults()}, asOf)
	require.NoError(t, err)
	assert.Equal(t, 4, installed)

	invoice, err := repo.FindActiveDefault(context.Background(), 1, DocTypeARInvoice, asOf)
	require.NoError(t, err)
	roles := RoleAccounts(invoice)
	assert.Equal(t, int64(600), roles[RoleTaxPayable])
	assert.Len(t, repo.templates, 6)
}

func TestResolveTemplateWrapsMissingTemplate(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.ResolveTemplate(context.Background(), 7, DocTypeAPBill, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, shared.ErrNoActiveTemplate)
	assert.Contains(t, err.Error(), "company 7")
	assert.Contains(t, err.Error(), "AP_BILL")
}
