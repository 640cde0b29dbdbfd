package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintally/fintally/internal/domain"
	"github.com/fintally/fintally/internal/registry"
	"github.com/fintally/fintally/internal/seed"
	"github.com/fintally/fintally/internal/store"
)

const chaseCreditCSV = `Transaction Date,Post Date,Description,Category,Type,Amount
12/01/2024,12/02/2024,STARBUCKS STORE 123,Food & Drink,Sale,-5.75
12/03/2024,12/04/2024,LOCAL BAKERY,Food & Drink,Sale,-12.40
`

func newImporter(t *testing.T) (*Importer, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	data, err := seed.Default()
	require.NoError(t, err)
	_, err = st.Seed(context.Background(), data)
	require.NoError(t, err)

	return New(registry.New(), st, zerolog.Nop()), st
}

func writeStatement(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportFileIdempotent(t *testing.T) {
	im, st := newImporter(t)
	ctx := context.Background()
	path := writeStatement(t, "Chase1234_Activity.csv", chaseCreditCSV)

	first, err := im.ImportFile(ctx, path, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, first.TotalTransactions)
	assert.Equal(t, 2, first.Imported)
	assert.Equal(t, 0, first.Duplicates)
	assert.Empty(t, first.Errors)
	assert.Equal(t, domain.StatusSuccess, first.Status)
	assert.Equal(t, "Chase", first.Institution)

	// Re-importing the same file creates nothing new. Duplicates are a
	// normal outcome, so the status stays success.
	second, err := im.ImportFile(ctx, path, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 2, second.Duplicates)
	assert.Equal(t, domain.StatusSuccess, second.Status)

	// Both attempts are audited.
	records, err := st.ListImports(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestImportFileCategorizes(t *testing.T) {
	im, st := newImporter(t)
	ctx := context.Background()
	path := writeStatement(t, "Chase1234_Activity.csv", chaseCreditCSV)

	_, err := im.ImportFile(ctx, path, 0)
	require.NoError(t, err)

	cats, err := st.ListCategories(ctx)
	require.NoError(t, err)
	byName := make(map[string]int64)
	for _, c := range cats {
		byName[c.Name] = c.ID
	}

	// The seed rule table sends STARBUCKS to Coffee; the bakery has no rule
	// and falls back to Uncategorized.
	coffee, err := st.TransactionsByCategory(ctx, byName["Coffee"])
	require.NoError(t, err)
	require.Len(t, coffee, 1)
	assert.Equal(t, "STARBUCKS STORE 123", coffee[0].Description)

	uncat, err := st.TransactionsByCategory(ctx, byName[domain.UncategorizedName])
	require.NoError(t, err)
	require.Len(t, uncat, 1)
	assert.Equal(t, "LOCAL BAKERY", uncat[0].Description)
}

func TestImportFilePartialStatus(t *testing.T) {
	im, _ := newImporter(t)
	ctx := context.Background()

	content := `Transaction Date,Post Date,Description,Category,Type,Amount
bad-date,12/02/2024,BROKEN ROW,,Sale,-5.00
12/01/2024,12/02/2024,GOOD ROW,,Sale,-5.00
`
	path := writeStatement(t, "chase_card.csv", content)

	summary, err := im.ImportFile(ctx, path, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, domain.StatusPartial, summary.Status)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "Row 2")
}

func TestImportFileFailedStatus(t *testing.T) {
	im, _ := newImporter(t)
	ctx := context.Background()

	content := `Transaction Date,Post Date,Description,Category,Type,Amount
bad-date,12/02/2024,BROKEN ROW,,Sale,-5.00
`
	path := writeStatement(t, "chase_card.csv", content)

	summary, err := im.ImportFile(ctx, path, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, domain.StatusFailed, summary.Status)
}

func TestImportFilePersistenceFailure(t *testing.T) {
	im, st := newImporter(t)
	ctx := context.Background()
	path := writeStatement(t, "Chase1234_Activity.csv", chaseCreditCSV)

	// Sabotage the transactions table so every insert fails. Row-level
	// storage failures are recorded with row context and processing
	// continues; the attempt is still audited.
	_, err := st.DB().Exec("DROP TABLE transactions")
	require.NoError(t, err)

	summary, err := im.ImportFile(ctx, path, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Imported)
	assert.Equal(t, 0, summary.Duplicates)
	assert.Equal(t, domain.StatusFailed, summary.Status)
	require.Len(t, summary.Errors, 2)
	assert.Contains(t, summary.Errors[0], "Transaction 1")
	assert.Contains(t, summary.Errors[0], "2024-12-01")
	assert.Contains(t, summary.Errors[0], "$-5.75")
	assert.Contains(t, summary.Errors[1], "Transaction 2")

	records, err := st.ListImports(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusFailed, records[0].Status)
	assert.Equal(t, 0, records[0].TransactionCount)
}

func TestImportFileUnknownFormat(t *testing.T) {
	im, st := newImporter(t)
	ctx := context.Background()
	path := writeStatement(t, "mystery.csv", "a,b,c\n1,2,3\n")

	_, err := im.ImportFile(ctx, path, 0)
	assert.ErrorIs(t, err, domain.ErrUnknownFormat)

	// Detection failures abort before the audit row is written.
	records, err := st.ListImports(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestImportFileExplicitAccount(t *testing.T) {
	im, st := newImporter(t)
	ctx := context.Background()
	path := writeStatement(t, "Chase1234_Activity.csv", chaseCreditCSV)

	accountID, err := st.GetOrCreateAccount(ctx, "My Card", "Chase", "credit")
	require.NoError(t, err)

	summary, err := im.ImportFile(ctx, path, accountID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)

	// An account id that does not exist is rejected up front.
	_, err = im.ImportFile(ctx, path, 424242)
	require.Error(t, err)
}

func TestImportFileMissingUncategorized(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "unseeded.db"))
	require.NoError(t, err)
	defer st.Close()

	im := New(registry.New(), st, zerolog.Nop())
	path := writeStatement(t, "Chase1234_Activity.csv", chaseCreditCSV)

	_, err = im.ImportFile(context.Background(), path, 0)
	assert.ErrorIs(t, err, domain.ErrUncategorizedMissing)

	records, err := st.ListImports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		summary  Summary
		expected string
	}{
		{"clean import", Summary{Imported: 5}, domain.StatusSuccess},
		{"all duplicates", Summary{Duplicates: 5}, domain.StatusSuccess},
		{"some rows failed", Summary{Imported: 3, Errors: []string{"x"}}, domain.StatusPartial},
		{"everything failed", Summary{Errors: []string{"x"}}, domain.StatusFailed},
		{"duplicates with errors", Summary{Duplicates: 2, Errors: []string{"x"}}, domain.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := statusFor(&tt.summary)
			if got != tt.expected {
				t.Errorf("statusFor(%+v) = %q; want %q", tt.summary, got, tt.expected)
			}
		})
	}
}
