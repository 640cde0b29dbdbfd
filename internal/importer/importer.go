// Package importer orchestrates one statement import: detect the format,
// parse, fingerprint, categorize, and persist. Rows are processed
// sequentially; there is exactly one writer per import run.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fintally/fintally/internal/dedup"
	"github.com/fintally/fintally/internal/domain"
	"github.com/fintally/fintally/internal/registry"
	"github.com/fintally/fintally/internal/rules"
	"github.com/fintally/fintally/internal/store"
)

// Summary reports the outcome of importing one file.
type Summary struct {
	Filename          string
	Institution       string
	AccountName       string
	TotalTransactions int
	Imported          int
	Duplicates        int
	Errors            []string
	Status            string
}

// Importer runs the import pipeline against a store.
type Importer struct {
	registry *registry.Registry
	store    *store.Store
	log      zerolog.Logger
}

// New creates an importer.
func New(reg *registry.Registry, st *store.Store, log zerolog.Logger) *Importer {
	return &Importer{registry: reg, store: st, log: log}
}

// ImportFile imports one statement file. accountID 0 means "derive the
// account from the file": the parser's account name and institution are
// looked up or created. A non-zero accountID must already exist.
//
// A detection or parse failure aborts before any write, including the
// import audit row. Once rows are being processed, every attempt ends with
// exactly one audit row, whatever mix of inserts, duplicates, and row
// errors occurred.
func (im *Importer) ImportFile(ctx context.Context, path string, accountID int64) (*Summary, error) {
	runID := uuid.NewString()
	filename := filepath.Base(path)
	log := im.log.With().Str("run_id", runID).Str("file", filename).Logger()

	p, err := im.registry.Detect(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("parser", p.Name()).Msg("format detected")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	result, err := p.Parse(ctx, f, filename)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	if accountID == 0 {
		accountID, err = im.store.GetOrCreateAccount(ctx, result.AccountName, result.Institution, accountType(result.AccountName))
		if err != nil {
			return nil, err
		}
	} else {
		ok, err := im.store.AccountExists(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("account %d not found", accountID)
		}
	}

	uncatID, err := im.store.UncategorizedID(ctx)
	if err != nil {
		// Without the fallback category nothing can be categorized;
		// abort before touching transactions.
		return nil, err
	}

	engine, err := rules.Load(ctx, im.store)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Filename:          filename,
		Institution:       result.Institution,
		AccountName:       result.AccountName,
		TotalTransactions: len(result.Transactions),
	}

	for i, txn := range result.Transactions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hash := dedup.ForTransaction(txn, result.Institution)

		// The UNIQUE constraint on the insert below still arbitrates if
		// another writer races in between this check and the write.
		exists, err := im.store.TransactionExists(ctx, hash)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("Transaction %d (%s $%s): %v", i+1, txn.Date.Format("2006-01-02"), txn.Amount.String(), err))
			continue
		}
		if exists {
			summary.Duplicates++
			continue
		}

		categoryID := uncatID
		if id, ok := engine.Match(txn.Description); ok {
			categoryID = id
		}

		record := &domain.Transaction{
			AccountID:        accountID,
			Date:             txn.Date,
			Amount:           txn.Amount,
			Description:      txn.Description,
			Merchant:         txn.Merchant,
			CategoryID:       categoryID,
			OriginalCategory: txn.OriginalCategory,
			ImportHash:       hash,
		}

		_, err = im.store.InsertTransaction(ctx, record)
		switch {
		case err == nil:
			summary.Imported++
		case errors.Is(err, domain.ErrDuplicateTransaction):
			summary.Duplicates++
		default:
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("Transaction %d (%s $%s): %v", i+1, txn.Date.Format("2006-01-02"), txn.Amount.String(), err))
		}
	}

	// Parse-level row warnings count as problems alongside insert errors.
	summary.Errors = append(summary.Errors, result.Warnings...)
	summary.Status = statusFor(summary)

	if _, err := im.store.InsertImport(ctx, &domain.ImportRecord{
		Filename:         filename,
		Institution:      result.Institution,
		TransactionCount: summary.Imported,
		Status:           summary.Status,
	}); err != nil {
		return nil, err
	}

	log.Info().
		Int("total", summary.TotalTransactions).
		Int("imported", summary.Imported).
		Int("duplicates", summary.Duplicates).
		Int("errors", len(summary.Errors)).
		Str("status", summary.Status).
		Msg("import finished")

	return summary, nil
}

// statusFor classifies a finished import. Row-parse warnings and insert
// errors both count as problems; duplicates never do.
func statusFor(s *Summary) string {
	if len(s.Errors) == 0 {
		return domain.StatusSuccess
	}
	if s.Imported > 0 {
		return domain.StatusPartial
	}
	return domain.StatusFailed
}

// accountType guesses a coarse account type from the display name. Only
// used for the accounts table metadata column.
func accountType(accountName string) string {
	name := strings.ToLower(accountName)
	switch {
	case strings.Contains(name, "credit"):
		return "credit"
	case strings.Contains(name, "checking"):
		return "checking"
	case strings.Contains(name, "savings"):
		return "savings"
	default:
		return "other"
	}
}
