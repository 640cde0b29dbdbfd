// Package store is the sqlite persistence layer. All writes go through a
// single *sql.DB; the import pipeline itself is sequential, and the UNIQUE
// import_hash constraint is the arbiter if two processes ever race on the
// same file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/fintally/fintally/internal/domain"
	"github.com/fintally/fintally/internal/seed"
)

const schemaSQL = `
-- Accounts: where money lives
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    institution TEXT,
    account_type TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Categories: hierarchical spending categories
CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    parent_id INTEGER REFERENCES categories(id),
    color TEXT
);

-- Transactions: the core data
CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY,
    account_id INTEGER REFERENCES accounts(id),
    date DATE NOT NULL,
    amount DECIMAL(10,2) NOT NULL,
    description TEXT,
    merchant TEXT,
    category_id INTEGER REFERENCES categories(id),
    original_category TEXT,
    notes TEXT,
    import_hash TEXT UNIQUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Import tracking: what files have been processed
CREATE TABLE IF NOT EXISTS imports (
    id INTEGER PRIMARY KEY,
    filename TEXT NOT NULL,
    institution TEXT,
    imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    transaction_count INTEGER,
    status TEXT
);

-- Category rules: pattern matching for auto-categorization
CREATE TABLE IF NOT EXISTS category_rules (
    id INTEGER PRIMARY KEY,
    pattern TEXT NOT NULL,
    category_id INTEGER REFERENCES categories(id),
    priority INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category_id);
CREATE INDEX IF NOT EXISTS idx_transactions_import_hash ON transactions(import_hash);
CREATE INDEX IF NOT EXISTS idx_category_rules_priority ON category_rules(priority DESC);
`

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	// modernc sqlite serializes access per connection; a single connection
	// avoids SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Seed installs categories and rules if the categories table is empty.
// Returns true when seeding happened.
func (s *Store) Seed(ctx context.Context, data *seed.Data) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return false, fmt.Errorf("checking seed state: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	categoryIDs := make(map[string]int64)
	for _, cat := range data.Categories {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO categories (name, parent_id, color) VALUES (?, NULL, ?)",
			cat.Name, nullable(cat.Color))
		if err != nil {
			return false, fmt.Errorf("seeding category %q: %w", cat.Name, err)
		}
		parentID, err := res.LastInsertId()
		if err != nil {
			return false, fmt.Errorf("reading category id: %w", err)
		}
		categoryIDs[cat.Name] = parentID

		for _, sub := range cat.Subcategories {
			res, err := tx.ExecContext(ctx,
				"INSERT INTO categories (name, parent_id, color) VALUES (?, ?, NULL)",
				sub, parentID)
			if err != nil {
				return false, fmt.Errorf("seeding subcategory %q: %w", sub, err)
			}
			subID, err := res.LastInsertId()
			if err != nil {
				return false, fmt.Errorf("reading category id: %w", err)
			}
			categoryIDs[sub] = subID
		}
	}

	for _, r := range data.Rules {
		categoryID, ok := categoryIDs[r.Category]
		if !ok {
			// validate() rejects unknown categories; this guards custom
			// seed files loaded without validation.
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO category_rules (pattern, category_id, priority) VALUES (?, ?, ?)",
			r.Pattern, categoryID, r.Priority); err != nil {
			return false, fmt.Errorf("seeding rule %q: %w", r.Pattern, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing seed transaction: %w", err)
	}
	return true, nil
}

// GetOrCreateAccount finds an account by name and institution, creating it
// when absent.
func (s *Store) GetOrCreateAccount(ctx context.Context, name, institution, accountType string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM accounts WHERE name = ? AND institution = ?",
		name, institution).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("looking up account %q: %w", name, err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (name, institution, account_type) VALUES (?, ?, ?)",
		name, institution, accountType)
	if err != nil {
		return 0, fmt.Errorf("creating account %q: %w", name, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading account id: %w", err)
	}
	return id, nil
}

// AccountExists reports whether the given account id is present.
func (s *Store) AccountExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking account %d: %w", id, err)
	}
	return true, nil
}

// UncategorizedID returns the id of the fallback category. Its absence is a
// fatal configuration error: imports cannot assign a default category.
func (s *Store) UncategorizedID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM categories WHERE name = ?", domain.UncategorizedName).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, domain.ErrUncategorizedMissing
	}
	if err != nil {
		return 0, fmt.Errorf("looking up %s category: %w", domain.UncategorizedName, err)
	}
	return id, nil
}

// ListRules returns the rule table ordered by priority (highest first);
// equal priorities keep insertion order.
func (s *Store) ListRules(ctx context.Context) ([]domain.CategoryRule, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, pattern, category_id, priority FROM category_rules ORDER BY priority DESC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var out []domain.CategoryRule
	for rows.Next() {
		var r domain.CategoryRule
		if err := rows.Scan(&r.ID, &r.Pattern, &r.CategoryID, &r.Priority); err != nil {
			return nil, fmt.Errorf("scanning rule row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rule rows: %w", err)
	}
	return out, nil
}

// ListCategories returns every category.
func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, parent_id, color FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		var parentID sql.NullInt64
		var color sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &parentID, &color); err != nil {
			return nil, fmt.Errorf("scanning category row: %w", err)
		}
		if parentID.Valid {
			c.ParentID = &parentID.Int64
		}
		c.Color = color.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category rows: %w", err)
	}
	return out, nil
}

// InsertTransaction persists a transaction. A UNIQUE violation on
// import_hash is reported as domain.ErrDuplicateTransaction so callers can
// count duplicates instead of failing.
func (s *Store) InsertTransaction(ctx context.Context, t *domain.Transaction) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(account_id, date, amount, description, merchant, category_id,
			 original_category, notes, import_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.AccountID,
		t.Date.Format("2006-01-02"),
		t.Amount.String(),
		t.Description,
		nullable(t.Merchant),
		t.CategoryID,
		nullable(t.OriginalCategory),
		nullable(t.Notes),
		t.ImportHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrDuplicateTransaction
		}
		return 0, fmt.Errorf("inserting transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading transaction id: %w", err)
	}
	return id, nil
}

// TransactionExists reports whether a transaction with the given import
// hash is already stored.
func (s *Store) TransactionExists(ctx context.Context, importHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM transactions WHERE import_hash = ?", importHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking import hash: %w", err)
	}
	return true, nil
}

// TransactionsByCategory returns all transactions assigned to categoryID,
// oldest first.
func (s *Store) TransactionsByCategory(ctx context.Context, categoryID int64) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, date, amount, description, merchant,
		       category_id, original_category, notes, import_hash
		FROM transactions WHERE category_id = ? ORDER BY date, id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for category %d: %w", categoryID, err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}
	return out, nil
}

// UpdateTransactionCategory reassigns a transaction to a category.
func (s *Store) UpdateTransactionCategory(ctx context.Context, txnID, categoryID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET category_id = ? WHERE id = ?", categoryID, txnID)
	if err != nil {
		return fmt.Errorf("updating transaction %d category: %w", txnID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d not found", txnID)
	}
	return nil
}

// InsertImport records the outcome of processing one file.
func (s *Store) InsertImport(ctx context.Context, rec *domain.ImportRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO imports (filename, institution, transaction_count, status) VALUES (?, ?, ?, ?)",
		rec.Filename, rec.Institution, rec.TransactionCount, rec.Status)
	if err != nil {
		return 0, fmt.Errorf("recording import of %s: %w", rec.Filename, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading import id: %w", err)
	}
	return id, nil
}

// ListImports returns import history, most recent first.
func (s *Store) ListImports(ctx context.Context) ([]domain.ImportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, institution, imported_at, transaction_count, status
		FROM imports ORDER BY imported_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing imports: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportRecord
	for rows.Next() {
		var rec domain.ImportRecord
		var imported string
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Institution, &imported,
			&rec.TransactionCount, &rec.Status); err != nil {
			return nil, fmt.Errorf("scanning import row: %w", err)
		}
		rec.ImportedAt, _ = parseTimestamp(imported)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating import rows: %w", err)
	}
	return out, nil
}

func scanTransaction(rows *sql.Rows) (domain.Transaction, error) {
	var t domain.Transaction
	var date string
	var amount decimal.Decimal
	var merchant, origCategory, notes sql.NullString
	var categoryID sql.NullInt64
	if err := rows.Scan(&t.ID, &t.AccountID, &date, &amount, &t.Description,
		&merchant, &categoryID, &origCategory, &notes, &t.ImportHash); err != nil {
		return domain.Transaction{}, fmt.Errorf("scanning transaction row: %w", err)
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("parsing stored date %q: %w", date, err)
	}
	t.Date = parsed
	t.Amount = amount
	t.Merchant = merchant.String
	t.OriginalCategory = origCategory.String
	t.Notes = notes.String
	if categoryID.Valid {
		t.CategoryID = categoryID.Int64
	}
	return t, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
