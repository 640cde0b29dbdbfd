// Package domain holds the transaction model shared by parsers, the rule
// engine, the importer, and the store.
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Import status values recorded in the imports audit table.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// UncategorizedName is the sentinel fallback category. Exactly one category
// with this name must exist; its absence is a fatal configuration error.
const UncategorizedName = "Uncategorized"

var (
	// ErrUnknownFormat means no registered parser recognizes the file.
	ErrUnknownFormat = errors.New("no parser recognizes file format")

	// ErrDuplicateTransaction means a transaction with the same import
	// fingerprint already exists. This is a normal outcome, not a failure.
	ErrDuplicateTransaction = errors.New("transaction already imported")

	// ErrUncategorizedMissing means the store was not seeded correctly.
	ErrUncategorizedMissing = errors.New("Uncategorized category not found")
)

// ParsedTransaction is one normalized row from a statement file.
// Sign convention:
//
//	Negative = money leaving the account
//	Positive = money received
//
// Parsers must normalize to this convention regardless of source
// representation. Merchant and OriginalCategory use "" for absent.
type ParsedTransaction struct {
	Date             time.Time
	Amount           decimal.Decimal
	Description      string
	Merchant         string
	OriginalCategory string
}

// ParseResult is the normalized output of one file parse. It exists only for
// the duration of an import cycle; the importer consumes and discards it.
type ParseResult struct {
	Transactions []ParsedTransaction
	AccountName  string
	Institution  string
	Warnings     []string // row-level failures, in source row order
}

// Account is one ledger source, identified by (name, institution).
// Created lazily on first import referencing it.
type Account struct {
	ID          int64
	Name        string
	Institution string
	AccountType string
	CreatedAt   time.Time
}

// Category is a spending category. Hierarchy is two levels: ParentID is nil
// for top-level categories and refers to a top-level category otherwise.
type Category struct {
	ID       int64
	Name     string
	ParentID *int64
	Color    string
}

// CategoryRule maps a substring pattern to a category. Rules are evaluated in
// priority order, highest first.
type CategoryRule struct {
	ID         int64
	Pattern    string
	CategoryID int64
	Priority   int
}

// Transaction is a persisted ledger entry. ImportHash is unique across all
// transactions; a colliding insert means "already exists", not an error.
type Transaction struct {
	ID               int64
	AccountID        int64
	Date             time.Time
	Amount           decimal.Decimal
	Description      string
	Merchant         string
	CategoryID       int64
	OriginalCategory string
	Notes            string
	ImportHash       string
	CreatedAt        time.Time
}

// ImportRecord is an append-only audit entry for one import attempt. Written
// exactly once per attempt, never updated or deleted.
type ImportRecord struct {
	ID               int64
	Filename         string
	Institution      string
	ImportedAt       time.Time
	TransactionCount int
	Status           string
}
