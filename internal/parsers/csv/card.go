package csv

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fintally/fintally/internal/domain"
)

// CardParser parses card statement CSV exports (Apple Card shape).
// Stateless; safe for concurrent use.
type CardParser struct{}

// NewCardParser returns the card CSV parser.
func NewCardParser() *CardParser { return &CardParser{} }

var cardRequiredHeaders = []string{
	"Transaction Date",
	"Clearing Date",
	"Description",
	"Merchant",
	"Category",
	"Type",
	"Amount (USD)",
}

const cardDateLayout = "01/02/2006"

// Name returns the parser identifier.
func (p *CardParser) Name() string { return "csv-card" }

// CanParse requires every card header to be present, in any order.
func (p *CardParser) CanParse(path string, header []byte) bool {
	if !isCSV(path) {
		return false
	}
	fields, err := headerFields(header)
	if err != nil {
		return false
	}
	return hasAll(fields, cardRequiredHeaders)
}

// Parse reads a card CSV. Malformed rows become warnings, not errors.
func (p *CardParser) Parse(ctx context.Context, r io.Reader, filename string) (*domain.ParseResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	records, err := readRecords(r)
	if err != nil {
		return nil, fmt.Errorf("reading card CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("card CSV is empty")
	}

	headers := records[0]
	if !hasAll(headers, cardRequiredHeaders) {
		return nil, fmt.Errorf("missing required card CSV headers")
	}

	result := &domain.ParseResult{
		AccountName: "Apple Card",
		Institution: "Apple",
	}
	for i, rec := range records[1:] {
		txn, err := p.parseRow(rowMap(headers, rec))
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Row %d: %v", i+2, err))
			continue
		}
		result.Transactions = append(result.Transactions, txn)
	}
	return result, nil
}

func (p *CardParser) parseRow(row map[string]string) (domain.ParsedTransaction, error) {
	date, err := time.Parse(cardDateLayout, row["Transaction Date"])
	if err != nil {
		return domain.ParsedTransaction{}, fmt.Errorf("invalid transaction date %q", row["Transaction Date"])
	}

	amountStr := strings.ReplaceAll(row["Amount (USD)"], ",", "")
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return domain.ParsedTransaction{}, fmt.Errorf("invalid amount %q", row["Amount (USD)"])
	}

	// The source shows purchases as positive; our convention is negative for
	// money out. Refunds and credits keep the source sign.
	if row["Type"] == "Purchase" {
		amount = amount.Neg()
	}

	return domain.ParsedTransaction{
		Date:             date,
		Amount:           amount,
		Description:      row["Description"],
		Merchant:         strings.TrimSpace(row["Merchant"]),
		OriginalCategory: strings.TrimSpace(row["Category"]),
	}, nil
}
