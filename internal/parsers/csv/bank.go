package csv

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fintally/fintally/internal/domain"
)

// BankParser parses bank CSV exports (Chase shape) covering two mutually
// exclusive sub-schemas: credit card and checking. Stateless; safe for
// concurrent use.
type BankParser struct{}

// NewBankParser returns the bank CSV parser.
func NewBankParser() *BankParser { return &BankParser{} }

// The first three header names of each sub-schema are enough to
// disambiguate. Credit is checked before checking; first match wins.
var (
	bankCreditHeaders   = []string{"Transaction Date", "Post Date", "Description"}
	bankCheckingHeaders = []string{"Details", "Posting Date", "Description"}
)

const bankDateLayout = "01/02/2006"

var (
	// 10+ digit runs are transaction IDs, not merchant text.
	txnIDPattern = regexp.MustCompile(`\b\d{10,}\b`)
	// Institutional prefixes, anchored at the start.
	instPrefixPattern = regexp.MustCompile(`(?i)^(DEBIT CARD|CREDIT CARD|ACH|CHECKCARD|POS)\s+`)
	// Embedded date-like substrings.
	embeddedDatePattern = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)
	spaceRunPattern     = regexp.MustCompile(`\s+`)
)

var titleCaser = cases.Title(language.English)

// Name returns the parser identifier.
func (p *BankParser) Name() string { return "csv-bank" }

// CanParse accepts a file matching either bank sub-schema.
func (p *BankParser) CanParse(path string, header []byte) bool {
	if !isCSV(path) {
		return false
	}
	fields, err := headerFields(header)
	if err != nil {
		return false
	}
	return hasAll(fields, bankCreditHeaders) || hasAll(fields, bankCheckingHeaders)
}

// Parse reads a bank CSV, routing rows through whichever sub-schema the
// header matched. Malformed rows become warnings, not errors.
func (p *BankParser) Parse(ctx context.Context, r io.Reader, filename string) (*domain.ParseResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	records, err := readRecords(r)
	if err != nil {
		return nil, fmt.Errorf("reading bank CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("bank CSV is empty")
	}

	headers := records[0]
	isCredit := hasAll(headers, bankCreditHeaders)
	isChecking := hasAll(headers, bankCheckingHeaders)
	if !isCredit && !isChecking {
		return nil, fmt.Errorf("unrecognized bank CSV format")
	}

	accountType := "credit"
	if !isCredit {
		accountType = "checking"
	}

	result := &domain.ParseResult{
		AccountName: bankAccountName(filename, accountType),
		Institution: "Chase",
	}
	for i, rec := range records[1:] {
		row := rowMap(headers, rec)
		var (
			txn    domain.ParsedTransaction
			rowErr error
		)
		if isCredit {
			txn, rowErr = p.parseCreditRow(row)
		} else {
			txn, rowErr = p.parseCheckingRow(row)
		}
		if rowErr != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Row %d: %v", i+2, rowErr))
			continue
		}
		result.Transactions = append(result.Transactions, txn)
	}
	return result, nil
}

func (p *BankParser) parseCreditRow(row map[string]string) (domain.ParsedTransaction, error) {
	date, err := time.Parse(bankDateLayout, row["Transaction Date"])
	if err != nil {
		return domain.ParsedTransaction{}, fmt.Errorf("invalid transaction date %q", row["Transaction Date"])
	}

	// Credit exports are already sign-correct (negative = charge).
	amount, err := decimal.NewFromString(row["Amount"])
	if err != nil {
		return domain.ParsedTransaction{}, fmt.Errorf("invalid amount %q", row["Amount"])
	}

	description := row["Description"]
	return domain.ParsedTransaction{
		Date:             date,
		Amount:           amount,
		Description:      description,
		Merchant:         extractMerchant(description),
		OriginalCategory: strings.TrimSpace(row["Category"]),
	}, nil
}

func (p *BankParser) parseCheckingRow(row map[string]string) (domain.ParsedTransaction, error) {
	date, err := time.Parse(bankDateLayout, row["Posting Date"])
	if err != nil {
		return domain.ParsedTransaction{}, fmt.Errorf("invalid posting date %q", row["Posting Date"])
	}

	amountStr := strings.ReplaceAll(row["Amount"], ",", "")
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return domain.ParsedTransaction{}, fmt.Errorf("invalid amount %q", row["Amount"])
	}

	description := row["Description"]
	return domain.ParsedTransaction{
		Date:             date,
		Amount:           amount,
		Description:      description,
		Merchant:         extractMerchant(description),
		OriginalCategory: strings.TrimSpace(row["Type"]),
	}, nil
}

// extractMerchant strips transaction IDs, institutional prefixes, and
// embedded dates from a description. A cleanup that changes nothing is not
// useful, so "" is returned when the result equals the input.
func extractMerchant(description string) string {
	cleaned := txnIDPattern.ReplaceAllString(description, "")
	cleaned = instPrefixPattern.ReplaceAllString(cleaned, "")
	cleaned = embeddedDatePattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(spaceRunPattern.ReplaceAllString(cleaned, " "))
	if cleaned == "" || cleaned == description {
		return ""
	}
	return cleaned
}

// bankAccountName derives a display name from the filename when it names the
// account kind, falling back to the detected sub-schema.
func bankAccountName(filename, accountType string) string {
	name := "Chase " + titleCaser.String(accountType)

	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	lower := strings.ToLower(stem)
	switch {
	case strings.Contains(lower, "checking"):
		name = "Chase Checking"
	case strings.Contains(lower, "credit"), strings.Contains(lower, "card"):
		name = "Chase Credit Card"
	}
	return name
}
