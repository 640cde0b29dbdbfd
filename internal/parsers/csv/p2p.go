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

// P2PParser parses peer-to-peer payment history CSV exports (Venmo shape).
// These files carry a few metadata lines before the real header row, so
// detection and parsing scan forward to find it. Stateless; safe for
// concurrent use.
type P2PParser struct{}

// NewP2PParser returns the peer-to-peer CSV parser.
func NewP2PParser() *P2PParser { return &P2PParser{} }

var p2pRequiredHeaders = []string{"Datetime", "Type", "Status", "Amount (total)"}

// maxPreambleLines bounds the metadata preamble scan during detection.
const maxPreambleLines = 10

var p2pDateLayouts = []string{"2006-01-02T15:04:05", time.RFC3339}

// Name returns the parser identifier.
func (p *P2PParser) Name() string { return "csv-p2p" }

// CanParse scans the first few lines for the header row, then requires every
// peer-to-peer column to be present.
func (p *P2PParser) CanParse(path string, header []byte) bool {
	if !isCSV(path) {
		return false
	}

	lines := splitLines(stripBOM(header))
	if len(lines) > maxPreambleLines {
		lines = lines[:maxPreambleLines]
	}
	for _, line := range lines {
		if !isP2PHeaderLine(line) {
			continue
		}
		fields, err := headerFields([]byte(line))
		if err != nil {
			return false
		}
		return hasAll(fields, p2pRequiredHeaders)
	}
	return false
}

// Parse reads a peer-to-peer CSV. Rows that are not Complete, and Standard
// Transfer rows, are dropped silently; malformed rows become warnings.
func (p *P2PParser) Parse(ctx context.Context, r io.Reader, filename string) (*domain.ParseResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading peer-to-peer CSV: %w", err)
	}

	lines := splitLines(stripBOM(content))
	if len(lines) == 0 {
		return nil, fmt.Errorf("peer-to-peer CSV is empty")
	}

	headerIdx := -1
	for i, line := range lines {
		if isP2PHeaderLine(line) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("could not find peer-to-peer CSV header row")
	}

	records, err := newReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n"))).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading peer-to-peer CSV rows: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("peer-to-peer CSV has no header record")
	}
	headers := records[0]

	result := &domain.ParseResult{
		AccountName: "Venmo",
		Institution: "Venmo",
	}
	for i, rec := range records[1:] {
		row := rowMap(headers, rec)

		// Incomplete rows and bank transfers are excluded entirely, not
		// counted as warnings.
		if row["Status"] != "Complete" {
			continue
		}
		if row["Type"] == "Standard Transfer" {
			continue
		}

		txn, err := p.parseRow(row)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Row %d: %v", headerIdx+i+2, err))
			continue
		}
		result.Transactions = append(result.Transactions, txn)
	}
	return result, nil
}

func (p *P2PParser) parseRow(row map[string]string) (domain.ParsedTransaction, error) {
	date, err := parseP2PDate(row["Datetime"])
	if err != nil {
		return domain.ParsedTransaction{}, fmt.Errorf("invalid datetime %q", row["Datetime"])
	}

	amount, err := parseSignedAmount(row["Amount (total)"])
	if err != nil {
		return domain.ParsedTransaction{}, fmt.Errorf("invalid amount %q", row["Amount (total)"])
	}

	// A charge is the mirror image of a payment: the signed string reads
	// from the counterparty's point of view.
	txnType := row["Type"]
	if txnType == "Charge" {
		amount = amount.Neg()
	}

	fromUser := row["From"]
	toUser := row["To"]

	description := strings.TrimSpace(row["Note"])
	if description == "" {
		if amount.Sign() > 0 {
			description = fmt.Sprintf("Payment from %s", fromUser)
		} else {
			description = fmt.Sprintf("Payment to %s", toUser)
		}
	}

	merchant := fromUser
	if amount.Sign() < 0 {
		merchant = toUser
	}

	return domain.ParsedTransaction{
		Date:             date,
		Amount:           amount,
		Description:      description,
		Merchant:         strings.TrimSpace(merchant),
		OriginalCategory: txnType,
	}, nil
}

// parseSignedAmount parses strings like "+ $25.00" or "- $1,250.00".
func parseSignedAmount(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(raw, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	switch {
	case strings.HasPrefix(s, "+"):
		return decimal.NewFromString(strings.TrimSpace(s[1:]))
	case strings.HasPrefix(s, "-"):
		d, err := decimal.NewFromString(strings.TrimSpace(s[1:]))
		if err != nil {
			return decimal.Decimal{}, err
		}
		return d.Neg(), nil
	default:
		return decimal.NewFromString(s)
	}
}

func parseP2PDate(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range p2pDateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func isP2PHeaderLine(line string) bool {
	return strings.Contains(line, "Datetime") && strings.Contains(line, "Amount (total)")
}

// splitLines splits on newlines, tolerating CRLF and a missing final newline.
func splitLines(b []byte) []string {
	text := strings.ReplaceAll(string(b), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
