// Package ofx parses OFX/QFX statement downloads for banks that do not
// offer CSV exports.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/fintally/fintally/internal/domain"
)

// Parser implements OFX/QFX parsing. Stateless; safe for concurrent use.
type Parser struct{}

// NewParser returns the OFX parser.
func NewParser() *Parser { return &Parser{} }

// Name returns the parser identifier.
func (p *Parser) Name() string { return "ofx" }

// CanParse checks the file extension and header markers (both v1 SGML and
// v2 XML forms).
func (p *Parser) CanParse(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Parse extracts transactions from an OFX/QFX download. Amounts in OFX are
// already sign-correct (negative = money out).
func (p *Parser) Parse(ctx context.Context, r io.Reader, filename string) (*domain.ParseResult, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading OFX content: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	resp, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing OFX file (%d bytes): %w", len(content), err)
	}

	institution := resp.Signon.Org.String()
	if institution == "" {
		return nil, fmt.Errorf("missing institution in OFX response")
	}

	switch {
	case len(resp.CreditCard) > 0:
		stmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected credit card statement type %T", resp.CreditCard[0])
		}
		if stmt.BankTranList == nil {
			return nil, fmt.Errorf("missing transaction list in credit card statement")
		}
		return buildResult(institution, institution+" Credit Card", stmt.BankTranList), nil

	case len(resp.Bank) > 0:
		stmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected bank statement type %T", resp.Bank[0])
		}
		if stmt.BankTranList == nil {
			return nil, fmt.Errorf("missing transaction list in bank statement")
		}
		return buildResult(institution, bankAccountName(institution, stmt.BankAcctFrom), stmt.BankTranList), nil
	}

	return nil, fmt.Errorf("no bank or credit card statement found in OFX file")
}

func buildResult(institution, accountName string, list *ofxgo.TransactionList) *domain.ParseResult {
	result := &domain.ParseResult{
		AccountName: accountName,
		Institution: institution,
	}
	for i, txn := range list.Transactions {
		parsed, err := convertTransaction(txn)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		result.Transactions = append(result.Transactions, parsed)
	}
	return result
}

func convertTransaction(txn ofxgo.Transaction) (domain.ParsedTransaction, error) {
	date := txn.DtPosted.Time
	if date.IsZero() {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		return domain.ParsedTransaction{}, fmt.Errorf("missing posted and user date")
	}

	description := strings.TrimSpace(txn.Name.String())
	if description == "" {
		description = strings.TrimSpace(txn.Memo.String())
	}
	if description == "" {
		return domain.ParsedTransaction{}, fmt.Errorf("missing name and memo")
	}

	amount := decimal.NewFromBigRat(&txn.TrnAmt.Rat, 2)

	return domain.ParsedTransaction{
		Date:             date,
		Amount:           amount,
		Description:      description,
		OriginalCategory: txn.TrnType.String(),
	}, nil
}

func bankAccountName(institution string, acct ofxgo.BankAcct) string {
	kind := "Checking"
	if acct.AcctType == ofxgo.AcctTypeSavings {
		kind = "Savings"
	}
	return institution + " " + kind
}
