package csv

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardSample = `Transaction Date,Clearing Date,Description,Merchant,Category,Type,Amount (USD)
12/01/2024,12/02/2024,STARBUCKS STORE 123,Starbucks,Restaurants,Purchase,5.75
12/03/2024,12/04/2024,REFUND ACME,Acme,Shopping,Refund,-20.00
12/05/2024,12/06/2024,"BIG PURCHASE","Big Store",Shopping,Purchase,"1,234.56"
`

func TestCardParserCanParse(t *testing.T) {
	p := NewCardParser()

	assert.True(t, p.CanParse("statement.csv", []byte(cardSample)))
	assert.True(t, p.CanParse("statement.CSV", []byte("\xEF\xBB\xBF"+cardSample)))
	assert.False(t, p.CanParse("statement.txt", []byte(cardSample)))
	assert.False(t, p.CanParse("statement.csv", []byte("Date,Amount\n01/01/2024,5\n")))
}

func TestCardParserParse(t *testing.T) {
	p := NewCardParser()

	result, err := p.Parse(context.Background(), strings.NewReader(cardSample), "card.csv")
	require.NoError(t, err)

	assert.Equal(t, "Apple Card", result.AccountName)
	assert.Equal(t, "Apple", result.Institution)
	require.Len(t, result.Transactions, 3)
	assert.Empty(t, result.Warnings)

	// Purchases are negated; refunds keep the source sign.
	assert.True(t, result.Transactions[0].Amount.Equal(decimal.RequireFromString("-5.75")))
	assert.True(t, result.Transactions[1].Amount.Equal(decimal.RequireFromString("-20.00")))
	assert.True(t, result.Transactions[2].Amount.Equal(decimal.RequireFromString("-1234.56")))

	first := result.Transactions[0]
	assert.Equal(t, "STARBUCKS STORE 123", first.Description)
	assert.Equal(t, "Starbucks", first.Merchant)
	assert.Equal(t, "Restaurants", first.OriginalCategory)
	assert.Equal(t, "2024-12-01", first.Date.Format("2006-01-02"))
}

func TestCardParserMalformedRows(t *testing.T) {
	input := `Transaction Date,Clearing Date,Description,Merchant,Category,Type,Amount (USD)
not-a-date,12/02/2024,BAD DATE,Store,Shopping,Purchase,5.00
12/01/2024,12/02/2024,BAD AMOUNT,Store,Shopping,Purchase,abc
12/02/2024,12/03/2024,GOOD ROW,Store,Shopping,Purchase,10.00
`
	p := NewCardParser()
	result, err := p.Parse(context.Background(), strings.NewReader(input), "card.csv")
	require.NoError(t, err)

	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "GOOD ROW", result.Transactions[0].Description)

	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "Row 2")
	assert.Contains(t, result.Warnings[1], "Row 3")
}

func TestCardParserMissingHeaders(t *testing.T) {
	p := NewCardParser()
	_, err := p.Parse(context.Background(), strings.NewReader("Date,Amount\n01/01/2024,5\n"), "card.csv")
	require.Error(t, err)
}

func TestCardParserCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewCardParser()
	_, err := p.Parse(ctx, strings.NewReader(cardSample), "card.csv")
	assert.ErrorIs(t, err, context.Canceled)
}
