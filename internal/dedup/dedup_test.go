package dedup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fintally/fintally/internal/domain"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("2024-12-01", "-5.75", "STARBUCKS STORE 123", "Apple")
	b := Fingerprint("2024-12-01", "-5.75", "STARBUCKS STORE 123", "Apple")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprintInstitutionCaseInsensitive(t *testing.T) {
	a := Fingerprint("2024-12-01", "-5.75", "COFFEE", "Chase")
	b := Fingerprint("2024-12-01", "-5.75", "COFFEE", "CHASE")
	c := Fingerprint("2024-12-01", "-5.75", "COFFEE", "chase")
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Fingerprint("2024-12-01", "-5.75", "COFFEE", "chase")

	tests := []struct {
		name string
		got  string
	}{
		{"date differs", Fingerprint("2024-12-02", "-5.75", "COFFEE", "chase")},
		{"amount differs", Fingerprint("2024-12-01", "-5.76", "COFFEE", "chase")},
		{"amount text differs", Fingerprint("2024-12-01", "-5.750", "COFFEE", "chase")},
		{"description differs", Fingerprint("2024-12-01", "-5.75", "coffee", "chase")},
		{"institution differs", Fingerprint("2024-12-01", "-5.75", "COFFEE", "apple")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got == base {
				t.Errorf("fingerprint should differ from base")
			}
		})
	}
}

func TestForTransaction(t *testing.T) {
	txn := domain.ParsedTransaction{
		Date:        time.Date(2024, 12, 1, 15, 30, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("-5.75"),
		Description: "STARBUCKS STORE 123",
	}

	// Time-of-day is dropped: only the calendar date participates.
	sameDay := txn
	sameDay.Date = time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)

	a := ForTransaction(txn, "Apple")
	b := ForTransaction(sameDay, "Apple")
	assert.Equal(t, a, b)

	assert.Equal(t, Fingerprint("2024-12-01", "-5.75", "STARBUCKS STORE 123", "apple"), a)
}
