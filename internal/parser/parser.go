// Package parser defines the strategy interface all file format parsers
// implement.
package parser

import (
	"context"
	"io"

	"github.com/fintally/fintally/internal/domain"
)

// HeaderPeekSize is how many bytes the registry reads from the start of a
// file for format detection. Large enough to cover CSV header rows and the
// metadata preamble some exports put before them.
const HeaderPeekSize = 8192

// Parser is the strategy interface for all statement file parsers.
type Parser interface {
	// Name returns the parser identifier (e.g. "csv-bank").
	Name() string

	// CanParse reports whether this parser can handle the file. It must be
	// pure and best-effort: anything that goes wrong while inspecting the
	// header means "cannot parse", never an error.
	CanParse(path string, header []byte) bool

	// Parse reads the whole file and returns normalized transactions.
	// It fails only when the file cannot be interpreted as this parser's
	// schema at all; individual malformed rows are recorded as warnings
	// ("Row N: <cause>") and skipped.
	Parse(ctx context.Context, r io.Reader, filename string) (*domain.ParseResult, error)
}
