// Package registry holds the ordered, fixed list of format parsers.
package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/fintally/fintally/internal/domain"
	"github.com/fintally/fintally/internal/parser"
	"github.com/fintally/fintally/internal/parsers/csv"
	"github.com/fintally/fintally/internal/parsers/ofx"
)

// Registry is an ordered list of parsers. Detection order is a deliberate
// policy: when a file's headers satisfy more than one parser, the
// earlier-registered parser wins, deterministically. Do not replace this
// with a best-match heuristic.
type Registry struct {
	parsers []parser.Parser
}

// New creates a registry with all built-in parsers in detection order.
func New() *Registry {
	return &Registry{
		parsers: []parser.Parser{
			csv.NewBankParser(),
			csv.NewP2PParser(),
			csv.NewCardParser(),
			ofx.NewParser(),
		},
	}
}

// Register appends a custom parser after the built-in ones.
func (r *Registry) Register(p parser.Parser) {
	r.parsers = append(r.parsers, p)
}

// Detect returns the first parser (in registry order) that recognizes the
// file. Returns domain.ErrUnknownFormat when none does.
func (r *Registry) Detect(path string) (parser.Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, parser.HeaderPeekSize)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading header from %s: %w", path, err)
	}
	// EOF is fine: small files get whatever was read.
	header = header[:n]

	for _, p := range r.parsers {
		if p.CanParse(path, header) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFormat, path)
}

// Names returns the registered parser identifiers in detection order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}
