// Package countries provides file-backed country fact lookups.
package countries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	capitalsFile = "countries.json"
	flagsFile    = "flags.json"
)

// Lookup resolves country facts from JSON files in a data directory. Each
// file is a flat object keyed by lowercase country name.
type Lookup struct {
	dataDir string
}

// NewLookup creates a Lookup reading from the given data directory.
func NewLookup(dataDir string) *Lookup {
	return &Lookup{dataDir: dataDir}
}

// Capital returns the capital city for a country. The second return value is
// false when the country (or the data file) is unknown.
func (l *Lookup) Capital(ctx context.Context, country string) (string, bool, error) {
	return l.lookup(ctx, capitalsFile, country)
}

// Flag returns the flag emoji for a country. The second return value is
// false when the country (or the data file) is unknown.
func (l *Lookup) Flag(ctx context.Context, country string) (string, bool, error) {
	return l.lookup(ctx, flagsFile, country)
}

func (l *Lookup) lookup(ctx context.Context, file, country string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	path := filepath.Join(l.dataDir, file)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Error("country data file not found", "path", path)
			return "", false, nil
		}
		return "", false, fmt.Errorf("read country data %s: %w", file, err)
	}

	var entries map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return "", false, fmt.Errorf("parse country data %s: %w", file, err)
	}

	value, ok := entries[strings.ToLower(strings.TrimSpace(country))]
	if !ok || value == "" {
		return "", false, nil
	}
	return value, true, nil
}
