// Package overrides loads county-specific recommended actions from YAML.
//
// The document maps a county name to a band label (or "Any") to an ordered list
// of actions:
//
//	Hennepin:
//	  Red:
//	    - Open emergency distribution sites
//	  Any:
//	    - Weekly partner check-in
//
// Sources are tried in order: an uploaded document, the local file, then the
// embedded default. A source that is missing, malformed, or has no entries is
// skipped.
package overrides

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// Source names where the overrides came from.
type Source string

const (
	SourceUpload   Source = "upload"
	SourceLocal    Source = "local"
	SourceEmbedded Source = "embedded"
	SourceNone     Source = "none"
)

//go:embed default_overrides.yaml
var defaultDocument []byte

// ErrEmpty is returned by Parse when a document holds no usable entries.
var ErrEmpty = errors.New("overrides document has no entries")

// Loaded is a resolved override mapping and the source that supplied it.
type Loaded struct {
	Overrides domain.Overrides
	Source    Source
}

// Default returns the embedded overrides.
func Default() domain.Overrides {
	o, err := Parse(defaultDocument)
	if err != nil {
		return domain.Overrides{}
	}
	return o
}

// Load resolves the overrides from upload, then localPath, then the embedded
// default. It never fails; a source that cannot be used is logged and skipped.
func Load(upload []byte, localPath string, logger *slog.Logger) Loaded {
	if len(upload) > 0 {
		o, err := Parse(upload)
		if err == nil {
			return Loaded{Overrides: o, Source: SourceUpload}
		}
		logger.Warn("uploaded overrides ignored", "error", err)
	}

	if localPath != "" {
		data, err := os.ReadFile(localPath) //nolint:gosec // operator-supplied config path
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			logger.Warn("local overrides unreadable", "path", localPath, "error", err)
		default:
			o, perr := Parse(data)
			if perr == nil {
				return Loaded{Overrides: o, Source: SourceLocal}
			}
			logger.Warn("local overrides ignored", "path", localPath, "error", perr)
		}
	}

	if o, err := Parse(defaultDocument); err == nil {
		return Loaded{Overrides: o, Source: SourceEmbedded}
	}
	return Loaded{Overrides: domain.Overrides{}, Source: SourceNone}
}

// Parse decodes a YAML overrides document. Band keys are matched against the
// known band labels case-insensitively; unknown bands and blank actions are
// dropped.
func Parse(data []byte) (domain.Overrides, error) {
	var doc map[string]map[string][]string
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}

	out := make(domain.Overrides)
	for county, bands := range doc {
		county = strings.TrimSpace(county)
		if county == "" {
			continue
		}
		for band, actions := range bands {
			label, ok := canonicalBand(band)
			if !ok {
				continue
			}
			var list domain.ActionList
			for _, a := range actions {
				if a = strings.TrimSpace(a); a != "" {
					list = append(list, a)
				}
			}
			if len(list) > 0 {
				out[domain.OverrideKey{County: county, Band: label}] = list
			}
		}
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// Marshal renders overrides in the document format, for the CLI's template output.
func Marshal(o domain.Overrides) ([]byte, error) {
	doc := make(map[string]map[string][]string)
	for k, actions := range o {
		if doc[k.County] == nil {
			doc[k.County] = make(map[string][]string)
		}
		doc[k.County][k.Band] = actions
	}
	return yaml.Marshal(doc)
}

var knownBands = func() map[string]string {
	m := map[string]string{strings.ToLower(domain.AnyBand): domain.AnyBand}
	for _, name := range domain.BandingNames() {
		b, _ := domain.LookupBanding(name)
		for _, label := range b.Labels() {
			m[strings.ToLower(label)] = label
		}
	}
	return m
}()

func canonicalBand(s string) (string, bool) {
	label, ok := knownBands[strings.ToLower(strings.TrimSpace(s))]
	return label, ok
}
