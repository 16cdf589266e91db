// Package ids normalizes and classifies the identifiers accepted as
// input: PMCIDs, PMIDs, and DOIs.
package ids

import (
	"strings"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
)

// Kind of identifier as inferred from its shape alone.
type Kind int

const (
	Unknown Kind = iota
	PMCID
	PMID
	DOI
)

func (k Kind) String() string {
	switch k {
	case PMCID:
		return "pmcid"
	case PMID:
		return "pmid"
	case DOI:
		return "doi"
	default:
		return "unknown"
	}
}

// NormalizePMCID strips an optional case-insensitive "PMC" prefix and
// requires the remainder to be a non-empty decimal string. The canonical
// form is numeric, so the function is idempotent.
func NormalizePMCID(s string) (string, error) {
	t := strings.TrimSpace(s)
	if len(t) >= 3 && strings.EqualFold(t[:3], "PMC") {
		t = t[3:]
	}
	if t == "" {
		return "", apperr.New(apperr.UnsupportedInput, "ids.normalize", "empty PMCID %q", s)
	}
	if !allDigits(t) {
		return "", apperr.New(apperr.UnsupportedInput, "ids.normalize", "PMCID %q is not numeric", s)
	}
	return t, nil
}

// Classify guesses the identifier type from its shape. Bare digits are
// ambiguous between PMID and PMCID; mixed id-file input treats them as
// PMCIDs, matching the pmcids input mode.
func Classify(s string) Kind {
	t := strings.TrimSpace(s)
	switch {
	case t == "":
		return Unknown
	case len(t) > 3 && strings.EqualFold(t[:3], "PMC") && allDigits(t[3:]):
		return PMCID
	case strings.HasPrefix(t, "10.") && strings.Contains(t, "/"):
		return DOI
	case allDigits(t):
		return PMCID
	default:
		return Unknown
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
