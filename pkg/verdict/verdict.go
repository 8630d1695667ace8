// Package verdict compares two artifact fingerprint maps.
//
// Comparison is by key set first: when the file sets differ, content is not
// compared at all. Otherwise every shared path is compared and all
// mismatches are collected in one pass.
package verdict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Mindburn-Labs/artifact-validator/pkg/fingerprint"
)

// Reason classifies a failed comparison.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonMissingFiles    Reason = "missing_files"
	ReasonContentMismatch Reason = "content_mismatch"
)

// HashPair holds the two digests recorded for a path.
type HashPair struct {
	Candidate string `json:"candidate"`
	Reference string `json:"reference"`
}

// Verdict is the structured outcome of comparing a candidate artifact with
// its reference.
type Verdict struct {
	Passed bool   `json:"passed"`
	Reason Reason `json:"reason,omitempty"`

	// MissingFiles is the symmetric difference of the two path sets.
	MissingFiles         []string `json:"missing_files,omitempty"`
	MissingFromCandidate []string `json:"missing_from_candidate,omitempty"`
	MissingFromReference []string `json:"missing_from_reference,omitempty"`

	Mismatches map[string]HashPair `json:"mismatches,omitempty"`
}

// Success returns a passing verdict.
func Success() Verdict {
	return Verdict{Passed: true}
}

// Compare checks that candidate and reference hold the same paths with the
// same digests.
func Compare(candidate, reference fingerprint.Map) Verdict {
	var onlyCandidate, onlyReference []string
	for path := range candidate {
		if _, ok := reference[path]; !ok {
			onlyCandidate = append(onlyCandidate, path)
		}
	}
	for path := range reference {
		if _, ok := candidate[path]; !ok {
			onlyReference = append(onlyReference, path)
		}
	}

	if len(onlyCandidate) > 0 || len(onlyReference) > 0 {
		sort.Strings(onlyCandidate)
		sort.Strings(onlyReference)
		diff := make([]string, 0, len(onlyCandidate)+len(onlyReference))
		diff = append(diff, onlyCandidate...)
		diff = append(diff, onlyReference...)
		sort.Strings(diff)
		return Verdict{
			Reason:               ReasonMissingFiles,
			MissingFiles:         diff,
			MissingFromCandidate: onlyReference,
			MissingFromReference: onlyCandidate,
		}
	}

	mismatches := make(map[string]HashPair)
	for path, candHash := range candidate {
		if refHash := reference[path]; refHash != candHash {
			mismatches[path] = HashPair{Candidate: candHash, Reference: refHash}
		}
	}
	if len(mismatches) > 0 {
		return Verdict{Reason: ReasonContentMismatch, Mismatches: mismatches}
	}
	return Success()
}

// MismatchedPaths returns the content-mismatch paths in lexical order.
func (v Verdict) MismatchedPaths() []string {
	paths := make([]string, 0, len(v.Mismatches))
	for p := range v.Mismatches {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Summary is a one-line PASS/FAIL description.
func (v Verdict) Summary() string {
	switch {
	case v.Passed:
		return "PASS: all file hashes match"
	case v.Reason == ReasonMissingFiles:
		return fmt.Sprintf("FAIL: file lists differ (%d paths)", len(v.MissingFiles))
	case v.Reason == ReasonContentMismatch:
		return fmt.Sprintf("FAIL: %d file hashes differ", len(v.Mismatches))
	default:
		return "FAIL"
	}
}

// Message renders the failure detail sent to the orchestrator. It is empty
// for a passing verdict.
func (v Verdict) Message() string {
	if v.Passed {
		return ""
	}
	var b strings.Builder
	switch v.Reason {
	case ReasonMissingFiles:
		fmt.Fprintf(&b, "File lists do not match. Differences: %s", strings.Join(v.MissingFiles, ", "))
		if len(v.MissingFromCandidate) > 0 {
			fmt.Fprintf(&b, "\nmissing from candidate: %s", strings.Join(v.MissingFromCandidate, ", "))
		}
		if len(v.MissingFromReference) > 0 {
			fmt.Fprintf(&b, "\nmissing from reference: %s", strings.Join(v.MissingFromReference, ", "))
		}
	case ReasonContentMismatch:
		b.WriteString("Validation failed. File hashes do not match:")
		for _, path := range v.MismatchedPaths() {
			pair := v.Mismatches[path]
			fmt.Fprintf(&b, "\n%s: candidate=%s reference=%s", path, pair.Candidate, pair.Reference)
		}
	default:
		b.WriteString("Validation failed")
	}
	return b.String()
}
