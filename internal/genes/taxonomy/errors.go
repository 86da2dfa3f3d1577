package taxonomy

import (
	"errors"
	"fmt"
)

var ErrMalformedTaxonomy = errors.New("malformed taxonomy")

// MalformedTaxonomyError reports a structural problem found while loading or
// flattening a taxonomy. Path is the slash-joined node path, empty for
// document-level problems.
type MalformedTaxonomyError struct {
	Path   string
	Reason string
}

func (e *MalformedTaxonomyError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedTaxonomy, e.Reason)
	}
	return fmt.Sprintf("%s at %s: %s", ErrMalformedTaxonomy, e.Path, e.Reason)
}

func (e *MalformedTaxonomyError) Unwrap() error { return ErrMalformedTaxonomy }

func malformed(path, format string, args ...any) error {
	return &MalformedTaxonomyError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
