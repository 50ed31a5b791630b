package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidEntry   = errors.New("invalid catalog entry")
	ErrStoreFailure   = errors.New("store failure")
	ErrCancelled      = errors.New("cancelled")
	ErrConfig         = errors.New("invalid configuration")
	ErrInvalidRequest = errors.New("invalid authorization request")
	ErrNotFound       = errors.New("not found")
)

// EntryError names one rejected catalog entry.
type EntryError struct {
	Index   int
	Name    string
	Version string
	Reason  string
}

func (e EntryError) String() string {
	subject := fmt.Sprintf("entry[%d] %q", e.Index, e.Name)
	if e.Version != "" {
		subject += " version " + e.Version
	}
	return subject + ": " + e.Reason
}

// InvalidCatalogError collects every rejected entry of a catalog.
type InvalidCatalogError struct {
	Entries []EntryError
}

func (e *InvalidCatalogError) Error() string {
	parts := make([]string, 0, len(e.Entries))
	for _, entry := range e.Entries {
		parts = append(parts, entry.String())
	}
	return fmt.Sprintf("%s: %s", ErrInvalidEntry, strings.Join(parts, "; "))
}

func (e *InvalidCatalogError) Is(target error) bool {
	return target == ErrInvalidEntry
}

// SeedError reports the items a seeding run could not write. It matches
// ErrCancelled when the run was interrupted by its context, and
// ErrStoreFailure otherwise; never both.
type SeedError struct {
	Failures  []ItemFailure
	Cancelled bool
	Cause     error
}

func (e *SeedError) Error() string {
	kind := ErrStoreFailure
	if e.Cancelled {
		kind = ErrCancelled
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		label := f.ServiceName
		if label == "" {
			label = f.Key.ServiceID
		}
		if f.Key.Version != "" {
			label += "@" + f.Key.Version
		}
		parts = append(parts, fmt.Sprintf("%s[%s]: %s", f.Table, label, f.Reason))
	}
	msg := fmt.Sprintf("%s: %d item(s) not written", kind, len(e.Failures))
	if len(parts) > 0 {
		msg += ": " + strings.Join(parts, "; ")
	}
	return msg
}

func (e *SeedError) Is(target error) bool {
	if e.Cancelled {
		return target == ErrCancelled
	}
	return target == ErrStoreFailure
}

func (e *SeedError) Unwrap() error {
	return e.Cause
}
