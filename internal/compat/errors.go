package compat

import (
	"errors"
	"fmt"
)

// Domain errors for the compat package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, compat.ErrPhoneNotFound) {
//	    // unknown model
//	}
var (
	// ErrPhoneNotFound is returned when no phone matches the folded name.
	ErrPhoneNotFound = errors.New("compat: phone not found")

	// ErrGroupNotFound is returned when a group id does not exist.
	ErrGroupNotFound = errors.New("compat: group not found")

	// ErrNothingToLink is returned when every name passed to LinkParts is blank.
	ErrNothingToLink = errors.New("compat: nothing to link")

	// ErrInvalidPartType is returned for a part category other than display or glass.
	ErrInvalidPartType = errors.New("compat: invalid part type")

	// ErrInvalidModelName is returned when a model name is blank or too long.
	ErrInvalidModelName = errors.New("compat: invalid model name")

	// ErrStoreUnavailable wraps failures of the underlying database.
	ErrStoreUnavailable = errors.New("compat: store unavailable")
)

// storeErr passes domain errors through and marks everything else as a
// persistence failure.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPhoneNotFound),
		errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrNothingToLink),
		errors.Is(err, ErrInvalidPartType),
		errors.Is(err, ErrInvalidModelName),
		errors.Is(err, ErrStoreUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
