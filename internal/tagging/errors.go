// Package tagging implements the person registry, the face tag moderation
// lifecycle and the pending-tag queue.
package tagging

import (
	"errors"

	"github.com/er587/wedding-gallery-application/internal/facematch"
)

// Error taxonomy shared by the face subsystem. Errors returned by this
// package wrap exactly one of these and carry a caller-facing message.
var (
	ErrValidation           = errors.New("validation error")
	ErrInvalidRegion        = facematch.ErrInvalidRegion
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid state")
	ErrDetectionUnavailable = errors.New("face detection unavailable")
	ErrPermission           = errors.New("permission denied")
)

// ErrDuplicate marks a tag that would duplicate an approved tag of the same
// person on the same image. It is reported together with ErrValidation on
// submit and with ErrInvalidState on approve.
var ErrDuplicate = errors.New("duplicates an approved face tag")

// Error kinds, used as machine-readable reasons in API responses.
const (
	KindValidation           = "validation"
	KindInvalidRegion        = "invalid_region"
	KindNotFound             = "not_found"
	KindInvalidState         = "invalid_state"
	KindDetectionUnavailable = "detection_unavailable"
	KindPermission           = "permission"
	KindInternal             = "internal"
)

// Kind classifies err into one of the taxonomy kinds. Unknown errors are
// KindInternal.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermission):
		return KindPermission
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidRegion):
		return KindInvalidRegion
	case errors.Is(err, ErrValidation), errors.Is(err, facematch.ErrMalformedRegion):
		return KindValidation
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrDetectionUnavailable):
		return KindDetectionUnavailable
	}
	return KindInternal
}
