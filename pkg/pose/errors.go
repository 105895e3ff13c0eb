package pose

import (
	"errors"
	"fmt"
)

// Sentinel errors for frame construction and lookup.
var (
	// ErrMissingLandmark is returned when a required joint is absent from a frame.
	ErrMissingLandmark = errors.New("pose: missing landmark")

	// ErrDuplicateJoint is returned when a frame lists the same joint twice.
	ErrDuplicateJoint = errors.New("pose: duplicate joint")

	// ErrUnknownJoint is returned for joint names outside the vocabulary.
	ErrUnknownJoint = errors.New("pose: unknown joint")
)

// MissingLandmarkError names the joint that a lookup could not find.
type MissingLandmarkError struct {
	Joint Joint
}

// Error implements the error interface.
func (e *MissingLandmarkError) Error() string {
	return fmt.Sprintf("pose: missing landmark %q", e.Joint)
}

// Is matches ErrMissingLandmark.
func (e *MissingLandmarkError) Is(target error) bool {
	return target == ErrMissingLandmark
}
