package osm

import (
	"errors"
	"fmt"
)

// ErrNodeNotFound matches every *NodeNotFoundError via errors.Is
var ErrNodeNotFound = errors.New("osm node not found")

// Cause records why a node could not be produced. Callers only see
// NodeNotFoundError; the cause is kept for logs and metrics.
type Cause int

const (
	CauseUnknown Cause = iota
	// CauseNoNodes means the document contains no <node> element at all
	CauseNoNodes
	// CauseNoMatch means no <node> element carries the requested id
	CauseNoMatch
	// CauseMalformed means the document or a numeric attribute failed to parse
	CauseMalformed
	// CauseFetch means the OSM API could not be reached or answered non-200
	CauseFetch
)

func (c Cause) String() string {
	switch c {
	case CauseNoNodes:
		return "no_nodes"
	case CauseNoMatch:
		return "no_match"
	case CauseMalformed:
		return "malformed"
	case CauseFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// NodeNotFoundError is the single error kind surfaced by this package
type NodeNotFoundError struct {
	ID    int64
	Cause Cause
	Err   error
}

func newNotFound(id int64, cause Cause, err error) *NodeNotFoundError {
	return &NodeNotFoundError{ID: id, Cause: cause, Err: err}
}

// Error implements the error interface
func (e *NodeNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("osm node %d not found (%s): %v", e.ID, e.Cause, e.Err)
	}
	return fmt.Sprintf("osm node %d not found (%s)", e.ID, e.Cause)
}

// Is makes errors.Is(err, ErrNodeNotFound) succeed
func (e *NodeNotFoundError) Is(target error) bool {
	return target == ErrNodeNotFound
}

// Unwrap returns the underlying parser or transport error, if any
func (e *NodeNotFoundError) Unwrap() error {
	return e.Err
}

// CauseOf extracts the diagnostic cause from err, or CauseUnknown
func CauseOf(err error) Cause {
	var nf *NodeNotFoundError
	if errors.As(err, &nf) {
		return nf.Cause
	}
	return CauseUnknown
}

// StatusError is returned by APIClient when the OSM API answers non-200
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("osm api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("osm api returned status %s", e.Status)
}
