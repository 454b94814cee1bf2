package adapter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MKhiriev/go-fish-log/models"
)

var (
	// ErrNotFound is returned when a document or blob does not exist.
	ErrNotFound = errors.New("remote document not found")

	// ErrUnavailable is returned when the Remote Store cannot be reached or
	// rejected the call with a transient condition.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrIndexMissing is matched by every *IndexMissingError.
	ErrIndexMissing = errors.New("the query requires an index")

	// ErrBlobStoreUnavailable is returned when the Blob Store cannot be
	// reached or refused a write.
	ErrBlobStoreUnavailable = errors.New("blob store unavailable")

	// ErrInvalidDocument is returned for writes without an id or collection.
	ErrInvalidDocument = errors.New("invalid remote document")
)

// IndexMissingError reports an ordered query that the Remote Store refuses
// to serve until a composite index is provisioned.
type IndexMissingError struct {
	Collection models.Collection
	Index      string
	// Link points at the place where the index can be created.
	Link string
}

func (e *IndexMissingError) Error() string {
	msg := fmt.Sprintf("%s: collection %q needs index %q", ErrIndexMissing.Error(), e.Collection, e.Index)
	if e.Link != "" {
		msg += ". You can create it here: " + e.Link
	}
	return msg
}

func (e *IndexMissingError) Is(target error) bool {
	return target == ErrIndexMissing
}

var missingIndexSignatures = []string{
	"requires an index",
	"missing index",
	"no matching index",
}

var linkPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// IsMissingIndex reports whether err looks like a missing-index failure,
// either typed or by one of the well-known message signatures.
func IsMissingIndex(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrIndexMissing) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range missingIndexSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return strings.Contains(msg, "failed_precondition") && strings.Contains(msg, "index")
}

// IndexLink extracts the remediation link carried by a missing-index error,
// or returns fallback when there is none.
func IndexLink(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	var indexErr *IndexMissingError
	if errors.As(err, &indexErr) && indexErr.Link != "" {
		return indexErr.Link
	}
	if link := linkPattern.FindString(err.Error()); link != "" {
		return strings.TrimRight(link, ".,;)")
	}
	return fallback
}
