// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter wraps the hosted side of the fishing log: the Remote Store
// (a per-user document database), the Blob Store that keeps catch photos and
// the connectivity probe that decides whether the process is online.
//
// Every implementation maps its driver or transport failures onto the
// sentinel errors in errors.go so the sync core can branch with [errors.Is]
// without knowing which backend is configured.
package adapter

import (
	"context"
	"time"

	"github.com/MKhiriev/go-fish-log/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/adapter_mock.go -package=mock

// RemoteStore is the hosted document database. Documents are grouped by
// collection and owned by the user named in their "userId" field. The store
// stamps server-side createdAt (first write only) and updatedAt (every write).
type RemoteStore interface {
	// Add creates a document under a fresh id and returns that id.
	Add(ctx context.Context, collection models.Collection, data models.Document) (string, error)

	// Set creates the document or replaces its data wholesale.
	Set(ctx context.Context, collection models.Collection, id string, data models.Document) error

	// Update merges data into an existing document. Returns ErrNotFound when
	// the document does not exist.
	Update(ctx context.Context, collection models.Collection, id string, data models.Document) error

	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection models.Collection, id string) (models.RemoteDocument, error)

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection models.Collection, id string) error

	// Query returns the user's documents matching every filter. Ordered
	// queries fail with an *IndexMissingError when the backing index is absent.
	Query(ctx context.Context, q Query) ([]models.RemoteDocument, error)

	// CommitBatch applies every operation atomically, or none of them.
	CommitBatch(ctx context.Context, ops []BatchOp) error
}

// Filter is an equality condition on a top-level document field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection owned by one user.
type Query struct {
	Collection models.Collection
	UserID     string
	Filters    []Filter

	// OrderByCreatedAt sorts ascending by server creation time. Documents
	// without a creation time sort first.
	OrderByCreatedAt bool

	// CreatedAfter keeps only documents created strictly after the given
	// instant. Only meaningful together with OrderByCreatedAt.
	CreatedAfter *time.Time

	// CreatedAfterID widens CreatedAfter to the (createdAt, id) pair: a
	// document created exactly at CreatedAfter is kept when its id sorts
	// after CreatedAfterID. Documents written in one transaction share a
	// creation time, so paging by time alone can skip part of them.
	CreatedAfterID string

	// Limit caps the number of documents returned; zero means no limit.
	Limit int
}

// Where returns a copy of q with an extra equality filter.
func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

// BatchOpKind is the kind of one batched write.
type BatchOpKind int

const (
	BatchSet BatchOpKind = iota
	BatchUpdate
	BatchDelete
)

func (k BatchOpKind) String() string {
	switch k {
	case BatchSet:
		return "set"
	case BatchUpdate:
		return "update"
	case BatchDelete:
		return "delete"
	}
	return "unknown"
}

// BatchOp is one write of a CommitBatch call. Data is ignored for deletes.
type BatchOp struct {
	Kind       BatchOpKind
	Collection models.Collection
	ID         string
	Data       models.Document
}

// BlobMeta is the content type and user metadata stored with a blob.
type BlobMeta struct {
	ContentType string
	Metadata    map[string]string
}

// BlobStore keeps photo bytes under slash-separated keys such as
// "users/{uid}/images/{hash}".
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, meta BlobMeta) error
	// Get returns ErrNotFound when no blob is stored under key.
	Get(ctx context.Context, key string) ([]byte, BlobMeta, error)
	// URL returns a time-limited download link for key.
	URL(ctx context.Context, key string) (string, error)
	// List returns every key starting with prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// ConnectivityProbe reports whether the hosted services are reachable.
type ConnectivityProbe interface {
	Online(ctx context.Context) bool
}
