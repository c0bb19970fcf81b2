// Package vectorstore is the typed capsule store adapter: a narrow,
// retry-wrapped interface over an external vector database, translating
// store-level failures into the service's domain error taxonomy.
package vectorstore

import (
	"context"

	"github.com/westonopentrain/capsule-match/pkg/models"
)

// QueryResult is a single scored hit from QueryByVector.
type QueryResult = models.ScoredVector

// Record is a stored vector plus metadata, as returned by Fetch.
type Record = models.VectorRecord

// Store is the capsule store adapter's public surface (C1). Every
// operation accepts a namespace; an empty namespace means the flat,
// unnamespaced collection.
type Store interface {
	// Upsert writes or overwrites vectors by id. PineconeStore fails with
	// CodeInvalidVector when len(vec) differs from its configured
	// dimension; MemoryStore has no configured dimension and accepts
	// vectors of any length.
	Upsert(ctx context.Context, namespace string, vectors []Record) error

	// Fetch returns the vectors present for the given ids. Missing ids are
	// simply absent from the result map — this is not an error.
	Fetch(ctx context.Context, namespace string, ids []string) (map[string]Record, error)

	// QueryByVector returns the topK nearest vectors to vec subject to
	// filter, ordered by descending similarity score.
	QueryByVector(ctx context.Context, req models.QueryRequest) ([]QueryResult, error)

	// UpdateMetadata partially overwrites metadata for the given ids; keys
	// absent from patch are preserved.
	UpdateMetadata(ctx context.Context, namespace string, ids []string, patch map[string]interface{}) error

	// Delete removes vectors by id. Deleting an absent id is a no-op.
	Delete(ctx context.Context, namespace string, ids []string) error

	// HealthCheck reports whether the underlying store is reachable.
	HealthCheck(ctx context.Context) error

	// Kind identifies the driver for registry/admin purposes.
	Kind() string
}
