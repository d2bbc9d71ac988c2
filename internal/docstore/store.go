// Package docstore provides the profile store the account flows read and
// write user profiles through.
//
// Records are schemaless JSON documents addressed by (collection, key).
// Three implementations are provided:
// - PostgresStore: JSONB rows in the documents table (production)
// - ObjectStore: one JSON object per document in Cloudflare R2 / S3
// - MemoryStore: in-process maps (development and tests)
package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Store reads and writes documents.
//
// All methods are context-aware for timeout and cancellation support.
type Store interface {
	// QueryByField returns every record in collection whose top-level field
	// equals value. Results are ordered by key. An empty result is not an error.
	QueryByField(ctx context.Context, collection, field, value string) ([]Record, error)

	// WriteRecord stores data at (collection, key). With opts.Merge the fields
	// are merged into an existing record; otherwise the record is replaced.
	WriteRecord(ctx context.Context, collection, key string, data map[string]any, opts WriteOptions) error

	// GetRecord returns the record at (collection, key) or ErrNotFound.
	GetRecord(ctx context.Context, collection, key string) (*Record, error)
}

// =============================================================================
// Data Types
// =============================================================================

// Record is one stored document.
type Record struct {
	Collection string
	Key        string
	Data       map[string]any
	UpdatedAt  time.Time
}

// WriteOptions configures WriteRecord.
type WriteOptions struct {
	// Merge keeps fields of an existing record that data does not set.
	Merge bool
}

// R2Config holds configuration for the object store.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Region defaults to "auto".
	Region string

	// Endpoint overrides the R2 endpoint derived from AccountID.
	// Used for S3-compatible servers such as MinIO.
	Endpoint string
}

// =============================================================================
// Shared Helpers
// =============================================================================

// validateName rejects empty names and anything that could escape a prefix
// in the object store.
func validateName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return ErrInvalidKey
	}
	return nil
}

// validateRef checks a collection and key pair.
func validateRef(collection, key string) error {
	if err := validateName(collection); err != nil {
		return err
	}
	return validateName(key)
}

// fieldText renders a document field the way Postgres' ->> operator does:
// strings as-is, other scalars as their JSON text. Missing and null fields
// report false.
func fieldText(data map[string]any, field string) (string, bool) {
	v, ok := data[field]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// mergeData overlays update onto base and returns a new map.
func mergeData(base, update map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key < records[j].Key
	})
}
