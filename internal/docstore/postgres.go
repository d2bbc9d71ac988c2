package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/forgea/internal/repository"
	"github.com/sqlc-dev/pqtype"
)

// =============================================================================
// PostgresStore Implementation
// =============================================================================

// PostgresStore keeps documents as JSONB rows in the documents table.
type PostgresStore struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewPostgresStore creates a store backed by sqlc queries.
func NewPostgresStore(queries *repository.Queries, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		queries: queries,
		logger:  logger,
	}
}

// QueryByField filters with data ->> field = value.
func (s *PostgresStore) QueryByField(ctx context.Context, collection, field, value string) ([]Record, error) {
	if err := validateName(collection); err != nil {
		return nil, &StoreError{Op: "QueryByField", Collection: collection, Err: err}
	}

	rows, err := s.queries.ListDocumentsByField(ctx, repository.ListDocumentsByFieldParams{
		Collection: collection,
		Field:      field,
		Value:      value,
	})
	if err != nil {
		return nil, &StoreError{Op: "QueryByField", Collection: collection, Err: err}
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, &StoreError{Op: "QueryByField", Collection: collection, Key: row.Key, Err: err}
		}
		records = append(records, rec)
	}

	return records, nil
}

// WriteRecord upserts the document. Merge uses the jsonb || operator so
// concurrent merges of disjoint fields do not clobber each other.
func (s *PostgresStore) WriteRecord(ctx context.Context, collection, key string, data map[string]any, opts WriteOptions) error {
	if err := validateRef(collection, key); err != nil {
		return &StoreError{Op: "WriteRecord", Collection: collection, Key: key, Err: err}
	}

	raw, err := encodeData(data)
	if err != nil {
		return &StoreError{Op: "WriteRecord", Collection: collection, Key: key, Err: err}
	}

	if opts.Merge {
		err = s.queries.MergeDocument(ctx, repository.MergeDocumentParams{
			Collection: collection,
			Key:        key,
			Data:       raw,
		})
	} else {
		err = s.queries.SetDocument(ctx, repository.SetDocumentParams{
			Collection: collection,
			Key:        key,
			Data:       raw,
		})
	}
	if err != nil {
		return &StoreError{Op: "WriteRecord", Collection: collection, Key: key, Err: err}
	}

	s.logger.Debug("document written", "collection", collection, "key", key, "merge", opts.Merge)

	return nil
}

// GetRecord loads a single document.
func (s *PostgresStore) GetRecord(ctx context.Context, collection, key string) (*Record, error) {
	if err := validateRef(collection, key); err != nil {
		return nil, &StoreError{Op: "GetRecord", Collection: collection, Key: key, Err: err}
	}

	row, err := s.queries.GetDocument(ctx, repository.GetDocumentParams{
		Collection: collection,
		Key:        key,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &StoreError{Op: "GetRecord", Collection: collection, Key: key, Err: ErrNotFound}
		}
		return nil, &StoreError{Op: "GetRecord", Collection: collection, Key: key, Err: err}
	}

	rec, err := recordFromRow(row)
	if err != nil {
		return nil, &StoreError{Op: "GetRecord", Collection: collection, Key: key, Err: err}
	}
	return &rec, nil
}

func encodeData(data map[string]any) (pqtype.NullRawMessage, error) {
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return pqtype.NullRawMessage{RawMessage: b, Valid: true}, nil
}

func recordFromRow(row repository.Document) (Record, error) {
	data := map[string]any{}
	if row.Data.Valid && len(row.Data.RawMessage) > 0 {
		if err := json.Unmarshal(row.Data.RawMessage, &data); err != nil {
			return Record{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
	}
	return Record{
		Collection: row.Collection,
		Key:        row.Key,
		Data:       data,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}
