// Package postgres provides sqlx-backed repository implementations
// for the metadata and run stores.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	"datawhisperer/internal/errors"
	"datawhisperer/ports"

	"github.com/jmoiron/sqlx"
)

// datasetRepository implements the DatasetRepository interface
type datasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository creates a new dataset metadata repository
func NewDatasetRepository(db *sqlx.DB) ports.DatasetRepository {
	return &datasetRepository{db: db}
}

// Create inserts dataset metadata, replacing any previous row for the handle
func (r *datasetRepository) Create(ctx context.Context, meta *dataset.Metadata) error {
	columnsJSON, err := json.Marshal(meta.Columns)
	if err != nil {
		return errors.DatabaseError("failed to marshal column list", err)
	}
	typesJSON, err := json.Marshal(meta.ColumnTypes)
	if err != nil {
		return errors.DatabaseError("failed to marshal column types", err)
	}

	query := `INSERT INTO datasets (
		dataset_id, filename, ingested_at, n_rows, n_columns,
		columns, column_types, parent_dataset_id, transformation_note, storage_path
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
	) ON CONFLICT (dataset_id) DO UPDATE SET
		filename = EXCLUDED.filename,
		n_rows = EXCLUDED.n_rows,
		n_columns = EXCLUDED.n_columns,
		columns = EXCLUDED.columns,
		column_types = EXCLUDED.column_types,
		parent_dataset_id = EXCLUDED.parent_dataset_id,
		transformation_note = EXCLUDED.transformation_note,
		storage_path = EXCLUDED.storage_path`

	_, err = r.db.ExecContext(ctx, query,
		meta.DatasetID, meta.Filename, meta.IngestedAt.Time(), meta.NumRows, meta.NumColumns,
		columnsJSON, typesJSON, nullableID(meta.ParentDatasetID), meta.TransformationNote, meta.StoragePath,
	)
	if err != nil {
		return errors.DatabaseError("failed to create dataset record", err)
	}
	return nil
}

// GetByID retrieves dataset metadata by handle. Unknown handles yield
// (nil, nil) so the caller decides how to report them.
func (r *datasetRepository) GetByID(ctx context.Context, id core.DatasetID) (*dataset.Metadata, error) {
	query := `SELECT
		dataset_id, filename, ingested_at, n_rows, n_columns,
		columns, column_types, COALESCE(parent_dataset_id, '') as parent_dataset_id,
		COALESCE(transformation_note, '') as transformation_note, COALESCE(storage_path, '') as storage_path
	FROM datasets WHERE dataset_id = $1`

	meta, err := scanMetadata(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.DatabaseError("failed to get dataset record", err)
	}
	return meta, nil
}

// List returns all dataset metadata, newest first
func (r *datasetRepository) List(ctx context.Context) ([]*dataset.Metadata, error) {
	query := `SELECT
		dataset_id, filename, ingested_at, n_rows, n_columns,
		columns, column_types, COALESCE(parent_dataset_id, '') as parent_dataset_id,
		COALESCE(transformation_note, '') as transformation_note, COALESCE(storage_path, '') as storage_path
	FROM datasets
	ORDER BY ingested_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.DatabaseError("failed to query dataset records", err)
	}
	defer rows.Close()

	var out []*dataset.Metadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, errors.DatabaseError("failed to scan dataset record", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// KnownIDs returns every registered dataset handle
func (r *datasetRepository) KnownIDs(ctx context.Context) ([]core.DatasetID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT dataset_id FROM datasets ORDER BY ingested_at`)
	if err != nil {
		return nil, errors.DatabaseError("failed to query dataset handles", err)
	}
	defer rows.Close()

	var out []core.DatasetID
	for rows.Next() {
		var id core.DatasetID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.DatabaseError("failed to scan dataset handle", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row rowScanner) (*dataset.Metadata, error) {
	var meta dataset.Metadata
	var columnsJSON, typesJSON []byte

	err := row.Scan(
		&meta.DatasetID, &meta.Filename, &meta.IngestedAt, &meta.NumRows, &meta.NumColumns,
		&columnsJSON, &typesJSON, &meta.ParentDatasetID, &meta.TransformationNote, &meta.StoragePath,
	)
	if err != nil {
		return nil, err
	}
	if len(columnsJSON) > 0 {
		if err := json.Unmarshal(columnsJSON, &meta.Columns); err != nil {
			return nil, err
		}
	}
	if len(typesJSON) > 0 {
		if err := json.Unmarshal(typesJSON, &meta.ColumnTypes); err != nil {
			return nil, err
		}
	}
	return &meta, nil
}

func nullableID(id core.DatasetID) any {
	if id == "" {
		return nil
	}
	return id
}
