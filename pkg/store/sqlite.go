package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	gojson "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/apiobserve/collector/pkg/entity"
	"github.com/apiobserve/collector/pkg/errors"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStore is a file backed EntityStore. Attributes are stored as a
// JSON document per row; the keys form the primary key.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLiteStore opens (or creates) the database file at path.
func NewSQLiteStore(path, table string) (*SQLiteStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"invalid table name %q", table)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to open sqlite database")
	}
	// sqlite handles one writer at a time.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db, table: table}, nil
}

func (s *SQLiteStore) CreateTableIfAbsent(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			partition_key TEXT NOT NULL,
			row_key       TEXT NOT NULL,
			attributes    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,
			PRIMARY KEY (partition_key, row_key)
		)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create entity table")
	}
	return nil
}

func (s *SQLiteStore) GetEntity(ctx context.Context, partitionKey, rowKey string) (*entity.Entity, error) {
	query := fmt.Sprintf(
		"SELECT attributes FROM %s WHERE partition_key = ? AND row_key = ?", s.table)

	var raw string
	err := s.db.QueryRowContext(ctx, query, partitionKey, rowKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrorTypeNotFound,
			"entity %s/%s not found", partitionKey, rowKey)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read entity")
	}

	attrs := map[string]string{}
	if err := gojson.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "stored attributes are not valid JSON")
	}
	return &entity.Entity{
		PartitionKey: partitionKey,
		RowKey:       rowKey,
		Attributes:   attrs,
	}, nil
}

func (s *SQLiteStore) UpsertEntity(ctx context.Context, e *entity.Entity) error {
	raw, err := gojson.Marshal(e.Attributes)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode entity attributes")
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (partition_key, row_key, attributes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (partition_key, row_key)
		DO UPDATE SET attributes = excluded.attributes, updated_at = excluded.updated_at`,
		s.table)

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, stmt, e.PartitionKey, e.RowKey, string(raw), now); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to upsert entity")
	}
	return nil
}

func (s *SQLiteStore) ListEntities(ctx context.Context, partitionKey string) ([]*entity.Entity, error) {
	return s.QueryEntities(ctx, partitionKey, nil)
}

func (s *SQLiteStore) QueryEntities(ctx context.Context, partitionKey string, keep func(*entity.Entity) bool) ([]*entity.Entity, error) {
	query := fmt.Sprintf(
		"SELECT row_key, attributes FROM %s WHERE partition_key = ? ORDER BY row_key", s.table)

	rows, err := s.db.QueryContext(ctx, query, partitionKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to query entities")
	}
	defer rows.Close()

	var out []*entity.Entity
	for rows.Next() {
		var rowKey, raw string
		if err := rows.Scan(&rowKey, &raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to scan entity row")
		}
		attrs := map[string]string{}
		if err := gojson.Unmarshal([]byte(raw), &attrs); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "stored attributes are not valid JSON")
		}
		e := &entity.Entity{
			PartitionKey: partitionKey,
			RowKey:       rowKey,
			Attributes:   attrs,
		}
		if keep != nil && !keep(e) {
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to iterate entity rows")
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
