// Package storage provides vector storage implementations for chunk embeddings.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"docqa/internal/models"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3" // Import sqlite3 driver
)

func init() {
	sqlite_vec.Auto()
}

// maxKNN is the largest k sqlite-vec accepts in a KNN query.
const maxKNN = 4096

// SQLiteVectorStore implements a SQLite-based vector storage system using
// sqlite-vec. Every collection gets its own vec0 table, so collections with
// different embedding sizes can coexist in one file.
type SQLiteVectorStore struct {
	db *sql.DB
}

// NewSQLiteVectorStore creates a new SQLite-based vector store with sqlite-vec support
func NewSQLiteVectorStore(dsn string) (*SQLiteVectorStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time; also keeps ":memory:" to a single database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteVectorStore{db: db}

	if err := store.initDB(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initDB creates the metadata tables; vec tables are created per collection
func (s *SQLiteVectorStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS chunks (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		source TEXT NOT NULL,
		seq INTEGER NOT NULL,
		page INTEGER NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		content TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteVectorStore) Close() error {
	return s.db.Close()
}

// serializeFloat32Vector converts a float32 slice to the byte format expected by sqlite-vec
func serializeFloat32Vector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(v))
	}
	return buf
}

func vecTable(name string) string {
	return "vec_" + name
}

// CreateCollection stores all chunks and their vectors in one transaction.
func (s *SQLiteVectorStore) CreateCollection(ctx context.Context, name string, chunks []models.EmbeddedChunk) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	dim, err := checkDimensions(chunks)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE name = ?`, name).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (name, dimension, chunk_count, created_at) VALUES (?, ?, ?, ?)`,
		name, dim, len(chunks), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}

	vecQuery := fmt.Sprintf(`
		CREATE VIRTUAL TABLE %s USING vec0(
			chunk_id TEXT PRIMARY KEY,
			embedding FLOAT[%d] distance_metric=cosine
		)
	`, vecTable(name), dim)
	if _, err := tx.ExecContext(ctx, vecQuery); err != nil {
		return fmt.Errorf("failed to create vec table: %w", err)
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, id, source, seq, page, start_offset, end_offset, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer func() { _ = chunkStmt.Close() }()

	vecStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (chunk_id, embedding) VALUES (?, ?)`, vecTable(name)))
	if err != nil {
		return fmt.Errorf("failed to prepare vector insert: %w", err)
	}
	defer func() { _ = vecStmt.Close() }()

	for i := range chunks {
		c := &chunks[i]
		if _, err := chunkStmt.ExecContext(ctx, name, c.ID, c.Source, c.Seq, c.Page, c.Start, c.End, c.Text); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
		if _, err := vecStmt.ExecContext(ctx, c.ID, serializeFloat32Vector(c.Vector)); err != nil {
			return fmt.Errorf("failed to insert vector %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// collectionInfo returns dimension and chunk count of a collection
func (s *SQLiteVectorStore) collectionInfo(ctx context.Context, name string) (dim, count int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT dimension, chunk_count FROM collections WHERE name = ?`, name,
	).Scan(&dim, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read collection: %w", err)
	}
	return dim, count, nil
}

// Search performs KNN vector search using sqlite-vec. Ties on distance are
// broken by chunk sequence so results are reproducible.
func (s *SQLiteVectorStore) Search(ctx context.Context, name string, embedding []float32, topK int) ([]models.Chunk, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	dim, count, err := s.collectionInfo(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(embedding) != dim {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", ErrDimensionMismatch, len(embedding), dim)
	}

	topK = min(topK, count, maxKNN)
	if topK <= 0 {
		return []models.Chunk{}, nil
	}

	// sqlite-vec requires the k parameter to be passed as part of the MATCH expression
	query := fmt.Sprintf(`
		SELECT
			c.id, c.source, c.seq, c.page, c.start_offset, c.end_offset, c.content,
			v.distance
		FROM %s v
		JOIN chunks c ON c.collection = ? AND c.id = v.chunk_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance, c.seq
	`, vecTable(name))

	rows, err := s.db.QueryContext(ctx, query, name, serializeFloat32Vector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to perform vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]models.Chunk, 0, topK)
	for rows.Next() {
		var (
			c        models.Chunk
			distance float64
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.Seq, &c.Page, &c.Start, &c.End, &c.Text, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// DeleteCollection drops the vec table and all chunk rows of a collection
func (s *SQLiteVectorStore) DeleteCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, vecTable(name))); err != nil {
		return fmt.Errorf("failed to drop vec table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// HasCollection reports whether the named collection exists
func (s *SQLiteVectorStore) HasCollection(ctx context.Context, name string) (bool, error) {
	_, _, err := s.collectionInfo(ctx, name)
	if errors.Is(err, ErrCollectionNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Collections lists collection names, oldest first
func (s *SQLiteVectorStore) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
