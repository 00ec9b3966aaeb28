// Package sqlite provides a SQLite-backed storage.Driver. Vector search runs
// in-process through the sqlite-vec extension.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/storage"
	"github.com/papercomputeco/engram/pkg/vector"
)

// Driver implements storage.Driver using SQLite with sqlite-vec.
type Driver struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// Config holds configuration for the SQLite driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the embedding dimensionality. Required.
	Dimensions uint
}

// MaxKNN is the largest k sqlite-vec accepts in a vec0 KNN query. Larger
// requests are clamped.
const MaxKNN = 4096

const schema = `
CREATE TABLE IF NOT EXISTS mem_source (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT    NOT NULL,
	turn         INTEGER NOT NULL,
	speaker      TEXT    NOT NULL,
	content      TEXT    NOT NULL,
	tool_calls   TEXT,
	tool_results TEXT,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS mem_source_session_idx ON mem_source(session_id);

CREATE TABLE IF NOT EXISTS facts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	fact_text   TEXT    NOT NULL,
	source_ids  TEXT    NOT NULL DEFAULT '[]',
	fact_type   TEXT,
	domain      TEXT,
	confidence  REAL    NOT NULL DEFAULT 1.0,
	created_at  INTEGER NOT NULL
);
`

// NewDriver opens (or creates) the database at c.DBPath and ensures the
// schema exists.
func NewDriver(c Config, log *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("sqlite embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A second connection to ":memory:" would see a different database.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	for _, table := range []string{"mem_source_vec", "facts_vec"} {
		stmt := fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d] distance_metric=cosine)`,
			table, c.Dimensions,
		)
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s: %w", table, err)
		}
	}

	log = logger.OrNop(log)
	log.Info("sqlite memory store initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:         db,
		dimensions: int(c.Dimensions),
		logger:     log,
	}, nil
}

// InsertSource stores a conversation turn and its embedding in one
// transaction.
func (d *Driver) InsertSource(ctx context.Context, s *storage.Source) (int64, error) {
	if err := s.Validate(d.dimensions); err != nil {
		return 0, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO mem_source(session_id, turn, speaker, content, tool_calls, tool_results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.Turn, s.Speaker, s.Content,
		nullJSON(s.ToolCalls), nullJSON(s.ToolResults),
		time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting source: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting source id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO mem_source_vec(rowid, embedding) VALUES (?, ?)`,
		id, vector.SerializeFloat32(s.Embedding),
	); err != nil {
		return 0, fmt.Errorf("inserting source embedding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("inserted source", "source_id", id, "session_id", s.SessionID)
	return id, nil
}

// InsertFact stores a fact and its embedding in one transaction.
func (d *Driver) InsertFact(ctx context.Context, f *storage.Fact) (int64, error) {
	if err := f.Validate(d.dimensions); err != nil {
		return 0, err
	}

	sourceIDs := f.SourceIDs
	if sourceIDs == nil {
		sourceIDs = []int64{}
	}
	idsJSON, err := json.Marshal(sourceIDs)
	if err != nil {
		return 0, fmt.Errorf("encoding source ids: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO facts(fact_text, source_ids, fact_type, domain, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.Text, string(idsJSON), nullString(f.Type), nullString(f.Domain), f.Confidence,
		time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting fact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting fact id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO facts_vec(rowid, embedding) VALUES (?, ?)`,
		id, vector.SerializeFloat32(f.Embedding),
	); err != nil {
		return 0, fmt.Errorf("inserting fact embedding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("inserted fact", "fact_id", id, "source_ids", len(sourceIDs))
	return id, nil
}

// QuerySources runs a KNN query over turn embeddings.
func (d *Driver) QuerySources(ctx context.Context, embedding []float32, topK int) ([]storage.ScoredSource, error) {
	if err := storage.CheckQuery(embedding, d.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []storage.ScoredSource{}, nil
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT s.id, s.session_id, s.turn, s.speaker, s.content,
			s.tool_calls, s.tool_results, s.created_at, v.distance
		FROM mem_source_vec v
		INNER JOIN mem_source s ON s.id = v.rowid
		WHERE v.embedding MATCH ?
			AND v.k = ?
		ORDER BY v.distance
	`, vector.SerializeFloat32(embedding), min(topK, MaxKNN))
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	results := []storage.ScoredSource{}
	for rows.Next() {
		var distance float64
		src, err := scanSource(rows, &distance)
		if err != nil {
			return nil, err
		}
		results = append(results, storage.ScoredSource{Source: src, Similarity: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}

	return storage.RankSources(results, topK), nil
}

// QueryFacts runs a KNN query over fact embeddings.
func (d *Driver) QueryFacts(ctx context.Context, embedding []float32, topK int) ([]storage.ScoredFact, error) {
	if err := storage.CheckQuery(embedding, d.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []storage.ScoredFact{}, nil
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT f.id, f.fact_text, f.source_ids, f.fact_type, f.domain,
			f.confidence, f.created_at, v.distance
		FROM facts_vec v
		INNER JOIN facts f ON f.id = v.rowid
		WHERE v.embedding MATCH ?
			AND v.k = ?
		ORDER BY v.distance
	`, vector.SerializeFloat32(embedding), min(topK, MaxKNN))
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	results := []storage.ScoredFact{}
	for rows.Next() {
		var distance float64
		fact, err := scanFact(rows, &distance)
		if err != nil {
			return nil, err
		}
		results = append(results, storage.ScoredFact{Fact: fact, Similarity: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facts: %w", err)
	}

	return storage.RankFacts(results, topK), nil
}

// ListSources returns turns in ID order.
func (d *Driver) ListSources(ctx context.Context, sessionID string) ([]storage.Source, error) {
	query := `
		SELECT id, session_id, turn, speaker, content, tool_calls, tool_results, created_at
		FROM mem_source`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	out := []storage.Source{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}
	return out, nil
}

// ListFacts returns facts in ID order.
func (d *Driver) ListFacts(ctx context.Context) ([]storage.Fact, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, fact_text, source_ids, fact_type, domain, confidence, created_at
		FROM facts
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	defer rows.Close()

	out := []storage.Fact{}
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facts: %w", err)
	}
	return out, nil
}

// Clear deletes every row. AUTOINCREMENT keeps IDs from being reused.
func (d *Driver) Clear(ctx context.Context) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"mem_source_vec", "mem_source", "facts_vec", "facts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Info("cleared sqlite memory store")
	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	return d.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner, extra ...any) (storage.Source, error) {
	var (
		src         storage.Source
		toolCalls   sql.NullString
		toolResults sql.NullString
		createdAt   int64
	)
	dest := append([]any{
		&src.ID, &src.SessionID, &src.Turn, &src.Speaker, &src.Content,
		&toolCalls, &toolResults, &createdAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return storage.Source{}, fmt.Errorf("scanning source: %w", err)
	}

	if toolCalls.Valid {
		src.ToolCalls = json.RawMessage(toolCalls.String)
	}
	if toolResults.Valid {
		src.ToolResults = json.RawMessage(toolResults.String)
	}
	src.CreatedAt = time.Unix(0, createdAt).UTC()
	return src, nil
}

func scanFact(row scanner, extra ...any) (storage.Fact, error) {
	var (
		fact      storage.Fact
		sourceIDs string
		factType  sql.NullString
		domain    sql.NullString
		createdAt int64
	)
	dest := append([]any{
		&fact.ID, &fact.Text, &sourceIDs, &factType, &domain,
		&fact.Confidence, &createdAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return storage.Fact{}, fmt.Errorf("scanning fact: %w", err)
	}

	if err := json.Unmarshal([]byte(sourceIDs), &fact.SourceIDs); err != nil {
		return storage.Fact{}, fmt.Errorf("decoding source ids for fact %d: %w", fact.ID, err)
	}
	if fact.SourceIDs == nil {
		fact.SourceIDs = []int64{}
	}
	fact.Type = factType.String
	fact.Domain = domain.String
	fact.CreatedAt = time.Unix(0, createdAt).UTC()
	return fact, nil
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ storage.Driver = (*Driver)(nil)
