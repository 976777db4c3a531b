// Package database stores agent signatures and the interaction log in a
// relational database: PostgreSQL through lib/pq, or SQLite for local runs.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"geo-insights/models"
)

type dialect int

const (
	postgres dialect = iota
	sqlite
)

type DB struct {
	DB      *sql.DB
	dialect dialect
}

// Open connects to databaseURL and creates the tables if needed.
// postgres:// and postgresql:// URLs use PostgreSQL; sqlite://path, file:
// URIs and bare paths use SQLite.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	driver, dsn, d := resolve(databaseURL)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d == sqlite {
		// one connection keeps :memory: databases and transactions consistent
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	out := &DB{DB: db, dialect: d}
	if err := out.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return out, nil
}

func resolve(databaseURL string) (driver, dsn string, d dialect) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres", databaseURL, postgres
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return "sqlite", strings.TrimPrefix(databaseURL, "sqlite://"), sqlite
	default:
		return "sqlite", databaseURL, sqlite
	}
}

func (p *DB) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS agent_signatures (
			signature_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			provider TEXT,
			category TEXT,
			pattern TEXT,
			ip_ranges TEXT,
			position INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS interaction_log (
			interaction_id TEXT PRIMARY KEY,
			signature_id TEXT REFERENCES agent_signatures(signature_id),
			detected_name TEXT NOT NULL,
			confidence TEXT NOT NULL,
			requested_at TIMESTAMP NOT NULL,
			url TEXT,
			path TEXT,
			status_code INTEGER,
			method TEXT,
			response_time_ms INTEGER,
			user_agent TEXT,
			ip TEXT,
			referer TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interaction_signature_time ON interaction_log(signature_id, requested_at)`,
		`CREATE INDEX IF NOT EXISTS idx_interaction_url ON interaction_log(url)`,
		`CREATE INDEX IF NOT EXISTS idx_interaction_time ON interaction_log(requested_at)`,
	}

	for _, query := range queries {
		if _, err := p.DB.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (p *DB) rebind(query string) string {
	if p.dialect != postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveSignatures upserts the signatures, remembering their load order.
func (p *DB) SaveSignatures(ctx context.Context, sigs []models.AgentSignature) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, p.rebind(`
		INSERT INTO agent_signatures (signature_id, name, provider, category, pattern, ip_ranges, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (signature_id) DO UPDATE SET
			name = EXCLUDED.name,
			provider = EXCLUDED.provider,
			category = EXCLUDED.category,
			pattern = EXCLUDED.pattern,
			ip_ranges = EXCLUDED.ip_ranges,
			position = EXCLUDED.position,
			last_updated = CURRENT_TIMESTAMP
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, sig := range sigs {
		_, err := stmt.ExecContext(ctx,
			sig.ID, sig.Name, nullString(sig.Provider), nullString(sig.Category),
			sig.Pattern, nullString(strings.Join(sig.IPRanges, ",")), i,
		)
		if err != nil {
			return fmt.Errorf("save signature %s: %w", sig.Name, err)
		}
	}
	return tx.Commit()
}

// LoadSignatures returns the stored signatures in their saved order.
func (p *DB) LoadSignatures(ctx context.Context) ([]models.AgentSignature, error) {
	rows, err := p.DB.QueryContext(ctx, `
		SELECT signature_id, name, provider, category, pattern, ip_ranges
		FROM agent_signatures
		ORDER BY position ASC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sigs []models.AgentSignature
	for rows.Next() {
		var sig models.AgentSignature
		var provider, category, pattern, ranges sql.NullString
		if err := rows.Scan(&sig.ID, &sig.Name, &provider, &category, &pattern, &ranges); err != nil {
			return nil, err
		}
		sig.Provider = provider.String
		sig.Category = category.String
		sig.Pattern = pattern.String
		if ranges.String != "" {
			sig.IPRanges = strings.Split(ranges.String, ",")
		}
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}

// SaveInteractions inserts the batch in one transaction. Rows already
// present are left alone, so a batch can be retried.
func (p *DB) SaveInteractions(ctx context.Context, interactions []models.Interaction) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, p.rebind(`
		INSERT INTO interaction_log (interaction_id, signature_id, detected_name, confidence, requested_at,
			url, path, status_code, method, response_time_ms, user_agent, ip, referer)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (interaction_id) DO NOTHING
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, in := range interactions {
		_, err := stmt.ExecContext(ctx,
			in.ID, nullString(in.SignatureID), in.DetectedName, string(in.Confidence), in.Timestamp.UTC(),
			in.URL, in.Path, nullInt(in.StatusCode), nullString(in.Method), nullInt(in.ResponseTimeMS),
			in.UserAgent, nullString(in.IP), nullString(in.Referer),
		)
		if err != nil {
			return fmt.Errorf("save interaction %s: %w", in.ID, err)
		}
	}
	return tx.Commit()
}

func (p *DB) CountInteractions(ctx context.Context) (int, error) {
	var count int
	err := p.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM interaction_log").Scan(&count)
	return count, err
}

// InteractionCounts groups the log by detected agent name.
func (p *DB) InteractionCounts(ctx context.Context) (map[string]int, error) {
	rows, err := p.DB.QueryContext(ctx, `
		SELECT detected_name, COUNT(*)
		FROM interaction_log
		GROUP BY detected_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

func (p *DB) Close() error {
	return p.DB.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
