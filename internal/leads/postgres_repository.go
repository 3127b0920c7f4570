package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores the audit log in the contact_submissions table.
type PostgresRepository struct {
	db pgxQuerier
}

// NewPostgresRepository initializes a repo backed by a pgx pool (or anything
// with the same query surface).
func NewPostgresRepository(db pgxQuerier) *PostgresRepository {
	if db == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const selectColumns = `id::text, name, email, company, role, request_type, message, remote_ip, submitted_at`

// Append inserts one row. Optional fields are stored as empty strings.
func (r *PostgresRepository) Append(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO contact_submissions (id, name, email, company, role, request_type, message, remote_ip, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.Name,
		rec.Email,
		rec.Company,
		rec.Role,
		rec.RequestType,
		rec.Message,
		rec.RemoteIP,
		rec.SubmittedAt,
	); err != nil {
		return fmt.Errorf("leads: insert failed: %w", err)
	}
	return nil
}

// ListRecent returns up to limit rows, newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+`
		FROM contact_submissions
		ORDER BY submitted_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	return out, nil
}

// GetByID fetches a single row.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+`
		FROM contact_submissions
		WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return &rec, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Email,
		&rec.Company,
		&rec.Role,
		&rec.RequestType,
		&rec.Message,
		&rec.RemoteIP,
		&rec.SubmittedAt,
	)
	return rec, err
}
