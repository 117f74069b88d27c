package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iammrherb/authensi-smart-sub008/internal/shared/storage/db"
)

// PGRevisionRepo implements RevisionRepo using Postgres.
type PGRevisionRepo struct {
	DB *sql.DB
}

// Publish inserts rev and makes it the only active revision.
func (r *PGRevisionRepo) Publish(ctx context.Context, rev Revision) error {
	return db.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE catalog_revisions SET active = FALSE WHERE active`); err != nil {
			return err
		}
		const insert = `
INSERT INTO catalog_revisions (id, version, checksum, document, author, note, active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)`
		_, err := tx.ExecContext(ctx, insert,
			rev.ID,
			rev.Version,
			rev.Checksum,
			string(rev.Document),
			nullString(rev.Author),
			nullString(rev.Note),
			rev.CreatedAt,
		)
		return err
	})
}

// Active returns the active revision or ErrNoRevision.
func (r *PGRevisionRepo) Active(ctx context.Context) (Revision, error) {
	const query = `
SELECT id, version, checksum, document, author, note, active, created_at
FROM catalog_revisions
WHERE active
LIMIT 1`
	rev, err := scanRevision(r.DB.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return Revision{}, ErrNoRevision
	}
	return rev, err
}

// List returns revisions newest first. The document body is left empty.
func (r *PGRevisionRepo) List(ctx context.Context, limit, offset int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, version, checksum, '' AS document, author, note, active, created_at
FROM catalog_revisions
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Revision, 0, limit)
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row rowScanner) (Revision, error) {
	var rev Revision
	var document string
	var author, note sql.NullString
	if err := row.Scan(&rev.ID, &rev.Version, &rev.Checksum, &document, &author, &note, &rev.Active, &rev.CreatedAt); err != nil {
		return Revision{}, err
	}
	if document != "" {
		rev.Document = []byte(document)
	}
	rev.Author = author.String
	rev.Note = note.String
	rev.CreatedAt = rev.CreatedAt.UTC()
	return rev, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
