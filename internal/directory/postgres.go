package directory

import (
	"context"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/project-kessel/orgaud/internal/service"
)

// DefaultMembershipQuery selects one row per organization attribute value of
// every organization the subject ($1) belongs to. Rows of one organization
// must be adjacent and attribute values ordered by position.
const DefaultMembershipQuery = `SELECT o.id, o.name, a.name, a.value
FROM organization_members m
JOIN organizations o ON o.id = m.organization_id
LEFT JOIN organization_attributes a ON a.organization_id = o.id
WHERE m.subject_id = $1
ORDER BY o.id, a.name, a.position`

// Querier is the subset of pgx used by the directory.
// *pgxpool.Pool, *pgx.Conn and pgx.Tx all satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresDirectory reads memberships from PostgreSQL.
// Organizations are yielded while the cursor is read, so a consumer that
// stops early never reads the remaining rows.
type PostgresDirectory struct {
	db    Querier
	query string
}

// PostgresOption configures a PostgresDirectory
type PostgresOption func(*PostgresDirectory)

// WithQuery replaces the membership query.
// The query takes the subject id as $1 and returns the columns
// organization id, organization name, attribute name and attribute value.
func WithQuery(query string) PostgresOption {
	return func(d *PostgresDirectory) {
		d.query = query
	}
}

// NewPostgresDirectory creates a directory over db
func NewPostgresDirectory(db Querier, opts ...PostgresOption) *PostgresDirectory {
	d := &PostgresDirectory{
		db:    db,
		query: DefaultMembershipQuery,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MembershipsOf implements service.Directory
func (d *PostgresDirectory) MembershipsOf(ctx context.Context, subject service.Subject) iter.Seq2[*service.Organization, error] {
	return func(yield func(*service.Organization, error) bool) {
		rows, err := d.db.Query(ctx, d.query, subject.ID)
		if err != nil {
			yield(nil, fmt.Errorf("membership query failed: %w", err))
			return
		}
		defer rows.Close()

		var current *service.Organization
		for rows.Next() {
			var (
				orgID     string
				orgName   pgtype.Text
				attrName  pgtype.Text
				attrValue pgtype.Text
			)
			if err := rows.Scan(&orgID, &orgName, &attrName, &attrValue); err != nil {
				if current != nil && !yield(current, nil) {
					return
				}
				yield(nil, fmt.Errorf("failed to scan membership row: %w", err))
				return
			}

			if current == nil || current.ID != orgID {
				if current != nil && !yield(current, nil) {
					return
				}
				current = &service.Organization{ID: orgID, Name: orgName.String}
			}

			if attrName.Valid {
				if current.Attributes == nil {
					current.Attributes = make(map[string][]string)
				}
				// NULL values are kept as blanks so positions stay intact.
				current.Attributes[attrName.String] = append(current.Attributes[attrName.String], attrValue.String)
			}
		}

		if err := rows.Err(); err != nil {
			if current != nil && !yield(current, nil) {
				return
			}
			yield(nil, fmt.Errorf("membership query failed: %w", err))
			return
		}

		if current != nil {
			yield(current, nil)
		}
	}
}
