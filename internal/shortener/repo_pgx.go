package shortener

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/s8l-xyz/shortlinker/internal/errx"
	"github.com/s8l-xyz/shortlinker/internal/idgen"
)

// db is the subset of pgxpool.Pool the repository needs. Keeping it an
// interface lets tests substitute a fake without a running database.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repo struct {
	db  db
	ids idgen.Generator
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a PostgreSQL-backed Repository.
func NewRepository(database db, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	// Default: UUID v7 (good for DB locality). Retry once by default inside idgen.NewV7.
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}

	return &repo{
		db:  database,
		ids: config.IDGenerator,
	}
}

const linkColumns = "id, destination_url, short_code, title, click_count, created_at, updated_at"

func scanLink(row pgx.Row) (Link, error) {
	var l Link
	err := row.Scan(
		&l.ID,
		&l.DestinationURL,
		&l.ShortCode,
		&l.Title,
		&l.ClickCount,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case uniqueViolation(err, destinationConstraint):
		return errx.E(op, errx.Conflict, errors.Join(ErrDestinationTaken, err))

	case uniqueViolation(err, codeConstraint):
		return errx.E(op, errx.Conflict, errors.Join(ErrCodeTaken, err))

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *repo) FindByDestination(ctx context.Context, destination string) (Link, error) {
	const op = "shortener.repo.FindByDestination"

	row := r.db.QueryRow(ctx,
		"SELECT "+linkColumns+" FROM links WHERE destination_url = $1",
		destination,
	)
	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *repo) FindByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.repo.FindByCode"

	row := r.db.QueryRow(ctx,
		"SELECT "+linkColumns+" FROM links WHERE short_code = $1",
		code,
	)
	link, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *repo) Insert(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.repo.Insert"

	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO links (id, destination_url, short_code, title, click_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, now(), now())
		 RETURNING `+linkColumns,
		link.ID, link.DestinationURL, link.ShortCode, link.Title,
	)
	created, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *repo) IncrementClicks(ctx context.Context, id uuid.UUID) (int64, error) {
	const op = "shortener.repo.IncrementClicks"

	// The increment is a single UPDATE so it is serialized by the row lock;
	// concurrent resolvers never lose an update.
	row := r.db.QueryRow(ctx,
		`UPDATE links
		 SET click_count = click_count + 1, updated_at = now()
		 WHERE id = $1
		 RETURNING click_count`,
		id,
	)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, mapRepoError(op, err)
	}
	return count, nil
}

func (r *repo) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	const op = "shortener.repo.SetTitle"

	tag, err := r.db.Exec(ctx,
		"UPDATE links SET title = $2, updated_at = now() WHERE id = $1",
		id, title,
	)
	if err != nil {
		return mapRepoError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, pgx.ErrNoRows)
	}
	return nil
}

func (r *repo) AttachOwner(ctx context.Context, id uuid.UUID, ownerRef string) error {
	const op = "shortener.repo.AttachOwner"

	_, err := r.db.Exec(ctx,
		`INSERT INTO link_owners (link_id, owner_ref, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (link_id, owner_ref) DO NOTHING`,
		id, ownerRef,
	)
	if err != nil {
		return mapRepoError(op, err)
	}
	return nil
}
