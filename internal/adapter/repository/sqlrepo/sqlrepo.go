// Package sqlrepo stores the URL snapshot in two relational tables, urls and
// clicks. Queries are written with '?' placeholders and rebound for the
// driver, so the same repository serves both PostgreSQL and SQLite.
package sqlrepo

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type urlDB struct {
	ShortCode   string         `db:"short_code"`
	OriginalURL string         `db:"original_url"`
	CreatedAt   time.Time      `db:"created_at"`
	ExpiresAt   time.Time      `db:"expires_at"`
	Extra       sql.NullString `db:"extra"`
}

type clickDB struct {
	ShortCode string         `db:"short_code"`
	Seq       int            `db:"seq"`
	ClickedAt time.Time      `db:"clicked_at"`
	Referrer  string         `db:"referrer"`
	Extra     sql.NullString `db:"extra"`
}

func (u *urlDB) toEntity() (*entity.URL, error) {
	ext, err := decodeExtra(u.Extra)
	if err != nil {
		return nil, fmt.Errorf("url %q: %w", u.ShortCode, err)
	}

	return &entity.URL{
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		CreatedAt:   u.CreatedAt.UTC(),
		ExpiresAt:   u.ExpiresAt.UTC(),
		Clicks:      []entity.Click{},
		Extensions:  ext,
	}, nil
}

func (c *clickDB) toEntity() (entity.Click, error) {
	ext, err := decodeExtra(c.Extra)
	if err != nil {
		return entity.Click{}, fmt.Errorf("click %q/%d: %w", c.ShortCode, c.Seq, err)
	}

	return entity.Click{
		Timestamp:  c.ClickedAt.UTC(),
		Referrer:   c.Referrer,
		Extensions: ext,
	}, nil
}

// URLRepository implements LoadAll and SaveAll over an *sqlx.DB whose
// schema already contains the urls and clicks tables.
type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

func (r *URLRepository) LoadAll(ctx context.Context) (map[string]*entity.URL, error) {
	const op = "adapter.repository.sqlrepo.URLRepository.LoadAll"
	const (
		urlsQuery   = `SELECT short_code, original_url, created_at, expires_at, extra FROM urls`
		clicksQuery = `SELECT short_code, seq, clicked_at, referrer, extra FROM clicks ORDER BY short_code, seq`
	)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: failed to begin transaction: %w", op, entity.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	var urlRows []urlDB
	if err := tx.SelectContext(ctx, &urlRows, urlsQuery); err != nil {
		return nil, fmt.Errorf("%s: %w: failed to select from urls table: %w", op, entity.ErrStorageUnavailable, err)
	}

	var clickRows []clickDB
	if err := tx.SelectContext(ctx, &clickRows, clicksQuery); err != nil {
		return nil, fmt.Errorf("%s: %w: failed to select from clicks table: %w", op, entity.ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w: failed to commit transaction: %w", op, entity.ErrStorageUnavailable, err)
	}

	urls := make(map[string]*entity.URL, len(urlRows))
	for i := range urlRows {
		url, err := urlRows[i].toEntity()
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrStorageUnavailable, err)
		}
		urls[url.ShortCode] = url
	}

	for i := range clickRows {
		url, ok := urls[clickRows[i].ShortCode]
		if !ok {
			continue
		}

		click, err := clickRows[i].toEntity()
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrStorageUnavailable, err)
		}
		url.Clicks = append(url.Clicks, click)
	}

	return urls, nil
}

// SaveAll replaces the contents of both tables in a single transaction.
func (r *URLRepository) SaveAll(ctx context.Context, urls map[string]*entity.URL) error {
	const op = "adapter.repository.sqlrepo.URLRepository.SaveAll"
	const (
		deleteClicksQuery = `DELETE FROM clicks`
		deleteURLsQuery   = `DELETE FROM urls`
		insertURLQuery    = `INSERT INTO urls(short_code, original_url, created_at, expires_at, extra) VALUES (?, ?, ?, ?, ?)`
		insertClickQuery  = `INSERT INTO clicks(short_code, seq, clicked_at, referrer, extra) VALUES (?, ?, ?, ?, ?)`
	)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w: failed to begin transaction: %w", op, entity.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteClicksQuery); err != nil {
		return fmt.Errorf("%s: %w: failed to delete from clicks table: %w", op, entity.ErrStorageUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, deleteURLsQuery); err != nil {
		return fmt.Errorf("%s: %w: failed to delete from urls table: %w", op, entity.ErrStorageUnavailable, err)
	}

	insertURL := tx.Rebind(insertURLQuery)
	insertClick := tx.Rebind(insertClickQuery)

	for code, url := range urls {
		extra, err := encodeExtra(url.Extensions)
		if err != nil {
			return fmt.Errorf("%s: %w: url %q: %w", op, entity.ErrStorageUnavailable, code, err)
		}

		if _, err := tx.ExecContext(ctx, insertURL,
			code, url.OriginalURL, url.CreatedAt.UTC(), url.ExpiresAt.UTC(), extra); err != nil {
			return fmt.Errorf("%s: %w: failed to insert into urls table: %w", op, entity.ErrStorageUnavailable, err)
		}

		for seq, click := range url.Clicks {
			extra, err := encodeExtra(click.Extensions)
			if err != nil {
				return fmt.Errorf("%s: %w: click %q/%d: %w", op, entity.ErrStorageUnavailable, code, seq, err)
			}

			if _, err := tx.ExecContext(ctx, insertClick,
				code, seq, click.Timestamp.UTC(), click.Referrer, extra); err != nil {
				return fmt.Errorf("%s: %w: failed to insert into clicks table: %w", op, entity.ErrStorageUnavailable, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w: failed to commit transaction: %w", op, entity.ErrStorageUnavailable, err)
	}

	return nil
}

func encodeExtra(ext map[string]json.RawMessage) (sql.NullString, error) {
	if len(ext) == 0 {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal(ext)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal extensions: %w", err)
	}

	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeExtra(extra sql.NullString) (map[string]json.RawMessage, error) {
	if !extra.Valid || extra.String == "" {
		return nil, nil
	}

	var ext map[string]json.RawMessage
	if err := json.Unmarshal([]byte(extra.String), &ext); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extensions: %w", err)
	}
	if len(ext) == 0 {
		return nil, nil
	}

	for k, v := range ext {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err == nil {
			ext[k] = buf.Bytes()
		}
	}

	return ext, nil
}
