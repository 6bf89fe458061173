package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-cms/pkg/simplecms"
	"github.com/tendant/simple-cms/pkg/simplecms/delta"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

// Repository implements simplecms.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

var _ simplecms.Repository = (*Repository)(nil)

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "unlock") {
				return fmt.Errorf("unlock record already exists")
			}
			if strings.Contains(pgErr.ConstraintName, "article") {
				return fmt.Errorf("article already exists")
			}
			return fmt.Errorf("duplicate entry")
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found: %w", simplecms.ErrArticleNotFound)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const articleColumns = `id, status, title, excerpt, thumbnail, content, view_count, created_at, updated_at`

func scanArticle(row pgx.Row) (*simplecms.Article, error) {
	var (
		a         simplecms.Article
		status    string
		thumbnail []byte
		content   []byte
	)
	err := row.Scan(&a.ID, &status, &a.Title, &a.Excerpt, &thumbnail, &content,
		&a.ViewCount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = simplecms.ArticleStatus(status)
	if len(thumbnail) > 0 {
		if err := json.Unmarshal(thumbnail, &a.Thumbnail); err != nil {
			return nil, fmt.Errorf("decode thumbnail of %s: %w", a.ID, err)
		}
	}
	if a.Content, err = delta.Parse(content); err != nil {
		return nil, fmt.Errorf("decode content of %s: %w", a.ID, err)
	}
	return &a, nil
}

func encodeThumbnail(refs simplecms.ImageRefs) (string, error) {
	if refs == nil {
		refs = simplecms.ImageRefs{}
	}
	b, err := json.Marshal([]string(refs))
	return string(b), err
}

func encodeContent(d *delta.Delta) (*string, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// Article operations

// CreateArticles inserts the batch in one transaction.
func (r *Repository) CreateArticles(ctx context.Context, articles []*simplecms.Article) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return r.handlePostgresError("create articles", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO articles (` + articleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, a := range articles {
		thumbnail, err := encodeThumbnail(a.Thumbnail)
		if err != nil {
			return err
		}
		content, err := encodeContent(a.Content)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, query,
			a.ID, string(a.Status), a.Title, a.Excerpt, thumbnail, content,
			a.ViewCount, a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return r.handlePostgresError("create articles", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return r.handlePostgresError("create articles", err)
	}
	return nil
}

func (r *Repository) GetArticle(ctx context.Context, id uuid.UUID) (*simplecms.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`

	a, err := scanArticle(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplecms.ErrArticleNotFound
		}
		return nil, r.handlePostgresError("get article", err)
	}
	return a, nil
}

// buildFindQuery renders an equality-only filter.
func buildFindQuery(filter simplecms.ArticleFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ID != nil {
		args = append(args, *filter.ID)
		where = append(where, fmt.Sprintf("id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + articleColumns + ` FROM articles`)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args
}

func (r *Repository) FindArticles(ctx context.Context, filter simplecms.ArticleFilter) ([]*simplecms.Article, error) {
	query, args := buildFindQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("find articles", err)
	}
	defer rows.Close()

	var result []*simplecms.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("find articles", err)
	}
	return result, nil
}

// buildUpdateQuery renders the SET clause for the non-nil patch fields.
func buildUpdateQuery(id uuid.UUID, patch simplecms.ArticlePatch, now time.Time) (string, []interface{}, error) {
	args := []interface{}{id}
	var sets []string
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Excerpt != nil {
		set("excerpt", *patch.Excerpt)
	}
	if patch.Thumbnail != nil {
		thumbnail, err := encodeThumbnail(patch.Thumbnail)
		if err != nil {
			return "", nil, err
		}
		set("thumbnail", thumbnail)
	}
	if patch.Content != nil {
		content, err := encodeContent(patch.Content)
		if err != nil {
			return "", nil, err
		}
		set("content", content)
	}
	set("updated_at", now)

	query := `UPDATE articles SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + articleColumns
	return query, args, nil
}

func (r *Repository) UpdateArticle(ctx context.Context, id uuid.UUID, patch simplecms.ArticlePatch) (*simplecms.Article, error) {
	query, args, err := buildUpdateQuery(id, patch, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	a, err := scanArticle(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplecms.ErrArticleNotFound
		}
		return nil, r.handlePostgresError("update article", err)
	}
	return a, nil
}

func (r *Repository) IncrementViewCount(ctx context.Context, id uuid.UUID, delta int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE articles SET view_count = view_count + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return r.handlePostgresError("increment view count", err)
	}
	if tag.RowsAffected() == 0 {
		return simplecms.ErrArticleNotFound
	}
	return nil
}

// Unlock record operations

func (r *Repository) FindUnlockRecord(ctx context.Context, uniqueID string, articleID uuid.UUID) (*simplecms.UnlockRecord, error) {
	query := `
		SELECT unique_id, article_id, created_at
		FROM article_unlock_records WHERE unique_id = $1 AND article_id = $2`

	var rec simplecms.UnlockRecord
	err := r.db.QueryRow(ctx, query, uniqueID, articleID).Scan(&rec.UniqueID, &rec.ArticleID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplecms.ErrUnlockRecordNotFound
		}
		return nil, r.handlePostgresError("find unlock record", err)
	}
	return &rec, nil
}

func (r *Repository) CreateUnlockRecord(ctx context.Context, record *simplecms.UnlockRecord) error {
	query := `
		INSERT INTO article_unlock_records (unique_id, article_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (unique_id, article_id) DO NOTHING`

	if _, err := r.db.Exec(ctx, query, record.UniqueID, record.ArticleID, record.CreatedAt); err != nil {
		return r.handlePostgresError("create unlock record", err)
	}
	return nil
}

// Media library operations

func (r *Repository) CreateMedia(ctx context.Context, m *simplecms.Media) error {
	query := `
		INSERT INTO media (
			id, src, cover, type, original_name, file_type, size, width, height,
			duration, upload_user, description, alt, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		m.ID, m.Src, m.Cover, m.Type, m.OriginalName, m.FileType, m.Size, m.Width, m.Height,
		m.Duration, m.UploadUser, m.Description, m.Alt, m.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create media", err)
	}
	return nil
}

func (r *Repository) ListMedia(ctx context.Context, limit, offset int) ([]*simplecms.Media, error) {
	query := `
		SELECT id, src, cover, type, original_name, file_type, size, width, height,
		       duration, upload_user, description, alt, created_at
		FROM media ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, r.handlePostgresError("list media", err)
	}
	defer rows.Close()

	result := []*simplecms.Media{}
	for rows.Next() {
		var m simplecms.Media
		err := rows.Scan(&m.ID, &m.Src, &m.Cover, &m.Type, &m.OriginalName, &m.FileType,
			&m.Size, &m.Width, &m.Height, &m.Duration, &m.UploadUser, &m.Description, &m.Alt, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list media", err)
	}
	return result, nil
}
