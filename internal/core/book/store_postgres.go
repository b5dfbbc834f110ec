// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Postgres-backed implementations of the book package's store interfaces.

Follows the teacher comic repository's conventions: schema column names
come from the shared [schema] package, list queries use a window function
(COUNT(*) OVER()) to avoid a second round trip, and multi-table writes run
inside an explicit transaction with a deferred rollback.
*/
package book

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira/internal/platform/database/schema"
	"github.com/taibuivan/yomira/internal/platform/dberr"
	"github.com/taibuivan/yomira/pkg/uuidv7"
)

// # Book Repository

type bookRepository struct {
	pool *pgxpool.Pool
}

// NewBookStore constructs a PostgreSQL-backed [BookStore].
func NewBookStore(pool *pgxpool.Pool) BookStore {
	return &bookRepository{pool: pool}
}

func (r *bookRepository) Create(ctx context.Context, b *Book) error {
	if b.ID == "" {
		b.ID = uuidv7.New()
	}

	metadata, err := marshalMetadata(b.Metadata)
	if err != nil {
		return fmt.Errorf("book: marshal metadata: %w", err)
	}

	t := schema.CoreBook
	query := fmt.Sprintf(`
		INSERT INTO %s (
			%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
	`,
		t.Table,
		t.ID, t.OwnerUserID, t.Title, t.Author, t.Genre, t.Language, t.FileFormat,
		t.FilePath, t.FileSize, t.Metadata, t.TotalPages, t.CreatedAt, t.UpdatedAt,
	)

	_, err = r.pool.Exec(ctx, query,
		b.ID, b.OwnerUserID, b.Title, b.Author, b.Genre, b.Language, b.FileFormat,
		b.FilePath, b.FileSize, metadata, b.TotalPages,
	)
	if err != nil {
		return dberr.Wrap(err, "create book")
	}
	return nil
}

func (r *bookRepository) GetByID(ctx context.Context, ownerUserID, bookID string) (*Book, error) {
	t := schema.CoreBook
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE %s = $1 AND %s = $2
	`, strings.Join(t.Columns(), ", "), t.Table, t.ID, t.OwnerUserID)

	row := r.pool.QueryRow(ctx, query, bookID, ownerUserID)
	b, err := scanBook(row)
	if err != nil {
		return nil, dberr.Wrap(err, "get book")
	}
	return b, nil
}

func (r *bookRepository) GetByIDAnyOwner(ctx context.Context, bookID string) (*Book, error) {
	t := schema.CoreBook
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, strings.Join(t.Columns(), ", "), t.Table, t.ID)

	row := r.pool.QueryRow(ctx, query, bookID)
	b, err := scanBook(row)
	if err != nil {
		return nil, dberr.Wrap(err, "get book")
	}
	return b, nil
}

// List returns opts's page of books, eagerly joined against each book's
// chapter count and the caller's own reading progress so the library view
// never pays an N+1 round trip.
func (r *bookRepository) List(ctx context.Context, opts ListOptions) ([]BookWithStats, int, error) {
	bt := schema.CoreBook
	ct := schema.CoreChapter
	pt := schema.LibraryReadingProgress

	sortCol := fmt.Sprintf("b.%s", bt.CreatedAt)
	sortDir := "DESC"
	switch opts.Sort {
	case SortCreatedAsc:
		sortCol, sortDir = fmt.Sprintf("b.%s", bt.CreatedAt), "ASC"
	case SortTitleAsc:
		sortCol, sortDir = fmt.Sprintf("b.%s", bt.Title), "ASC"
	case SortTitleDesc:
		sortCol, sortDir = fmt.Sprintf("b.%s", bt.Title), "DESC"
	case SortAuthorAsc:
		sortCol, sortDir = fmt.Sprintf("b.%s", bt.Author), "ASC"
	case SortAuthorDesc:
		sortCol, sortDir = fmt.Sprintf("b.%s", bt.Author), "DESC"
	case SortAccessedDesc:
		sortCol, sortDir = fmt.Sprintf("b.%s", bt.LastAccessedAt), "DESC"
	}

	query := fmt.Sprintf(`
		SELECT
			%s,
			COUNT(*) OVER() AS total_count,
			COALESCE(ch.chapter_count, 0) AS chapter_count,
			p.%s AS progress_pct,
			(p.%s IS NOT NULL) AS has_been_opened
		FROM %s b
		LEFT JOIN (
			SELECT %s AS book_id, COUNT(*) AS chapter_count
			FROM %s GROUP BY %s
		) ch ON ch.book_id = b.%s
		LEFT JOIN %s p ON p.%s = b.%s AND p.%s = $1
		WHERE b.%s = $1
		ORDER BY %s %s, b.%s DESC
		LIMIT $2 OFFSET $3
	`,
		prefixColumns("b", bt.Columns()),
		pt.CurrentPagePercent, pt.ID,
		bt.Table,
		ct.BookID, ct.Table, ct.BookID, bt.ID,
		pt.Table, pt.BookID, bt.ID, pt.UserID,
		bt.OwnerUserID,
		sortCol, sortDir, bt.ID,
	)

	rows, err := r.pool.Query(ctx, query, opts.OwnerUserID, opts.Limit, opts.Skip)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list books")
	}
	defer rows.Close()

	var (
		out   []BookWithStats
		total int
	)
	for rows.Next() {
		var (
			bws          BookWithStats
			metadata     []byte
			totalCount   int
			progressPct  *float64
			hasBeenOpened bool
		)
		dest := append(bookScanDest(&bws.Book, &metadata), &totalCount, &bws.ChapterCount, &progressPct, &hasBeenOpened)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("book: scan list row: %w", err)
		}
		if err := unmarshalMetadata(metadata, &bws.Book.Metadata); err != nil {
			return nil, 0, fmt.Errorf("book: unmarshal metadata: %w", err)
		}
		bws.ProgressPct = progressPct
		bws.HasBeenOpened = hasBeenOpened
		total = totalCount
		out = append(out, bws)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "list books")
	}
	return out, total, nil
}

// Delete removes bookID and every dependent row (chapters, descriptions,
// generated images, reading progress, reading sessions) in one transaction.
func (r *bookRepository) Delete(ctx context.Context, ownerUserID, bookID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("book: begin delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, dt, it, pt, st, bt := schema.CoreChapter, schema.CoreDescription, schema.CoreGeneratedImage, schema.LibraryReadingProgress, schema.LibraryReadingSession, schema.CoreBook

	statements := []string{
		fmt.Sprintf(`DELETE FROM %s WHERE %s IN (SELECT %s FROM %s WHERE %s = $1)`,
			it.Table, it.DescriptionID, dt.ID, dt.Table, dt.BookID),
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, dt.Table, dt.BookID),
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, ct.Table, ct.BookID),
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, pt.Table, pt.BookID),
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, st.Table, st.BookID),
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, bookID); err != nil {
			return dberr.Wrap(err, "delete book dependents")
		}
	}

	res, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`, bt.Table, bt.ID, bt.OwnerUserID), bookID, ownerUserID)
	if err != nil {
		return dberr.Wrap(err, "delete book")
	}
	if res.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("book: commit delete transaction: %w", err)
	}
	return nil
}

func (r *bookRepository) Touch(ctx context.Context, bookID string) error {
	t := schema.CoreBook
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET %s = NOW() WHERE %s = $1`, t.Table, t.LastAccessedAt, t.ID), bookID)
	if err != nil {
		return dberr.Wrap(err, "touch book")
	}
	return nil
}

func (r *bookRepository) UpdateParsingProgress(ctx context.Context, bookID string, progress int) error {
	t := schema.CoreBook
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET %s = $2, %s = NOW() WHERE %s = $1`, t.Table, t.ParsingProgress, t.UpdatedAt, t.ID), bookID, progress)
	if err != nil {
		return dberr.Wrap(err, "update parsing progress")
	}
	return nil
}

func (r *bookRepository) MarkParsed(ctx context.Context, bookID string) error {
	t := schema.CoreBook
	_, err := r.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = TRUE, %s = 100, %s = NULL, %s = NOW() WHERE %s = $1`,
		t.Table, t.IsParsed, t.ParsingProgress, t.ParsingError, t.UpdatedAt, t.ID,
	), bookID)
	if err != nil {
		return dberr.Wrap(err, "mark book parsed")
	}
	return nil
}

func (r *bookRepository) MarkParsingFailed(ctx context.Context, bookID, reason string) error {
	t := schema.CoreBook
	_, err := r.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = $2, %s = NOW() WHERE %s = $1`,
		t.Table, t.ParsingError, t.UpdatedAt, t.ID,
	), bookID, reason)
	if err != nil {
		return dberr.Wrap(err, "mark book parsing failed")
	}
	return nil
}

// # Chapter Repository

type chapterRepository struct {
	pool *pgxpool.Pool
}

// NewChapterStore constructs a PostgreSQL-backed [ChapterStore].
func NewChapterStore(pool *pgxpool.Pool) ChapterStore {
	return &chapterRepository{pool: pool}
}

func (r *chapterRepository) BulkCreate(ctx context.Context, chapters []Chapter) error {
	if len(chapters) == 0 {
		return nil
	}
	t := schema.CoreChapter

	var sb strings.Builder
	fmt.Fprintf(&sb, `INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s) VALUES `,
		t.Table, t.ID, t.BookID, t.ChapterNumber, t.Title, t.Content, t.HTMLContent, t.WordCount)

	args := make([]any, 0, len(chapters)*7)
	argID := 1
	for i, c := range chapters {
		if c.ID == "" {
			c.ID = uuidv7.New()
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", argID, argID+1, argID+2, argID+3, argID+4, argID+5, argID+6)
		argID += 7
		args = append(args, c.ID, c.BookID, c.ChapterNumber, c.Title, c.Content, c.HTMLContent, c.WordCount)
	}

	if _, err := r.pool.Exec(ctx, sb.String(), args...); err != nil {
		return dberr.Wrap(err, "bulk create chapters")
	}
	return nil
}

func (r *chapterRepository) ListByBook(ctx context.Context, bookID string) ([]Chapter, error) {
	t := schema.CoreChapter
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s ASC`,
		strings.Join(t.Columns(), ", "), t.Table, t.BookID, t.ChapterNumber)

	rows, err := r.pool.Query(ctx, query, bookID)
	if err != nil {
		return nil, dberr.Wrap(err, "list chapters")
	}
	defer rows.Close()

	var out []Chapter
	for rows.Next() {
		var c Chapter
		if err := rows.Scan(&c.ID, &c.BookID, &c.ChapterNumber, &c.Title, &c.Content, &c.HTMLContent,
			&c.WordCount, &c.IsDescriptionParsed, &c.DescriptionsFound); err != nil {
			return nil, fmt.Errorf("book: scan chapter: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *chapterRepository) GetByID(ctx context.Context, chapterID string) (*Chapter, error) {
	t := schema.CoreChapter
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, strings.Join(t.Columns(), ", "), t.Table, t.ID)

	var c Chapter
	err := r.pool.QueryRow(ctx, query, chapterID).Scan(&c.ID, &c.BookID, &c.ChapterNumber, &c.Title,
		&c.Content, &c.HTMLContent, &c.WordCount, &c.IsDescriptionParsed, &c.DescriptionsFound)
	if err != nil {
		return nil, dberr.Wrap(err, "get chapter")
	}
	return &c, nil
}

func (r *chapterRepository) GetByNumber(ctx context.Context, bookID string, number int) (*Chapter, error) {
	t := schema.CoreChapter
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s = $2`,
		strings.Join(t.Columns(), ", "), t.Table, t.BookID, t.ChapterNumber)

	var c Chapter
	err := r.pool.QueryRow(ctx, query, bookID, number).Scan(&c.ID, &c.BookID, &c.ChapterNumber, &c.Title,
		&c.Content, &c.HTMLContent, &c.WordCount, &c.IsDescriptionParsed, &c.DescriptionsFound)
	if err != nil {
		return nil, dberr.Wrap(err, "get chapter by number")
	}
	return &c, nil
}

func (r *chapterRepository) Count(ctx context.Context, bookID string) (int, error) {
	t := schema.CoreChapter
	var count int
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, t.Table, t.BookID), bookID).Scan(&count)
	if err != nil {
		return 0, dberr.Wrap(err, "count chapters")
	}
	return count, nil
}

func (r *chapterRepository) MarkDescriptionParsed(ctx context.Context, chapterID string, descriptionsFound int) error {
	t := schema.CoreChapter
	_, err := r.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = TRUE, %s = $2 WHERE %s = $1`,
		t.Table, t.IsDescriptionParsed, t.DescriptionsFound, t.ID,
	), chapterID, descriptionsFound)
	if err != nil {
		return dberr.Wrap(err, "mark chapter description parsed")
	}
	return nil
}

// # Progress Repository

type progressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressStore constructs a PostgreSQL-backed [ProgressStore].
func NewProgressStore(pool *pgxpool.Pool) ProgressStore {
	return &progressRepository{pool: pool}
}

func (r *progressRepository) Upsert(ctx context.Context, p *ReadingProgress) error {
	if p.ID == "" {
		p.ID = uuidv7.New()
	}
	t := schema.LibraryReadingProgress
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (%s, %s) DO UPDATE SET
			%s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s,
			%s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = NOW()
	`,
		t.Table, t.ID, t.UserID, t.BookID, t.CurrentChapter, t.CurrentPagePercent,
		t.LocationFingerprint, t.ScrollOffsetPercent, t.ReadingTimeMinutes, t.LastReadAt,
		t.UserID, t.BookID,
		t.CurrentChapter, t.CurrentChapter,
		t.CurrentPagePercent, t.CurrentPagePercent,
		t.LocationFingerprint, t.LocationFingerprint,
		t.ScrollOffsetPercent, t.ScrollOffsetPercent,
		t.ReadingTimeMinutes, t.ReadingTimeMinutes,
		t.LastReadAt,
	)

	_, err := r.pool.Exec(ctx, query, p.ID, p.UserID, p.BookID, p.CurrentChapter, p.CurrentPagePercent,
		p.LocationFingerprint, p.ScrollOffsetPercent, p.ReadingTimeMinutes)
	if err != nil {
		return dberr.Wrap(err, "upsert reading progress")
	}
	return nil
}

func (r *progressRepository) Get(ctx context.Context, userID, bookID string) (*ReadingProgress, error) {
	t := schema.LibraryReadingProgress
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s = $2`,
		strings.Join(t.Columns(), ", "), t.Table, t.UserID, t.BookID)

	var p ReadingProgress
	err := r.pool.QueryRow(ctx, query, userID, bookID).Scan(&p.ID, &p.UserID, &p.BookID, &p.CurrentChapter,
		&p.CurrentPagePercent, &p.LocationFingerprint, &p.ScrollOffsetPercent, &p.ReadingTimeMinutes, &p.LastReadAt)
	if err != nil {
		return nil, dberr.Wrap(err, "get reading progress")
	}
	return &p, nil
}

func (r *progressRepository) ListForUser(ctx context.Context, userID string) (map[string]ReadingProgress, error) {
	t := schema.LibraryReadingProgress
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, strings.Join(t.Columns(), ", "), t.Table, t.UserID)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "list reading progress")
	}
	defer rows.Close()

	out := make(map[string]ReadingProgress)
	for rows.Next() {
		var p ReadingProgress
		if err := rows.Scan(&p.ID, &p.UserID, &p.BookID, &p.CurrentChapter, &p.CurrentPagePercent,
			&p.LocationFingerprint, &p.ScrollOffsetPercent, &p.ReadingTimeMinutes, &p.LastReadAt); err != nil {
			return nil, fmt.Errorf("book: scan reading progress: %w", err)
		}
		out[p.BookID] = p
	}
	return out, rows.Err()
}

// # Description Repository

type descriptionRepository struct {
	pool *pgxpool.Pool
}

// NewDescriptionStore constructs a PostgreSQL-backed [DescriptionStore].
func NewDescriptionStore(pool *pgxpool.Pool) DescriptionStore {
	return &descriptionRepository{pool: pool}
}

func (r *descriptionRepository) Create(ctx context.Context, d *Description) error {
	if d.ID == "" {
		d.ID = uuidv7.New()
	}
	t := schema.CoreDescription
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`, t.Table, t.ID, t.BookID, t.ChapterID, t.Type, t.Content, t.Context,
		t.ConfidenceScore, t.PriorityScore, t.PositionInChapter, t.WordCount, t.CreatedAt)

	_, err := r.pool.Exec(ctx, query, d.ID, d.BookID, d.ChapterID, d.Type, d.Content, d.Context,
		d.ConfidenceScore, d.PriorityScore, d.PositionInChapter, d.WordCount)
	if err != nil {
		return dberr.Wrap(err, "create description")
	}
	return nil
}

func (r *descriptionRepository) GetByID(ctx context.Context, descriptionID string) (*Description, error) {
	t := schema.CoreDescription
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, strings.Join(t.Columns(), ", "), t.Table, t.ID)

	var d Description
	err := r.pool.QueryRow(ctx, query, descriptionID).Scan(&d.ID, &d.BookID, &d.ChapterID, &d.Type, &d.Content, &d.Context,
		&d.ConfidenceScore, &d.PriorityScore, &d.PositionInChapter, &d.WordCount, &d.CreatedAt)
	if err != nil {
		return nil, dberr.Wrap(err, "get description")
	}
	return &d, nil
}

func (r *descriptionRepository) ListByChapter(ctx context.Context, chapterID string) ([]Description, error) {
	return r.listWhere(ctx, schema.CoreDescription.ChapterID, chapterID, "")
}

func (r *descriptionRepository) ListByBook(ctx context.Context, bookID string) ([]Description, error) {
	return r.listWhere(ctx, schema.CoreDescription.BookID, bookID, "")
}

func (r *descriptionRepository) listWhere(ctx context.Context, col, val, extra string) ([]Description, error) {
	t := schema.CoreDescription
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 %s ORDER BY %s ASC`,
		strings.Join(t.Columns(), ", "), t.Table, col, extra, t.PositionInChapter)

	rows, err := r.pool.Query(ctx, query, val)
	if err != nil {
		return nil, dberr.Wrap(err, "list descriptions")
	}
	defer rows.Close()

	var out []Description
	for rows.Next() {
		var d Description
		if err := rows.Scan(&d.ID, &d.BookID, &d.ChapterID, &d.Type, &d.Content, &d.Context,
			&d.ConfidenceScore, &d.PriorityScore, &d.PositionInChapter, &d.WordCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("book: scan description: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TopKUnimaged returns up to k descriptions with no generated image,
// ordered by priority score descending, used as the batch-generation
// candidate pool.
func (r *descriptionRepository) TopKUnimaged(ctx context.Context, bookID string, k int) ([]Description, error) {
	dt := schema.CoreDescription
	it := schema.CoreGeneratedImage
	query := fmt.Sprintf(`
		SELECT %s FROM %s d
		WHERE d.%s = $1 AND NOT EXISTS (
			SELECT 1 FROM %s i WHERE i.%s = d.%s
		)
		ORDER BY d.%s DESC
		LIMIT $2
	`, prefixColumns("d", dt.Columns()), dt.Table, dt.BookID, it.Table, it.DescriptionID, dt.ID, dt.PriorityScore)

	rows, err := r.pool.Query(ctx, query, bookID, k)
	if err != nil {
		return nil, dberr.Wrap(err, "list unimaged descriptions")
	}
	defer rows.Close()

	var out []Description
	for rows.Next() {
		var d Description
		if err := rows.Scan(&d.ID, &d.BookID, &d.ChapterID, &d.Type, &d.Content, &d.Context,
			&d.ConfidenceScore, &d.PriorityScore, &d.PositionInChapter, &d.WordCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("book: scan description: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *descriptionRepository) ExistsSimilar(ctx context.Context, chapterID, normalizedPrefix string) (bool, error) {
	t := schema.CoreDescription
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s WHERE %s = $1 AND left(lower(%s), length($2)) = $2
		)
	`, t.Table, t.ChapterID, t.Content)

	var exists bool
	if err := r.pool.QueryRow(ctx, query, chapterID, normalizedPrefix).Scan(&exists); err != nil {
		return false, dberr.Wrap(err, "check similar description")
	}
	return exists, nil
}

// # Image Repository

type imageRepository struct {
	pool *pgxpool.Pool
}

// NewImageStore constructs a PostgreSQL-backed [ImageStore].
func NewImageStore(pool *pgxpool.Pool) ImageStore {
	return &imageRepository{pool: pool}
}

func (r *imageRepository) Create(ctx context.Context, img *GeneratedImage) error {
	if img.ID == "" {
		img.ID = uuidv7.New()
	}
	t := schema.CoreGeneratedImage
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`, t.Table, t.ID, t.DescriptionID, t.UserID, t.ImageRef, t.LocalPath, t.Prompt,
		t.GenerationSeconds, t.Width, t.Height, t.CreatedAt)

	_, err := r.pool.Exec(ctx, query, img.ID, img.DescriptionID, img.UserID, img.ImageRef, img.LocalPath,
		img.Prompt, img.GenerationSeconds, img.Width, img.Height)
	if err != nil {
		return dberr.Wrap(err, "create generated image")
	}
	return nil
}

func (r *imageRepository) ListByDescription(ctx context.Context, descriptionID string) ([]GeneratedImage, error) {
	t := schema.CoreGeneratedImage
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY %s ASC`,
		strings.Join(t.Columns(), ", "), t.Table, t.DescriptionID, t.CreatedAt)

	rows, err := r.pool.Query(ctx, query, descriptionID)
	if err != nil {
		return nil, dberr.Wrap(err, "list generated images")
	}
	defer rows.Close()

	var out []GeneratedImage
	for rows.Next() {
		var img GeneratedImage
		if err := rows.Scan(&img.ID, &img.DescriptionID, &img.UserID, &img.ImageRef, &img.LocalPath,
			&img.Prompt, &img.GenerationSeconds, &img.Width, &img.Height, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("book: scan generated image: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func (r *imageRepository) CountForBook(ctx context.Context, bookID string) (int, error) {
	it := schema.CoreGeneratedImage
	dt := schema.CoreDescription
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s i
		JOIN %s d ON d.%s = i.%s
		WHERE d.%s = $1
	`, it.Table, dt.Table, dt.ID, it.DescriptionID, dt.BookID)

	var count int
	if err := r.pool.QueryRow(ctx, query, bookID).Scan(&count); err != nil {
		return 0, dberr.Wrap(err, "count generated images")
	}
	return count, nil
}

// # Session Repository

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionStore constructs a PostgreSQL-backed [SessionStore].
func NewSessionStore(pool *pgxpool.Pool) SessionStore {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) StartSession(ctx context.Context, s *ReadingSession) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("book: begin session transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t := schema.LibraryReadingSession

	// Close any prior still-active session on the same book before opening
	// a new one, mirroring the teacher's "replace, don't accumulate" pattern
	// for exclusive per-resource state.
	_, err = tx.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = FALSE, %s = NOW() WHERE %s = $1 AND %s = $2 AND %s = TRUE`,
		t.Table, t.IsActive, t.EndedAt, t.UserID, t.BookID, t.IsActive,
	), s.UserID, s.BookID)
	if err != nil {
		return dberr.Wrap(err, "close prior session")
	}

	if s.ID == "" {
		s.ID = uuidv7.New()
	}
	_, err = tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s, %s, %s, %s, %s, %s) VALUES ($1, $2, $3, NOW(), $4, TRUE)`,
		t.Table, t.ID, t.UserID, t.BookID, t.StartedAt, t.StartPosition, t.IsActive,
	), s.ID, s.UserID, s.BookID, s.StartPosition)
	if err != nil {
		return dberr.Wrap(err, "start session")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("book: commit session transaction: %w", err)
	}
	return nil
}

func (r *sessionRepository) EndActiveSession(ctx context.Context, userID, bookID, endPosition string) error {
	t := schema.LibraryReadingSession
	query := fmt.Sprintf(`
		UPDATE %s SET
			%s = FALSE,
			%s = NOW(),
			%s = $3,
			%s = GREATEST(0, EXTRACT(EPOCH FROM (NOW() - %s)) / 60)::int
		WHERE %s = $1 AND %s = $2 AND %s = TRUE
	`, t.Table, t.IsActive, t.EndedAt, t.EndPosition, t.DurationMinutes, t.StartedAt, t.UserID, t.BookID, t.IsActive)

	_, err := r.pool.Exec(ctx, query, userID, bookID, endPosition)
	if err != nil {
		return dberr.Wrap(err, "end reading session")
	}
	return nil
}

func (r *sessionRepository) GetActive(ctx context.Context, userID, bookID string) (*ReadingSession, error) {
	t := schema.LibraryReadingSession
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s = $2 AND %s = TRUE`,
		strings.Join(t.Columns(), ", "), t.Table, t.UserID, t.BookID, t.IsActive)

	var s ReadingSession
	err := r.pool.QueryRow(ctx, query, userID, bookID).Scan(&s.ID, &s.UserID, &s.BookID, &s.StartedAt,
		&s.EndedAt, &s.DurationMinutes, &s.StartPosition, &s.EndPosition, &s.IsActive)
	if err != nil {
		if dberr.Wrap(err, "get active session") == dberr.ErrNotFound {
			return nil, nil
		}
		return nil, dberr.Wrap(err, "get active session")
	}
	return &s, nil
}

func (r *sessionRepository) SummaryForUser(ctx context.Context, userID string, since time.Time) (ReadingSummary, error) {
	t := schema.LibraryReadingSession
	query := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(%s), 0),
			COUNT(*),
			COUNT(DISTINCT date_trunc('day', %s))
		FROM %s
		WHERE %s = $1 AND %s >= $2 AND %s = FALSE
	`, t.DurationMinutes, t.StartedAt, t.Table, t.UserID, t.StartedAt, t.IsActive)

	var summary ReadingSummary
	summary.UserID = userID
	err := r.pool.QueryRow(ctx, query, userID, since).Scan(&summary.TotalMinutes, &summary.SessionCount, &summary.ActiveDaysInRange)
	if err != nil {
		return ReadingSummary{}, dberr.Wrap(err, "summarize reading sessions")
	}

	days := time.Since(since).Hours() / 24
	if days > 0 {
		summary.AverageMinutesDay = float64(summary.TotalMinutes) / days
	}
	return summary, nil
}

// # Shared Scan Helpers

func bookScanDest(b *Book, metadata *[]byte) []any {
	return []any{
		&b.ID, &b.OwnerUserID, &b.Title, &b.Author, &b.Genre, &b.Language, &b.FileFormat,
		&b.FilePath, &b.FileSize, &b.CoverPath, metadata, &b.TotalPages, &b.EstimatedReadMinutes,
		&b.IsParsed, &b.ParsingProgress, &b.ParsingError, &b.CreatedAt, &b.UpdatedAt, &b.LastAccessedAt,
	}
}

func scanBook(row pgx.Row) (*Book, error) {
	var b Book
	var metadata []byte
	if err := row.Scan(bookScanDest(&b, &metadata)...); err != nil {
		return nil, err
	}
	if err := unmarshalMetadata(metadata, &b.Metadata); err != nil {
		return nil, fmt.Errorf("book: unmarshal metadata: %w", err)
	}
	return &b, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func unmarshalMetadata(raw []byte, dst *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func prefixColumns(alias string, cols []string) string {
	prefixed := make([]string, len(cols))
	for i, c := range cols {
		prefixed[i] = alias + "." + c
	}
	return strings.Join(prefixed, ", ")
}
