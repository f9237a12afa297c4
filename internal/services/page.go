package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dimitrije/lorewiki-api/internal/database"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const minTitleLength = 3

const pageColumns = `id, slug, title, body, header_image_url, tags, author_id, author_display_name,
	author_avatar_url, last_editor_id, last_editor_display_name, last_editor_avatar_url,
	status, view_count, created_at, updated_at`

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// PageInput carries the author-editable fields of a page. Nil fields are left
// unchanged on update.
type PageInput struct {
	Title          *string
	Body           *string
	Tags           []string
	HeaderImageURL *string
}

// PageFilter narrows List. Drafts are only returned when IncludeDrafts is set.
type PageFilter struct {
	Tag           string
	Query         string
	IncludeDrafts bool
}

type PageService struct {
	db *database.DB
}

func NewPageService(db *database.DB) *PageService {
	return &PageService{db: db}
}

func scanPage(row pgx.Row) (*models.Page, error) {
	var p models.Page
	var status string
	err := row.Scan(
		&p.ID, &p.Slug, &p.Title, &p.Body, &p.HeaderImageURL, &p.Tags,
		&p.AuthorID, &p.AuthorDisplayName, &p.AuthorAvatarURL,
		&p.LastEditorID, &p.LastEditorDisplayName, &p.LastEditorAvatarURL,
		&status, &p.ViewCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = models.PageStatus(status)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

// Slugify lowercases title and joins its alphanumeric runs with dashes.
func Slugify(title string) string {
	return strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

// NormalizeTags trims, lowercases and de-duplicates tags, dropping blanks.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func validateTitle(title string) error {
	if len(strings.TrimSpace(title)) < minTitleLength {
		return InvalidArgument(fmt.Sprintf("title must be at least %d characters", minTitleLength))
	}
	return nil
}

// Create stores a new draft authored by author. The author's display name and
// avatar are copied onto the page.
func (s *PageService) Create(ctx context.Context, author *models.User, in PageInput) (*models.Page, error) {
	if in.Title == nil {
		return nil, InvalidArgument("title is required")
	}
	title := strings.TrimSpace(*in.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	tags := NormalizeTags(in.Tags)
	if len(tags) == 0 {
		return nil, InvalidArgument("at least one tag is required")
	}
	body := ""
	if in.Body != nil {
		body = *in.Body
	}

	slug := Slugify(title)
	if slug == "" {
		slug = uuid.NewString()[:8]
	}

	insert := func(slug string) (*models.Page, error) {
		return scanPage(s.db.Pool.QueryRow(ctx, `
			INSERT INTO wiki_pages (slug, title, body, header_image_url, tags,
				author_id, author_display_name, author_avatar_url, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+pageColumns,
			slug, title, body, in.HeaderImageURL, tags,
			author.ID, author.DisplayName, author.AvatarURL, string(models.PageStatusDraft)))
	}

	page, err := insert(slug)
	if isUniqueViolation(err) {
		page, err = insert(slug + "-" + uuid.NewString()[:8])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return page, nil
}

func (s *PageService) GetBySlug(ctx context.Context, slug string) (*models.Page, error) {
	page, err := scanPage(s.db.Pool.QueryRow(ctx, `
		SELECT `+pageColumns+` FROM wiki_pages WHERE slug = $1
	`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("page not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

func (s *PageService) List(ctx context.Context, f PageFilter) ([]models.Page, error) {
	var conds []string
	var args []any
	if !f.IncludeDrafts {
		args = append(args, string(models.PageStatusPublished))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		args = append(args, tag)
		conds = append(conds, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		conds = append(conds, fmt.Sprintf("title ILIKE $%d", len(args)))
	}

	sql := `SELECT ` + pageColumns + ` FROM wiki_pages`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, " AND ")
	}
	sql += ` ORDER BY updated_at DESC`

	rows, err := s.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	pages := []models.Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, *p)
	}
	return pages, rows.Err()
}

// Update applies in and records editor as the last editor. A call that
// changes nothing leaves the page, including its editor, untouched.
func (s *PageService) Update(ctx context.Context, slug string, editor *models.User, in PageInput) (*models.Page, error) {
	current, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	title, body, tags, image := current.Title, current.Body, current.Tags, current.HeaderImageURL
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
	}
	if in.Body != nil {
		body = *in.Body
	}
	if in.Tags != nil {
		tags = NormalizeTags(in.Tags)
		if len(tags) == 0 {
			return nil, InvalidArgument("at least one tag is required")
		}
	}
	if in.HeaderImageURL != nil {
		image = in.HeaderImageURL
	}

	if title == current.Title && body == current.Body && sameTags(tags, current.Tags) && sameURL(image, current.HeaderImageURL) {
		return current, nil
	}

	page, err := scanPage(s.db.Pool.QueryRow(ctx, `
		UPDATE wiki_pages SET
			title = $1, body = $2, tags = $3, header_image_url = $4,
			last_editor_id = $5, last_editor_display_name = $6, last_editor_avatar_url = $7,
			updated_at = NOW()
		WHERE id = $8
		RETURNING `+pageColumns,
		title, body, tags, image, editor.ID, editor.DisplayName, editor.AvatarURL, current.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("page not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update page: %w", err)
	}
	return page, nil
}

func (s *PageService) SetStatus(ctx context.Context, slug string, status models.PageStatus) (*models.Page, error) {
	if status != models.PageStatusDraft && status != models.PageStatusPublished {
		return nil, InvalidArgument("invalid status")
	}
	page, err := scanPage(s.db.Pool.QueryRow(ctx, `
		UPDATE wiki_pages SET status = $1, updated_at = NOW()
		WHERE slug = $2
		RETURNING `+pageColumns,
		string(status), slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFound("page not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set page status: %w", err)
	}
	return page, nil
}

func (s *PageService) Delete(ctx context.Context, slug string) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM wiki_pages WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NotFound("page not found")
	}
	return nil
}

// IncrementViews bumps the counter and returns the new value.
func (s *PageService) IncrementViews(ctx context.Context, slug string) (int64, error) {
	var count int64
	err := s.db.Pool.QueryRow(ctx, `
		UPDATE wiki_pages SET view_count = view_count + 1
		WHERE slug = $1
		RETURNING view_count
	`, slug).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, NotFound("page not found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count view: %w", err)
	}
	return count, nil
}

// ResetViewCounts zeroes every page's counter and returns how many changed.
func (s *PageService) ResetViewCounts(ctx context.Context) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx, `UPDATE wiki_pages SET view_count = 0 WHERE view_count <> 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset view counts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if !set[t] {
			return false
		}
	}
	return true
}

func sameURL(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
