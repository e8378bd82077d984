package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/roach88/querybuilder/internal/envelope"
)

// Listing limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ErrNotFound is returned when a view id does not exist.
var ErrNotFound = errors.New("view not found")

// View is a saved composite query.
type View struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	SourcePage    string                  `json:"sourcePage"`
	Query         envelope.CompositeQuery `json:"compositeQuery"`
	Fingerprint   string                  `json:"fingerprint"`
	SchemaVersion string                  `json:"schemaVersion"`
	CreatedAt     time.Time               `json:"createdAt"`
}

// NewView is the input to SaveView.
type NewView struct {
	Name       string
	SourcePage string
	Query      envelope.CompositeQuery
}

func (nv NewView) validate() error {
	if strings.TrimSpace(nv.Name) == "" {
		return errors.New("name is required")
	}
	if nv.SourcePage == "" {
		return errors.New("source page is required")
	}
	if len(nv.Query.Queries) == 0 {
		return errors.New("composite query has no queries")
	}
	return nil
}

// Page is one page of a listing. NextCursor is empty on the last page.
type Page struct {
	Views      []View `json:"views"`
	NextCursor string `json:"nextCursor,omitempty"`
}

var viewColumns = []any{
	"id", "name", "source_page", "composite_query", "fingerprint", "schema_version", "created_at",
}

func (s *Store) selectViews() *goqu.SelectDataset {
	return s.dialect.From(viewsTable).Prepared(true).Select(viewColumns...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanView(row rowScanner) (View, error) {
	var (
		v         View
		composite string
		createdAt int64
	)
	if err := row.Scan(&v.ID, &v.Name, &v.SourcePage, &composite, &v.Fingerprint, &v.SchemaVersion, &createdAt); err != nil {
		return View{}, err
	}
	cq, err := unmarshalComposite(composite)
	if err != nil {
		return View{}, fmt.Errorf("view %q: %w", v.ID, err)
	}
	v.Query = cq
	v.CreatedAt = time.UnixMilli(createdAt).UTC()
	return v, nil
}

// GetView returns the view with the given id.
// Returns ErrNotFound if no such view exists.
func (s *Store) GetView(ctx context.Context, id string) (View, error) {
	query, args, err := s.selectViews().Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return View{}, fmt.Errorf("get view: build: %w", err)
	}

	v, err := scanView(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return View{}, fmt.Errorf("get view %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return View{}, fmt.Errorf("get view: %w", err)
	}
	return v, nil
}

// ListViews returns views saved from sourcePage, newest first. An empty
// sourcePage lists every page. cursor is the NextCursor of the previous
// page, or empty for the first page. limit <= 0 means DefaultListLimit and
// is capped at MaxListLimit.
func (s *Store) ListViews(ctx context.Context, sourcePage, cursor string, limit int) (Page, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	ds := s.selectViews().
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc()).
		Limit(uint(limit + 1))
	if sourcePage != "" {
		ds = ds.Where(goqu.C("source_page").Eq(sourcePage))
	}
	if cursor != "" {
		c, err := decodeCursor(cursor)
		if err != nil {
			return Page{}, fmt.Errorf("list views: %w", err)
		}
		ds = ds.Where(goqu.Or(
			goqu.C("created_at").Lt(c.createdAt),
			goqu.And(goqu.C("created_at").Eq(c.createdAt), goqu.C("id").Lt(c.id)),
		))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return Page{}, fmt.Errorf("list views: build: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	views := []View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return Page{}, fmt.Errorf("list views: %w", err)
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("list views: iterate: %w", err)
	}

	page := Page{Views: views}
	if len(views) > limit {
		page.Views = views[:limit]
		last := page.Views[limit-1]
		page.NextCursor = encodeCursor(cursorOf(last))
	}
	return page, nil
}

func cursorOf(v View) cursor {
	return cursor{createdAt: v.CreatedAt.UnixMilli(), id: v.ID}
}
