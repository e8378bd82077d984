package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/roach88/querybuilder/internal/ir"
)

// SaveView stores a view and returns it with inserted=true.
//
// Views are de-duplicated per source page by the fingerprint of their
// composite query. If the page already holds a view with the same query, that
// view is returned unchanged with inserted=false; the new name is ignored.
func (s *Store) SaveView(ctx context.Context, nv NewView) (view View, inserted bool, err error) {
	if err := nv.validate(); err != nil {
		return View{}, false, fmt.Errorf("save view: %w", err)
	}

	composite, err := marshalComposite(nv.Query)
	if err != nil {
		return View{}, false, fmt.Errorf("save view: %w", err)
	}
	fingerprint, err := ir.Fingerprint(ir.DomainView, nv.Query)
	if err != nil {
		return View{}, false, fmt.Errorf("save view: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return View{}, false, fmt.Errorf("save view: begin tx: %w", err)
	}
	defer tx.Rollback()

	query, args, err := s.selectViews().
		Where(goqu.C("source_page").Eq(nv.SourcePage), goqu.C("fingerprint").Eq(fingerprint)).
		ToSQL()
	if err != nil {
		return View{}, false, fmt.Errorf("save view: build select: %w", err)
	}
	existing, err := scanView(tx.QueryRowContext(ctx, query, args...))
	switch {
	case err == nil:
		if err := tx.Commit(); err != nil {
			return View{}, false, fmt.Errorf("save view: commit (existing): %w", err)
		}
		s.log.Debug().Str("view", existing.ID).Str("page", nv.SourcePage).Msg("view already saved")
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return View{}, false, fmt.Errorf("save view: select existing: %w", err)
	}

	view = View{
		ID:            s.newID(),
		Name:          strings.TrimSpace(nv.Name),
		SourcePage:    nv.SourcePage,
		Query:         nv.Query,
		Fingerprint:   fingerprint,
		SchemaVersion: ir.EnvelopeSchemaVersion,
		CreatedAt:     s.now().UTC().Truncate(time.Millisecond),
	}

	query, args, err = s.dialect.Insert(viewsTable).Prepared(true).Rows(goqu.Record{
		"id":              view.ID,
		"name":            view.Name,
		"source_page":     view.SourcePage,
		"composite_query": composite,
		"fingerprint":     view.Fingerprint,
		"schema_version":  view.SchemaVersion,
		"created_at":      view.CreatedAt.UnixMilli(),
	}).ToSQL()
	if err != nil {
		return View{}, false, fmt.Errorf("save view: build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return View{}, false, fmt.Errorf("save view: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return View{}, false, fmt.Errorf("save view: commit: %w", err)
	}

	s.log.Debug().Str("view", view.ID).Str("page", view.SourcePage).Msg("view saved")
	return view, true, nil
}

// DeleteView removes the view with the given id.
// Returns ErrNotFound if no such view exists.
func (s *Store) DeleteView(ctx context.Context, id string) error {
	query, args, err := s.dialect.Delete(viewsTable).Prepared(true).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("delete view: build: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete view: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete view: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete view %q: %w", id, ErrNotFound)
	}
	return nil
}
