package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
	"github.com/roach88/querybuilder/internal/session"
	"github.com/roach88/querybuilder/internal/store"
)

// editRequest starts from at most one of Query, CompositeQuery, ViewID or
// Entries. Without any of them the default query for DataSource is used.
type editRequest struct {
	Query          *queryir.Query             `json:"query"`
	CompositeQuery *envelope.CompositeQuery   `json:"compositeQuery"`
	ViewID         string                     `json:"viewId"`
	Entries        map[string]json.RawMessage `json:"entries"`
	Kinds          map[string]envelope.Kind   `json:"kinds"`
	DataSource     queryir.DataSource         `json:"dataSource"`
	PanelType      string                     `json:"panelType"`
	Actions        []json.RawMessage          `json:"actions" validate:"required,min=1,max=200"`
}

type rejectedAction struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// revision is the query fingerprint after the action at Index took effect.
type revision struct {
	Index       int    `json:"index"`
	Fingerprint string `json:"fingerprint"`
}

type editResponse struct {
	Query          queryir.Query           `json:"query"`
	CompositeQuery envelope.CompositeQuery `json:"compositeQuery"`
	Applied        int                     `json:"applied"`
	Rejected       []rejectedAction        `json:"rejected"`
	Revisions      []revision              `json:"revisions"`
}

// edit replays a list of edit actions against a query. A rejected action is
// reported and skipped; the rest still apply. Every action that changed the
// query is listed in revisions with the fingerprint of the result.
func (s *Server) edit(c echo.Context) error {
	var req editRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	initial, ok, err := s.initialQuery(c, req)
	if !ok {
		return err
	}

	sess := session.New(initial, s.log)
	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	ctx := c.Request().Context()
	resp := editResponse{Rejected: []rejectedAction{}, Revisions: []revision{}}
	for i, raw := range req.Actions {
		a, err := session.DecodeAction(raw)
		if err != nil {
			resp.Rejected = append(resp.Rejected, rejectedAction{Index: i, Error: err.Error()})
			continue
		}

		_, isUndo := a.(session.Undo)
		changes := !isUndo || sess.CanUndo()
		if _, err := sess.Dispatch(a); err != nil {
			resp.Rejected = append(resp.Rejected, rejectedAction{Index: i, Error: err.Error()})
			continue
		}
		resp.Applied++
		if !changes {
			continue
		}

		select {
		case q := <-updates:
			fp, err := ir.Fingerprint(ir.DomainQuery, q)
			if err != nil {
				return err
			}
			resp.Revisions = append(resp.Revisions, revision{Index: i, Fingerprint: fp})
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	panel := queryir.PanelList
	if req.PanelType != "" {
		panel = parsePanel(req.PanelType)
	}
	resp.Query = sess.Current()
	resp.CompositeQuery = envelope.FromQuery(resp.Query, panel)
	return Success(c, resp)
}

// initialQuery resolves the query the actions start from. ok is false when
// a reply was written or err must be handled by the caller.
func (s *Server) initialQuery(c echo.Context, req editRequest) (q queryir.Query, ok bool, err error) {
	sources := 0
	for _, set := range []bool{req.Query != nil, req.CompositeQuery != nil, req.ViewID != "", len(req.Entries) > 0} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return q, false, Fail(c, http.StatusBadRequest, CodeValidationFailed,
			"only one of query, compositeQuery, viewId, entries may be set")
	}
	if len(req.Kinds) > 0 && len(req.Entries) == 0 {
		return q, false, Fail(c, http.StatusBadRequest, CodeValidationFailed, "kinds requires entries")
	}

	ds := queryir.DataSourceLogs
	if req.DataSource != "" {
		if !req.DataSource.Valid() {
			return q, false, Fail(c, http.StatusBadRequest, CodeValidationFailed, "dataSource must be one of metrics, logs, traces")
		}
		ds = req.DataSource
	}

	switch {
	case req.Query != nil:
		return *req.Query, true, nil

	case req.CompositeQuery != nil:
		return envelope.ToQuery(*req.CompositeQuery), true, nil

	case req.ViewID != "":
		if s.store == nil {
			return q, false, Fail(c, http.StatusBadRequest, CodeValidationFailed, "viewId needs a views store")
		}
		view, err := s.store.GetView(c.Request().Context(), req.ViewID)
		if errors.Is(err, store.ErrNotFound) {
			return q, false, Fail(c, http.StatusNotFound, CodeNotFound, "view not found")
		}
		if err != nil {
			return q, false, err
		}
		q = envelope.ToQuery(view.Query)
		q.ID = view.ID
		return q, true, nil

	case len(req.Entries) > 0:
		kinds := req.Kinds
		if len(kinds) == 0 {
			kinds = envelope.MigrateLegacyKinds(req.Entries)
		}
		b, err := envelope.TransformQueryBuilderDataModel(req.Entries, kinds)
		if err != nil {
			return q, false, Fail(c, http.StatusBadRequest, CodeValidationFailed, err.Error())
		}
		q = queryir.NewQuery(ds)
		q.Builder = b
		return q, true, nil
	}
	return queryir.NewQuery(ds), true, nil
}
