package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/store"
)

type saveViewRequest struct {
	Name           string                  `json:"name" validate:"required"`
	SourcePage     string                  `json:"sourcePage" validate:"required"`
	CompositeQuery envelope.CompositeQuery `json:"compositeQuery"`
}

type saveViewResponse struct {
	View     store.View `json:"view"`
	Inserted bool       `json:"inserted"`
}

// saveView stores a view. A new view replies 201; saving a query the page
// already holds replies 200 with the existing view.
func (s *Server) saveView(c echo.Context) error {
	var req saveViewRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	if len(req.CompositeQuery.Queries) == 0 {
		return Fail(c, http.StatusBadRequest, CodeValidationFailed, "compositeQuery has no queries")
	}

	view, inserted, err := s.store.SaveView(c.Request().Context(), store.NewView{
		Name:       req.Name,
		SourcePage: req.SourcePage,
		Query:      req.CompositeQuery,
	})
	if err != nil {
		return err
	}

	s.log.Debug().Str("view", view.ID).Bool("inserted", inserted).Msg("View saved")
	if inserted {
		return Created(c, saveViewResponse{View: view, Inserted: true})
	}
	return Success(c, saveViewResponse{View: view, Inserted: false})
}

// listViews pages through views, newest first. Query parameters:
// sourcePage, cursor and limit.
func (s *Server) listViews(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Fail(c, http.StatusBadRequest, CodeValidationFailed, "limit must be a non-negative integer")
		}
		limit = n
	}

	page, err := s.store.ListViews(c.Request().Context(), c.QueryParam("sourcePage"), c.QueryParam("cursor"), limit)
	if errors.Is(err, store.ErrInvalidCursor) {
		return Fail(c, http.StatusBadRequest, CodeInvalidCursor, MessageFor(CodeInvalidCursor))
	}
	if err != nil {
		return err
	}
	return Success(c, page)
}

func (s *Server) getView(c echo.Context) error {
	view, err := s.store.GetView(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return Fail(c, http.StatusNotFound, CodeNotFound, "view not found")
	}
	if err != nil {
		return err
	}
	return Success(c, view)
}

func (s *Server) deleteView(c echo.Context) error {
	err := s.store.DeleteView(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return Fail(c, http.StatusNotFound, CodeNotFound, "view not found")
	}
	if err != nil {
		return err
	}
	return Success(c, map[string]string{"id": c.Param("id")})
}
