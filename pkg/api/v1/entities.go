package apiv1

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/facilityhub/facility/pkg/gateway/services"
	"github.com/facilityhub/facility/pkg/types"
)

const (
	MIMEMergePatchJSON = "application/merge-patch+json"
)

// EntityGroup serves the CRUD routes of one record kind
type EntityGroup[T types.Entity[T]] struct {
	routerGroup *echo.Group
	service     *services.EntityService[T]
	newRecord   func() T
	middleware  []echo.MiddlewareFunc
}

// NewEntityGroup registers /{kinds} CRUD routes on routerGroup. newRecord
// allocates an empty record to decode request bodies into. Middleware is
// attached per route; group middleware would make echo answer unmatched
// methods with 404 instead of 405.
func NewEntityGroup[T types.Entity[T]](routerGroup *echo.Group, service *services.EntityService[T], newRecord func() T, m ...echo.MiddlewareFunc) *EntityGroup[T] {
	g := &EntityGroup[T]{
		routerGroup: routerGroup,
		service:     service,
		newRecord:   newRecord,
		middleware:  m,
	}
	g.registerRoutes()
	return g
}

func (g *EntityGroup[T]) registerRoutes() {
	g.routerGroup.POST("", g.Create, g.middleware...)
	g.routerGroup.GET("", g.List, g.middleware...)
	g.routerGroup.GET("/:id", g.Get, g.middleware...)
	g.routerGroup.PUT("/:id", g.Replace, g.middleware...)
	g.routerGroup.PATCH("/:id", g.MergePatch, g.middleware...)
	g.routerGroup.DELETE("/:id", g.Delete, g.middleware...)
}

// RegisterSearch adds GET {path}?query= against the search mirror
func (g *EntityGroup[T]) RegisterSearch(routerGroup *echo.Group, path string) {
	routerGroup.GET(path, g.Search, g.middleware...)
}

// RegisterByParent adds GET {path}/:{param} listing the children of a parent
func (g *EntityGroup[T]) RegisterByParent(routerGroup *echo.Group, path, param string) {
	routerGroup.GET(fmt.Sprintf("%s/:%s", path, param), func(c echo.Context) error {
		return g.listByParent(c, param)
	}, g.middleware...)
}

// Create stores a new record and returns it with 201 and a Location header
func (g *EntityGroup[T]) Create(c echo.Context) error {
	kind := g.service.Kind
	log.Debug().Str("kind", string(kind)).Msg("create request")

	record, err := g.decode(c)
	if err != nil {
		return err
	}

	stored, err := g.service.Create(c.Request().Context(), record)
	if err != nil {
		return g.mutationError(c, err)
	}

	id := *stored.GetID()
	setCreatedAlert(c, kind, id)
	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("%s/%s/%d", HttpServerBaseRoute, kind.Plural(), id))
	return c.JSON(http.StatusCreated, stored)
}

// Replace overwrites a record; the body id must match the path id
func (g *EntityGroup[T]) Replace(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	record, err := g.decode(c)
	if err != nil {
		return err
	}

	stored, err := g.service.Replace(c.Request().Context(), id, record)
	if err != nil {
		return g.mutationError(c, err)
	}

	setUpdatedAlert(c, g.service.Kind, id)
	return c.JSON(http.StatusOK, stored)
}

// MergePatch updates the fields present in the body
func (g *EntityGroup[T]) MergePatch(c echo.Context) error {
	if err := requirePatchContentType(c); err != nil {
		return err
	}

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	record, err := g.decode(c)
	if err != nil {
		return err
	}

	stored, err := g.service.MergePatch(c.Request().Context(), id, record)
	if err != nil {
		return g.mutationError(c, err)
	}

	setUpdatedAlert(c, g.service.Kind, id)
	return c.JSON(http.StatusOK, stored)
}

// List returns one page of records; eagerload=false leaves parents as bare ids
func (g *EntityGroup[T]) List(c echo.Context) error {
	pageable, err := parsePageable(c)
	if err != nil {
		return g.readError(c, err)
	}

	eager := true
	if v := c.QueryParam("eagerload"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			eager = parsed
		}
	}

	page, err := g.service.List(c.Request().Context(), pageable, eager)
	if err != nil {
		return g.readError(c, err)
	}

	setPaginationHeaders(c, page)
	return c.JSON(http.StatusOK, page.Content)
}

// Get returns a record with its parent resolved, or an empty 404
func (g *EntityGroup[T]) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	record, err := g.service.Get(c.Request().Context(), id)
	if err != nil {
		return g.readError(c, err)
	}

	return c.JSON(http.StatusOK, record)
}

func (g *EntityGroup[T]) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := g.service.Delete(c.Request().Context(), id); err != nil {
		return g.mutationError(c, err)
	}

	setDeletedAlert(c, g.service.Kind, id)
	return c.NoContent(http.StatusNoContent)
}

// Search runs ?query= against the search mirror
func (g *EntityGroup[T]) Search(c echo.Context) error {
	pageable, err := parsePageable(c)
	if err != nil {
		return g.readError(c, err)
	}

	page, err := g.service.Search(c.Request().Context(), c.QueryParam("query"), pageable)
	if err != nil {
		return g.readError(c, err)
	}

	setPaginationHeaders(c, page)
	return c.JSON(http.StatusOK, page.Content)
}

func (g *EntityGroup[T]) listByParent(c echo.Context, param string) error {
	parentID, err := pathID(c, param)
	if err != nil {
		return err
	}

	pageable, err := parsePageable(c)
	if err != nil {
		return g.readError(c, err)
	}

	page, err := g.service.ListByParent(c.Request().Context(), parentID, pageable)
	if err != nil {
		return g.readError(c, err)
	}

	setPaginationHeaders(c, page)
	return c.JSON(http.StatusOK, page.Content)
}

func (g *EntityGroup[T]) decode(c echo.Context) (T, error) {
	record := g.newRecord()
	if err := json.NewDecoder(c.Request().Body).Decode(record); err != nil {
		var zero T
		log.Debug().Err(err).Str("kind", string(g.service.Kind)).Msg("invalid request body")
		return zero, HTTPBadRequest("invalid request body")
	}
	return record, nil
}

// mutationError maps service errors on POST/PUT/PATCH/DELETE. A missing
// record is a bad request here, not a 404.
func (g *EntityGroup[T]) mutationError(c echo.Context, err error) error {
	kind := g.service.Kind

	var verr *types.ValidationError
	var cerr *types.ConstraintError
	var notFound *types.ErrRecordNotFound

	switch {
	case errors.As(err, &verr):
		setFailureAlert(c, kind, verr.Key)
		return BadRequestResponse(c, kind, verr.Key, verr.Message, verr.Fields)
	case errors.As(err, &cerr):
		setFailureAlert(c, kind, cerr.Key())
		return BadRequestResponse(c, kind, cerr.Key(), cerr.Error(), nil)
	case errors.As(err, &notFound):
		setFailureAlert(c, kind, types.ErrKeyIDNotFound)
		return BadRequestResponse(c, kind, types.ErrKeyIDNotFound, "entity not found", nil)
	}

	log.Error().Err(err).Str("kind", string(kind)).Str("method", c.Request().Method).Msg("request failed")
	return ErrorResponse(c, http.StatusInternalServerError, err.Error())
}

// readError maps service errors on GET routes
func (g *EntityGroup[T]) readError(c echo.Context, err error) error {
	var verr *types.ValidationError
	switch {
	case types.IsNotFound(err):
		return c.NoContent(http.StatusNotFound)
	case errors.As(err, &verr):
		return BadRequestResponse(c, g.service.Kind, verr.Key, verr.Message, verr.Fields)
	}

	log.Error().Err(err).Str("kind", string(g.service.Kind)).Str("path", c.Path()).Msg("request failed")
	return ErrorResponse(c, http.StatusInternalServerError, err.Error())
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, HTTPBadRequest(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// parsePageable reads page, size and sort. Unparsable page and size fall
// back to their defaults.
func parsePageable(c echo.Context) (types.Pageable, error) {
	pageable := types.DefaultPageable()

	if v, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		pageable.Page = v
	}
	if v, err := strconv.Atoi(c.QueryParam("size")); err == nil {
		pageable.Size = v
	}

	sort, err := types.ParseSort(c.QueryParams()["sort"])
	if err != nil {
		return pageable, &types.ValidationError{Key: types.ErrKeySortInvalid, Message: err.Error()}
	}
	pageable.Sort = sort

	return pageable.Normalize(), nil
}

func requirePatchContentType(c echo.Context) error {
	mediaType, _, err := mime.ParseMediaType(c.Request().Header.Get(echo.HeaderContentType))
	if err != nil {
		return HTTPUnsupportedMediaType("content type must be application/json or " + MIMEMergePatchJSON)
	}

	switch mediaType {
	case echo.MIMEApplicationJSON, MIMEMergePatchJSON:
		return nil
	}
	return HTTPUnsupportedMediaType("content type must be application/json or " + MIMEMergePatchJSON)
}
