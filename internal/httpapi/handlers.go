package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/refdata-io/lookupd"
)

// entityHandler serves the REST surface for one lookup entity type. All
// entity types share the same handler; the service's descriptor supplies
// the per-type behavior.
type entityHandler struct {
	service *lookupd.LookupService
	logger  lookupd.Logger
}

func newEntityHandler(service *lookupd.LookupService, logger lookupd.Logger) *entityHandler {
	return &entityHandler{service: service, logger: logger}
}

// includeDeleted reports whether this request should see soft-deleted
// records. The widened view is admin-only; anyone else asking for it is
// refused outright rather than silently served the live view.
func includeDeleted(c *gin.Context) (bool, error) {
	if c.Query("includeSoftDeleted") != "true" {
		return false, nil
	}
	cl, _ := caller(c)
	if !cl.IsAdmin() {
		return false, lookupd.WithMessage(lookupd.ErrForbidden, "only administrators may view soft-deleted records")
	}
	return true, nil
}

func pageCriteria(c *gin.Context) (lookupd.PageCriteria, error) {
	page, err := intQuery(c, "page")
	if err != nil {
		return lookupd.PageCriteria{}, err
	}
	perPage, err := intQuery(c, "perPage")
	if err != nil {
		return lookupd.PageCriteria{}, err
	}
	return lookupd.NormalizePage(page, perPage)
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, lookupd.WithMessage(lookupd.ErrValidation, "%s must be an integer", name)
	}
	return v, nil
}

// list handles GET and HEAD on the collection. Declared business fields
// are usable as exact-match query filters.
func (h *entityHandler) list(c *gin.Context) {
	pc, err := pageCriteria(c)
	if err != nil {
		writeError(c, err)
		return
	}

	withDeleted, err := includeDeleted(c)
	if err != nil {
		writeError(c, err)
		return
	}

	filters := make(map[string]string)
	for _, field := range h.service.Descriptor().BusinessFields() {
		if v := c.Query(field); v != "" {
			filters[field] = v
		}
	}

	result, err := h.service.List(c.Request.Context(), pc, filters, withDeleted)
	if err != nil {
		writeError(c, err)
		return
	}

	setPageHeaders(c, result)
	c.JSON(http.StatusOK, result.Records)
}

func (h *entityHandler) get(c *gin.Context) {
	withDeleted, err := includeDeleted(c)
	if err != nil {
		writeError(c, err)
		return
	}
	rec, err := h.service.Get(c.Request.Context(), c.Param("id"), withDeleted)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *entityHandler) create(c *gin.Context) {
	var input lookupd.Record
	if err := c.ShouldBindJSON(&input); err != nil {
		writeError(c, lookupd.WithMessage(lookupd.ErrValidation, "invalid request body"))
		return
	}
	rec, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *entityHandler) update(partial bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input lookupd.Record
		if err := c.ShouldBindJSON(&input); err != nil {
			writeError(c, lookupd.WithMessage(lookupd.ErrValidation, "invalid request body"))
			return
		}
		rec, err := h.service.Update(c.Request.Context(), c.Param("id"), input, partial)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// remove handles DELETE. The destroy query flag switches from soft delete
// to permanent removal and is restricted to administrators.
func (h *entityHandler) remove(c *gin.Context) {
	destroy := c.Query("destroy") == "true"
	if destroy {
		if cl, _ := caller(c); !cl.IsAdmin() {
			writeError(c, lookupd.ErrForbidden)
			return
		}
	}
	if err := h.service.Remove(c.Request.Context(), c.Param("id"), destroy); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// distinct serves the device vocabulary endpoints (/types, /manufacturers,
// /models): the sorted unique live values of one field. Other business
// fields narrow the scan, so /models?manufacturer=Acme lists Acme models.
func (h *entityHandler) distinct(field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := make(map[string]string)
		for _, f := range h.service.Descriptor().BusinessFields() {
			if f == field {
				continue
			}
			if v := c.Query(f); v != "" {
				filters[f] = v
			}
		}
		values, err := h.service.Distinct(c.Request.Context(), field, filters)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, values)
	}
}
