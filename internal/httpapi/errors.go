package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/refdata-io/lookupd"
)

// writeError maps a service error onto the wire. Known error kinds keep
// their caller-facing message; anything unrecognized is masked as a generic
// internal error so internals never leak.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := lookupd.Message(err)

	switch {
	case lookupd.IsValidation(err), errors.Is(err, lookupd.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, lookupd.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, lookupd.ErrForbidden):
		status = http.StatusForbidden
	case lookupd.IsNotFound(err):
		status = http.StatusNotFound
	case lookupd.IsConflict(err):
		status = http.StatusConflict
	case lookupd.IsTransactionFailure(err):
		status = http.StatusInternalServerError
	case errors.Is(err, lookupd.ErrUnavailable), errors.Is(err, lookupd.ErrBackendUnavailable):
		status = http.StatusServiceUnavailable
	default:
		message = "Internal server error"
	}

	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
