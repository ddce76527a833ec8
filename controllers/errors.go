package controllers

import (
	"net/http"
	"strconv"

	"room-booking/middleware"
	"room-booking/services"
	"room-booking/utils"

	"github.com/gin-gonic/gin"
)

var kindStatus = map[services.Kind]int{
	services.KindValidation:   http.StatusBadRequest,
	services.KindUnauthorized: http.StatusUnauthorized,
	services.KindForbidden:    http.StatusForbidden,
	services.KindNotFound:     http.StatusNotFound,
	services.KindConflict:     http.StatusConflict,
	services.KindTransient:    http.StatusServiceUnavailable,
	services.KindInternal:     http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind services.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

const retryAfterSeconds = 1

func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status := StatusFor(kind)
	message := err.Error()

	logger := middleware.LoggerFrom(c)
	switch kind {
	case services.KindInternal:
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		message = "internal server error"
	case services.KindTransient:
		logger.Warn().Err(err).Str("path", c.FullPath()).Msg("transient failure")
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		message = services.ErrTransient.Error()
	default:
		logger.Debug().Err(err).Str("code", services.CodeOf(err)).Msg("request rejected")
	}

	utils.JSONError(c, status, services.CodeOf(err), string(kind), message)
}

func badRequest(c *gin.Context, message string) {
	utils.JSONError(c, http.StatusBadRequest, "error.badRequest", string(services.KindValidation), message)
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func currentUser(c *gin.Context) (uint, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		utils.JSONError(c, http.StatusUnauthorized, services.CodeOf(services.ErrInvalidToken), string(services.KindUnauthorized), "authentication required")
		return 0, false
	}
	return id, true
}
