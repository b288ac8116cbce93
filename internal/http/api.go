package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"userbench/internal/domain"
	"userbench/internal/dto"
	"userbench/internal/eventloop"
	"userbench/internal/service"
)

const (
	defaultPage = "0"
	defaultSize = "20"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users  service.UserService
	store  Pinger
	mode   string
	logger *logrus.Logger
}

func NewHandler(users service.UserService, store Pinger, mode string, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:  users,
		store:  store,
		mode:   mode,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestIDMiddleware(), h.logMiddleware(), corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/users", h.createUser)
		api.GET("/users", h.listUsers)
		api.GET("/health", h.health)
	}

	actuator := router.Group("/actuator")
	{
		actuator.GET("/health", h.health)
	}
}

func (h *Handler) createUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(reasonValidation, err))
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *Handler) listUsers(c *gin.Context) {
	page, err := strconv.ParseInt(c.DefaultQuery("page", defaultPage), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": reasonValidation, "message": "invalid page"})
		return
	}
	size, err := strconv.ParseInt(c.DefaultQuery("size", defaultSize), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": reasonValidation, "message": "invalid size"})
		return
	}

	resp, err := h.users.ListUsers(c.Request.Context(), page, size)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			h.logger.WithError(err).Warn("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "mode": h.mode})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP", "mode": h.mode})
}

const (
	reasonValidation  = "validation_failed"
	reasonDuplicate   = "duplicate_user"
	reasonUnavailable = "storage_unavailable"
	reasonOverloaded  = "overloaded"
	reasonInternal    = "internal_error"
	reasonCanceled    = "client_closed_request"
)

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

// writeError maps service errors onto status codes. Nothing is retried here.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, reason := classifyError(err)
	entry := h.logger.WithError(err).WithField("request_id", c.GetString(requestIDKey))
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	c.JSON(status, errorBody(reason, err))
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, reasonValidation
	case errors.Is(err, domain.ErrDuplicateUser):
		return http.StatusConflict, reasonDuplicate
	case errors.Is(err, domain.ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, reasonUnavailable
	case errors.Is(err, eventloop.ErrQueueFull), errors.Is(err, eventloop.ErrClosed):
		return http.StatusServiceUnavailable, reasonOverloaded
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, reasonCanceled
	default:
		return http.StatusInternalServerError, reasonInternal
	}
}

func errorBody(reason string, err error) gin.H {
	msg := err.Error()
	if reason == reasonInternal {
		msg = "internal server error"
	}
	return gin.H{"error": reason, "message": msg}
}
