package api

import (
	"net/http"

	"OptiBase/internal/domain/models"
	domrepo "OptiBase/internal/domain/repository"
	"OptiBase/internal/service/cache"
	xhttp "OptiBase/pkg/http"
	xlogger "OptiBase/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StatusSource exposes the orchestrator snapshot to the monitor.
type StatusSource interface {
	Status() models.SessionStatus
}

// MonitorHandler serves the ops surface: liveness, session status, and
// weekday master inspection.
type MonitorHandler struct {
	logger *xlogger.Logger
	status StatusSource
	store  domrepo.MasterStore
	snaps  *cache.SnapshotCache
}

func NewMonitorHandler(logger *xlogger.Logger, status StatusSource, store domrepo.MasterStore, snaps *cache.SnapshotCache) *MonitorHandler {
	return &MonitorHandler{logger: logger, status: status, store: store, snaps: snaps}
}

func (h *MonitorHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/master", h.Master)
}

// Healthz reports liveness plus the session state when a session is running.
func (h *MonitorHandler) Healthz(c echo.Context) error {
	body := map[string]interface{}{"status": "ok"}
	if h.status != nil {
		body["state"] = h.status.Status().State
	}
	return c.JSON(http.StatusOK, body)
}

// Status returns the full session snapshot.
func (h *MonitorHandler) Status(c echo.Context) error {
	if h.status == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no session running"))
	}
	return xhttp.SuccessResponse(c, h.status.Status())
}

type masterResponse struct {
	Index   string             `json:"index"`
	Expiry  string             `json:"expiry"`
	Offset  string             `json:"offset"`
	Weekday string             `json:"weekday"`
	Rows    []models.MasterRow `json:"rows"`
}

// Master returns the rows of one weekday master, served from a short-lived
// snapshot cache.
func (h *MonitorHandler) Master(c echo.Context) error {
	req := &models.MasterRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := req.Key()
	cacheKey := h.store.Path(key)

	buckets, ok := h.cached(cacheKey)
	if !ok {
		var err error
		buckets, err = h.store.Read(key)
		if err != nil {
			h.logger.Error("master read failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("master read failed").WithError(err))
		}
		if h.snaps != nil {
			h.snaps.Set(cacheKey, buckets)
		}
	}
	if len(buckets) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf(
			"no rows for %s/%s/%s/%s", key.Index, key.ExpiryBucket, key.StrikeOffset, key.Weekday))
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, masterResponse{
		Index:   key.Index,
		Expiry:  key.ExpiryBucket,
		Offset:  key.StrikeOffset,
		Weekday: key.Weekday,
		Rows:    buckets.Sorted(),
	})
}

func (h *MonitorHandler) cached(key string) (models.MasterBuckets, bool) {
	if h.snaps == nil {
		return nil, false
	}
	return h.snaps.Get(key)
}
