package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"booking-service/internal/models"
	"booking-service/internal/service"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	lockService        *service.LockService
	reservationService *service.ReservationService
	store              *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(lockService *service.LockService, reservationService *service.ReservationService, st *store.Store) *Handler {
	return &Handler{
		lockService:        lockService,
		reservationService: reservationService,
		store:              st,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", identityMiddleware())
	{
		v1.GET("/grid", h.getGrid)
		v1.POST("/grid/lock", h.lockUnit)
		v1.POST("/grid/unlock", h.unlockUnit)
		v1.GET("/grid/units/:id/lock", h.queryLock)
		v1.POST("/grid/reserve", h.reserveUnit)
		v1.POST("/grid/confirm-reservation", h.confirmReservation)
		v1.POST("/grid/cancel-reservation", h.cancelReservation)
		v1.POST("/grid/complete-reservation", h.completeReservation)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// identityMiddleware extracts the verified caller identity supplied by
// the authentication boundary upstream of this service.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader("X-User-Id"), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing caller identity"})
			return
		}

		role := c.GetHeader("X-User-Role")
		if role == "" {
			role = models.RoleAgent
		}

		c.Set("callerID", userID)
		c.Set("callerRole", role)
		c.Next()
	}
}

func callerIdentity(c *gin.Context) (int64, string) {
	return c.GetInt64("callerID"), c.GetString("callerRole")
}

// getGrid returns the sales grid, optionally filtered by project or building
func (h *Handler) getGrid(c *gin.Context) {
	var projectID, buildingID *int64
	if raw := c.Query("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project_id"})
			return
		}
		projectID = &id
	}
	if raw := c.Query("building_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid building_id"})
			return
		}
		buildingID = &id
	}

	units, err := h.store.ListGridUnits(c.Request.Context(), projectID, buildingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load grid"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"units": units})
}

// LockUnitRequest is the lock endpoint payload.
type LockUnitRequest struct {
	UnitID     int64  `json:"unit_id" binding:"required"`
	TTLMinutes int    `json:"ttl_minutes,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

func (h *Handler) lockUnit(c *gin.Context) {
	var req LockUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	callerID, _ := callerIdentity(c)

	handle, err := h.lockService.Acquire(c.Request.Context(), req.UnitID, callerID,
		time.Duration(req.TTLMinutes)*time.Minute, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Unit locked successfully",
		"lock_id":    handle.LockID,
		"expires_at": handle.ExpiresAt,
	})
}

// UnlockUnitRequest is the unlock endpoint payload.
type UnlockUnitRequest struct {
	LockID int64 `json:"lock_id" binding:"required"`
}

func (h *Handler) unlockUnit(c *gin.Context) {
	var req UnlockUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	callerID, callerRole := callerIdentity(c)

	if err := h.lockService.Release(c.Request.Context(), req.LockID, callerID, callerRole); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unit unlocked successfully"})
}

func (h *Handler) queryLock(c *gin.Context) {
	unitID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid unit ID"})
		return
	}

	snapshot, err := h.lockService.Query(c.Request.Context(), unitID)
	if err != nil {
		respondError(c, err)
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusOK, gin.H{"lock": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"lock": gin.H{
		"lock_id":               snapshot.LockID,
		"holder_id":             snapshot.HolderID,
		"expires_at":            snapshot.ExpiresAt,
		"remaining_ttl_seconds": int64(snapshot.Remaining.Seconds()),
	}})
}

// ReserveUnitRequest is the reserve endpoint payload.
type ReserveUnitRequest struct {
	UnitID        int64  `json:"unit_id" binding:"required"`
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func (h *Handler) reserveUnit(c *gin.Context) {
	var req ReserveUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	callerID, _ := callerIdentity(c)

	handle, err := h.reservationService.Reserve(c.Request.Context(), service.ReserveInput{
		UnitID:        req.UnitID,
		HolderID:      callerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Unit reserved successfully",
		"reservation_id": handle.ReservationID,
		"price":          handle.Price,
	})
}

// ReservationActionRequest identifies a reservation for confirm,
// cancel and complete.
type ReservationActionRequest struct {
	ReservationID int64 `json:"reservation_id" binding:"required"`
}

func (h *Handler) confirmReservation(c *gin.Context) {
	h.reservationAction(c, h.reservationService.Confirm, "Reservation confirmed successfully")
}

func (h *Handler) cancelReservation(c *gin.Context) {
	h.reservationAction(c, h.reservationService.Cancel, "Reservation cancelled successfully")
}

func (h *Handler) completeReservation(c *gin.Context) {
	h.reservationAction(c, h.reservationService.Complete, "Reservation completed successfully")
}

func (h *Handler) reservationAction(c *gin.Context, action func(ctx context.Context, reservationID, callerID int64, callerRole string) error, okMessage string) {
	var req ReservationActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	callerID, callerRole := callerIdentity(c)

	if err := action(c.Request.Context(), req.ReservationID, callerID, callerRole); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": okMessage})
}

// respondError maps typed service failures to HTTP responses without
// leaking store internals.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrUnitNotFound),
		errors.Is(err, models.ErrLockNotFound),
		errors.Is(err, models.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnitNotAvailable),
		errors.Is(err, models.ErrLockAlreadyInactive),
		errors.Is(err, models.ErrReservationNotPending),
		errors.Is(err, models.ErrReservationNotConfirmed),
		errors.Is(err, models.ErrReservationTerminal),
		errors.Is(err, models.ErrLockQuotaExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrContention):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
