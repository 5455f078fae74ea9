package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
	"github.com/Geordiekingsbeer/stripe-serverless/services/admin-service/internal/service"
)

// AdminService is implemented by *service.AdminSvc.
type AdminService interface {
	CreateBooking(ctx context.Context, nb service.NewBooking) ([]booking.Slot, bool, error)
	SaveLayout(ctx context.Context, updates []booking.TablePosition) ([]booking.TablePosition, error)
}

type createBookingBody struct {
	TenantID   string `json:"tenant_id"`
	TableID    *int   `json:"table_id"`
	TableIDs   []int  `json:"table_ids"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Notes      string `json:"notes"`
	HostNotes  string `json:"host_notes"`
	StaffEmail string `json:"staff_email"`
}

type saveLayoutBody struct {
	Updates []booking.TablePosition `json:"updates"`
}

type Handlers struct {
	svc AdminService
	log *zap.Logger
}

func NewHandlers(svc AdminService, log *zap.Logger) *Handlers {
	return &Handlers{svc: svc, log: log}
}

func (h *Handlers) CreateBooking(c *gin.Context) {
	var body createBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	ids := body.TableIDs
	if len(ids) == 0 && body.TableID != nil {
		ids = []int{*body.TableID}
	}
	notes := body.Notes
	if notes == "" {
		notes = body.HostNotes
	}

	rows, queued, err := h.svc.CreateBooking(c.Request.Context(), service.NewBooking{
		TenantID:   body.TenantID,
		TableIDs:   ids,
		Date:       body.Date,
		StartTime:  body.StartTime,
		EndTime:    body.EndTime,
		Notes:      notes,
		StaffEmail: body.StaffEmail,
	})
	if err != nil {
		h.fail(c, "admin booking", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "booking": rows, "notification_queued": queued})
}

func (h *Handlers) SaveLayout(c *gin.Context) {
	var body saveLayoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid payload"})
		return
	}
	saved, err := h.svc.SaveLayout(c.Request.Context(), body.Updates)
	if err != nil {
		h.fail(c, "save layout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": saved, "message": "Layout saved successfully."})
}

func (h *Handlers) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, service.ErrInvalidRequest) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	h.log.Error(op+" failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "database write failed"})
}

// NewRouter returns the admin routes behind a CORS layer limited to
// allowedOrigins.
func NewRouter(h *Handlers, allowedOrigins []string, log *zap.Logger) http.Handler {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), func(c *gin.Context) {
		c.Next()
		log.Debug("request", zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()), zap.Int("status", c.Writer.Status()))
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	admin := r.Group("/admin")
	admin.POST("/bookings", h.CreateBooking)
	admin.POST("/layout", h.SaveLayout)

	return cors.New(cors.Options{
		AllowedOrigins:       allowedOrigins,
		AllowedMethods:       []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type"},
		OptionsSuccessStatus: http.StatusOK,
	}).Handler(r)
}
