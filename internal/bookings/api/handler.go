package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-redemption/internal/auth"
	"ms-redemption/internal/bookings"
	"ms-redemption/internal/logger"
	"ms-redemption/internal/models"
	"ms-redemption/internal/qr"
	"ms-redemption/internal/utils"
)

type Handler struct {
	Service *bookings.Service
	QR      *qr.Generator
	Logger  *logger.Logger
}

func NewHandler(service *bookings.Service, gen *qr.Generator, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	if gen == nil {
		gen = qr.NewGenerator(0)
	}
	return &Handler{Service: service, QR: gen, Logger: log}
}

// RegisterRoutes registers the booking admin routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/bookings", func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Post("/", h.IssueBooking)
		r.Get("/", h.ListBookings)
		r.Get("/stats", h.GetStats)
		r.Get("/{bookingID}", h.GetBooking)
		r.Post("/{bookingID}/cancel", h.CancelBooking)
		r.Get("/{bookingID}/qr", h.GetQRCode)
	})
}

// writeServiceError maps service sentinels onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, bookings.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, "Booking not found", err)
	case errors.Is(err, bookings.ErrInvalidBooking):
		utils.WriteError(w, http.StatusBadRequest, "Invalid booking", err)
	case errors.Is(err, bookings.ErrDuplicateCode):
		utils.WriteError(w, http.StatusConflict, "Booking already exists", err)
	case errors.Is(err, bookings.ErrNotCancellable):
		utils.WriteError(w, http.StatusConflict, "Booking cannot be cancelled", err)
	default:
		h.Logger.Error("BOOKINGS", fmt.Sprintf("%s failed: %v", op, err))
		utils.WriteError(w, http.StatusServiceUnavailable, "Booking system unavailable", err)
	}
}

// IssueBooking handles POST /api/bookings
func (h *Handler) IssueBooking(w http.ResponseWriter, r *http.Request) {
	var req bookings.IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	b, err := h.Service.Issue(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, "issue", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Booking issued", b))
}

// ListBookings handles GET /api/bookings?event_id=&status=
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	filter := models.BookingFilter{
		EventID: r.URL.Query().Get("event_id"),
		Status:  models.BookingStatus(r.URL.Query().Get("status")),
	}

	list, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "list", err)
		return
	}
	if list == nil {
		list = []models.Booking{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d booking(s)", len(list)), list))
}

// GetBooking handles GET /api/bookings/{bookingID}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.Get(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeServiceError(w, "get", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking found", b))
}

// CancelBooking handles POST /api/bookings/{bookingID}/cancel
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "bookingID"), auth.UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, "cancel", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking cancelled", b))
}

// GetQRCode handles GET /api/bookings/{bookingID}/qr and returns a PNG
func (h *Handler) GetQRCode(w http.ResponseWriter, r *http.Request) {
	b, err := h.Service.Get(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeServiceError(w, "qr", err)
		return
	}

	png, err := h.QR.Render(b.QRCode)
	if err != nil {
		h.Logger.Error("QR", fmt.Sprintf("render for booking %s failed: %v", b.ID, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to render QR code", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", b.ID+".png"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// GetStats handles GET /api/bookings/stats?event_id=
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context(), r.URL.Query().Get("event_id"))
	if err != nil {
		h.writeServiceError(w, "stats", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking stats", stats))
}
