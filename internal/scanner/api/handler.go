package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ms-redemption/internal/auth"
	"ms-redemption/internal/logger"
	"ms-redemption/internal/redemption"
	"ms-redemption/internal/scanner/dedup"
	"ms-redemption/internal/utils"
)

// DeviceHeader identifies the physical scanner a request comes from.
const DeviceHeader = "X-Scanner-Device"

type Handler struct {
	Engine *redemption.Engine
	Dedup  dedup.Guard
	Logger *logger.Logger
}

func NewHandler(engine *redemption.Engine, guard dedup.Guard, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{Engine: engine, Dedup: guard, Logger: log}
}

// RegisterRoutes registers the scanner routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scanner", func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleScanner))
		r.Post("/classify", h.Classify)
		r.Post("/commit", h.Commit)
	})
}

type classifyRequest struct {
	Code string `json:"code"`
}

type commitRequest struct {
	BookingID string `json:"booking_id"`
}

func deviceID(r *http.Request) string {
	if d := strings.TrimSpace(r.Header.Get(DeviceHeader)); d != "" {
		return d
	}
	return auth.UserID(r.Context())
}

// respond writes a result. Business outcomes such as not found or
// already used are 200; only store failures map to 503.
func respond(w http.ResponseWriter, res redemption.Result) {
	body := utils.SuccessResponse(res.Message, res)
	status := http.StatusOK
	if res.Unavailable() {
		body.Success = false
		body.Error = string(res.Kind)
		status = http.StatusServiceUnavailable
	}
	utils.WriteJSON(w, status, body)
}

// Classify handles POST /api/scanner/classify
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	// codes are matched byte for byte, only blank input counts as empty
	code := req.Code
	if strings.TrimSpace(code) == "" {
		code = ""
	}
	device := deviceID(r)

	if h.Dedup != nil && code != "" {
		first, err := h.Dedup.Acquire(r.Context(), device, code)
		if err != nil {
			// a broken dedup store must not stop the gate
			h.Logger.Warn("SCAN", fmt.Sprintf("dedup check failed, continuing: %v", err))
		} else if !first {
			h.Logger.LogScan(device, code, "duplicate scan suppressed")
			utils.WriteError(w, http.StatusTooManyRequests, "Duplicate scan", nil)
			return
		}
	}

	res := h.Engine.Classify(r.Context(), code)
	h.Logger.LogScan(device, code, string(res.Kind))
	respond(w, res)
}

// Commit handles POST /api/scanner/commit
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		utils.WriteError(w, http.StatusBadRequest, "booking_id is required", nil)
		return
	}

	ctx := redemption.WithActor(r.Context(), auth.UserID(r.Context()))
	res := h.Engine.Commit(ctx, req.BookingID)
	h.Logger.LogRedemption(string(res.Kind), req.BookingID, fmt.Sprintf("device %s", deviceID(r)))

	respond(w, res)
}
