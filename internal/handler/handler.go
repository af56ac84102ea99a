// Package handler содержит HTTP-обработчики локального API клиента салона.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/salon-client/internal/api"
	"github.com/mmeshcher/salon-client/internal/middleware"
	"github.com/mmeshcher/salon-client/internal/model"
	"github.com/mmeshcher/salon-client/internal/ratelimit"
	"github.com/mmeshcher/salon-client/internal/service"
	"github.com/mmeshcher/salon-client/internal/session"
	"github.com/mmeshcher/salon-client/internal/store"
	"github.com/mmeshcher/salon-client/internal/validation"
)

const maxAvatarForm = validation.MaxAvatarSize + 1<<20

// Service определяет контракт клиентской логики, используемой HTTP-обработчиками.
type Service interface {
	Bootstrap(ctx context.Context) session.State
	State() store.View
	Health(ctx context.Context) error
	Login(ctx context.Context, creds model.Credentials) (*model.User, error)
	Register(ctx context.Context, reg model.Registration) (*model.User, error)
	Logout(ctx context.Context)
	Refresh(ctx context.Context, force bool) error
	AddAppointment(ctx context.Context, req model.AppointmentRequest) (*model.Appointment, error)
	UpdateAppointment(ctx context.Context, id model.ID, upd model.AppointmentUpdate) (*model.Appointment, error)
	CancelAppointment(ctx context.Context, id model.ID, reason string) (*model.Appointment, error)
	RescheduleAppointment(ctx context.Context, id model.ID, date, clock string) (*model.Appointment, error)
	AvailableSlots(ctx context.Context, date string, serviceID model.ID) ([]string, error)
	Services(ctx context.Context) ([]model.Service, error)
	SubscribeVip(ctx context.Context, planType, paymentMethod string) (*model.VipStatus, error)
	CancelVipSubscription(ctx context.Context, reason string) (*model.VipStatus, error)
	UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.User, error)
	UploadAvatar(ctx context.Context, filename, contentType string, size int64, file io.Reader) (*model.User, error)
}

// Handler реализует HTTP-обработчики локального API.
type Handler struct {
	service Service
	logger  *zap.Logger
	guard   *middleware.AccessGuard
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, guard *middleware.AccessGuard) *Handler {
	if guard == nil {
		guard = middleware.NewAccessGuard("")
	}
	return &Handler{
		service: s,
		logger:  logger,
		guard:   guard,
	}
}

type bootstrapResponse struct {
	Session session.State `json:"session"`
	State   store.View    `json:"state"`
}

// Bootstrap восстанавливает сохранённую сессию и возвращает состояние.
func (h *Handler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	st := h.service.Bootstrap(r.Context())
	h.writeJSON(w, http.StatusOK, bootstrapResponse{Session: st, State: h.service.State()})
}

// GetState возвращает текущее состояние клиента.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.State())
}

// Health проверяет доступность бэкенда.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.logger.Warn("backend health check failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Login выполняет вход пользователя.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.Credentials
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, "login", err)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// Register регистрирует нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.Registration
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, "register", err)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// Logout завершает сессию. Локальное состояние очищается всегда.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Refresh перезагружает данные пользователя. Параметр force=true обходит кэш и паузу.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	if err := h.service.Refresh(r.Context(), force); err != nil {
		h.writeError(w, "refresh", err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.service.State())
}

// CreateAppointment создаёт запись.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req model.AppointmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	appt, err := h.service.AddAppointment(r.Context(), req)
	if err != nil {
		h.writeError(w, "create appointment", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, appt)
}

// UpdateAppointment изменяет запись.
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	var req model.AppointmentUpdate
	if !h.decode(w, r, &req) {
		return
	}

	appt, err := h.service.UpdateAppointment(r.Context(), appointmentID(r), req)
	if err != nil {
		h.writeError(w, "update appointment", err)
		return
	}

	h.writeJSON(w, http.StatusOK, appt)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelAppointment отменяет запись. Тело запроса с причиной необязательно.
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	appt, err := h.service.CancelAppointment(r.Context(), appointmentID(r), req.Reason)
	if err != nil {
		h.writeError(w, "cancel appointment", err)
		return
	}

	h.writeJSON(w, http.StatusOK, appt)
}

type rescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// RescheduleAppointment переносит запись на новые дату и время.
func (h *Handler) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	appt, err := h.service.RescheduleAppointment(r.Context(), appointmentID(r), req.Date, req.Time)
	if err != nil {
		h.writeError(w, "reschedule appointment", err)
		return
	}

	h.writeJSON(w, http.StatusOK, appt)
}

// AvailableSlots возвращает свободное время на дату для услуги.
func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		http.Error(w, "date: is required", http.StatusBadRequest)
		return
	}

	slots, err := h.service.AvailableSlots(r.Context(), date, model.ID(q.Get("serviceId")))
	if err != nil {
		h.writeError(w, "available slots", err)
		return
	}

	h.writeJSON(w, http.StatusOK, slots)
}

// Services возвращает каталог услуг.
func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.Services(r.Context())
	if err != nil {
		h.writeError(w, "services", err)
		return
	}

	h.writeJSON(w, http.StatusOK, services)
}

type subscribeRequest struct {
	PlanType      string `json:"planType"`
	PaymentMethod string `json:"paymentMethod"`
}

// SubscribeVip оформляет VIP-подписку.
func (h *Handler) SubscribeVip(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.PlanType == "" {
		http.Error(w, "planType: is required", http.StatusBadRequest)
		return
	}

	vip, err := h.service.SubscribeVip(r.Context(), req.PlanType, req.PaymentMethod)
	if err != nil {
		h.writeError(w, "subscribe vip", err)
		return
	}

	h.writeJSON(w, http.StatusOK, vip)
}

// CancelVip отменяет VIP-подписку.
func (h *Handler) CancelVip(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	vip, err := h.service.CancelVipSubscription(r.Context(), req.Reason)
	if err != nil {
		h.writeError(w, "cancel vip", err)
		return
	}

	h.writeJSON(w, http.StatusOK, vip)
}

// UpdateProfile изменяет профиль пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req model.ProfileUpdate
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), req)
	if err != nil {
		h.writeError(w, "update profile", err)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// UploadAvatar принимает файл аватара в поле формы avatar.
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarForm)
	if err := r.ParseMultipartForm(maxAvatarForm); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		http.Error(w, "avatar: is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	user, err := h.service.UploadAvatar(r.Context(), header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		h.writeError(w, "upload avatar", err)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

func appointmentID(r *http.Request) model.ID {
	return model.ID(chi.URLParam(r, "id"))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// writeError отображает ошибку клиентской логики в статус ответа.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, validation.ErrValidation):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ratelimit.ErrRateLimited), api.IsTooManyRequests(err):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, service.ErrNotAuthenticated), api.IsAuthError(err):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case api.StatusOf(err) == http.StatusNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case api.StatusOf(err) == http.StatusConflict:
		http.Error(w, err.Error(), http.StatusConflict)
	case api.StatusOf(err) != 0:
		h.logger.Warn(op+" backend error", zap.Error(err), zap.Int("status", api.StatusOf(err)))
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, http.StatusText(http.StatusGatewayTimeout), http.StatusGatewayTimeout)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
