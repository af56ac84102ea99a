// Package fakebackend реализует REST API бэкенда салона в памяти для тестов и локальной разработки.
package fakebackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mmeshcher/salon-client/internal/model"
)

type userRecord struct {
	user     model.User
	password string
}

// Backend хранит пользователей, записи и подписки и считает обращения к каждому пути.
type Backend struct {
	mu           sync.Mutex
	secret       []byte
	nextID       int
	users        map[string]*userRecord
	appointments map[model.ID][]model.Appointment
	vip          map[model.ID]*model.VipStatus
	services     []model.Service
	slots        []string
	notes        map[model.ID][]model.Notification
	settings     map[model.ID]model.NotificationSettings
	counts       map[string]int
	failures     map[string]int
	latency      time.Duration
}

// New создаёт бэкенд с каталогом услуг по умолчанию.
func New() *Backend {
	return &Backend{
		secret:       []byte("fake-backend-secret"),
		nextID:       100,
		users:        make(map[string]*userRecord),
		appointments: make(map[model.ID][]model.Appointment),
		vip:          make(map[model.ID]*model.VipStatus),
		services: []model.Service{
			{ID: "1", Name: "Haircut", Category: "hair", Price: 1500, Duration: 60},
			{ID: "2", Name: "Manicure", Category: "nails", Price: 1200, Duration: 45},
			{ID: "3", Name: "Facial", Category: "skin", Price: 3000, Duration: 90},
		},
		slots:    []string{"09:00", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00", "17:00"},
		notes:    make(map[model.ID][]model.Notification),
		settings: make(map[model.ID]model.NotificationSettings),
		counts:   make(map[string]int),
		failures: make(map[string]int),
	}
}

// AddUser регистрирует пользователя напрямую.
func (b *Backend) AddUser(name, email, password string) model.User {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.addUserLocked(name, email, password, "")
}

func (b *Backend) addUserLocked(name, email, password, phone string) model.User {
	b.nextID++
	u := model.User{ID: model.ID(strconv.Itoa(b.nextID)), Name: name, Email: email, Phone: phone}
	b.users[email] = &userRecord{user: u, password: password}
	return u
}

// AddAppointment добавляет запись пользователю.
func (b *Backend) AddAppointment(userID model.ID, a model.Appointment) model.Appointment {
	b.mu.Lock()
	defer b.mu.Unlock()

	if a.ID == "" {
		b.nextID++
		a.ID = model.ID(strconv.Itoa(b.nextID))
	}
	b.appointments[userID] = append(b.appointments[userID], a)
	return a
}

// SetVip задаёт VIP-статус пользователя.
func (b *Backend) SetVip(userID model.ID, vip *model.VipStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.vip[userID] = vip
}

// Token выпускает токен доступа для пользователя.
func (b *Backend) Token(userID model.ID) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID.String(),
		"exp":    time.Now().Add(time.Hour).Unix(),
	}).SignedString(b.secret)
	if err != nil {
		panic(fmt.Sprintf("sign token: %v", err))
	}
	return token
}

// Fail заставляет запросы method path отвечать статусом status до вызова Recover.
func (b *Backend) Fail(method, path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[method+" "+path] = status
}

// Recover отменяет Fail.
func (b *Backend) Recover(method, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.failures, method+" "+path)
}

// SetLatency задерживает каждый ответ.
func (b *Backend) SetLatency(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latency = d
}

// Count возвращает число обращений к method path (без query).
func (b *Backend) Count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts[method+" "+path]
}

// Handler возвращает HTTP-обработчик бэкенда.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(b.track)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", b.login)
		r.Post("/auth/register", b.register)

		r.Group(func(r chi.Router) {
			r.Use(b.auth)

			r.Post("/auth/logout", func(w http.ResponseWriter, r *http.Request) { ok(w, nil) })
			r.Get("/auth/profile", b.profile)
			r.Put("/auth/profile", b.updateProfile)
			r.Post("/auth/avatar", b.uploadAvatar)

			r.Get("/appointments", b.listAppointments)
			r.Post("/appointments", b.createAppointment)
			r.Get("/appointments/available", b.availableSlots)
			r.Put("/appointments/{id}", b.updateAppointment)
			r.Post("/appointments/{id}/cancel", b.transition(model.AppointmentStatusCancelled))
			r.Post("/appointments/{id}/confirm", b.transition(model.AppointmentStatusConfirmed))
			r.Post("/appointments/{id}/complete", b.transition(model.AppointmentStatusCompleted))
			r.Post("/appointments/{id}/reschedule", b.updateAppointment)
			r.Post("/appointments/{id}/reminder", func(w http.ResponseWriter, r *http.Request) { ok(w, nil) })

			r.Get("/vip/status", b.vipStatus)
			r.Get("/vip/benefits", b.vipBenefits)
			r.Post("/vip/subscribe", b.vipSubscribe)
			r.Post("/vip/cancel", b.vipCancel)
			r.Get("/vip/history", func(w http.ResponseWriter, r *http.Request) { ok(w, map[string]any{"history": []any{}}) })
			r.Get("/vip/stats", b.vipStats)

			r.Get("/services", b.listServices)
			r.Get("/services/{id}", b.getService)

			r.Get("/users/notification-settings", b.getSettings)
			r.Put("/users/notification-settings", b.putSettings)
			r.Get("/notifications", b.listNotifications)
			r.Put("/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) { ok(w, nil) })
			r.Post("/notifications/read-all", func(w http.ResponseWriter, r *http.Request) { ok(w, nil) })
			r.Delete("/notifications/{id}", func(w http.ResponseWriter, r *http.Request) { ok(w, nil) })
		})
	})

	return r
}

func (b *Backend) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.counts[key]++
		status, failing := b.failures[key]
		latency := b.latency
		b.mu.Unlock()

		if latency > 0 {
			time.Sleep(latency)
		}

		if failing {
			if status == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "1")
			}
			fail(w, status, http.StatusText(status))
			return
		}

		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func contextWithUser(r *http.Request, id model.ID) context.Context {
	return context.WithValue(r.Context(), ctxKey{}, id)
}

func userFrom(r *http.Request) model.ID {
	id, _ := r.Context().Value(ctxKey{}).(model.ID)
	return id
}

func (b *Backend) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || raw == "" {
			fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return b.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			fail(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		userID, _ := claims["userId"].(string)
		next.ServeHTTP(w, r.WithContext(contextWithUser(r, model.ID(userID))))
	})
}

func (b *Backend) findUserLocked(id model.ID) *userRecord {
	for _, rec := range b.users {
		if rec.user.ID == id {
			return rec
		}
	}
	return nil
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		fail(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	rec, exists := b.users[creds.Email]
	b.mu.Unlock()

	if !exists || rec.password != creds.Password {
		fail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	b.writeAuth(w, rec.user)
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		fail(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	if _, exists := b.users[reg.Email]; exists {
		b.mu.Unlock()
		fail(w, http.StatusConflict, "Email already registered")
		return
	}
	u := b.addUserLocked(reg.Name, reg.Email, reg.Password, reg.Phone)
	b.mu.Unlock()

	b.writeAuth(w, u)
}

func (b *Backend) writeAuth(w http.ResponseWriter, u model.User) {
	b.mu.Lock()
	if vip := b.vip[u.ID]; vip != nil {
		u.IsVIP = vip.IsVIP
	}
	b.mu.Unlock()

	token := b.Token(u.ID)
	ok(w, map[string]any{"token": token, "refreshToken": "refresh-" + u.ID.String(), "user": u})
}

func (b *Backend) profile(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.findUserLocked(userFrom(r))
	if rec == nil {
		fail(w, http.StatusNotFound, "User not found")
		return
	}
	ok(w, rec.user)
}

func (b *Backend) updateProfile(w http.ResponseWriter, r *http.Request) {
	var upd model.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		fail(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.findUserLocked(userFrom(r))
	if rec == nil {
		fail(w, http.StatusNotFound, "User not found")
		return
	}
	if upd.Name != "" {
		rec.user.Name = upd.Name
	}
	if upd.Phone != "" {
		rec.user.Phone = upd.Phone
	}
	if upd.Bio != "" {
		rec.user.Bio = upd.Bio
	}
	ok(w, rec.user)
}

func (b *Backend) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	_, header, err := r.FormFile("avatar")
	if err != nil {
		fail(w, http.StatusBadRequest, "avatar file is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.findUserLocked(userFrom(r))
	if rec == nil {
		fail(w, http.StatusNotFound, "User not found")
		return
	}
	rec.user.AvatarURL = "/uploads/" + header.Filename
	ok(w, rec.user)
}

func (b *Backend) listAppointments(w http.ResponseWriter, r *http.Request) {
	status := model.AppointmentStatus(r.URL.Query().Get("status"))

	b.mu.Lock()
	res := make([]model.Appointment, 0)
	for _, a := range b.appointments[userFrom(r)] {
		if status == "" || a.Status == status {
			res = append(res, a)
		}
	}
	b.mu.Unlock()

	ok(w, map[string]any{"appointments": res})
}

func (b *Backend) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req model.AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	svc := b.serviceLocked(req.ServiceID)
	if svc == nil {
		fail(w, http.StatusNotFound, "Service not found")
		return
	}

	userID := userFrom(r)
	discount := 0.0
	if vip := b.vip[userID]; vip != nil && vip.IsVIP {
		discount = 15
	}

	b.nextID++
	a := model.Appointment{
		ID:                 model.ID(strconv.Itoa(b.nextID)),
		Date:               req.Date,
		Time:               req.Time,
		ServiceID:          svc.ID,
		Service:            svc,
		Status:             model.AppointmentStatusScheduled,
		Notes:              req.Notes,
		OriginalPrice:      svc.Price,
		FinalPrice:         svc.Price * (100 - discount) / 100,
		VIPDiscountPercent: discount,
	}
	b.appointments[userID] = append(b.appointments[userID], a)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{"appointment": a}})
}

func (b *Backend) updateAppointment(w http.ResponseWriter, r *http.Request) {
	var upd model.AppointmentUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		fail(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	a := b.appointmentLocked(userFrom(r), model.ID(chi.URLParam(r, "id")))
	if a == nil {
		fail(w, http.StatusNotFound, "Appointment not found")
		return
	}
	if upd.Date != "" {
		a.Date = upd.Date
	}
	if upd.Time != "" {
		a.Time = upd.Time
	}
	if upd.Notes != "" {
		a.Notes = upd.Notes
	}
	ok(w, map[string]any{"appointment": a})
}

func (b *Backend) transition(status model.AppointmentStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		a := b.appointmentLocked(userFrom(r), model.ID(chi.URLParam(r, "id")))
		if a == nil {
			fail(w, http.StatusNotFound, "Appointment not found")
			return
		}
		if a.Status.Terminal() {
			fail(w, http.StatusConflict, "Appointment is already "+strings.ToLower(string(a.Status)))
			return
		}
		a.Status = status
		ok(w, map[string]any{"appointment": a})
	}
}

func (b *Backend) availableSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" || r.URL.Query().Get("serviceId") == "" {
		fail(w, http.StatusBadRequest, "date and serviceId are required")
		return
	}

	b.mu.Lock()
	taken := make(map[string]bool)
	for _, list := range b.appointments {
		for _, a := range list {
			if a.Date == date && !a.Status.Terminal() {
				taken[a.Time] = true
			}
		}
	}
	free := make([]string, 0, len(b.slots))
	for _, s := range b.slots {
		if !taken[s] {
			free = append(free, s)
		}
	}
	b.mu.Unlock()

	ok(w, map[string]any{"availableSlots": free})
}

func (b *Backend) vipStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	vip := b.vip[userFrom(r)]
	b.mu.Unlock()

	ok(w, vip)
}

func (b *Backend) vipBenefits(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]any{"benefits": []model.VipBenefit{
		{Title: "15% off every service"},
		{Title: "Priority booking"},
	}})
}

func (b *Backend) vipSubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanType      string `json:"planType"`
		PaymentMethod string `json:"paymentMethod"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanType == "" {
		fail(w, http.StatusBadRequest, "planType is required")
		return
	}

	days := 30
	if req.PlanType == "yearly" {
		days = 365
	}
	now := time.Now()
	vip := &model.VipStatus{
		IsVIP:         true,
		PlanType:      req.PlanType,
		StartDate:     now.Format(model.DateLayout),
		EndDate:       now.AddDate(0, 0, days).Format(model.DateLayout),
		DaysRemaining: &days,
		Stats:         &model.VipStats{},
	}

	b.mu.Lock()
	b.vip[userFrom(r)] = vip
	b.mu.Unlock()

	ok(w, map[string]any{"vipStatus": vip})
}

func (b *Backend) vipCancel(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	userID := userFrom(r)
	vip := b.vip[userID]
	if vip == nil || !vip.IsVIP {
		fail(w, http.StatusBadRequest, "No active subscription")
		return
	}
	cancelled := *vip
	cancelled.IsVIP = false
	zero := 0
	cancelled.DaysRemaining = &zero
	b.vip[userID] = &cancelled

	ok(w, map[string]any{"vipStatus": cancelled})
}

func (b *Backend) vipStats(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := model.VipStats{}
	for _, a := range b.appointments[userFrom(r)] {
		if a.Status == model.AppointmentStatusCompleted {
			stats.CompletedAppointments++
			stats.TotalSavings += a.OriginalPrice - a.FinalPrice
		}
	}
	ok(w, map[string]any{"stats": stats})
}

func (b *Backend) listServices(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ok(w, map[string]any{"services": b.services})
}

func (b *Backend) getService(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	svc := b.serviceLocked(model.ID(chi.URLParam(r, "id")))
	if svc == nil {
		fail(w, http.StatusNotFound, "Service not found")
		return
	}
	ok(w, svc)
}

func (b *Backend) getSettings(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ok(w, b.settings[userFrom(r)])
}

func (b *Backend) putSettings(w http.ResponseWriter, r *http.Request) {
	var s model.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		fail(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	b.settings[userFrom(r)] = s
	b.mu.Unlock()

	ok(w, s)
}

func (b *Backend) listNotifications(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.notes[userFrom(r)]
	if list == nil {
		list = []model.Notification{}
	}
	ok(w, map[string]any{"notifications": list})
}

func (b *Backend) serviceLocked(id model.ID) *model.Service {
	for i := range b.services {
		if b.services[i].ID == id {
			svc := b.services[i]
			return &svc
		}
	}
	return nil
}

func (b *Backend) appointmentLocked(userID, id model.ID) *model.Appointment {
	list := b.appointments[userID]
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

func ok(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func fail(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
