package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mmeshcher/salon-client/internal/model"
)

// AppointmentFilter задаёт параметры выборки записей. Нулевые поля не передаются.
type AppointmentFilter struct {
	Status   model.AppointmentStatus
	Upcoming *bool
	Page     int
	Limit    int
}

func (f AppointmentFilter) query() string {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Upcoming != nil {
		q.Set("upcoming", strconv.FormatBool(*f.Upcoming))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListAppointments возвращает записи текущего пользователя.
func (c *Client) ListAppointments(ctx context.Context, filter AppointmentFilter) ([]model.Appointment, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/appointments"+filter.query(), nil, &raw); err != nil {
		return nil, err
	}
	return decodeData[[]model.Appointment](raw, "appointments")
}

// CreateAppointment создаёт запись.
func (c *Client) CreateAppointment(ctx context.Context, req model.AppointmentRequest) (*model.Appointment, error) {
	return c.appointmentCall(ctx, http.MethodPost, "/appointments", req)
}

// UpdateAppointment изменяет запись.
func (c *Client) UpdateAppointment(ctx context.Context, id model.ID, upd model.AppointmentUpdate) (*model.Appointment, error) {
	return c.appointmentCall(ctx, http.MethodPut, "/appointments/"+url.PathEscape(id.String()), upd)
}

// CancelAppointment отменяет запись с указанием причины.
func (c *Client) CancelAppointment(ctx context.Context, id model.ID, reason string) (*model.Appointment, error) {
	body := map[string]string{"reason": reason}
	return c.appointmentCall(ctx, http.MethodPost, "/appointments/"+url.PathEscape(id.String())+"/cancel", body)
}

// RescheduleAppointment переносит запись на другие дату и время.
func (c *Client) RescheduleAppointment(ctx context.Context, id model.ID, date, clock string) (*model.Appointment, error) {
	body := map[string]string{"date": date, "time": clock}
	return c.appointmentCall(ctx, http.MethodPost, "/appointments/"+url.PathEscape(id.String())+"/reschedule", body)
}

// ConfirmAppointment подтверждает запись.
func (c *Client) ConfirmAppointment(ctx context.Context, id model.ID) (*model.Appointment, error) {
	return c.appointmentCall(ctx, http.MethodPost, "/appointments/"+url.PathEscape(id.String())+"/confirm", nil)
}

// CompleteAppointment отмечает запись завершённой.
func (c *Client) CompleteAppointment(ctx context.Context, id model.ID) (*model.Appointment, error) {
	return c.appointmentCall(ctx, http.MethodPost, "/appointments/"+url.PathEscape(id.String())+"/complete", nil)
}

// SendReminder просит бэкенд отправить напоминание о записи.
func (c *Client) SendReminder(ctx context.Context, id model.ID) error {
	return c.Do(ctx, http.MethodPost, "/appointments/"+url.PathEscape(id.String())+"/reminder", nil, nil)
}

// AvailableSlots возвращает свободное время (HH:MM) на дату для услуги.
func (c *Client) AvailableSlots(ctx context.Context, date string, serviceID model.ID) ([]string, error) {
	q := url.Values{}
	q.Set("date", date)
	q.Set("serviceId", serviceID.String())

	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/appointments/available?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	return decodeData[[]string](raw, "availableSlots")
}

func (c *Client) appointmentCall(ctx context.Context, method, path string, body any) (*model.Appointment, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, method, path, body, &raw); err != nil {
		return nil, err
	}
	return decodeData[*model.Appointment](raw, "appointment")
}
