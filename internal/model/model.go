// Package model содержит доменные сущности клиента записи в салон.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Форматы даты и времени записи, принятые в API бэкенда.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ID представляет идентификатор сущности бэкенда. В JSON допускается как строка, так и число.
type ID string

// UnmarshalJSON принимает идентификатор в виде строки или числа.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON кодирует числовые идентификаторы числом, остальные строкой.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string {
	return string(id)
}

// Tokens содержит пару токенов, сохраняемую между запусками клиента.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Complete сообщает, что присутствуют оба токена.
func (t Tokens) Complete() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}

// Session описывает активную сессию клиента.
type Session struct {
	UserID ID
	Tokens
}

// User представляет пользователя салона.
type User struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Bio       string `json:"bio,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	IsVIP     bool   `json:"isVIP"`
}

// AppointmentStatus описывает статус записи.
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "SCHEDULED"
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
	// Статусы ниже бэкенд пока не выдаёт, клиент поддерживает их заранее.
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusRequested AppointmentStatus = "REQUESTED"
)

// Terminal сообщает, что из статуса нет переходов на стороне клиента.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

// Service описывает услугу салона.
type Service struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Duration    int     `json:"duration"`
}

// Appointment описывает запись клиента на услугу вместе со снимком цены.
type Appointment struct {
	ID                 ID                `json:"id"`
	Date               string            `json:"date"`
	Time               string            `json:"time"`
	ServiceID          ID                `json:"serviceId"`
	Service            *Service          `json:"service,omitempty"`
	Status             AppointmentStatus `json:"status"`
	Notes              string            `json:"notes,omitempty"`
	OriginalPrice      float64           `json:"originalPrice"`
	FinalPrice         float64           `json:"finalPrice"`
	VIPDiscountPercent float64           `json:"vipDiscountPercent"`
}

// Day возвращает календарную дату записи. Бэкенд может прислать полную ISO-метку, учитывается только дата.
func (a Appointment) Day(loc *time.Location) (time.Time, bool) {
	if len(a.Date) < len(DateLayout) {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(DateLayout, a.Date[:len(DateLayout)], loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// StartsAt возвращает момент начала записи в указанной зоне.
func (a Appointment) StartsAt(loc *time.Location) (time.Time, bool) {
	day, ok := a.Day(loc)
	if !ok {
		return time.Time{}, false
	}
	clock, err := time.Parse(TimeLayout, a.Time)
	if err != nil {
		return day, false
	}
	return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), true
}

// VipStats содержит агрегированную статистику VIP-подписки.
type VipStats struct {
	TotalSavings          float64 `json:"totalSavings"`
	AppointmentsThisMonth int     `json:"appointmentsThisMonth"`
	CompletedAppointments int     `json:"completedAppointments"`
}

// VipStatus описывает состояние VIP-подписки пользователя.
type VipStatus struct {
	IsVIP         bool      `json:"isVIP"`
	PlanType      string    `json:"planType,omitempty"`
	StartDate     string    `json:"startDate,omitempty"`
	EndDate       string    `json:"endDate,omitempty"`
	DaysRemaining *int      `json:"daysRemaining,omitempty"`
	Stats         *VipStats `json:"stats,omitempty"`
}

// VipBenefit описывает одно преимущество VIP-тарифа.
type VipBenefit struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// VipHistoryEntry описывает запись истории подписок.
type VipHistoryEntry struct {
	ID        ID      `json:"id"`
	PlanType  string  `json:"planType"`
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

// Notification описывает уведомление пользователя на бэкенде.
type Notification struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationSettings описывает настройки уведомлений пользователя.
type NotificationSettings struct {
	Email        bool `json:"email"`
	Push         bool `json:"push"`
	SMS          bool `json:"sms"`
	Reminders    bool `json:"reminders"`
	Promotions   bool `json:"promotions"`
	ReminderHour int  `json:"reminderHours,omitempty"`
}

// AppointmentRequest описывает тело запроса на создание записи.
type AppointmentRequest struct {
	Date      string `json:"date" validate:"required"`
	Time      string `json:"time" validate:"required"`
	ServiceID ID     `json:"serviceId" validate:"required"`
	Notes     string `json:"notes,omitempty"`
}

// AppointmentUpdate описывает частичное изменение записи. Пустые поля не отправляются.
type AppointmentUpdate struct {
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	ServiceID ID     `json:"serviceId,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Credentials содержит учётные данные для входа.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration описывает данные для регистрации пользователя.
type Registration struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"required"`
}

// ProfileUpdate описывает изменяемые поля профиля.
type ProfileUpdate struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Bio   string `json:"bio,omitempty"`
}
