// Package validation содержит клиентскую проверку данных перед отправкой на бэкенд.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/mmeshcher/salon-client/internal/model"
)

// MaxAvatarSize ограничивает размер загружаемого аватара.
const MaxAvatarSize = 5 << 20

// ErrValidation является общим признаком ошибок валидации.
var ErrValidation = errors.New("validation failed")

// Error описывает нарушение правила для конкретного поля.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrValidation).
func (e *Error) Is(target error) bool {
	return target == ErrValidation
}

var (
	validate    = validator.New()
	timePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// IsValidTime проверяет время в формате HH:MM (24 часа).
func IsValidTime(value string) bool {
	return timePattern.MatchString(value)
}

// ValidateAppointment проверяет запрос на запись: обязательные поля, формат времени
// и то, что дата и время записи строго позже now.
func ValidateAppointment(req model.AppointmentRequest, now time.Time) error {
	if err := structErr(req); err != nil {
		return err
	}
	return ValidateSlot(req.Date, req.Time, now)
}

// ValidateSlot проверяет формат даты и времени и то, что они строго позже now.
func ValidateSlot(date, clock string, now time.Time) error {
	if date == "" {
		return &Error{Field: "date", Reason: "is required"}
	}
	if !IsValidTime(clock) {
		return &Error{Field: "time", Reason: "must match HH:MM"}
	}

	startsAt, ok := model.Appointment{Date: date, Time: clock}.StartsAt(now.Location())
	if !ok {
		return &Error{Field: "date", Reason: "must be a calendar date YYYY-MM-DD"}
	}

	if !startsAt.After(now) {
		return &Error{Field: "date", Reason: "appointment must be in the future"}
	}

	return nil
}

// ValidateCredentials проверяет данные формы входа.
func ValidateCredentials(c model.Credentials) error {
	return structErr(c)
}

// ValidateRegistration проверяет данные формы регистрации.
func ValidateRegistration(r model.Registration) error {
	return structErr(r)
}

// ValidateAvatar проверяет размер и тип файла аватара.
func ValidateAvatar(size int64, contentType string) error {
	if size <= 0 {
		return &Error{Field: "avatar", Reason: "file is empty"}
	}
	if size > MaxAvatarSize {
		return &Error{Field: "avatar", Reason: "file exceeds 5MB"}
	}
	if !strings.HasPrefix(contentType, "image/") {
		return &Error{Field: "avatar", Reason: "file must be an image"}
	}
	return nil
}

func structErr(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &Error{Field: lowerFirst(fe.Field()), Reason: describeTag(fe.Tag(), fe.Param())}
	}

	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func describeTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + param + " characters"
	default:
		return "failed " + tag
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if s == "ServiceID" {
		return "serviceId"
	}
	return strings.ToLower(s[:1]) + s[1:]
}
