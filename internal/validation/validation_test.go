package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/mmeshcher/salon-client/internal/model"
)

func TestIsValidTime(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{name: "morning", value: "09:30", valid: true},
		{name: "midnight", value: "00:00", valid: true},
		{name: "late evening", value: "23:59", valid: true},
		{name: "hour out of range", value: "25:99", valid: false},
		{name: "minute out of range", value: "10:60", valid: false},
		{name: "single digit hour", value: "9:30", valid: false},
		{name: "empty", value: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTime(tt.value); got != tt.valid {
				t.Fatalf("IsValidTime(%q) = %v, want %v", tt.value, got, tt.valid)
			}
		})
	}
}

func TestValidateAppointment(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name    string
		req     model.AppointmentRequest
		wantErr bool
		field   string
	}{
		{
			name: "future slot",
			req:  model.AppointmentRequest{Date: "2026-03-11", Time: "10:00", ServiceID: "1"},
		},
		{
			name:    "today in the past",
			req:     model.AppointmentRequest{Date: "2026-03-10", Time: "10:00", ServiceID: "1"},
			wantErr: true,
			field:   "date",
		},
		{
			name:    "exactly now",
			req:     model.AppointmentRequest{Date: "2026-03-10", Time: "12:00", ServiceID: "1"},
			wantErr: true,
			field:   "date",
		},
		{
			name:    "malformed time",
			req:     model.AppointmentRequest{Date: "2026-03-11", Time: "25:99", ServiceID: "1"},
			wantErr: true,
			field:   "time",
		},
		{
			name:    "missing service",
			req:     model.AppointmentRequest{Date: "2026-03-11", Time: "10:00"},
			wantErr: true,
			field:   "serviceId",
		},
		{
			name:    "missing date",
			req:     model.AppointmentRequest{Time: "10:00", ServiceID: "1"},
			wantErr: true,
			field:   "date",
		},
		{
			name:    "broken date",
			req:     model.AppointmentRequest{Date: "11.03.2026", Time: "10:00", ServiceID: "1"},
			wantErr: true,
			field:   "date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAppointment(tt.req, now)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var vErr *Error
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if vErr.Field != tt.field {
				t.Fatalf("field = %q, want %q", vErr.Field, tt.field)
			}
		})
	}
}

func TestValidateRegistration(t *testing.T) {
	ok := model.Registration{Name: "Anna", Email: "anna@example.com", Password: "secret1", Phone: "+70000000000"}
	if err := ValidateRegistration(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	short := ok
	short.Password = "123"
	if err := ValidateRegistration(short); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}

	badEmail := ok
	badEmail.Email = "anna"
	if err := ValidateRegistration(badEmail); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for email, got %v", err)
	}
}

func TestValidateAvatar(t *testing.T) {
	if err := ValidateAvatar(1024, "image/png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateAvatar(MaxAvatarSize+1, "image/png"); err == nil {
		t.Fatalf("expected error for oversized file")
	}
	if err := ValidateAvatar(1024, "application/pdf"); err == nil {
		t.Fatalf("expected error for non-image file")
	}
}
