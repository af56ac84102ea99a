package store

import (
	"sort"
	"time"

	"github.com/mmeshcher/salon-client/internal/model"
)

// Выборки вычисляются из текущего снимка при каждом обращении и отдельно не хранятся.

// Upcoming возвращает запланированные и подтверждённые записи строго в будущем, по возрастанию времени.
func Upcoming(appts []model.Appointment, now time.Time) []model.Appointment {
	res := make([]model.Appointment, 0)
	for _, a := range appts {
		if a.Status != model.AppointmentStatusScheduled && a.Status != model.AppointmentStatusConfirmed {
			continue
		}
		startsAt, ok := a.StartsAt(now.Location())
		if !ok || !startsAt.After(now) {
			continue
		}
		res = append(res, a)
	}
	sortByStart(res, now.Location(), true)
	return res
}

// Past возвращает завершённые записи от новых к старым.
func Past(appts []model.Appointment, loc *time.Location) []model.Appointment {
	res := filterStatus(appts, model.AppointmentStatusCompleted)
	sortByStart(res, loc, false)
	return res
}

// Pending возвращает записи в статусах PENDING и REQUESTED по возрастанию времени.
func Pending(appts []model.Appointment, loc *time.Location) []model.Appointment {
	res := filterStatus(appts, model.AppointmentStatusPending, model.AppointmentStatusRequested)
	sortByStart(res, loc, true)
	return res
}

// Cancelled возвращает отменённые записи.
func Cancelled(appts []model.Appointment) []model.Appointment {
	return filterStatus(appts, model.AppointmentStatusCancelled)
}

// Next возвращает ближайшую предстоящую запись или nil.
func Next(appts []model.Appointment, now time.Time) *model.Appointment {
	upcoming := Upcoming(appts, now)
	if len(upcoming) == 0 {
		return nil
	}
	return &upcoming[0]
}

// LastCompleted возвращает последнюю завершённую запись или nil.
func LastCompleted(appts []model.Appointment, loc *time.Location) *model.Appointment {
	past := Past(appts, loc)
	if len(past) == 0 {
		return nil
	}
	return &past[0]
}

// VipActive сообщает, активен ли VIP по статусу подписки или по профилю пользователя.
func (s State) VipActive() bool {
	if s.VipStatus != nil && s.VipStatus.IsVIP {
		return true
	}
	return s.User != nil && s.User.IsVIP
}

// VipDaysRemaining возвращает неотрицательное число оставшихся дней подписки.
func (s State) VipDaysRemaining() int {
	if s.VipStatus == nil || s.VipStatus.DaysRemaining == nil {
		return 0
	}
	return max(0, *s.VipStatus.DaysRemaining)
}

// View содержит состояние вместе со всеми выборками, в том виде, в котором его получает интерфейс.
type View struct {
	State
	Upcoming         []model.Appointment `json:"upcomingAppointments"`
	Past             []model.Appointment `json:"pastAppointments"`
	Pending          []model.Appointment `json:"pendingAppointments"`
	Cancelled        []model.Appointment `json:"cancelledAppointments"`
	Next             *model.Appointment  `json:"nextAppointment"`
	LastCompleted    *model.Appointment  `json:"lastCompletedAppointment"`
	VipActive        bool                `json:"isVipActive"`
	VipDaysRemaining int                 `json:"vipDaysRemaining"`
}

// NewView строит представление состояния на момент now.
func NewView(st State, now time.Time) View {
	loc := now.Location()
	return View{
		State:            st,
		Upcoming:         Upcoming(st.Appointments, now),
		Past:             Past(st.Appointments, loc),
		Pending:          Pending(st.Appointments, loc),
		Cancelled:        Cancelled(st.Appointments),
		Next:             Next(st.Appointments, now),
		LastCompleted:    LastCompleted(st.Appointments, loc),
		VipActive:        st.VipActive(),
		VipDaysRemaining: st.VipDaysRemaining(),
	}
}

func filterStatus(appts []model.Appointment, statuses ...model.AppointmentStatus) []model.Appointment {
	res := make([]model.Appointment, 0)
	for _, a := range appts {
		for _, st := range statuses {
			if a.Status == st {
				res = append(res, a)
				break
			}
		}
	}
	return res
}

func sortByStart(appts []model.Appointment, loc *time.Location, ascending bool) {
	sort.SliceStable(appts, func(i, j int) bool {
		ti, _ := appts[i].StartsAt(loc)
		tj, _ := appts[j].StartsAt(loc)
		if ascending {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})
}
