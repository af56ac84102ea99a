// Package store содержит реактивное состояние клиента и производные выборки над ним.
package store

import (
	"sync"

	"github.com/mmeshcher/salon-client/internal/model"
)

// Phase описывает готовность состояния к отображению.
type Phase string

const (
	// PhaseUninitialized означает, что восстановление сессии ещё не завершено.
	PhaseUninitialized Phase = "uninitialized"
	// PhaseReady означает, что состояние можно показывать пользователю.
	PhaseReady Phase = "ready"
)

// State содержит снимок состояния клиента.
type State struct {
	Phase         Phase               `json:"phase"`
	User          *model.User         `json:"user"`
	Appointments  []model.Appointment `json:"appointments"`
	VipStatus     *model.VipStatus    `json:"vipStatus"`
	Authenticated bool                `json:"isAuthenticated"`
	Loading       bool                `json:"loading"`
	Error         string              `json:"error,omitempty"`
	Success       string              `json:"success,omitempty"`
}

// Store хранит состояние и уведомляет подписчиков о каждом изменении.
// Каждая смена личности пользователя увеличивает поколение: результаты,
// посчитанные для прежнего поколения, не записываются.
type Store struct {
	mu         sync.RWMutex
	state      State
	generation uint64
	closed     bool

	// Loading в состоянии равен actions > 0 || dataLoading.
	actions     int
	dataLoading bool

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New создаёт пустое хранилище в фазе PhaseUninitialized.
func New() *Store {
	return &Store{
		state: State{Phase: PhaseUninitialized},
		subs:  make(map[int]func(State)),
	}
}

// Snapshot возвращает копию текущего состояния.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copyLocked()
}

func (s *Store) copyLocked() State {
	st := s.state
	st.Appointments = append([]model.Appointment(nil), s.state.Appointments...)
	if s.state.User != nil {
		u := *s.state.User
		st.User = &u
	}
	return st
}

// Subscribe регистрирует слушателя изменений и возвращает функцию отписки.
func (s *Store) Subscribe(fn func(State)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

// Active сообщает, что хранилище ещё принимает изменения.
func (s *Store) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return !s.closed
}

// Close переводит хранилище в неактивное состояние, дальнейшие записи игнорируются.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
}

// Generation возвращает текущее поколение личности пользователя.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.generation
}

// CurrentUserID возвращает идентификатор текущего пользователя или пустую строку.
func (s *Store) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state.User == nil {
		return ""
	}
	return string(s.state.User.ID)
}

// Loading сообщает, выполняется ли сейчас загрузка или действие.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.Loading
}

// DataLoading сообщает, идёт ли загрузка данных пользователя.
func (s *Store) DataLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dataLoading
}

func (s *Store) syncLoadingLocked(st *State) bool {
	loading := s.actions > 0 || s.dataLoading
	if st.Loading == loading {
		return false
	}
	st.Loading = loading
	return true
}

// update применяет fn под блокировкой и уведомляет подписчиков. Возвращает false, если хранилище закрыто.
func (s *Store) update(fn func(st *State) bool) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if !fn(&s.state) {
		s.mu.Unlock()
		return false
	}
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return true
}

func (s *Store) notify(st State) {
	s.subsMu.Lock()
	listeners := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

// SetSession устанавливает нового пользователя после входа или восстановления сессии.
// Данные прежнего пользователя сбрасываются, поколение увеличивается.
func (s *Store) SetSession(user model.User) {
	s.update(func(st *State) bool {
		s.generation++
		u := user
		st.User = &u
		st.Authenticated = true
		st.Appointments = nil
		st.VipStatus = nil
		st.Error = ""
		st.Phase = PhaseReady
		return true
	})
}

// Reset возвращает состояние к неаутентифицированному, как при выходе.
func (s *Store) Reset() {
	s.update(func(st *State) bool {
		s.generation++
		*st = State{Phase: PhaseReady}
		s.syncLoadingLocked(st)
		return true
	})
}

// MarkReady завершает фазу инициализации.
func (s *Store) MarkReady() {
	s.update(func(st *State) bool {
		if st.Phase == PhaseReady {
			return false
		}
		st.Phase = PhaseReady
		return true
	})
}

// SetUser заменяет профиль текущего пользователя, не меняя поколение.
func (s *Store) SetUser(user model.User) {
	s.update(func(st *State) bool {
		if st.User == nil || st.User.ID != user.ID {
			return false
		}
		u := user
		st.User = &u
		return true
	})
}

// SetDataLoading отмечает начало или конец загрузки данных пользователя.
func (s *Store) SetDataLoading(loading bool) {
	s.update(func(st *State) bool {
		s.dataLoading = loading
		return s.syncLoadingLocked(st)
	})
}

// BeginAction отмечает начало действия и сбрасывает прежние сообщения.
// Каждому вызову соответствует один EndAction.
func (s *Store) BeginAction() {
	s.update(func(st *State) bool {
		s.actions++
		s.syncLoadingLocked(st)
		st.Error = ""
		st.Success = ""
		return true
	})
}

// EndAction отмечает завершение действия.
func (s *Store) EndAction() {
	s.update(func(st *State) bool {
		if s.actions > 0 {
			s.actions--
		}
		return s.syncLoadingLocked(st)
	})
}

// SetError сохраняет сообщение об ошибке для пользователя.
func (s *Store) SetError(msg string) {
	s.update(func(st *State) bool {
		st.Error = msg
		st.Success = ""
		return true
	})
}

// SetSuccess сохраняет сообщение об успешном действии.
func (s *Store) SetSuccess(msg string) {
	s.update(func(st *State) bool {
		st.Success = msg
		return true
	})
}

// ClearMessages убирает сообщения об ошибке и успехе.
func (s *Store) ClearMessages() {
	s.update(func(st *State) bool {
		if st.Error == "" && st.Success == "" {
			return false
		}
		st.Error = ""
		st.Success = ""
		return true
	})
}

// CommitUserData атомарно записывает результат загрузки, если поколение не сменилось.
func (s *Store) CommitUserData(generation uint64, appointments []model.Appointment, vip *model.VipStatus) bool {
	return s.update(func(st *State) bool {
		if s.generation != generation {
			return false
		}
		st.Appointments = append([]model.Appointment(nil), appointments...)
		st.VipStatus = vip
		return true
	})
}

// AddAppointment добавляет созданную запись.
func (s *Store) AddAppointment(a model.Appointment) {
	s.update(func(st *State) bool {
		st.Appointments = append(st.Appointments, a)
		return true
	})
}

// ReplaceAppointment заменяет запись с тем же идентификатором.
// Запись в конечном статусе не возвращается в активный.
func (s *Store) ReplaceAppointment(a model.Appointment) bool {
	return s.update(func(st *State) bool {
		for i := range st.Appointments {
			if st.Appointments[i].ID != a.ID {
				continue
			}
			cur := st.Appointments[i].Status
			if cur.Terminal() && a.Status != cur {
				return false
			}
			st.Appointments[i] = a
			return true
		}
		return false
	})
}

// SetAppointmentStatus меняет статус записи с соблюдением однонаправленных переходов.
func (s *Store) SetAppointmentStatus(id model.ID, status model.AppointmentStatus) bool {
	return s.update(func(st *State) bool {
		for i := range st.Appointments {
			if st.Appointments[i].ID != id {
				continue
			}
			if st.Appointments[i].Status.Terminal() {
				return false
			}
			st.Appointments[i].Status = status
			return true
		}
		return false
	})
}

// SetVipStatus сохраняет VIP-статус и синхронизирует признак VIP у пользователя.
func (s *Store) SetVipStatus(vip *model.VipStatus) {
	s.update(func(st *State) bool {
		st.VipStatus = vip
		if st.User != nil {
			u := *st.User
			u.IsVIP = vip != nil && vip.IsVIP
			st.User = &u
		}
		return true
	})
}
