// Package session holds the editing state of one exploration session: the
// code typed per query kind, the active kind, the cursor selection and the
// PromQL time-range form.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/ports"
)

const (
	DefaultSQLCode    = "SELECT * FROM numbers"
	DefaultPromQLCode = ""
)

// Option is a selectable editor language.
type Option struct {
	Value domain.QueryKind
	Label string
}

// Session is owned by one consumer (a REPL, a test) and passed explicitly to
// whatever needs the current code or time range.
type Session struct {
	mu       sync.Mutex
	id       string
	kind     domain.QueryKind
	code     map[domain.QueryKind]string
	cursor   [2]int
	promForm domain.PromForm
	now      func() time.Time
}

// New creates a session with the default code and a relative five minute window.
func New() *Session {
	return &Session{
		id:   uuid.NewString(),
		kind: domain.KindSQL,
		code: map[domain.QueryKind]string{
			domain.KindSQL:    DefaultSQLCode,
			domain.KindPromQL: DefaultPromQLCode,
		},
		promForm: domain.DefaultPromForm(),
		now:      time.Now,
	}
}

// ID identifies the session in the execution history.
func (s *Session) ID() string {
	return s.id
}

// SetClock replaces the time source used to resolve relative ranges.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Kind returns the active query kind.
func (s *Session) Kind() domain.QueryKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// SetKind changes the active query kind.
func (s *Session) SetKind(kind domain.QueryKind) error {
	if !kind.Valid() {
		return domain.ErrUnknownQueryKind
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = kind
	return nil
}

// Code returns the code held for kind.
func (s *Session) Code(kind domain.QueryKind) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code[kind]
}

// CurrentCode returns the code of the active kind.
func (s *Session) CurrentCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code[s.kind]
}

// SetCode replaces the code held for kind.
func (s *Session) SetCode(kind domain.QueryKind, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code[kind] = code
}

// SetCursor records the editor selection as [start, end).
func (s *Session) SetCursor(start, end int) {
	if end < start {
		start, end = end, start
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = [2]int{start, end}
}

// Cursor returns the current selection.
func (s *Session) Cursor() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor[0], s.cursor[1]
}

// InsertCode appends value on a new line of the active kind's code.
func (s *Session) InsertCode(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code[s.kind] = s.code[s.kind] + "\n" + value
}

// InsertName replaces the selection in the active kind's code with name.
// The selection is clamped to the code bounds.
func (s *Session) InsertName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.code[s.kind]
	start := clamp(s.cursor[0], 0, len(code))
	end := clamp(s.cursor[1], start, len(code))
	s.code[s.kind] = code[:start] + name + code[end:]
}

// QueryOptions lists the languages offered by the editor.
func (s *Session) QueryOptions() []Option {
	return []Option{
		{Value: domain.KindSQL, Label: "SQL"},
		{Value: domain.KindPromQL, Label: "PromQL"},
	}
}

// PromForm returns the current time-range form.
func (s *Session) PromForm() domain.PromForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promForm
}

// SetPromForm stores a normalized copy of form.
func (s *Session) SetPromForm(form domain.PromForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promForm = form.Normalize()
}

// PromRange resolves the form at call time.
func (s *Session) PromRange() domain.PromRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promForm.Resolve(s.now())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ ports.TimeRangeSource = (*Session)(nil)
