package domain

import (
	"slices"
	"time"
)

// Session is one archived batch of generated agent strings.
type Session struct {
	ID        string
	CreatedAt time.Time
	Count     int
	Agents    []string
}

// NewSession creates a session holding a copy of agents in generation order.
func NewSession(id string, createdAt time.Time, agents []string) Session {
	return Session{
		ID:        id,
		CreatedAt: createdAt,
		Count:     len(agents),
		Agents:    slices.Clone(agents),
	}
}

func (s Session) clone() Session {
	s.Agents = slices.Clone(s.Agents)
	return s
}

// DedupeSessions repairs a loaded history so that ids are unique and no
// string belongs to two sessions. The first occurrence wins; sessions left
// without members are dropped and counts are recomputed.
func DedupeSessions(sessions []Session) []Session {
	ids := make(map[string]struct{}, len(sessions))
	held := make(map[string]struct{})
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if _, dup := ids[s.ID]; dup {
			continue
		}
		agents := make([]string, 0, len(s.Agents))
		for _, a := range s.Agents {
			if _, taken := held[a]; taken {
				continue
			}
			held[a] = struct{}{}
			agents = append(agents, a)
		}
		if len(agents) == 0 {
			continue
		}
		ids[s.ID] = struct{}{}
		out = append(out, NewSession(s.ID, s.CreatedAt, agents))
	}
	return out
}

// SessionLog is the chronological history of archived sessions.
// It only tracks sessions; releasing members from the Registry is the
// caller's job so both steps can be applied together.
type SessionLog struct {
	sessions []Session
	newID    func() string
	now      func() time.Time
}

// NewSessionLog creates an empty log that stamps sessions with newID and now.
func NewSessionLog(newID func() string, now func() time.Time) *SessionLog {
	return &SessionLog{newID: newID, now: now}
}

// Append archives agents as a new session and returns it.
func (l *SessionLog) Append(agents []string) Session {
	s := NewSession(l.newID(), l.now().UTC(), agents)
	l.sessions = append(l.sessions, s)
	return s
}

// Restore replaces the log content with previously persisted sessions.
func (l *SessionLog) Restore(sessions []Session) {
	l.sessions = make([]Session, len(sessions))
	for i, s := range sessions {
		l.sessions[i] = s.clone()
	}
}

// Find returns the session with the given id.
func (l *SessionLog) Find(id string) (Session, error) {
	i := l.index(id)
	if i < 0 {
		return Session{}, ErrSessionNotFound
	}
	return l.sessions[i].clone(), nil
}

// Delete removes the session with the given id and returns its members.
func (l *SessionLog) Delete(id string) ([]string, error) {
	i := l.index(id)
	if i < 0 {
		return nil, ErrSessionNotFound
	}
	agents := l.sessions[i].Agents
	l.sessions = slices.Delete(l.sessions, i, i+1)
	return agents, nil
}

// Last returns the most recently archived session.
func (l *SessionLog) Last() (Session, error) {
	if len(l.sessions) == 0 {
		return Session{}, ErrSessionNotFound
	}
	return l.sessions[len(l.sessions)-1].clone(), nil
}

// All returns the sessions oldest first.
func (l *SessionLog) All() []Session {
	out := make([]Session, len(l.sessions))
	for i, s := range l.sessions {
		out[i] = s.clone()
	}
	return out
}

// Len returns the number of sessions.
func (l *SessionLog) Len() int {
	return len(l.sessions)
}

// Clear drops every session.
func (l *SessionLog) Clear() {
	l.sessions = nil
}

func (l *SessionLog) index(id string) int {
	return slices.IndexFunc(l.sessions, func(s Session) bool { return s.ID == id })
}
