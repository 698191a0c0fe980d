package service

import (
	"time"

	"teos_mining/internal/domain"
)

// Session is the authenticated caller's cached view of its account. It is
// passed explicitly to operations and refreshed after every mutation.
type Session struct {
	Token    string          `json:"-"`
	Account  *domain.Account `json:"account"`
	Balances domain.Balances `json:"balances"`
	LoadedAt time.Time       `json:"loaded_at"`
}

func (s *Session) valid() bool {
	return s != nil && s.Account != nil
}

// Clock returns the current time; tests replace it
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
