package ws

import (
	"time"

	"teos_mining/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Message is the envelope for every frame sent to a client
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// client → server
type inbound struct {
	Type string `json:"type"`
}

// server → client
type CreditPayload struct {
	EventID   uuid.UUID       `json:"event_id"`
	Token     domain.Token    `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
	Tier      domain.Tier     `json:"tier"`
	CreatedAt time.Time       `json:"created_at"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func messageFor(ev domain.ClaimEvent) Message {
	kind := MsgClaim
	if ev.ReferralBonus {
		kind = MsgReferralBonus
	}
	return Message{Type: kind, Data: CreditPayload{
		EventID:   ev.ID,
		Token:     ev.Token,
		Amount:    ev.Amount,
		Tier:      ev.Tier,
		CreatedAt: ev.CreatedAt,
	}}
}
