package ws

const (
	// client - server
	MsgPing = "ping"

	// server - client
	MsgReady         = "ready"
	MsgPong          = "pong"
	MsgClaim         = "claim"
	MsgReferralBonus = "referral_bonus"
	MsgError         = "error"
)
