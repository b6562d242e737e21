package domain

// TranscriptTurn is one persisted chat exchange.
type TranscriptTurn struct {
	PK        string
	SK        string
	SessionID string
	UserText  string
	ReplyText string
	Outcome   Outcome
	TTL       int64
}

// SessionMeta aggregates a session's persisted state.
type SessionMeta struct {
	PK           string
	SK           string
	SessionID    string
	Turns        int
	BookingID    string
	OwnerName    string
	LastActivity string
	TTL          int64
}
