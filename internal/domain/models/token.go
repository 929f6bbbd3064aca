package models

import "time"

// TokenKind selects one of the two independently secured backends.
type TokenKind int

const (
	// TokenHistorical authenticates against the product's own backend and is persisted.
	TokenHistorical TokenKind = iota
	// TokenLive authenticates against the third-party feed and lives in memory only.
	TokenLive
)

func (k TokenKind) String() string {
	switch k {
	case TokenHistorical:
		return "historical"
	case TokenLive:
		return "live"
	default:
		return "unknown"
	}
}

type Token struct {
	Value      string
	ExpiresAt  time.Time
	Persistent bool
}

// Valid is false once now reaches ExpiresAt.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.Value != "" && now.Before(t.ExpiresAt)
}
