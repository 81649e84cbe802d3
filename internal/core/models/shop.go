package models

import "time"

// Shop is the tenant boundary. Every product, import log and listing belongs
// to exactly one shop; cross-shop references are forbidden at the schema level.
type Shop struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OlxLogin  string    `json:"olx_login"`
	OlxSecret string    `json:"-"`
	Token     Token     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Token is the shop-scoped marketplace credential. Version guards the
// compare-and-swap refresh: only a writer holding the current version may
// replace the token, so concurrent refreshes cannot clobber each other.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
	Version     int64
}

// Expired reports whether the token needs a refresh. A small margin keeps a
// token that expires mid-request from being used at all.
func (t Token) Expired(now time.Time) bool {
	const margin = 30 * time.Second
	return t.AccessToken == "" || !now.Add(margin).Before(t.ExpiresAt)
}
