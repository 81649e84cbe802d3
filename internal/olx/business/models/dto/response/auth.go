package response

// AuthResponse is the payload of a successful credential exchange.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	// ExpiresIn is the token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}
