package domain

import "time"

// TokenTypeBearer is the token_type returned with every access token.
const TokenTypeBearer = "Bearer"

// TokenPair is what a successful login returns. Refresh leaves RefreshToken
// empty.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    time.Duration
}
