package models

// APIClaims represents the claims extracted from an API bearer token
type APIClaims struct {
	Sub string `json:"sub"` // Subject (operator or automation name)
	Iss string `json:"iss"` // Issuer
	Exp int64  `json:"exp"` // Expiration time
	Iat int64  `json:"iat"` // Issued at
}
