package auth

import "regexp"

// TokenState classifies the Authorization header of an inbound request.
type TokenState int

const (
	// TokenAbsent means the request carried no Authorization header.
	TokenAbsent TokenState = iota
	// TokenMalformed means a header was present but is not a well-formed
	// bearer credential.
	TokenMalformed
	// TokenPresent means a bearer access token was extracted.
	TokenPresent
)

// EBU Tech 3366, section 7.7.2: the access token is an opaque string of
// non-whitespace characters following the Bearer scheme.
var bearerTokenPattern = regexp.MustCompile(`^Bearer (\S+)$`)

// ExtractAccessToken classifies the raw Authorization header value. The
// three-way result keeps "no credentials offered" (challenge response) apart
// from "credentials offered but unreadable" (client error response).
func ExtractAccessToken(header string) (string, TokenState) {
	if header == "" {
		return "", TokenAbsent
	}

	match := bearerTokenPattern.FindStringSubmatch(header)
	if match == nil {
		return "", TokenMalformed
	}

	return match[1], TokenPresent
}
