package auth

import "strings"

const clientMode = "client"

// BuildChallenge renders the CPA WWW-Authenticate header value advertising
// the authorization provider and its supported authentication modes, per EBU
// Tech 3366, section 7.7.2. When includeClientMode is false the "client" mode
// is withheld, which invites an already-paired device to elevate to user
// mode. An empty resulting mode list yields an empty string, meaning no
// header should be set.
//
// Values are quoted verbatim; the protocol offers no escaping, so provider
// names must not contain a double quote.
func BuildChallenge(apName, apBaseURI string, modes []string, includeClientMode bool) string {
	advertised := make([]string, 0, len(modes))
	for _, mode := range modes {
		if !includeClientMode && mode == clientMode {
			continue
		}
		advertised = append(advertised, mode)
	}

	if len(advertised) == 0 {
		return ""
	}

	parts := []string{
		challengeParam("version", "1.0"),
		challengeParam("name", apName),
		challengeParam("uri", apBaseURI),
		challengeParam("modes", strings.Join(advertised, ",")),
	}

	return "CPA " + strings.Join(parts, " ")
}

func challengeParam(key, value string) string {
	return key + "=" + `"` + value + `"`
}
