package auth

import "testing"

func TestExtractAccessTokenClassification(t *testing.T) {
	testCases := []struct {
		name      string
		header    string
		wantState TokenState
		wantToken string
	}{
		{name: "absent header", header: "", wantState: TokenAbsent},
		{name: "bearer token", header: "Bearer abc123", wantState: TokenPresent, wantToken: "abc123"},
		{name: "wrong scheme", header: "Basic abc123", wantState: TokenMalformed},
		{name: "missing token", header: "Bearer ", wantState: TokenMalformed},
		{name: "scheme only", header: "Bearer", wantState: TokenMalformed},
		{name: "token with spaces", header: "Bearer abc 123", wantState: TokenMalformed},
		{name: "lowercase scheme", header: "bearer abc123", wantState: TokenMalformed},
		{name: "trailing whitespace", header: "Bearer abc123 ", wantState: TokenMalformed},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			token, state := ExtractAccessToken(testCase.header)
			if state != testCase.wantState {
				t.Fatalf("unexpected state for %q: got %d, want %d", testCase.header, state, testCase.wantState)
			}
			if token != testCase.wantToken {
				t.Fatalf("unexpected token for %q: got %q, want %q", testCase.header, token, testCase.wantToken)
			}
		})
	}
}
