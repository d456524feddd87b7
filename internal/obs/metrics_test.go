package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/healthz":                    "/healthz",
		"/v1/auth/login":              "/v1/auth/login",
		"/v1/auth/login?next=profile": "/v1/auth/login",
		"/v1/auth/register/company":   "/v1/auth/register/company",
		"/v1/notifications/stream":    "/v1/notifications/stream",
		"/v1/accounts/abc":            "/other",
		"/wp-admin":                   "/other",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
