package middleware

import (
	"net/url"
	"strconv"
	"strings"
)

// Session cookie names written by the auth flow.
const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"
	CodeVerifierCookie = "sb-code-verifier"
)

// Page paths the policy redirects to.
const (
	SignInPath     = "/sign-in"
	SignOutPath    = "/sign-out"
	OnboardingPath = "/onboarding"
	ProtectedPath  = "/protected"
)

// Decision is what the session middleware does with a request. An empty
// Redirect means the request passes through.
type Decision struct {
	Redirect     string
	ClearCookies []string
	SkipRefresh  bool
}

// SessionPolicy holds the redirect rules for page requests. It is pure; the
// middleware supplies authentication and onboarding state.
type SessionPolicy struct {
	protectedPrefixes      []string
	onboardingExemptPrefix []string
	onboardingExemptPaths  []string
	authCookieBases        []string
}

// DefaultSessionPolicy returns the rules used by the web app.
func DefaultSessionPolicy() *SessionPolicy {
	return &SessionPolicy{
		protectedPrefixes:      []string{ProtectedPath, "/edit-profile", OnboardingPath},
		onboardingExemptPrefix: []string{OnboardingPath, "/auth", "/api"},
		onboardingExemptPaths:  []string{SignInPath, SignOutPath},
		authCookieBases: []string{
			AccessTokenCookie,
			RefreshTokenCookie,
			"supabase-auth-token",
			"__client-auth-token",
		},
	}
}

// IsSignOut reports whether the query carries the signout flag.
func (p *SessionPolicy) IsSignOut(rawQuery string) bool {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return strings.Contains(rawQuery, "signout")
	}
	_, ok := q["signout"]
	return ok
}

// SignOutCookies lists every auth cookie name, including the chunked .0-.9
// variants the browser client writes for large sessions.
func (p *SessionPolicy) SignOutCookies() []string {
	names := make([]string, 0, len(p.authCookieBases)*11)
	for _, base := range p.authCookieBases {
		names = append(names, base)
		for i := 0; i < 10; i++ {
			names = append(names, base+"."+strconv.Itoa(i))
		}
	}
	return names
}

// NeedsOnboardingCheck reports whether Decide would look at the onboarded
// flag, so the middleware can skip the profile lookup otherwise.
func (p *SessionPolicy) NeedsOnboardingCheck(path string, authenticated bool) bool {
	if !authenticated {
		return false
	}
	for _, exempt := range p.onboardingExemptPaths {
		if path == exempt {
			return false
		}
	}
	return !hasAnyPrefix(path, p.onboardingExemptPrefix)
}

// Decide applies the rules in order: sign-out, protected pages for anonymous
// users, onboarding for users without a profile, then the root redirect.
func (p *SessionPolicy) Decide(path string, authenticated, onboarded bool, rawQuery string) Decision {
	if p.IsSignOut(rawQuery) {
		return Decision{
			Redirect:     SignInPath,
			ClearCookies: p.SignOutCookies(),
			SkipRefresh:  true,
		}
	}

	if !authenticated {
		if hasAnyPrefix(path, p.protectedPrefixes) {
			target := path
			if rawQuery != "" {
				target += "?" + rawQuery
			}
			return Decision{Redirect: SignInPath + "?next=" + url.QueryEscape(target)}
		}
		return Decision{}
	}

	if !onboarded && p.NeedsOnboardingCheck(path, authenticated) {
		return Decision{Redirect: OnboardingPath}
	}

	if path == "/" {
		return Decision{Redirect: ProtectedPath}
	}
	return Decision{}
}

// hasAnyPrefix matches whole path segments, so /protected matches
// /protected/x but not /protectedness.
func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
