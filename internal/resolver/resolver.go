// Package resolver decides which body of a snippet a request gets to see.
//
// A decision is a walk over an ordered list of named rules. The first rule
// that matches wins and the real body is served. If none match, the fake
// body is served. Rules only look at Signals, never at the raw request, so
// the order and the matching logic can be tested without HTTP.
package resolver

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Rule names reported in Decision.Rule.
const (
	RuleSecret       = "secret"
	RuleClientHeader = "client-header"
	RuleUserAgent    = "user-agent"
	RuleClientQuery  = "client-query"
	RuleNone         = "none"
)

// ClientHeader is the request header a privileged client sets to identify itself.
const ClientHeader = "X-Client-Type"

// Signals are the request properties the rules look at.
type Signals struct {
	Secret       string // ?secret=
	ClientHeader string // X-Client-Type
	UserAgent    string // User-Agent
	ClientQuery  string // ?client=
}

// SignalsFromRequest extracts Signals from an incoming request.
func SignalsFromRequest(r *http.Request) Signals {
	q := r.URL.Query()
	return Signals{
		Secret:       q.Get("secret"),
		ClientHeader: r.Header.Get(ClientHeader),
		UserAgent:    r.UserAgent(),
		ClientQuery:  q.Get("client"),
	}
}

// Config lists which client tags and user agents count as privileged.
type Config struct {
	// ClientTags are matched against the X-Client-Type header (ignoring
	// case) and the client query parameter (exactly).
	ClientTags []string
	// UserAgentSubstrings are searched for in the User-Agent, ignoring case.
	UserAgentSubstrings []string
}

// DefaultConfig returns the built-in privileged client list.
func DefaultConfig() Config {
	return Config{
		ClientTags:          []string{"krnl", "roblox"},
		UserAgentSubstrings: []string{"roblox"},
	}
}

// Decision is the outcome of Resolve.
type Decision struct {
	Real bool
	Rule string
}

type rule struct {
	name  string
	match func(sig Signals, secretKey string) bool
}

// Resolver applies the rules in order.
type Resolver struct {
	rules []rule
}

// New builds a Resolver. Empty entries in cfg are ignored so that a stray
// comma in configuration can never turn into "match everything".
func New(cfg Config) *Resolver {
	tags := nonEmpty(cfg.ClientTags)
	uas := make([]string, 0, len(cfg.UserAgentSubstrings))
	for _, s := range nonEmpty(cfg.UserAgentSubstrings) {
		uas = append(uas, strings.ToLower(s))
	}

	return &Resolver{rules: []rule{
		{RuleSecret, func(sig Signals, secretKey string) bool {
			return sig.Secret != "" && secretKey != "" &&
				subtle.ConstantTimeCompare([]byte(sig.Secret), []byte(secretKey)) == 1
		}},
		{RuleClientHeader, func(sig Signals, _ string) bool {
			for _, tag := range tags {
				if strings.EqualFold(sig.ClientHeader, tag) {
					return true
				}
			}
			return false
		}},
		{RuleUserAgent, func(sig Signals, _ string) bool {
			ua := strings.ToLower(sig.UserAgent)
			for _, s := range uas {
				if strings.Contains(ua, s) {
					return true
				}
			}
			return false
		}},
		{RuleClientQuery, func(sig Signals, _ string) bool {
			for _, tag := range tags {
				if sig.ClientQuery == tag {
					return true
				}
			}
			return false
		}},
	}}
}

// Resolve decides whether sig earns the real body of the snippet whose
// secret key is secretKey.
func (r *Resolver) Resolve(sig Signals, secretKey string) Decision {
	for _, rl := range r.rules {
		if rl.match(sig, secretKey) {
			return Decision{Real: true, Rule: rl.name}
		}
	}
	return Decision{Real: false, Rule: RuleNone}
}

// Pick returns real or fake according to d.
func (d Decision) Pick(fake, real string) string {
	if d.Real {
		return real
	}
	return fake
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
