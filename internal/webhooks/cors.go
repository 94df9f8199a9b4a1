package webhooks

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gobwas/glob"

	"github.com/despachantemarcelino/hookd/internal/config"
)

// CORSPolicy writes cross-origin headers. It is permissive by design of the
// endpoint: it lets browsers call it, it does not protect anything.
type CORSPolicy struct {
	anyOrigin bool
	origins   []glob.Glob
	methods   string
	headers   string
}

func NewCORSPolicy(cfg config.CORSConfig) (*CORSPolicy, error) {
	p := &CORSPolicy{
		methods: strings.Join(cfg.AllowedMethods, ", "),
		headers: strings.Join(cfg.AllowedHeaders, ", "),
	}

	for _, pattern := range cfg.AllowedOrigins {
		if pattern == "*" {
			p.anyOrigin = true
			continue
		}
		g, err := glob.Compile(pattern, '.', ':', '/')
		if err != nil {
			return nil, fmt.Errorf("compiling origin pattern %q: %w", pattern, err)
		}
		p.origins = append(p.origins, g)
	}

	return p, nil
}

// Apply sets the CORS headers for r on w.
func (p *CORSPolicy) Apply(w http.ResponseWriter, r *http.Request) {
	h := w.Header()

	if p.anyOrigin {
		h.Set("Access-Control-Allow-Origin", "*")
	} else if origin := r.Header.Get("Origin"); origin != "" {
		h.Add("Vary", "Origin")
		if p.allows(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
		}
	}

	if p.methods != "" {
		h.Set("Access-Control-Allow-Methods", p.methods)
	}
	if p.headers != "" {
		h.Set("Access-Control-Allow-Headers", p.headers)
	}
}

// Middleware applies the policy and answers preflight requests with 200.
func (p *CORSPolicy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.Apply(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *CORSPolicy) allows(origin string) bool {
	for _, g := range p.origins {
		if g.Match(origin) {
			return true
		}
	}
	return false
}
