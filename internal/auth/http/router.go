package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/farmportal/internal/auth/domain"
	"github.com/aussiebroadwan/farmportal/internal/auth/metrics"
	"github.com/aussiebroadwan/farmportal/internal/auth/service"
	"github.com/aussiebroadwan/farmportal/internal/auth/store"
	"github.com/aussiebroadwan/farmportal/pkg/httpx"
	"github.com/aussiebroadwan/farmportal/pkg/slogx"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/aussiebroadwan/farmportal/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Access policies of the guarded routes.
var (
	anyPrincipal = domain.AccessPolicy{Roles: domain.AllRoles}
	adminStepUp  = domain.AccessPolicy{Roles: []domain.Role{domain.RoleAdmin}, MFARequired: true}
)

// Limits are the rate limit profiles applied per route group.
type Limits struct {
	Login   httpx.RateLimit `mapstructure:"login"`
	Token   httpx.RateLimit `mapstructure:"token"`
	Session httpx.RateLimit `mapstructure:"session"`
	Probe   httpx.RateLimit `mapstructure:"probe"`
}

// DefaultLimits returns the httpx default profiles.
func DefaultLimits() Limits {
	return Limits{
		Login:   httpx.LoginLimit,
		Token:   httpx.TokenLimit,
		Session: httpx.SessionLimit,
		Probe:   httpx.ProbeLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	validate     *validator.Validate

	store          store.Store
	Revocations    store.Revocations
	SessionService *service.SessionService
	MFAService     *service.MFAService
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer // nil disables /metrics
	Limits         Limits
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		store:        st,
		Limits:       DefaultLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerMFA()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						Farmer Portal Authentication API
//	@version					0.1.0
//	@description				Token issuance and verification for the Farmer Portal.
//	@description
//	@description				Access tokens live 30 minutes, refresh tokens 30 days. Both are HS256 JWTs.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/farmportal
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h under pattern with per-route latency metrics outermost.
func (r *Router) handle(pattern string, h http.Handler, mws ...httpx.Middleware) {
	mws = append([]httpx.Middleware{r.Metrics.Instrument(pattern)}, mws...)
	r.Mux.Handle(pattern, httpx.Chain(h, mws...))
}

func (r *Router) guard(ap domain.AccessPolicy) httpx.Middleware {
	return RequirePolicy(r.SessionService, ap)
}

func (r *Router) registerSession() {
	h := &SessionHandler{Sessions: r.SessionService, Validate: r.validate}

	// Limited per (peer, identifier) so one address cannot grind one account.
	r.handle("POST /v1/auth/login", http.HandlerFunc(h.HandleLogin),
		httpx.RateLimitByIPAndIdentifier(r.Limits.Login, "identifier"),
	)

	r.handle("POST /v1/auth/refresh", http.HandlerFunc(h.HandleRefresh),
		httpx.RateLimitByIP(r.Limits.Token),
	)

	r.handle("POST /v1/auth/logout", http.HandlerFunc(h.HandleLogout),
		r.guard(anyPrincipal),
		httpx.RateLimitBySubject(r.Limits.Token),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService, Validate: r.validate}

	r.handle("POST /v1/auth/mfa/challenge", http.HandlerFunc(h.HandleChallenge),
		r.guard(anyPrincipal),
		httpx.RateLimitBySubject(r.Limits.Token),
	)

	r.handle("POST /v1/auth/mfa/totp/enroll", http.HandlerFunc(h.HandleEnroll),
		r.guard(anyPrincipal),
		httpx.RateLimitBySubject(r.Limits.Token),
	)

	// Same bucket as login: six digit codes are cheap to guess.
	r.handle("POST /v1/auth/mfa/totp/verify", http.HandlerFunc(h.HandleVerify),
		r.guard(anyPrincipal),
		httpx.RateLimitBySubject(r.Limits.Login),
	)
}

func (r *Router) registerUsers() {
	r.handle("GET /v1/users/me", http.HandlerFunc(HandleMe),
		r.guard(anyPrincipal),
		httpx.RateLimitBySubject(r.Limits.Session),
	)

	r.handle("GET /v1/admin/overview", http.HandlerFunc(HandleAdminOverview),
		r.guard(adminStepUp),
		httpx.RateLimitBySubject(r.Limits.Session),
	)
}

func (r *Router) registerSystem() {
	r.handle("GET /livez", LivezHandler(r.startTime, r.buildVersion),
		httpx.RateLimitByIP(r.Limits.Probe),
	)
	r.handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Revocations),
		httpx.RateLimitByIP(r.Limits.Probe),
	)

	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics", httpx.Chain(
			promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{}),
			httpx.RateLimitByIP(r.Limits.Probe),
		))
	}
}
