package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/walletauth/internal/auth/authn"
	"github.com/aussiebroadwan/walletauth/internal/auth/keys"
	"github.com/aussiebroadwan/walletauth/internal/auth/metrics"
	"github.com/aussiebroadwan/walletauth/internal/auth/service"
	"github.com/aussiebroadwan/walletauth/internal/auth/store"
	"github.com/aussiebroadwan/walletauth/pkg/httpx"
	"github.com/aussiebroadwan/walletauth/pkg/slogx"

	_ "github.com/aussiebroadwan/walletauth/api/wallet" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store   store.Store
	keys    keys.Resolver
	metrics *metrics.Metrics

	TokenService *service.TokenService
	UserService  *service.UserService

	// Secrets checks client_credentials secrets, normally a *authn.SecretCache.
	Secrets authn.SecretChecker
}

func NewRouter(
	st store.Store,
	kr keys.Resolver,
	m *metrics.Metrics,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		keys:         kr,
		metrics:      m,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerToken()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Wallet Authentication Service API
//	@version		2.0.0
//	@description	Issues access and refresh tokens for wallet channels from partner signed JWTs, refresh tokens or channel client credentials.
//	@description
//	@description				Access and refresh tokens are HS512 signed. Partner tokens are RS512 or EdDSA signed and bound to a channel by their kid.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/walletauth
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
//	@description				Access token. Format: "bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// failureHook counts rejected credentials per route.
func (r *Router) failureHook(route string) authn.GateOption {
	return authn.WithFailureHook(func(ctx context.Context, err authn.ErrorWriter) {
		code := "internal"
		switch e := err.(type) {
		case *authn.OAuthError:
			code = e.Code()
		case *authn.AuthError:
			code = e.Slug()
		}
		r.metrics.AuthFailure(route, code)
		slogx.FromContext(ctx).Info("credential rejected", slog.String("route", route), slog.String("code", code))
	})
}

func (r *Router) registerToken() {
	const (
		tokenRoute  = "/v2/token"
		walletRoute = "/v2/wallet_token"
	)

	plain := &authn.ClientToken{Keys: r.keys, Secrets: r.Secrets}
	wallet := authn.WalletClientToken(r.keys, r.Secrets)

	// POST /v2/token - strict rate limit by IP and basic user (client secrets are checked here)
	r.Mux.Handle("POST "+tokenRoute,
		httpx.Chain(&TokenHandler{TokenService: r.TokenService},
			r.metrics.Middleware(tokenRoute),
			httpx.RateLimitByIPAndClient(httpx.TokenLimit),
			authn.Gate(plain, authn.TokenErrors, r.failureHook(tokenRoute)),
		),
	)

	// POST /v2/wallet_token - same grants, body nested under "token"
	r.Mux.Handle("POST "+walletRoute,
		httpx.Chain(&TokenHandler{TokenService: r.TokenService, BodyKey: "token"},
			r.metrics.Middleware(walletRoute),
			httpx.RateLimitByIPAndClient(httpx.TokenLimit),
			authn.Gate(wallet, authn.TokenErrors, r.failureHook(walletRoute)),
		),
	)
}

func (r *Router) registerUsers() {
	access := authn.Gate(&authn.AccessToken{Keys: r.keys}, authn.ResourceErrors, r.failureHook("/v2/me"))
	h := &MeHandler{UserService: r.UserService}

	r.Mux.Handle("GET /v2/me",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			r.metrics.Middleware("/v2/me"),
			httpx.RateLimitByIP(httpx.ResourceLimit),
			access,
		),
	)

	// PUT /v2/me/email - trusted channels only
	r.Mux.Handle("PUT /v2/me/email",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateEmail),
			r.metrics.Middleware("/v2/me/email"),
			httpx.RateLimitByIP(httpx.ResourceLimit),
			access,
			authn.RequireTrustedChannel,
		),
	)
}

func (r *Router) registerSystem() {
	public := authn.Gate(authn.NoAuth{}, authn.ResourceErrors)

	// Health check endpoints - public rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
			public,
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
			public,
		),
	)
	r.Mux.Handle("GET /metrics", httpx.Chain(r.metrics.Handler(), public))
}
