package server

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kcnet/incentives/devnet"
	"github.com/kcnet/incentives/ledger"
	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/sampling"
	"github.com/kcnet/incentives/score"
	"github.com/kcnet/incentives/staking"
)

// api serves the REST interface over the engines and the devnet.
type api struct {
	store   *ledger.Store
	sampler *sampling.Engine
	staker  *staking.Engine
	scorer  *score.Calculator
	network *devnet.Network
}

type apiOptions struct {
	allowedOrigins string
	devnetRoutes   bool
}

func (a *api) router(logger *zap.Logger, opts apiOptions) http.Handler {
	router := mux.NewRouter()
	v1 := router.PathPrefix("/v1").Subrouter()

	a.mountSampling(v1)
	a.mountStaking(v1)
	a.mountJournal(v1)
	if opts.devnetRoutes {
		a.mountDevnet(v1.PathPrefix("/devnet").Subrouter())
	}

	router.Use(requestLogger(logger), metricsMiddleware)

	origins := strings.Split(strings.TrimSpace(opts.allowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}
	handler := handlers.CompressHandler(router)
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)
}

// requestLogger attaches a logger carrying the route and a fresh request id
// to the request context.
func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.Named(routeName(r)).With(zap.Stringer("request_id", uuid.New()))
			reqLogger.Debug("new request", zap.String("method", r.Method), zap.String("uri", r.URL.RequestURI()))
			next.ServeHTTP(w, r.WithContext(logging.NewContext(r.Context(), reqLogger)))
		})
	}
}
