// Package api exposes the proofhost verifier over HTTP: instruction
// submission, record and account lookups and the active verifying key.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/zkforge/proofhost/host"
	"github.com/zkforge/proofhost/log"
	stg "github.com/zkforge/proofhost/storage"
)

const maxRequestBodyLog = 512

// APIConfig represents the configuration for the API HTTP server.
type APIConfig struct {
	Host     string
	Port     int
	Storage  *stg.Storage
	Verifier *host.Host
	// KeyID is the id of the verifying key served on the key endpoint.
	KeyID string
}

// API is the HTTP server around a verifier host.
type API struct {
	router   *chi.Mux
	storage  *stg.Storage
	verifier *host.Host
	keyID    string
}

// New creates an API instance with the given configuration and starts the
// HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Verifier == nil {
		return nil, fmt.Errorf("missing verifier instance")
	}
	a := &API{
		storage:  conf.Storage,
		verifier: conf.Verifier,
		keyID:    conf.KeyID,
	}
	a.initRouter()
	go func() {
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router, mainly for tests.
func (a *API) Router() *chi.Mux {
	return a.router
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(requestIDMiddleware)
	a.router.Use(loggingMiddleware(maxRequestBodyLog))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", VerifyEndpoint, "method", "POST")
	a.router.Post(VerifyEndpoint, a.submitInstruction)
	log.Infow("register handler", "endpoint", RecordsEndpoint, "method", "GET")
	a.router.Get(RecordsEndpoint, a.listRecords)
	log.Infow("register handler", "endpoint", RecordEndpoint, "method", "GET")
	a.router.Get(RecordEndpoint, a.record)
	log.Infow("register handler", "endpoint", AccountEndpoint, "method", "GET")
	a.router.Get(AccountEndpoint, a.account)
	log.Infow("register handler", "endpoint", AccountCreditEndpoint, "method", "POST")
	a.router.Post(AccountCreditEndpoint, a.creditAccount)
	log.Infow("register handler", "endpoint", VerifyingKeyEndpoint, "method", "GET")
	a.router.Get(VerifyingKeyEndpoint, a.verifyingKey)
}
