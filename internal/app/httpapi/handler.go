// Package httpapi exposes the REST and websocket API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/stampd-app/stampd/internal/app"
	"github.com/stampd-app/stampd/internal/app/domain/business"
	"github.com/stampd-app/stampd/internal/app/domain/program"
	"github.com/stampd-app/stampd/internal/app/domain/session"
	"github.com/stampd-app/stampd/internal/app/metrics"
	"github.com/stampd-app/stampd/internal/app/services/programs"
	"github.com/stampd-app/stampd/internal/app/storage"
	"github.com/stampd-app/stampd/internal/middleware"
	"github.com/stampd-app/stampd/internal/qr"
	"github.com/stampd-app/stampd/pkg/logger"
)

// RouterOptions tunes the middleware around the API routes.
type RouterOptions struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// Paths that never require a session.
var publicPaths = []string{
	"/auth/signup",
	"/auth/signin",
	"/businesses",
	"/healthz",
	"/metrics",
}

// NewHandler returns the full API handler with middleware applied.
func NewHandler(application *app.Application, log *logger.Logger, opts RouterOptions) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/auth/signup", h.signUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", h.signIn).Methods(http.MethodPost)
	r.HandleFunc("/auth/signout", h.signOut).Methods(http.MethodPost)
	r.HandleFunc("/auth/me", h.me).Methods(http.MethodGet)

	r.HandleFunc("/scan", h.scan).Methods(http.MethodPost)
	r.HandleFunc("/redeem", h.redeem).Methods(http.MethodPost)

	r.HandleFunc("/customers/{customer}/programs", h.customerPrograms).Methods(http.MethodGet)

	r.HandleFunc("/businesses", h.listBusinesses).Methods(http.MethodGet)
	r.HandleFunc("/businesses", h.registerBusiness).Methods(http.MethodPost)
	r.HandleFunc("/businesses/{business}", h.getBusiness).Methods(http.MethodGet)
	r.HandleFunc("/businesses/{business}", h.updateBusiness).Methods(http.MethodPut)
	r.HandleFunc("/businesses/{business}/dashboard", h.dashboard).Methods(http.MethodGet)
	r.HandleFunc("/businesses/{business}/analytics/today", h.analyticsToday).Methods(http.MethodGet)
	r.HandleFunc("/businesses/{business}/analytics", h.analyticsRange).Methods(http.MethodGet)
	r.HandleFunc("/businesses/{business}/programs/{customer}", h.getProgram).Methods(http.MethodGet)
	r.HandleFunc("/businesses/{business}/feed", h.feed).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	authMW := middleware.NewAuthMiddleware(application.Auth, log, publicPaths)
	limiter := middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, log)
	cors := middleware.NewCORSMiddleware(opts.CORSOrigins)
	logging := middleware.LoggingMiddleware(log)

	var chain http.Handler = r
	chain = limiter.Handler(chain)
	chain = authMW.Handler(chain)
	chain = cors.Handler(chain)
	chain = metrics.InstrumentHandler(chain)
	chain = logging(chain)
	return chain
}

func (h *handler) signUp(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		AccountType string `json:"account_type"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.app.Auth.SignUp(r.Context(), payload.Email, payload.Password, session.AccountType(payload.AccountType))
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token, user, err := h.app.Auth.SignIn(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (h *handler) signOut(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token := ""
	if len(header) > 7 {
		token = header[7:]
	}
	if err := h.app.Auth.SignOut(r.Context(), token); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	user, err := h.app.Auth.GetUser(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// scan is the smart scanner: the signed-in business scans a customer's QR
// code and either adds a stamp or redeems a full card.
func (h *handler) scan(w http.ResponseWriter, r *http.Request) {
	h.processScan(w, r, h.app.Programs.Scan)
}

// redeem is the dedicated prize scanner: it only converts eligible cards.
func (h *handler) redeem(w http.ResponseWriter, r *http.Request) {
	h.processScan(w, r, h.app.Programs.RedeemPrize)
}

func (h *handler) processScan(w http.ResponseWriter, r *http.Request, process func(ctx context.Context, customerID, businessID string) (program.Outcome, error)) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok || identity.AccountType != session.AccountBusiness {
		writeError(w, http.StatusForbidden, errors.New("scanning requires a business account"))
		return
	}

	var body struct {
		Payload string `json:"payload"`
	}
	if err := decodeJSON(r.Body, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	decoded, err := qr.Decode(body.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	outcome, err := process(r.Context(), decoded.CustomerID, identity.UserID)
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *handler) customerPrograms(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["customer"]
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok || identity.UserID != customerID {
		writeError(w, http.StatusForbidden, errors.New("not your loyalty cards"))
		return
	}

	cards, err := h.app.Programs.ListForCustomer(r.Context(), customerID)
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *handler) listBusinesses(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Businesses.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) registerBusiness(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok || identity.AccountType != session.AccountBusiness {
		writeError(w, http.StatusForbidden, errors.New("registration requires a business account"))
		return
	}

	var biz business.Business
	if err := decodeJSON(r.Body, &biz); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// The business profile is keyed by the owning account.
	biz.ID = identity.UserID

	created, err := h.app.Businesses.Register(r.Context(), biz)
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getBusiness(w http.ResponseWriter, r *http.Request) {
	biz, err := h.app.Businesses.Get(r.Context(), mux.Vars(r)["business"])
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, biz)
}

func (h *handler) updateBusiness(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["business"]
	if !h.requireOwner(w, r, businessID) {
		return
	}

	var biz business.Business
	if err := decodeJSON(r.Body, &biz); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	biz.ID = businessID

	updated, err := h.app.Businesses.Update(r.Context(), biz)
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["business"]
	if !h.requireOwner(w, r, businessID) {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	board, err := h.app.Businesses.Dashboard(r.Context(), businessID, limit)
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *handler) analyticsToday(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["business"]
	if !h.requireOwner(w, r, businessID) {
		return
	}

	counter, err := h.app.Analytics.Today(r.Context(), businessID)
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, counter)
}

func (h *handler) analyticsRange(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["business"]
	if !h.requireOwner(w, r, businessID) {
		return
	}

	q := r.URL.Query()
	if days := q.Get("days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("days must be an integer"))
			return
		}
		summary, err := h.app.Analytics.LastNDays(r.Context(), businessID, n)
		if err != nil {
			writeError(w, statusFor(err, http.StatusBadRequest), err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	summary, err := h.app.Analytics.Range(r.Context(), businessID, q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, statusFor(err, http.StatusBadRequest), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) getProgram(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !h.requireOwner(w, r, vars["business"]) {
		return
	}

	rec, err := h.app.Programs.Get(r.Context(), vars["customer"], vars["business"])
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// feed streams scan events for the business dashboard over a websocket.
func (h *handler) feed(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["business"]
	if !h.requireOwner(w, r, businessID) {
		return
	}
	h.app.Feed.ServeWS(w, r, businessID)
}

// requireOwner checks the caller is the business named in the path.
func (h *handler) requireOwner(w http.ResponseWriter, r *http.Request, businessID string) bool {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok || identity.AccountType != session.AccountBusiness || identity.UserID != businessID {
		writeError(w, http.StatusForbidden, errors.New("not your business"))
		return false
	}
	return true
}

// statusFor maps service errors to HTTP statuses, falling back to def.
func statusFor(err error, def int) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, programs.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrExists):
		return http.StatusConflict
	case errors.Is(err, programs.ErrScanConflict), errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return def
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
