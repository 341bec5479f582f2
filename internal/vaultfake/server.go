// Package vaultfake is an in-memory implementation of the Meeco vault and
// keystore REST APIs, good enough to run the SDK services end to end in tests
// and for local development against `cli -vault-url`.
//
// It keeps the protocol behavior the client depends on: SRP login, wrapped key
// storage, items and slots, the invitation handshake, shares with per-share
// slot values, and the client task queue. Updating a shared item queues an
// update_item_shares task for its owner. Nothing is persisted.
package vaultfake

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
	"github.com/dmitrijs2005/meecokeeper/internal/logging"
	"github.com/google/uuid"
)

const (
	defaultPerPage = 200
	sessionTTL     = time.Hour
)

type Option func(*Server)

// WithSubscriptionKey makes both APIs reject requests without the key.
func WithSubscriptionKey(key string) Option {
	return func(s *Server) { s.subscriptionKey = key }
}

// WithPerPage sets the default page size of list endpoints.
func WithPerPage(n int) Option {
	return func(s *Server) { s.perPage = n }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// Server holds the state of both APIs. Use Start for httptest listeners or
// mount VaultHandler and KeystoreHandler yourself.
type Server struct {
	mu sync.Mutex

	cryppo          cryptox.Cryppo
	log             logging.Logger
	subscriptionKey string
	perPage         int

	keystoreTokens  *issuer
	vaultTokens     *issuer
	admissionTokens *issuer

	ks    keystoreState
	vault vaultState

	vaultSrv    *httptest.Server
	keystoreSrv *httptest.Server
}

func New(opts ...Option) *Server {
	s := &Server{
		cryppo:          cryptox.NewCryppo(0),
		log:             logging.Nop(),
		perPage:         defaultPerPage,
		keystoreTokens:  newIssuer(sessionTTL),
		vaultTokens:     newIssuer(sessionTTL),
		admissionTokens: newIssuer(5 * time.Minute),
	}
	for _, o := range opts {
		o(s)
	}
	s.ks.init()
	s.vault.init()
	return s
}

// Start serves both APIs on local httptest listeners.
func (s *Server) Start() {
	s.vaultSrv = httptest.NewServer(s.VaultHandler())
	s.keystoreSrv = httptest.NewServer(s.KeystoreHandler())
}

func (s *Server) VaultURL() string    { return s.vaultSrv.URL }
func (s *Server) KeystoreURL() string { return s.keystoreSrv.URL }

func (s *Server) Close() {
	if s.vaultSrv != nil {
		s.vaultSrv.Close()
	}
	if s.keystoreSrv != nil {
		s.keystoreSrv.Close()
	}
}

// ---- plumbing shared by both APIs ----

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type httpError struct {
	status int
	code   string
	msg    string
}

func (e *httpError) Error() string { return e.msg }

var (
	errUnauthorized = &httpError{status: http.StatusUnauthorized, code: "unauthorized", msg: "unauthorized"}
	errNotFound     = &httpError{status: http.StatusNotFound, code: "not_found", msg: "not found"}
)

func badRequest(code, msg string) *httpError {
	return &httpError{status: http.StatusBadRequest, code: code, msg: msg}
}

func forbidden(msg string) *httpError {
	return &httpError{status: http.StatusForbidden, code: "forbidden", msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var he *httpError
	if !errors.As(err, &he) {
		he = &httpError{status: http.StatusInternalServerError, code: "internal", msg: err.Error()}
	}
	writeJSON(w, he.status, map[string]any{"errors": []apiError{{Error: he.code, Message: he.msg}}})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid_body", err.Error())
	}
	return nil
}

// handlerFunc is an endpoint returning its status and body, or an error.
type handlerFunc func(r *http.Request) (int, any, error)

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.subscriptionKey != "" && r.Header.Get(common.SubscriptionKeyHeaderName) != s.subscriptionKey {
			writeError(w, errUnauthorized)
			return
		}
		status, body, err := h(r)
		if err != nil {
			s.log.Debug(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			writeError(w, err)
			return
		}
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, body)
	}
}

// newID returns a time ordered id, so sorting ids sorts by creation.
func newID() string { return uuid.Must(uuid.NewV7()).String() }

// page cuts one page out of ids (already sorted) after the cursor in the
// request and returns the ids of that page plus the next cursor.
func (s *Server) page(r *http.Request, ids []string) ([]string, string, []models.PageMeta) {
	perPage := s.perPage
	if v, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && v > 0 {
		perPage = v
	}

	start := 0
	if after := r.URL.Query().Get("next_page_after"); after != "" {
		start = sort.SearchStrings(ids, after)
		if start < len(ids) && ids[start] == after {
			start++
		}
	}
	if start > len(ids) {
		start = len(ids)
	}

	end := min(start+perPage, len(ids))
	out := ids[start:end]
	if end < len(ids) && len(out) > 0 {
		return out, out[len(out)-1], []models.PageMeta{{NextPageExists: true}}
	}
	return out, "", []models.PageMeta{{NextPageExists: false}}
}

func bearer(r *http.Request) string {
	return strings.TrimSpace(strings.TrimPrefix(r.Header.Get(common.AuthorizationHeaderName), "Bearer "))
}

func sortedIDs[T any](m map[string]T, keep func(T) bool) []string {
	ids := make([]string, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
