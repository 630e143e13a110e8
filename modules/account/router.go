package account

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"accountd/pkg/cookie"
	"accountd/pkg/logger"
	"accountd/pkg/oauth"
	"accountd/pkg/token"
	"accountd/pkg/validator"
)

// Router is the thin HTTP surface over the account service. It parses form
// fields, translates service errors into status codes and field-error maps,
// and manages the signed session cookie. All rendering is JSON; a frontend
// owns the HTML.
type Router struct {
	cfg     Config
	service *Service
	oauth   *oauth.Service
	cookies *cookie.Manager
	logger  *slog.Logger
}

// NewRouter creates the account HTTP router.
func NewRouter(cfg Config, service *Service, oauthSvc *oauth.Service, cookies *cookie.Manager, log *slog.Logger) *Router {
	if log == nil {
		log = logger.Discard()
	}
	return &Router{
		cfg:     cfg,
		service: service,
		oauth:   oauthSvc,
		cookies: cookies,
		logger:  log,
	}
}

// Handle returns the mountable handler tree.
func (rt *Router) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/register", rt.register)
	r.Post("/login", rt.login)
	r.Post("/logout", rt.logout)
	r.Get("/verify/{token}", rt.verify)
	r.Post("/forgot-password", rt.forgotPassword)
	r.Post("/reset/{token}", rt.resetPassword)
	r.Get("/oauth/{provider}", rt.oauthBegin)
	r.Get("/oauth/{provider}/callback", rt.oauthCallback)

	return r
}

func (rt *Router) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		rt.renderError(w, http.StatusBadRequest, "malformed form")
		return
	}

	acc, err := rt.service.Register(r.Context(),
		r.PostFormValue("account.email"),
		r.PostFormValue("account.name"),
		r.PostFormValue("account.password"),
	)
	if err != nil {
		rt.renderServiceError(w, err)
		return
	}

	// acc is nil when the email already existed; the response is identical
	// either way so registration cannot probe for existing emails.
	_ = acc
	rt.renderJSON(w, http.StatusAccepted, map[string]string{
		"status": "check your email to verify your account",
	})
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		rt.renderError(w, http.StatusBadRequest, "malformed form")
		return
	}

	acc, err := rt.service.Login(r.Context(),
		r.PostFormValue("account.email"),
		r.PostFormValue("account.password"),
	)
	if err != nil {
		rt.renderServiceError(w, err)
		return
	}

	rt.setSession(w, acc.ID)
	rt.renderJSON(w, http.StatusOK, map[string]string{
		"account_id": acc.ID.String(),
	})
}

func (rt *Router) logout(w http.ResponseWriter, r *http.Request) {
	rt.cookies.Delete(w, rt.cfg.SessionCookie)
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) verify(w http.ResponseWriter, r *http.Request) {
	acc, err := rt.service.Verify(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		rt.renderServiceError(w, err)
		return
	}

	rt.setSession(w, acc.ID)
	rt.renderJSON(w, http.StatusOK, map[string]string{
		"status": "email verified",
	})
}

func (rt *Router) forgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		rt.renderError(w, http.StatusBadRequest, "malformed form")
		return
	}

	if err := rt.service.RequestPasswordReset(r.Context(), r.PostFormValue("account.email")); err != nil {
		rt.renderServiceError(w, err)
		return
	}

	// Identical response whether or not the email exists.
	rt.renderJSON(w, http.StatusAccepted, map[string]string{
		"status": "if that email is registered, a reset link is on its way",
	})
}

func (rt *Router) resetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		rt.renderError(w, http.StatusBadRequest, "malformed form")
		return
	}

	err := rt.service.ResetPassword(r.Context(),
		chi.URLParam(r, "token"),
		r.PostFormValue("account.password"),
	)
	if err != nil {
		rt.renderServiceError(w, err)
		return
	}

	rt.renderJSON(w, http.StatusOK, map[string]string{
		"status": "password updated",
	})
}

func (rt *Router) oauthBegin(w http.ResponseWriter, r *http.Request) {
	authURL, err := rt.oauth.Begin(r.Context(), chi.URLParam(r, "provider"))
	if err != nil {
		rt.renderServiceError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

func (rt *Router) oauthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	ident, err := rt.oauth.Complete(r.Context(), provider,
		r.URL.Query().Get("state"),
		r.URL.Query().Get("code"),
	)
	if err != nil {
		rt.renderServiceError(w, err)
		return
	}

	acc, err := rt.service.OAuthLogin(r.Context(), ident)
	if err != nil {
		rt.renderServiceError(w, err)
		return
	}

	rt.setSession(w, acc.ID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// SessionAccountID extracts the authenticated account id from the signed
// session cookie.
func (rt *Router) SessionAccountID(r *http.Request) (uuid.UUID, bool) {
	value, err := rt.cookies.GetSigned(r, rt.cfg.SessionCookie)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (rt *Router) setSession(w http.ResponseWriter, accountID uuid.UUID) {
	rt.cookies.SetSigned(w, rt.cfg.SessionCookie, accountID.String(),
		cookie.WithMaxAge(int(rt.cfg.SessionMaxAge.Seconds())))
}

func (rt *Router) renderServiceError(w http.ResponseWriter, err error) {
	switch {
	case validator.IsValidationError(err):
		rt.renderJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": validator.Extract(err).ByField(),
		})
	case errors.Is(err, ErrInvalidCredentials):
		rt.renderError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, token.ErrTokenNotFound),
		errors.Is(err, token.ErrTokenExpired),
		errors.Is(err, token.ErrTokenAlreadyConsumed):
		rt.renderError(w, http.StatusGone, "this link is no longer valid; please request a new one")
	case errors.Is(err, oauth.ErrStateMismatch),
		errors.Is(err, oauth.ErrInvalidCode):
		rt.renderError(w, http.StatusForbidden, "sign-in could not be completed; please try again")
	case errors.Is(err, oauth.ErrUnknownProvider):
		rt.renderError(w, http.StatusNotFound, "unknown provider")
	default:
		rt.logger.Error("unhandled account error",
			logger.Error(err),
			logger.Component("account.router"),
		)
		rt.renderError(w, http.StatusInternalServerError, "something went wrong")
	}
}

func (rt *Router) renderError(w http.ResponseWriter, status int, msg string) {
	rt.renderJSON(w, status, map[string]string{"error": msg})
}

func (rt *Router) renderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rt.logger.Error("failed to encode response",
			logger.Error(err),
			logger.Component("account.router"),
		)
	}
}
