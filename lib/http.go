package lib

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/uvensys/captchad"
	"github.com/uvensys/captchad/internal"
	"github.com/uvensys/captchad/lib/challenge"
	"github.com/uvensys/captchad/lib/localization"
	"github.com/uvensys/captchad/web"
)

const maxRequestBody = 64 << 10

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type verifyRequest struct {
	CaptchaID *string `json:"captchaId"`
	Answer    *string `json:"answer"`
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
}

type siteVerifyRequest struct {
	Token *string `json:"token"`
}

type siteVerifyResponse struct {
	Success     bool           `json:"success"`
	ChallengeID string         `json:"challengeId,omitempty"`
	Type        challenge.Type `json:"type,omitempty"`
	Error       string         `json:"error,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	internal.NoStoreCache(internal.GzipMiddleware(1, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(v); err != nil {
			internal.GetRequestLogger(r).Error("failed to encode response", "err", err)
		}
	}))).ServeHTTP(w, r)
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// decodeBody fills dst from a JSON body. Other content types are read as
// forms by the caller.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// formValue returns the named value from the query or form body and
// whether it was present at all.
func formValue(r *http.Request, key string) (*string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}

	if _, ok := r.Form[key]; !ok {
		return nil, nil
	}

	val := r.Form.Get(key)
	return &val, nil
}

func (s *Server) MakeChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	localizer := localization.GetLocalizer(r)

	lang := r.FormValue("lang")
	if lang == "" {
		lang = r.Header.Get("Accept-Language")
	}

	chall, err := s.Create(r.Context(), r.FormValue("type"), lang)
	if err != nil {
		lg.Error("can't create challenge", "err", err)

		msg := localizer.T("error_failed_to_create")
		var cerr *challenge.Error
		if errors.As(err, &cerr) {
			msg = fmt.Sprintf("%s: %s", msg, cerr.PublicReason)
		}

		s.respondJSON(w, r, http.StatusInternalServerError, errorResponse{
			Error:   "failed_to_create",
			Message: msg,
		})
		return
	}

	lg.Debug("made challenge", "id", chall.ID, "type", chall.Type)
	s.respondJSON(w, r, http.StatusOK, chall)
}

func (s *Server) readVerifyRequest(w http.ResponseWriter, r *http.Request) (verifyRequest, error) {
	var req verifyRequest

	if isJSON(r) {
		err := decodeBody(w, r, &req)
		return req, err
	}

	var err error
	if req.CaptchaID, err = formValue(r, "captchaId"); err != nil {
		return req, err
	}
	if req.Answer, err = formValue(r, "answer"); err != nil {
		return req, err
	}

	return req, nil
}

func (s *Server) PassChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	localizer := localization.GetLocalizer(r)

	req, err := s.readVerifyRequest(w, r)
	if err != nil {
		lg.Debug("can't parse verify request", "err", err)
		s.respondJSON(w, r, http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	if req.CaptchaID == nil || req.Answer == nil || *req.CaptchaID == "" {
		s.respondJSON(w, r, http.StatusBadRequest, errorResponse{
			Error:   "missing_parameters",
			Message: localizer.T("error_missing_parameters"),
		})
		return
	}

	lg = lg.With("id", *req.CaptchaID)

	chall, err := s.Redeem(r.Context(), *req.CaptchaID, *req.Answer)
	if err != nil {
		lg.Debug("challenge validate call failed", "err", err)
		s.respondJSON(w, r, http.StatusOK, verifyResponse{Success: false})
		return
	}

	token, err := s.PassToken(chall)
	if err != nil {
		// The challenge is already consumed, so the answer still counts.
		lg.Error("failed to sign pass token", "err", err)
	}

	s.respondJSON(w, r, http.StatusOK, verifyResponse{
		Success: true,
		Token:   token,
	})
}

func (s *Server) SiteVerify(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	localizer := localization.GetLocalizer(r)

	var req siteVerifyRequest
	var err error
	if isJSON(r) {
		err = decodeBody(w, r, &req)
	} else {
		req.Token, err = formValue(r, "token")
	}
	if err != nil {
		s.respondJSON(w, r, http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	if req.Token == nil || *req.Token == "" {
		s.respondJSON(w, r, http.StatusBadRequest, errorResponse{
			Error:   "missing_parameters",
			Message: localizer.T("error_missing_parameters"),
		})
		return
	}

	pass, err := s.VerifyPassToken(*req.Token)
	switch {
	case errors.Is(err, ErrPassTokenReused):
		lg.Debug("pass token reused", "err", err)
		s.respondJSON(w, r, http.StatusOK, siteVerifyResponse{Error: "token_reused"})
		return
	case err != nil:
		lg.Debug("invalid pass token", "err", err)
		s.respondJSON(w, r, http.StatusOK, siteVerifyResponse{Error: "invalid_token"})
		return
	}

	s.respondJSON(w, r, http.StatusOK, siteVerifyResponse{
		Success:     true,
		ChallengeID: pass.ChallengeID,
		Type:        pass.Type,
	})
}

func (s *Server) RenderIndex(w http.ResponseWriter, r *http.Request) {
	localizer := localization.GetLocalizer(r)
	apiBase := strings.TrimSuffix(captchad.BasePrefix, "/") + captchad.APIPrefix

	internal.GzipMiddleware(1, templ.Handler(
		web.Base(localizer.T("demo_title"), web.Index(localizer, apiBase, challenge.Methods()), localizer),
	)).ServeHTTP(w, r)
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "OK")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
