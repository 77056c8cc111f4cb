package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibliotecavirtual/biblioteca-sheets/codec"
	"github.com/bibliotecavirtual/biblioteca-sheets/ledger"
	"github.com/bibliotecavirtual/biblioteca-sheets/store"
)

type stubLedger struct {
	result ledger.Result
	err    error
	calls  []string
}

func (s *stubLedger) CheckAccess(_ context.Context, email string) (ledger.Result, error) {
	s.calls = append(s.calls, "check:"+email)
	return s.result, s.err
}

func (s *stubLedger) Issue(_ context.Context, email string) (ledger.Result, error) {
	s.calls = append(s.calls, "issue:"+email)
	return s.result, s.err
}

func (s *stubLedger) Validate(_ context.Context, token string) (ledger.Result, error) {
	s.calls = append(s.calls, "validate:"+token)
	return s.result, s.err
}

func (s *stubLedger) MarkUsed(_ context.Context, token string) (ledger.Result, error) {
	s.calls = append(s.calls, "mark:"+token)
	return s.result, s.err
}

type stubNotifier struct {
	admin []string
	users map[string]string
	err   error
}

func (s *stubNotifier) NotifyAdmin(_ context.Context, email string) error {
	if s.err != nil {
		return s.err
	}

	s.admin = append(s.admin, email)
	return nil
}

func (s *stubNotifier) NotifyUser(_ context.Context, email string, accessURL string) error {
	if s.err != nil {
		return s.err
	}

	if s.users == nil {
		s.users = map[string]string{}
	}

	s.users[email] = accessURL
	return nil
}

func serve(router http.Handler, rq *http.Request) (int, response) {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, rq)

	var reply response
	json.Unmarshal(rec.Body.Bytes(), &reply)

	return rec.Code, reply
}

func jsonRequest(method, path, body string) *http.Request {
	rq := httptest.NewRequest(method, path, strings.NewReader(body))
	rq.Header.Set("Content-Type", "application/json")

	return rq
}

func formRequest(method, path string, values url.Values) *http.Request {
	rq := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	rq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return rq
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(&stubLedger{}, &stubNotifier{}, Options{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestWithValidAccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := stubLedger{result: ledger.Result{OK: true, Email: "a@x.com", Token: "T1"}}
	n := stubNotifier{}
	router := NewRouter(&l, &n, Options{})

	code, reply := serve(router, jsonRequest(http.MethodPost, "/solicitar", `{"email":"a@x.com"}`))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, response{Success: true, Token: "T1"}, reply)
	assert.Empty(t, n.admin)
}

func TestRequestNotifiesAdministrator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := stubLedger{result: ledger.Result{OK: false, Reason: ledger.TokenExpired, Email: "a@x.com"}}
	n := stubNotifier{}
	router := NewRouter(&l, &n, Options{})

	code, reply := serve(router, formRequest(http.MethodPost, "/solicitar", url.Values{"email": {"a@x.com"}}))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, response{Message: msgRequestSent}, reply)
	assert.Equal(t, []string{"a@x.com"}, n.admin)
}

func TestRequestForDisabledUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := stubLedger{result: ledger.Result{OK: false, Reason: ledger.UserDisabled, Email: "a@x.com"}}
	n := stubNotifier{}
	router := NewRouter(&l, &n, Options{})

	code, reply := serve(router, jsonRequest(http.MethodPost, "/solicitar", `{"email":"a@x.com"}`))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, response{Message: "user disabled"}, reply)
	assert.Empty(t, n.admin)
}

func TestRequestWithMissingEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := stubLedger{}
	router := NewRouter(&l, &stubNotifier{}, Options{})

	for _, body := range []string{`{}`, `{"email":""}`, `{"email":"not-an-email"}`, `not json`} {
		code, reply := serve(router, jsonRequest(http.MethodPost, "/solicitar", body))

		assert.Equal(t, http.StatusBadRequest, code, body)
		assert.False(t, reply.Success)
		assert.Equal(t, msgMissingEmail, reply.Message)
	}

	assert.Empty(t, l.calls)
}

func TestRequestWithStoreError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := stubLedger{err: ledger.ErrStore}
	router := NewRouter(&l, &stubNotifier{}, Options{})

	code, reply := serve(router, jsonRequest(http.MethodPost, "/solicitar", `{"email":"a@x.com"}`))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, response{Message: msgInternal}, reply)
}

func TestRequestWithNotifierError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := stubLedger{result: ledger.Result{OK: false, Reason: ledger.NotAuthorized}}
	n := stubNotifier{err: errors.New("smtp: connection refused")}
	router := NewRouter(&l, &n, Options{})

	code, _ := serve(router, jsonRequest(http.MethodPost, "/solicitar", `{"email":"a@x.com"}`))

	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestAuthorise(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := stubLedger{result: ledger.Result{OK: true, Email: "a@x.com", Token: "T1"}}
	n := stubNotifier{}
	router := NewRouter(&l, &n, Options{AccessURL: "https://biblioteca.example.com/entrar", NotifyUser: true})

	code, reply := serve(router, httptest.NewRequest(http.MethodGet, "/autorizar?email=A%40x.com", nil))

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, reply.Success)
	assert.Equal(t, "T1", reply.Token)
	assert.Equal(t, []string{"issue:A@x.com"}, l.calls)
	assert.Equal(t, map[string]string{"a@x.com": "https://biblioteca.example.com/entrar?token=T1"}, n.users)
}

func TestAuthoriseWithoutUserNotification(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := stubLedger{result: ledger.Result{OK: true, Email: "a@x.com", Token: "T1"}}
	n := stubNotifier{}
	router := NewRouter(&l, &n, Options{AccessURL: "https://biblioteca.example.com/entrar", NotifyUser: false})

	code, reply := serve(router, httptest.NewRequest(http.MethodGet, "/autorizar?email=a@x.com", nil))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, response{Success: true, Token: "T1"}, reply)
	assert.Empty(t, n.users)
}

func TestAuthoriseWithNotifierError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := stubLedger{result: ledger.Result{OK: true, Email: "a@x.com", Token: "T1"}}
	n := stubNotifier{err: errors.New("smtp: connection refused")}
	router := NewRouter(&l, &n, Options{AccessURL: "https://biblioteca.example.com/entrar", NotifyUser: true})

	code, reply := serve(router, httptest.NewRequest(http.MethodGet, "/autorizar?email=a@x.com", nil))

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, reply.Success)
	assert.Equal(t, "T1", reply.Token)
	assert.Contains(t, reply.Message, "could not notify user")
}

func TestAuthoriseWithMissingEmail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := stubLedger{}
	router := NewRouter(&l, &stubNotifier{}, Options{})

	code, reply := serve(router, httptest.NewRequest(http.MethodGet, "/autorizar", nil))

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, msgMissingEmail, reply.Message)
	assert.Empty(t, l.calls)
}

func TestValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		result   ledger.Result
		expected response
	}{
		{ledger.Result{OK: true, Email: "a@x.com", Token: "T1"}, response{Success: true, Email: "a@x.com"}},
		{ledger.Result{Reason: ledger.TokenInvalid}, response{Message: "token invalid or expired"}},
		{ledger.Result{Reason: ledger.TokenNotFound}, response{Message: "token not found"}},
		{ledger.Result{Reason: ledger.TokenUsed, Email: "a@x.com"}, response{Message: "token already used"}},
	}

	for _, test := range tests {
		router := NewRouter(&stubLedger{result: test.result}, &stubNotifier{}, Options{})
		code, reply := serve(router, httptest.NewRequest(http.MethodGet, "/validar?token=T1", nil))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, test.expected, reply)
	}
}

func TestValidateWithMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(&stubLedger{}, &stubNotifier{}, Options{})

	for _, path := range []string{"/validar", "/validar?token=", "/validar?token=%20%20"} {
		code, reply := serve(router, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusBadRequest, code, path)
		assert.Equal(t, msgMissingToken, reply.Message)
	}
}

func TestMarkUsed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := stubLedger{result: ledger.Result{OK: true, Email: "a@x.com", Token: "T1"}}
	router := NewRouter(&l, &stubNotifier{}, Options{})

	code, reply := serve(router, jsonRequest(http.MethodPut, "/marcar", `{"token":"T1"}`))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, response{Success: true}, reply)
	assert.Equal(t, []string{"mark:T1"}, l.calls)

	code, reply = serve(router, formRequest(http.MethodPut, "/marcar", url.Values{"token": {"T1"}}))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, response{Success: true}, reply)
}

func TestMarkUsedWithUnknownToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(&stubLedger{result: ledger.Result{Reason: ledger.TokenNotFound}}, &stubNotifier{}, Options{})

	code, reply := serve(router, jsonRequest(http.MethodPut, "/marcar", `{"token":"T9"}`))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, response{Message: "token not found"}, reply)
}

func TestMarkUsedWithMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(&stubLedger{}, &stubNotifier{}, Options{})

	code, _ := serve(router, jsonRequest(http.MethodPut, "/marcar", `{}`))

	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := NewRouter(&stubLedger{}, &stubNotifier{}, Options{CORSOrigins: []string{"https://biblioteca.example.com"}})

	rq := httptest.NewRequest(http.MethodOptions, "/marcar", nil)
	rq.Header.Set("Origin", "https://biblioteca.example.com")
	rq.Header.Set("Access-Control-Request-Method", http.MethodPut)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, rq)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://biblioteca.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c, err := codec.New("qwerty", codec.WithExpiry(30*time.Minute), codec.WithClock(clock))
	require.NoError(t, err)

	rows := store.NewMemory("UsuariosTemporales")
	l, err := ledger.New(rows, c, ledger.Options{Sheet: "UsuariosTemporales", Window: 30 * time.Minute, Now: clock})
	require.NoError(t, err)

	n := stubNotifier{}
	router := NewRouter(l, &n, Options{AccessURL: "https://biblioteca.example.com/entrar", NotifyUser: true})

	_, reply := serve(router, jsonRequest(http.MethodPost, "/solicitar", `{"email":"a@x.com"}`))
	assert.Equal(t, response{Message: msgRequestSent}, reply)
	assert.Equal(t, []string{"a@x.com"}, n.admin)

	_, reply = serve(router, httptest.NewRequest(http.MethodGet, "/autorizar?email=a@x.com", nil))
	require.True(t, reply.Success)
	token := reply.Token

	_, reply = serve(router, jsonRequest(http.MethodPost, "/solicitar", `{"email":"A@X.com"}`))
	assert.Equal(t, response{Success: true, Token: token}, reply)

	now = now.Add(10 * time.Minute)

	_, reply = serve(router, httptest.NewRequest(http.MethodGet, "/validar?token="+token, nil))
	assert.Equal(t, response{Success: true, Email: "a@x.com"}, reply)

	_, reply = serve(router, jsonRequest(http.MethodPut, "/marcar", `{"token":"`+token+`"}`))
	assert.Equal(t, response{Success: true}, reply)

	_, reply = serve(router, httptest.NewRequest(http.MethodGet, "/validar?token="+token, nil))
	assert.Equal(t, response{Message: "token already used"}, reply)
}
