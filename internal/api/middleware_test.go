package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/go-supportchat/internal/database"
	"github.com/npezzotti/go-supportchat/internal/testutil"
	"github.com/npezzotti/go-supportchat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	app := &SupportChatApp{
		log: testutil.TestLogger(t),
	}

	app.log.SetOutput(buf)

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Contains(t, buf.String(), "panic: test panic")
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &SupportChatApp{}

	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func TestAuthMiddleware(t *testing.T) {
	app := &SupportChatApp{log: testutil.TestLogger(t), signingKey: testSigningKey}

	validToken, err := app.createJwtForSession(types.User{Id: 2}, time.Minute)
	assert.NoError(t, err)

	tcases := []struct {
		name       string
		cookie     *http.Cookie
		expectCode int
		expectId   int
	}{
		{
			name:       "valid token",
			cookie:     createJwtCookie(validToken, time.Minute),
			expectCode: http.StatusOK,
			expectId:   2,
		},
		{
			name:       "missing cookie",
			expectCode: http.StatusUnauthorized,
		},
		{
			name:       "invalid token",
			cookie:     createJwtCookie("invalid", time.Minute),
			expectCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			var gotId int
			next := func(w http.ResponseWriter, r *http.Request) {
				gotId, _ = UserId(r.Context())
				w.WriteHeader(http.StatusOK)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rr := httptest.NewRecorder()

			app.authMiddleware(next)(rr, req)

			assert.Equal(t, tc.expectCode, rr.Code)
			assert.Equal(t, tc.expectId, gotId)
			if tc.expectCode == http.StatusOK {
				assert.Equal(t, "no-store, no-cache, must-revalidate, private", rr.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestAdminMiddleware(t *testing.T) {
	tcases := []struct {
		name       string
		userId     int
		expectCode int
	}{
		{"admin", adminUser.Id, http.StatusOK},
		{"customer", customerUser.Id, http.StatusForbidden},
		{"no user", 0, http.StatusUnauthorized},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			db := &database.MockSupportChatRepository{}
			mockUsers(db)
			app := newTestApp(t, db, nil)

			called := false
			next := func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}

			req := httptest.NewRequest(http.MethodGet, "/api/admin/customers", nil)
			if tc.userId > 0 {
				req = req.WithContext(WithUserId(req.Context(), tc.userId))
			}
			rr := httptest.NewRecorder()

			app.adminMiddleware(next)(rr, req)

			assert.Equal(t, tc.expectCode, rr.Code)
			assert.Equal(t, tc.expectCode == http.StatusOK, called)
		})
	}
}

func TestRoutes_AdminRequiresAdminRole(t *testing.T) {
	db := &database.MockSupportChatRepository{}
	mockUsers(db)
	db.On("ListCustomerSummaries", mock.Anything, adminUser.Id).Return([]database.CustomerSummary{}, nil)

	app := newTestApp(t, db, nil)

	tokenFor := func(id int) *http.Cookie {
		token, err := app.createJwtForSession(types.User{Id: id}, time.Minute)
		assert.NoError(t, err)
		return createJwtCookie(token, time.Minute)
	}

	tcases := []struct {
		name       string
		cookie     *http.Cookie
		expectCode int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"customer", tokenFor(customerUser.Id), http.StatusForbidden},
		{"admin", tokenFor(adminUser.Id), http.StatusOK},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/customers", nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rr := httptest.NewRecorder()

			app.mux.Handler.ServeHTTP(rr, req)
			assert.Equal(t, tc.expectCode, rr.Code)
		})
	}
}
