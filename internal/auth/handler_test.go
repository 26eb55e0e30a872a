package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/maintenance-management/internal/core/events"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"github.com/frahmantamala/maintenance-management/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("AuthMiddleware", func() {
	var (
		dir      *mockDirectory
		tokenGen *JWTTokenGenerator
		cache    *CallerCache
		handler  *Handler
		seen     *user.User
		next     http.Handler
	)

	BeforeEach(func() {
		dir = newMockDirectory()
		tokenGen = NewJWTTokenGenerator("access", "refresh", time.Minute, time.Hour)
		cache = NewCallerCache(16, time.Minute)
		handler = NewHandler(NewService(dir, tokenGen, bcrypt.MinCost, discardLogger()), cache)
		seen = nil
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = user.CallerFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})

	serve := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.AuthMiddleware(next).ServeHTTP(rec, req)
		return rec
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body.Error.Code
	}

	It("rejects a request without a token", func() {
		rec := serve("")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(errorCode(rec)).To(Equal("MISSING_TOKEN"))
	})

	It("puts the active caller into the context", func() {
		u := dir.add("tech@example.com", "pw", user.RoleTechnician, user.StatusActive)
		token, _ := tokenGen.GenerateAccessToken(u.ID, u.Email)

		rec := serve(token)
		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(seen).ToNot(BeNil())
		Expect(seen.ID).To(Equal(u.ID))
	})

	It("tags the request logger with the caller", func() {
		buf := &bytes.Buffer{}
		logger.Configure(buf, "info", "json")
		DeferCleanup(logger.Init, "development")

		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.From(r.Context()).Info("handled")
			w.WriteHeader(http.StatusNoContent)
		})
		u := dir.add("tech@example.com", "pw", user.RoleTechnician, user.StatusActive)
		token, _ := tokenGen.GenerateAccessToken(u.ID, u.Email)

		Expect(serve(token).Code).To(Equal(http.StatusNoContent))
		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		var line map[string]interface{}
		Expect(json.Unmarshal(lines[len(lines)-1], &line)).To(Succeed())
		Expect(line).To(HaveKeyWithValue("user_id", BeNumerically("==", u.ID)))
		Expect(line).To(HaveKeyWithValue("role", string(user.RoleTechnician)))
	})

	It("refuses a refresh token", func() {
		u := dir.add("tech@example.com", "pw", user.RoleTechnician, user.StatusActive)
		token, _ := tokenGen.GenerateRefreshToken(u.ID, u.Email)

		rec := serve(token)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("sees a suspension once the cached caller is invalidated", func() {
		bus := events.NewEventBus(discardLogger())
		cache.Subscribe(bus)

		u := dir.add("tech@example.com", "pw", user.RoleTechnician, user.StatusActive)
		token, _ := tokenGen.GenerateAccessToken(u.ID, u.Email)
		Expect(serve(token).Code).To(Equal(http.StatusNoContent))

		suspended := *u
		suspended.Status = user.StatusSuspended
		dir.byID[u.ID] = &suspended
		Expect(bus.PublishSync(context.Background(), events.NewUserChangedEvent(u.ID))).To(Succeed())

		rec := serve(token)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(errorCode(rec)).To(Equal("ACCOUNT_SUSPENDED"))
	})
})
