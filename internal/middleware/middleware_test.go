package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmicconnect/backend/internal/auth"
	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/pkg/response"
)

type stubResolver struct {
	sessions map[uuid.UUID]*session.Session
	calls    int
}

func (s *stubResolver) Resolve(_ context.Context, uid uuid.UUID) (*session.Session, error) {
	s.calls++
	if sess, ok := s.sessions[uid]; ok {
		return sess, nil
	}
	return nil, session.ErrNotAuthorized
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(jwt *auth.JWTService, resolver SessionResolver, gates ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	chain := append([]gin.HandlerFunc{JWT(jwt), Session(resolver)}, gates...)
	chain = append(chain, func(c *gin.Context) {
		s, _ := session.From(c)
		response.OK(c, s)
	})
	r.GET("/protected", chain...)
	return r
}

func do(t *testing.T, r http.Handler, token string) (*httptest.ResponseRecorder, response.Body) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestSession_FailsClosed(t *testing.T) {
	jwt := auth.NewJWTService("0123456789abcdef", 1)
	resolver := &stubResolver{sessions: map[uuid.UUID]*session.Session{}}
	r := newRouter(jwt, resolver)

	w, _ := do(t, r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.Generate(uuid.New(), "gone@example.com")
	require.NoError(t, err)
	w, body := do(t, r, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "not authorized", body.Error)
	assert.Equal(t, "/", body.Redirect)
}

func TestSession_ResolvedOnEveryRequest(t *testing.T) {
	jwt := auth.NewJWTService("0123456789abcdef", 1)
	uid := uuid.New()
	resolver := &stubResolver{sessions: map[uuid.UUID]*session.Session{
		uid: {UID: uid, Role: models.RoleAdmin, EmailVerified: true},
	}}
	r := newRouter(jwt, resolver, RequireRole(models.RoleAdmin))
	token, err := jwt.Generate(uid, "a@example.com")
	require.NoError(t, err)

	w, _ := do(t, r, token)
	assert.Equal(t, http.StatusOK, w.Code)

	// demoted between requests: the same token no longer reaches admin routes
	resolver.sessions[uid] = &session.Session{UID: uid, Role: models.RoleVolunteer, EmailVerified: true}
	w, body := do(t, r, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "/dashboard/volunteer", body.Redirect)
	assert.Equal(t, 2, resolver.calls)
}

func TestRequireVerifiedEmail(t *testing.T) {
	jwt := auth.NewJWTService("0123456789abcdef", 1)
	vol, admin := uuid.New(), uuid.New()
	resolver := &stubResolver{sessions: map[uuid.UUID]*session.Session{
		vol:   {UID: vol, Role: models.RoleVolunteer},
		admin: {UID: admin, Role: models.RoleAdmin},
	}}
	r := newRouter(jwt, resolver, RequireVerifiedEmail())

	token, _ := jwt.Generate(vol, "v@example.com")
	w, body := do(t, r, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, VerifyEmailPath, body.Redirect)

	token, _ = jwt.Generate(admin, "a@example.com")
	w, _ = do(t, r, token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
