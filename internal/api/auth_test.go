package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

const testSecret = "test-secret"

func TestAuthenticateJWT(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	staff := appointment.Actor{ID: uuid.New(), Role: appointment.RoleEmployee, BusinessID: uuid.New()}

	token, err := IssueToken(testSecret, staff, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	got, err := auth.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, staff, got)

	// websocket clients pass the token as a query parameter
	req = httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, nil)
	got, err = auth.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, staff.ID, got.ID)
}

func TestAuthenticateJWTRejections(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	user := appointment.Actor{ID: uuid.New(), Role: appointment.RoleUser}

	wrongKey, err := IssueToken("other-secret", user, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, user, -time.Minute)
	require.NoError(t, err)
	staffWithoutBusiness, err := IssueToken(testSecret, appointment.Actor{ID: uuid.New(), Role: appointment.RoleBusiness}, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong key":              wrongKey,
		"expired":                expired,
		"staff without business": staffWithoutBusiness,
		"garbage":                "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			_, err := auth.Authenticate(req)
			assert.ErrorIs(t, err, errBadCredentials)
		})
	}
}

func TestAuthenticateIgnoresHeadersWhenSecretSet(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Actor-Id", uuid.NewString())
	req.Header.Set("X-Actor-Role", "business")

	_, err := auth.Authenticate(req)
	assert.ErrorIs(t, err, errNoCredentials)
}

func TestAuthenticateHeaders(t *testing.T) {
	auth := NewAuthenticator("")
	id, business := uuid.New(), uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Actor-Id", id.String())
	req.Header.Set("X-Actor-Role", "Business")
	req.Header.Set("X-Business-Id", business.String())

	got, err := auth.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, appointment.Actor{ID: id, Role: appointment.RoleBusiness, BusinessID: business}, got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Actor-Id", id.String())
	req.Header.Set("X-Actor-Role", "admin")
	_, err = auth.Authenticate(req)
	assert.ErrorIs(t, err, errBadCredentials)
}

func TestBadCredentialsAreRejectedEvenOnPublicRoutes(t *testing.T) {
	h := newTestRouter(&stubService{}, NewAuthenticator(testSecret))
	req := httptest.NewRequest(http.MethodGet, "/businesses/"+uuid.NewString()+"/employees/"+uuid.NewString()+"/slots", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
