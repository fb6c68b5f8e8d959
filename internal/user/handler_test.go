// AngelaMos | 2026
// handler_test.go

package user

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/leadboard/internal/core"
	"github.com/carterperez-dev/leadboard/internal/middleware"
	"github.com/carterperez-dev/leadboard/internal/policy"
)

// asRole stands in for the authenticator by attaching a fixed identity.
func asRole(email, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if role != "" {
				r = r.WithContext(middleware.WithIdentity(r.Context(), &middleware.Identity{
					Email: email,
					Role:  role,
				}))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newAdminRouter(svc *Service, email, role string) http.Handler {
	r := chi.NewRouter()
	h := NewHandler(svc)
	h.RegisterRoutes(r, asRole(email, role))
	r.Route("/admin", func(r chi.Router) {
		r.Use(asRole(email, role))
		h.RegisterAdminRoutes(r)
	})
	return r
}

func seededService(t *testing.T) *Service {
	t.Helper()

	svc := NewService(newMemRepository())
	seedUser(t, svc, "root@x.com", policy.RoleMasterAdmin)
	seedUser(t, svc, "alice@x.com", policy.RoleUser)
	seedUser(t, svc, "bob@x.com", policy.RoleAdmin)
	return svc
}

func serve(h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, core.Response) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))

	var resp core.Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestListUsersEndpoint(t *testing.T) {
	h := newAdminRouter(seededService(t), "bob@x.com", policy.RoleAdmin)

	rec, resp := serve(h, http.MethodGet, "/admin/users/?page=1&page_size=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.TotalPages)

	rows, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "bob@x.com", row["email"])
	assert.NotContains(t, row, "password_hash")
}

func TestListUsersEndpointForbidden(t *testing.T) {
	h := newAdminRouter(seededService(t), "alice@x.com", policy.RoleUser)

	rec, resp := serve(h, http.MethodGet, "/admin/users/", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)
}

func TestChangeRoleEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		callerRole string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{
			"master promotes", policy.RoleMasterAdmin,
			map[string]string{"email": "alice@x.com", "role": "admin"},
			http.StatusOK, "",
		},
		{
			"admin forbidden", policy.RoleAdmin,
			map[string]string{"email": "alice@x.com", "role": "admin"},
			http.StatusForbidden, "FORBIDDEN",
		},
		{
			"master-admin target role", policy.RoleMasterAdmin,
			map[string]string{"email": "alice@x.com", "role": "master-admin"},
			http.StatusBadRequest, "INVALID_ROLE",
		},
		{
			"unknown account", policy.RoleMasterAdmin,
			map[string]string{"email": "ghost@x.com", "role": "admin"},
			http.StatusNotFound, "NOT_FOUND",
		},
		{
			"missing role", policy.RoleMasterAdmin,
			map[string]string{"email": "alice@x.com"},
			http.StatusBadRequest, "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAdminRouter(seededService(t), "caller@x.com", tt.callerRole)

			rec, resp := serve(h, http.MethodPut, "/admin/users/role", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
				return
			}

			data := resp.Data.(map[string]any)
			assert.Equal(t, tt.body["role"], data["role"])
		})
	}
}

func TestGetMeEndpoint(t *testing.T) {
	h := newAdminRouter(seededService(t), "bob@x.com", policy.RoleAdmin)

	rec, resp := serve(h, http.MethodGet, "/users/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "bob@x.com", data["email"])

	h = newAdminRouter(seededService(t), "", "")
	rec, _ = serve(h, http.MethodGet, "/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
