package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/fb-roster/internal/apperror"
	"github.com/sakif/fb-roster/internal/handler"
	"github.com/sakif/fb-roster/internal/model"
)

// MockUserAdmin is a scripted handler.UserAdmin.
type MockUserAdmin struct {
	Users []model.User

	CapturedID   int64
	CapturedRole model.Role
	SetRoleCalls int

	ReturnErr error
}

func (m *MockUserAdmin) List(context.Context) ([]model.User, error) {
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.Users, nil
}

func (m *MockUserAdmin) Get(_ context.Context, id int64) (*model.User, error) {
	m.CapturedID = id
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	for i := range m.Users {
		if m.Users[i].ID == id {
			return &m.Users[i], nil
		}
	}
	return nil, apperror.NotFound("user", "x")
}

func (m *MockUserAdmin) SetRole(_ context.Context, id int64, role model.Role) (*model.User, error) {
	m.SetRoleCalls++
	m.CapturedID = id
	m.CapturedRole = role
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return &model.User{ID: id, FacebookID: "fb2", Name: "Bob", Role: role}, nil
}

// newUserRouter mounts the handler the way server.New does, minus the admin
// middleware, so chi fills in {id}.
func newUserRouter(admin handler.UserAdmin) http.Handler {
	h := handler.NewUserHandler(admin, testLogger())
	r := chi.NewRouter()
	r.Get("/users", h.HandleList)
	r.Get("/users/{id}", h.HandleGet)
	r.Put("/users/{id}/role", h.HandleSetRole)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestUserHandler_HandleList(t *testing.T) {
	t.Run("returns users in service order", func(t *testing.T) {
		admin := &MockUserAdmin{Users: []model.User{
			{ID: 2, FacebookID: "fb2", Name: "Bob", Role: model.RoleMember},
			{ID: 1, FacebookID: "fb1", Name: "Alice", Role: model.RoleAdmin},
		}}

		rr := do(t, newUserRouter(admin), http.MethodGet, "/users", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		var got []model.User
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		require.Len(t, got, 2)
		assert.Equal(t, "Bob", got[0].Name)
		assert.Equal(t, "Alice", got[1].Name)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		rr := do(t, newUserRouter(&MockUserAdmin{Users: []model.User{}}), http.MethodGet, "/users", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("store failure", func(t *testing.T) {
		admin := &MockUserAdmin{ReturnErr: errors.New("relation \"users\" does not exist")}

		rr := do(t, newUserRouter(admin), http.MethodGet, "/users", "")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "relation")
	})
}

func TestUserHandler_HandleGet(t *testing.T) {
	admin := &MockUserAdmin{Users: []model.User{{ID: 7, Name: "Carol", Role: model.RoleConvenor}}}
	router := newUserRouter(admin)

	rr := do(t, router, http.MethodGet, "/users/7", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"Carol"`)

	rr = do(t, router, http.MethodGet, "/users/8", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, router, http.MethodGet, "/users/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUserHandler_HandleSetRole(t *testing.T) {
	t.Run("valid change", func(t *testing.T) {
		admin := &MockUserAdmin{}

		rr := do(t, newUserRouter(admin), http.MethodPut, "/users/2/role", `{"role":"convenor"}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.EqualValues(t, 2, admin.CapturedID)
		assert.Equal(t, model.RoleConvenor, admin.CapturedRole)

		var got model.User
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, model.RoleConvenor, got.Role)
	})

	t.Run("request errors never reach the service", func(t *testing.T) {
		tests := []struct {
			name string
			path string
			body string
		}{
			{"non-numeric id", "/users/bob/role", `{"role":"member"}`},
			{"zero id", "/users/0/role", `{"role":"member"}`},
			{"negative id", "/users/-3/role", `{"role":"member"}`},
			{"malformed body", "/users/2/role", `{"role":`},
			{"wrong type", "/users/2/role", `{"role":42}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				admin := &MockUserAdmin{}

				rr := do(t, newUserRouter(admin), http.MethodPut, tt.path, tt.body)

				assert.Equal(t, http.StatusBadRequest, rr.Code)
				assert.Zero(t, admin.SetRoleCalls)
			})
		}
	})

	t.Run("service errors", func(t *testing.T) {
		tests := []struct {
			name        string
			err         error
			wantStatus  int
			wantMessage string
		}{
			{
				name:        "role outside allow-list",
				err:         apperror.ValidationFailed("role", "Invalid role specified. Can only be 'convenor' or 'member'."),
				wantStatus:  http.StatusBadRequest,
				wantMessage: "Invalid role specified. Can only be 'convenor' or 'member'.",
			},
			{
				name:        "admin or missing target",
				err:         apperror.NotFoundOrProtected("1"),
				wantStatus:  http.StatusNotFound,
				wantMessage: "user 1 not found or is an admin who cannot be demoted",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				admin := &MockUserAdmin{ReturnErr: tt.err}

				rr := do(t, newUserRouter(admin), http.MethodPut, "/users/1/role", `{"role":"admin"}`)

				assert.Equal(t, tt.wantStatus, rr.Code)
				assert.Equal(t, tt.wantMessage, decodeError(t, rr).Message)
			})
		}
	})
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	handler.NewHealthHandler(fakePinger{}, testLogger()).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	handler.NewHealthHandler(fakePinger{err: errors.New("down")}, testLogger()).HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
