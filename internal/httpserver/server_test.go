package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/skillcoder/sandboxd/internal/httpserver"
	"github.com/skillcoder/sandboxd/internal/logic/access"
	"github.com/skillcoder/sandboxd/internal/logic/instance"
	"github.com/skillcoder/sandboxd/internal/logic/principal"
)

const testSecret = "test-signing-secret"

type testNotFoundError struct{}

func (testNotFoundError) Error() string { return "not found" }
func (testNotFoundError) IsNotFound()   {}

type testAccessDeniedError struct{}

func (testAccessDeniedError) Error() string   { return "access denied" }
func (testAccessDeniedError) IsAccessDenied() {}

type fakeInstances struct {
	failErr     error
	created     []string
	deleteOwner []principal.Owner
}

func (f *fakeInstances) Create(
	_ context.Context,
	p principal.Principal,
	templateID string,
) (*instance.Instance, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}

	f.created = append(f.created, templateID)

	return &instance.Instance{
		Name:        p.Owner.Handle + "-1",
		OwnerID:     p.Owner.ID,
		OwnerHandle: p.Owner.Handle,
		TemplateID:  templateID,
		Status:      instance.StatusCreating,
	}, nil
}

func (f *fakeInstances) List(_ context.Context, _ principal.Principal) ([]instance.Instance, error) {
	return []instance.Instance{{Name: "jdoe-1"}}, f.failErr
}

func (f *fakeInstances) Stop(_ context.Context, _ principal.Principal, _ string) error {
	return f.failErr
}

func (f *fakeInstances) Delete(_ context.Context, _ principal.Principal, _ string) error {
	return f.failErr
}

func (f *fakeInstances) Logs(_ context.Context, _ principal.Principal, _ string) (string, error) {
	if f.failErr != nil {
		return "", f.failErr
	}

	return "hello\n", nil
}

func (f *fakeInstances) Usage(
	_ context.Context,
	_ principal.Principal,
	_ string,
) (*instance.Usage, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}

	return &instance.Usage{}, nil
}

func (f *fakeInstances) ReconcileAll(_ context.Context) (instance.ReconcileSummary, error) {
	return instance.ReconcileSummary{Total: 2, Updated: 1}, f.failErr
}

func (f *fakeInstances) DeleteOwner(_ context.Context, owner principal.Owner) error {
	f.deleteOwner = append(f.deleteOwner, owner)

	return f.failErr
}

type fakeGrants struct {
	failErr      error
	authOK       bool
	issuedTTL    time.Duration
	revokedOwner []principal.Owner
}

func (f *fakeGrants) Issue(
	_ context.Context,
	p principal.Principal,
	instanceName string,
	ttl time.Duration,
) (*access.Connection, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}

	f.issuedTTL = ttl

	return &access.Connection{
		Login:        p.Owner.Handle + "-1700000000000000",
		OwnerID:      p.Owner.ID,
		InstanceName: instanceName,
		Secret:       "s3cretS3cret",
		Port:         30123,
		Status:       access.StatusActive,
	}, nil
}

func (f *fakeGrants) Authenticate(_ context.Context, _, _ string) (bool, error) {
	return f.authOK, f.failErr
}

func (f *fakeGrants) Revoke(_ context.Context, _ principal.Principal, _ string) error {
	return f.failErr
}

func (f *fakeGrants) SweepExpired(_ context.Context) (int, error) {
	return 3, f.failErr
}

func (f *fakeGrants) RevokeAllForOwner(_ context.Context, owner principal.Owner) error {
	f.revokedOwner = append(f.revokedOwner, owner)

	return f.failErr
}

func (f *fakeGrants) List(_ context.Context, _ principal.Principal) ([]access.Connection, error) {
	return []access.Connection{}, f.failErr
}

type fakeTemplates struct{}

func (fakeTemplates) ListTemplatesQuery(_ context.Context) []instance.Template {
	return []instance.Template{{ID: "ubuntu-ssh", BaseImage: "sandbox-ubuntu:22.04"}}
}

type fakePinger struct {
	failErr error
}

func (f *fakePinger) Name() string { return "fake" }

func (f *fakePinger) Ping(_ context.Context) error { return f.failErr }

type harness struct {
	instances *fakeInstances
	grants    *fakeGrants
	pinger    *fakePinger
	handler   http.Handler
}

func newHarness() *harness {
	h := &harness{
		instances: &fakeInstances{},
		grants:    &fakeGrants{},
		pinger:    &fakePinger{},
	}

	server := httpserver.New(
		slog.Default(),
		h.instances,
		h.grants,
		fakeTemplates{},
		[]httpserver.Pinger{h.pinger},
		testSecret,
		"0",
	)
	h.handler = server.Handler()

	return h
}

func signToken(t *testing.T, sub, handle, role string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    sub,
		"handle": handle,
		"role":   role,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	return signed
}

func (h *harness) do(
	t *testing.T,
	method,
	path,
	token string,
	body any,
) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, req)

	return recorder
}

func TestAuthBoundary(t *testing.T) {
	t.Parallel()

	t.Run("missing token is rejected", func(t *testing.T) {
		t.Parallel()

		h := newHarness()

		resp := h.do(t, http.MethodGet, "/api/v1/instances", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("token signed with the wrong key is rejected", func(t *testing.T) {
		t.Parallel()

		h := newHarness()

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":    "11",
			"handle": "jdoe",
			"role":   "student",
			"exp":    time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("some-other-secret"))
		require.NoError(t, err)

		resp := h.do(t, http.MethodGet, "/api/v1/instances", signed, nil)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		t.Parallel()

		h := newHarness()

		resp := h.do(t, http.MethodGet, "/api/v1/instances",
			signToken(t, "11", "jdoe", "superuser"), nil)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("health endpoints need no token", func(t *testing.T) {
		t.Parallel()

		h := newHarness()

		require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/-/healthz", "", nil).Code)
		require.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/-/readyz", "", nil).Code)

		h.pinger.failErr = errors.New("not ready")
		require.Equal(t,
			http.StatusServiceUnavailable,
			h.do(t, http.MethodGet, "/-/readyz", "", nil).Code,
		)
	})
}

func TestInstanceEndpoints(t *testing.T) {
	t.Parallel()

	student := func(t *testing.T) string { return signToken(t, "11", "jdoe", "student") }

	t.Run("create", func(t *testing.T) {
		t.Parallel()

		h := newHarness()

		resp := h.do(t, http.MethodPost, "/api/v1/instances", student(t),
			createBody{TemplateID: "ubuntu-ssh"})
		require.Equal(t, http.StatusCreated, resp.Code)

		var inst instance.Instance
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &inst))
		require.Equal(t, "jdoe-1", inst.Name)
		require.Equal(t, []string{"ubuntu-ssh"}, h.instances.created)
	})

	t.Run("create without template is a bad request", func(t *testing.T) {
		t.Parallel()

		h := newHarness()

		resp := h.do(t, http.MethodPost, "/api/v1/instances", student(t), createBody{})
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("not found maps to 404", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.instances.failErr = testNotFoundError{}

		resp := h.do(t, http.MethodGet, "/api/v1/instances/missing/logs", student(t), nil)
		require.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("access denied maps to 403", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.instances.failErr = testAccessDeniedError{}

		resp := h.do(t, http.MethodDelete, "/api/v1/instances/jdoe-1", student(t), nil)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("usage not ready maps to 503", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.instances.failErr = instance.ErrUsageNotReady

		resp := h.do(t, http.MethodGet, "/api/v1/instances/jdoe-1/usage", student(t), nil)
		require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	})

	t.Run("stop and delete", func(t *testing.T) {
		t.Parallel()

		h := newHarness()

		resp := h.do(t, http.MethodPost, "/api/v1/instances/jdoe-1/stop", student(t), nil)
		require.Equal(t, http.StatusNoContent, resp.Code)

		resp = h.do(t, http.MethodDelete, "/api/v1/instances/jdoe-1", student(t), nil)
		require.Equal(t, http.StatusNoContent, resp.Code)
	})
}

type createBody struct {
	TemplateID string `json:"templateId,omitempty"`
}

func TestAccessEndpoints(t *testing.T) {
	t.Parallel()

	student := func(t *testing.T) string { return signToken(t, "11", "jdoe", "student") }

	t.Run("issue converts duration hours", func(t *testing.T) {
		t.Parallel()

		h := newHarness()

		resp := h.do(t, http.MethodPost, "/api/v1/instances/jdoe-1/access", student(t),
			map[string]int{"durationHours": 48})
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Equal(t, 48*time.Hour, h.grants.issuedTTL)

		var conn access.Connection
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &conn))
		require.Equal(t, int32(30123), conn.Port)
		require.NotEmpty(t, conn.Secret)
	})

	t.Run("authenticate reports the predicate result", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		h.grants.authOK = true

		resp := h.do(t, http.MethodPost, "/api/v1/access/authenticate", student(t),
			map[string]string{"login": "jdoe-1700000000000000", "secret": "s3cretS3cret"})
		require.Equal(t, http.StatusOK, resp.Code)
		require.JSONEq(t, `{"authenticated": true}`, resp.Body.String())
	})

	t.Run("revoke", func(t *testing.T) {
		t.Parallel()

		h := newHarness()

		resp := h.do(t, http.MethodDelete, "/api/v1/access/jdoe-1700000000000000", student(t), nil)
		require.Equal(t, http.StatusNoContent, resp.Code)
	})
}

func TestAdminEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("student lacks the maintenance capability", func(t *testing.T) {
		t.Parallel()

		h := newHarness()

		resp := h.do(t, http.MethodPost, "/api/v1/admin/reconcile",
			signToken(t, "11", "jdoe", "student"), nil)
		require.Equal(t, http.StatusForbidden, resp.Code)

		// Teacher has cross-owner access but not maintenance.
		resp = h.do(t, http.MethodPost, "/api/v1/admin/reconcile",
			signToken(t, "7", "prof", "teacher"), nil)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("admin triggers batch operations", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		admin := signToken(t, "1", "ops", "admin")

		resp := h.do(t, http.MethodPost, "/api/v1/admin/reconcile", admin, nil)
		require.Equal(t, http.StatusOK, resp.Code)
		require.JSONEq(t, `{"total": 2, "updated": 1}`, resp.Body.String())

		resp = h.do(t, http.MethodPost, "/api/v1/admin/sweep", admin, nil)
		require.Equal(t, http.StatusOK, resp.Code)
		require.JSONEq(t, `{"swept": 3}`, resp.Body.String())
	})

	t.Run("owner cascade revokes grants before instances", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		admin := signToken(t, "1", "ops", "admin")

		resp := h.do(t, http.MethodDelete, "/api/v1/admin/owners/11?handle=jdoe", admin, nil)
		require.Equal(t, http.StatusNoContent, resp.Code)

		require.Equal(t, []principal.Owner{{ID: "11", Handle: "jdoe"}}, h.grants.revokedOwner)
		require.Equal(t, []principal.Owner{{ID: "11", Handle: "jdoe"}}, h.instances.deleteOwner)
	})

	t.Run("owner cascade requires the handle", func(t *testing.T) {
		t.Parallel()

		h := newHarness()
		admin := signToken(t, "1", "ops", "admin")

		resp := h.do(t, http.MethodDelete, "/api/v1/admin/owners/11", admin, nil)
		require.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestTemplatesEndpoint(t *testing.T) {
	t.Parallel()

	h := newHarness()

	resp := h.do(t, http.MethodGet, "/api/v1/templates",
		signToken(t, "11", "jdoe", "student"), nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var list []instance.Template
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "ubuntu-ssh", list[0].ID)
}
