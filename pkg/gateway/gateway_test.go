package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiv1 "github.com/facilityhub/facility/pkg/api/v1"
	"github.com/facilityhub/facility/pkg/common"
	"github.com/facilityhub/facility/pkg/repository"
	"github.com/facilityhub/facility/pkg/types"
)

func newLocalGateway(t *testing.T, token string) (*Gateway, http.Handler) {
	t.Helper()

	gw, err := NewGatewayWithConfig(types.AppConfig{
		Mode: types.ModeLocal,
		Search: types.SearchConfig{
			Backend: types.SearchBackendSQLite,
			SQLite:  types.SQLiteConfig{Path: ":memory:"},
		},
		Gateway: types.GatewayConfig{
			AuthToken:       token,
			ShutdownTimeout: time.Second,
		},
	})
	require.NoError(t, err)
	t.Cleanup(gw.Shutdown)

	handler, err := gw.Handler()
	require.NoError(t, err)
	return gw, handler
}

func serve(handler http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestLocalGateway_EndToEnd(t *testing.T) {
	gw, handler := newLocalGateway(t, "")
	assert.Nil(t, gw.RedisClient)

	rec := serve(handler, http.MethodPost, "/api/facilities", `{"name":"AAAAAAAAAA"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	// Trailing slashes are stripped before routing
	rec = serve(handler, http.MethodGet, "/api/facilities/1/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"name":"AAAAAAAAAA"}`, rec.Body.String())

	rec = serve(handler, http.MethodGet, "/api/_search/facilities?query=AAAAAAAAAA", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"name":"AAAAAAAAAA"}]`, rec.Body.String())

	rec = serve(handler, http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","components":{"store":"ok","mirror":"ok"}}`, rec.Body.String())

	rec = serve(handler, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `facility_store_operations_total{kind="facility",op="create",result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `facility_mirror_operations_total{kind="facility",op="search",result="ok"} 1`)
}

func TestLocalGateway_RequiresToken(t *testing.T) {
	_, handler := newLocalGateway(t, "s3cret")

	rec := serve(handler, http.MethodGet, "/api/facilities", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(handler, http.MethodGet, "/api/facilities", "", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(handler, http.MethodGet, "/api/facilities", "", "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health is open
	rec = serve(handler, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLocalGateway_MethodNotAllowedWithoutID(t *testing.T) {
	for _, token := range []string{"", "s3cret"} {
		_, handler := newLocalGateway(t, token)

		for _, method := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
			rec := serve(handler, method, "/api/facilities", `{"id":1,"name":"AAAAAAAAAA"}`, token)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s with token %q", method, token)
		}

		rec := serve(handler, http.MethodGet, "/api/unknown", "", token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
}

func TestLocalGateway_PageBeyondRangeIsEmpty(t *testing.T) {
	_, handler := newLocalGateway(t, "")

	rec := serve(handler, http.MethodPost, "/api/facilities", `{"name":"AAAAAAAAAA"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, path := range []string{
		"/api/facilities?page=9223372036854775807",
		"/api/facilities?page=9223372036854775807&size=1",
		"/api/_search/facilities?query=AAAAAAAAAA&page=9223372036854775807",
		"/api/facility/rooms/1?page=9223372036854775807",
	} {
		rec := serve(handler, http.MethodGet, path, "", "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `[]`, rec.Body.String(), path)
	}

	rec = serve(handler, http.MethodGet, "/api/facilities?page=9223372036854775807", "", "")
	assert.Equal(t, "1", rec.Header().Get(apiv1.HeaderTotalCount))
}

func TestNewGateway_UnknownSearchBackend(t *testing.T) {
	_, err := NewGatewayWithConfig(types.AppConfig{
		Mode:   types.ModeLocal,
		Search: types.SearchConfig{Backend: "solr"},
	})
	assert.Error(t, err)
}

// fakeSQLBackend stands in for Postgres when only the migration path matters
type fakeSQLBackend struct {
	repository.BackendRepository
	migrate func() error
	calls   int
}

func (f *fakeSQLBackend) RunMigrations() error {
	f.calls++
	return f.migrate()
}

func TestMigrateWithLock(t *testing.T) {
	s := miniredis.RunT(t)
	rdb, err := common.NewRedisClient(types.RedisConfig{Addrs: []string{s.Addr()}, Mode: types.RedisModeSingle})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	lockKey := common.Keys.GatewayInitLock("migrations")

	backend := &fakeSQLBackend{BackendRepository: repository.NewMemoryBackend()}
	backend.migrate = func() error {
		assert.True(t, s.Exists(lockKey), "lock held while migrating")
		return nil
	}
	require.NoError(t, MigrateWithLock(ctx, backend, rdb))
	assert.Equal(t, 1, backend.calls)
	assert.False(t, s.Exists(lockKey))

	// The lock is released when a migration fails
	backend.migrate = func() error { return errors.New("syntax error") }
	assert.ErrorContains(t, MigrateWithLock(ctx, backend, rdb), "syntax error")
	assert.False(t, s.Exists(lockKey))

	// Without Redis there is no lock to take
	backend.migrate = func() error { return nil }
	require.NoError(t, MigrateWithLock(ctx, backend, nil))
	assert.Equal(t, 3, backend.calls)
}

func TestNewGateway_RemoteClosesRedisWhenPostgresFails(t *testing.T) {
	s := miniredis.RunT(t)

	_, err := NewGatewayWithConfig(types.AppConfig{
		Mode: types.ModeRemote,
		Database: types.DatabaseConfig{
			Redis:    types.RedisConfig{Addrs: []string{s.Addr()}, Mode: types.RedisModeSingle},
			Postgres: types.PostgresConfig{Host: "127.0.0.1", Port: 1},
		},
	})
	require.ErrorContains(t, err, "failed to connect to postgres")

	assert.Eventually(t, func() bool {
		return s.CurrentConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
