package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/routecache/internal/db"
	"github.com/xxxsen/routecache/internal/handler"
	"github.com/xxxsen/routecache/internal/middleware"
	"github.com/xxxsen/routecache/internal/model"
	"github.com/xxxsen/routecache/internal/repo"
	"github.com/xxxsen/routecache/internal/resultcache"
	"github.com/xxxsen/routecache/internal/service"
	"github.com/xxxsen/routecache/internal/testutil"
)

const testBodyLimit = 1024

func setupRouter(t *testing.T) (http.Handler, *db.DB, string) {
	t.Helper()
	return buildRouter(t, 0)
}

// setupCachedRouter wires the result LRU in front of the repo like the
// server does.
func setupCachedRouter(t *testing.T) (http.Handler, *db.DB, string) {
	t.Helper()
	return buildRouter(t, 16)
}

func buildRouter(t *testing.T, cacheSize int) (http.Handler, *db.DB, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, table := testutil.OpenTestDB(t)
	store := resultcache.WrapLRU(repo.NewResultRepo(conn, table), cacheSize, time.Minute)
	results := service.NewResultService(store)

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>routes</html>"), 0o644))

	deps := handler.RouterDeps{
		Results: handler.NewResultHandler(results),
		Index:   handler.NewIndexHandler(staticDir),
	}
	engine, err := webapi.NewEngine(
		"/",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
			middleware.BodyLimit(testBodyLimit),
		),
	)
	require.NoError(t, err)
	return engine, conn, table
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func TestSaveThenCheck(t *testing.T) {
	router, _, _ := setupRouter(t)

	resp := doRequest(t, router, http.MethodPost, "/api/save-result",
		`{"sourceCoordinates":{"lat":1,"lng":2},"destCoordinates":{"lat":3,"lng":4},"algResults":{"distance":5}}`)
	require.Equal(t, http.StatusOK, resp.Code)
	saved := decode(t, resp)
	require.Equal(t, "Data saved successfully", saved["message"])
	id, ok := saved["id"].(float64)
	require.True(t, ok)
	require.Positive(t, id)

	resp = doRequest(t, router, http.MethodPost, "/api/check",
		`{"sourceCoordinates":{"lat":1,"lng":2},"destCoordinates":{"lat":3,"lng":4}}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"exists":true,"algResults":{"distance":5}}`, resp.Body.String())
}

func TestCheckMiss(t *testing.T) {
	router, _, _ := setupRouter(t)

	resp := doRequest(t, router, http.MethodPost, "/api/check",
		`{"sourceCoordinates":{"lat":1,"lng":2},"destCoordinates":{"lat":3,"lng":4}}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"exists":false}`, resp.Body.String())
}

func TestCheckKeyOrderMatters(t *testing.T) {
	router, _, _ := setupRouter(t)

	resp := doRequest(t, router, http.MethodPost, "/api/save-result",
		`{"sourceCoordinates":{"lng":2,"lat":1},"destCoordinates":{"lat":3,"lng":4},"algResults":{"distance":5}}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, router, http.MethodPost, "/api/check",
		`{"sourceCoordinates":{"lat":1,"lng":2},"destCoordinates":{"lat":3,"lng":4}}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"exists":false}`, resp.Body.String())
}

func TestDeleteThenCheck(t *testing.T) {
	router, _, _ := setupRouter(t)
	body := `{"sourceCoordinates":{"lat":1,"lng":2},"destCoordinates":{"lat":3,"lng":4},"algResults":{"distance":5}}`
	key := `{"sourceCoordinates":{"lat":1,"lng":2},"destCoordinates":{"lat":3,"lng":4}}`

	require.Equal(t, http.StatusOK, doRequest(t, router, http.MethodPost, "/api/save-result", body).Code)
	require.Equal(t, http.StatusOK, doRequest(t, router, http.MethodPost, "/api/save-result", body).Code)

	resp := doRequest(t, router, http.MethodDelete, "/api/delete-directions", key)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"message":"Data deleted successfully"}`, resp.Body.String())

	resp = doRequest(t, router, http.MethodPost, "/api/check", key)
	require.JSONEq(t, `{"exists":false}`, resp.Body.String())
}

func TestCachedDeleteThenCheck(t *testing.T) {
	router, _, _ := setupCachedRouter(t)
	body := `{"sourceCoordinates":{"lat":1,"lng":2},"destCoordinates":{"lat":3,"lng":4},"algResults":{"distance":5}}`
	key := `{"sourceCoordinates":{"lat":1,"lng":2},"destCoordinates":{"lat":3,"lng":4}}`

	require.Equal(t, http.StatusOK, doRequest(t, router, http.MethodPost, "/api/save-result", body).Code)
	for i := 0; i < 2; i++ {
		resp := doRequest(t, router, http.MethodPost, "/api/check", key)
		require.Equal(t, http.StatusOK, resp.Code)
		require.JSONEq(t, `{"exists":true,"algResults":{"distance":5}}`, resp.Body.String())
	}

	resp := doRequest(t, router, http.MethodDelete, "/api/delete-directions", key)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, router, http.MethodPost, "/api/check", key)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"exists":false}`, resp.Body.String())
}

func TestCheckEquivalentSpellingMatches(t *testing.T) {
	router, _, _ := setupRouter(t)

	resp := doRequest(t, router, http.MethodPost, "/api/save-result",
		`{"sourceCoordinates":{"lat":1.0,"name":"A"},"destCoordinates":{"lat":3},"algResults":{"distance":5}}`)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doRequest(t, router, http.MethodPost, "/api/check",
		`{"sourceCoordinates":{"lat":1,"name":"\u0041"},"destCoordinates":{"lat":3.00}}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"exists":true,"algResults":{"distance":5}}`, resp.Body.String())
}

func TestCheckCorruptStoredResults(t *testing.T) {
	router, conn, table := setupRouter(t)
	_, err := repo.NewResultRepo(conn, table).Insert(context.Background(), &model.CacheEntry{
		SourceCoordinates: `{"lat":1}`,
		DestCoordinates:   `{"lat":2}`,
		AlgResults:        "not json",
	})
	require.NoError(t, err)

	resp := doRequest(t, router, http.MethodPost, "/api/check",
		`{"sourceCoordinates":{"lat":1},"destCoordinates":{"lat":2}}`)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Equal(t, "Database error", resp.Body.String())
}

func TestDeleteUnknownKey(t *testing.T) {
	router, _, _ := setupRouter(t)

	resp := doRequest(t, router, http.MethodDelete, "/api/delete-directions",
		`{"sourceCoordinates":{"lat":7},"destCoordinates":{"lat":8}}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"message":"Data deleted successfully"}`, resp.Body.String())
}

func TestCheckConnection(t *testing.T) {
	router, conn, _ := setupRouter(t)

	resp := doRequest(t, router, http.MethodGet, "/api/check-connection", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"connected":true}`, resp.Body.String())

	require.NoError(t, conn.Close())
	resp = doRequest(t, router, http.MethodGet, "/api/check-connection", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `{"connected":false}`, resp.Body.String())
}

func TestStorageFailuresReturn500(t *testing.T) {
	router, conn, _ := setupRouter(t)
	require.NoError(t, conn.Close())
	key := `{"sourceCoordinates":{"lat":1},"destCoordinates":{"lat":2}}`

	resp := doRequest(t, router, http.MethodPost, "/api/check", key)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Equal(t, "Database error", resp.Body.String())

	resp = doRequest(t, router, http.MethodPost, "/api/save-result",
		`{"sourceCoordinates":{"lat":1},"destCoordinates":{"lat":2},"algResults":{}}`)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Equal(t, "Error saving to database", resp.Body.String())

	resp = doRequest(t, router, http.MethodDelete, "/api/delete-directions", key)
	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Equal(t, "Error deleting directions from the database", resp.Body.String())
}

func TestMalformedBody(t *testing.T) {
	router, _, _ := setupRouter(t)

	resp := doRequest(t, router, http.MethodPost, "/api/check", `{"sourceCoordinates":`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestBodyTooLarge(t *testing.T) {
	router, _, _ := setupRouter(t)
	big := strings.Repeat("1,", testBodyLimit)

	resp := doRequest(t, router, http.MethodPost, "/api/save-result",
		`{"sourceCoordinates":{},"destCoordinates":{},"algResults":[`+big+`1]}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

func TestIndexServed(t *testing.T) {
	router, _, _ := setupRouter(t)

	resp := doRequest(t, router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "routes")
}
