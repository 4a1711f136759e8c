package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Imziyasser00/calis-blog-sub001/internal/config"
	localstorage "github.com/Imziyasser00/calis-blog-sub001/internal/storage/local"
	memorystorage "github.com/Imziyasser00/calis-blog-sub001/internal/storage/memory"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:                  8080,
			Environment:           "development",
			RequestTimeoutSeconds: 5,
		},
		Application:     config.ApplicationConfig{ServiceName: "calis-blog-test", Version: "test"},
		SubscriberStore: config.SubscriberStoreConfig{Backend: config.BackendMemory},
		Events:          config.EventsConfig{Backend: config.BackendMemory},
		Mail: config.MailConfig{
			Backend:      config.BackendLog,
			Subject:      "Welcome",
			SiteURL:      "https://calisthenics.example",
			SiteName:     "Calisthenics Hub",
			MaxPerSecond: 100,
			Burst:        10,
		},
		Storage: config.StorageConfig{Backend: config.BackendMemory, OGPrefix: "og"},
	}
}

func TestBuild_MemoryBackendsServeRequests(t *testing.T) {
	t.Parallel()
	app, err := Build(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close(context.Background())) })

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(`{"email":"a@b.co"}`))
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok":true`)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/track", strings.NewReader(`{"sessionId":"s-1","eventType":"page_view"}`))
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildBlobStore_SelectsBackend(t *testing.T) {
	t.Parallel()
	cfg := memoryConfig()
	store, closeFn, err := BuildBlobStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Nil(t, closeFn)
	require.IsType(t, &memorystorage.BlobStore{}, store)

	dir := filepath.Join(t.TempDir(), "images")
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.BaseDir = dir
	store, _, err = BuildBlobStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &localstorage.BlobStore{}, store)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
