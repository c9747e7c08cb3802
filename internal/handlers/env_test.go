package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/squatlab/backend/internal/analysis"
	"github.com/squatlab/backend/internal/middleware"
	"github.com/squatlab/backend/internal/models"
	"github.com/squatlab/backend/internal/repo"
	"github.com/squatlab/backend/internal/service"
	"github.com/squatlab/backend/internal/token"
)

type testEnv struct {
	T     *testing.T
	E     *echo.Echo
	DB    *gorm.DB
	Repo  *repo.GormRepo
	Codec *token.Codec
	A     *AuthHandler
}

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.UploadJob{}, &models.AnalysisResult{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	db := initTestDB(t)
	gormRepo := repo.New(db)
	codec := &token.Codec{Secret: []byte("test_secret")}

	env := &testEnv{
		T:     t,
		E:     echo.New(),
		DB:    db,
		Repo:  gormRepo,
		Codec: codec,
	}

	env.A = &AuthHandler{
		Users:      gormRepo,
		Refresh:    gormRepo,
		Verifier:   &service.CredentialVerifier{Users: gormRepo},
		Codec:      codec,
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
	}

	return env
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) doFormRequest(method, path string, form url.Values) (*httptest.ResponseRecorder, echo.Context) {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) doUploadRequest(field, filename string, content []byte, principal *middleware.Principal) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if filename != "" || len(content) > 0 {
		part, err := writer.CreateFormFile(field, filename)
		require.NoError(env.T, err)
		_, err = part.Write(content)
		require.NoError(env.T, err)
	}
	require.NoError(env.T, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if principal != nil {
		c.Set("principal", principal)
	}
	return rec, c
}

func (env *testEnv) join(username, password, realName string) {
	payload := map[string]string{
		"username": username,
		"password": password,
		"realName": realName,
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/join", payload)
	require.NoError(env.T, env.A.Join(c))
	require.Equal(env.T, http.StatusOK, rec.Code)
}

func (env *testEnv) login(username, password string) (string, string) {
	payload := map[string]string{"username": username, "password": password}
	rec, c := env.doJSONRequest(http.MethodPost, "/login", payload)
	require.NoError(env.T, env.A.Login(c))
	require.Equal(env.T, http.StatusOK, rec.Code)

	access := rec.Header().Get(AccessHeader)
	require.NotEmpty(env.T, access)

	refresh := refreshCookieValue(env.T, rec)
	require.NotEmpty(env.T, refresh)

	return access, refresh
}

func refreshCookieValue(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	res := rec.Result()
	defer res.Body.Close()
	for _, ck := range res.Cookies() {
		if ck.Name == RefreshCookie {
			return ck.Value
		}
	}
	return ""
}

// fakeStore stands in for the S3 capability.
type fakeStore struct {
	keys []string
	fail bool
}

func (s *fakeStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if s.fail {
		return "", fmt.Errorf("store unavailable")
	}
	s.keys = append(s.keys, key)
	return "https://blobs.test/" + key, nil
}

func newUploadHandler(env *testEnv, analysisURL string) (*UploadHandler, *fakeStore) {
	store := &fakeStore{}
	return &UploadHandler{
		Jobs:     env.Repo,
		Store:    store,
		Analyzer: analysis.NewClient(analysisURL),
	}, store
}
