package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/squatlab/backend/internal/middleware"
	"github.com/squatlab/backend/internal/models"
)

func alicePrincipal() *middleware.Principal {
	return &middleware.Principal{Username: "alice", Role: "ROLE_USER", RealName: "Alice Kim"}
}

func analysisStub(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(32<<20))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUploadRequiresPrincipal(t *testing.T) {
	env := newTestEnv(t)
	h, _ := newUploadHandler(env, "http://localhost:0")

	rec, c := env.doUploadRequest("upload", "squat.mp4", []byte("video-bytes"), nil)
	require.NoError(t, h.Upload(c))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadNoFile(t *testing.T) {
	env := newTestEnv(t)
	h, _ := newUploadHandler(env, "http://localhost:0")

	rec, c := env.doUploadRequest("upload", "", nil, alicePrincipal())
	require.NoError(t, h.Upload(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var jobs int64
	require.NoError(t, env.DB.Model(&models.UploadJob{}).Count(&jobs).Error)
	require.Zero(t, jobs)
	var results int64
	require.NoError(t, env.DB.Model(&models.AnalysisResult{}).Count(&results).Error)
	require.Zero(t, results)
}

func TestUploadWrongField(t *testing.T) {
	env := newTestEnv(t)
	h, _ := newUploadHandler(env, "http://localhost:0")

	rec, c := env.doUploadRequest("file", "squat.mp4", []byte("video-bytes"), alicePrincipal())
	require.NoError(t, h.Upload(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadSuccess(t *testing.T) {
	env := newTestEnv(t)
	srv := analysisStub(t, http.StatusOK, `{"score": 87.5, "feedback": ["line1", "line2"]}`)
	h, store := newUploadHandler(env, srv.URL)

	rec, c := env.doUploadRequest("upload", "squat.mp4", []byte("video-bytes"), alicePrincipal())
	require.NoError(t, h.Upload(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 87.5, resp.Score)
	require.Equal(t, "line1\nline2", resp.Feedback)

	require.Len(t, store.keys, 1)
	require.True(t, strings.HasSuffix(store.keys[0], ".mp4"))

	var job models.UploadJob
	require.NoError(t, env.DB.First(&job).Error)
	require.Equal(t, models.StatusDone, job.Status)
	require.Equal(t, "alice", job.Username)
	require.Equal(t, "squat.mp4", job.OriginalFilename)
	require.Equal(t, ".mp4", job.Extension)
	require.Equal(t, "https://blobs.test/"+store.keys[0], job.BlobURL)

	var result models.AnalysisResult
	require.NoError(t, env.DB.First(&result).Error)
	require.Equal(t, job.ID, result.JobID)
	require.NotNil(t, result.Score)
	require.Equal(t, 87.5, *result.Score)
	require.Equal(t, "line1\nline2", result.Feedback)
}

func TestUploadAnalysisUnreachable(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	h, _ := newUploadHandler(env, url)

	rec, c := env.doUploadRequest("upload", "squat.mp4", []byte("video-bytes"), alicePrincipal())
	require.NoError(t, h.Upload(c))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var job models.UploadJob
	require.NoError(t, env.DB.First(&job).Error)
	require.Equal(t, models.StatusFailed, job.Status)

	var result models.AnalysisResult
	require.NoError(t, env.DB.First(&result).Error)
	require.Equal(t, job.ID, result.JobID)
	require.Nil(t, result.Score)
	require.NotEmpty(t, result.Feedback)
}

func TestUploadAnalysisRejects(t *testing.T) {
	env := newTestEnv(t)
	srv := analysisStub(t, http.StatusUnprocessableEntity, `{"detail": "not a squat video"}`)
	h, _ := newUploadHandler(env, srv.URL)

	rec, c := env.doUploadRequest("upload", "squat.mp4", []byte("video-bytes"), alicePrincipal())
	require.NoError(t, h.Upload(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var job models.UploadJob
	require.NoError(t, env.DB.First(&job).Error)
	require.Equal(t, models.StatusFailed, job.Status)

	var result models.AnalysisResult
	require.NoError(t, env.DB.First(&result).Error)
	require.Nil(t, result.Score)
}

func TestUploadAnalysisServerFault(t *testing.T) {
	env := newTestEnv(t)
	srv := analysisStub(t, http.StatusInternalServerError, `{"detail": "boom"}`)
	h, _ := newUploadHandler(env, srv.URL)

	rec, c := env.doUploadRequest("upload", "squat.mp4", []byte("video-bytes"), alicePrincipal())
	require.NoError(t, h.Upload(c))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var job models.UploadJob
	require.NoError(t, env.DB.First(&job).Error)
	require.Equal(t, models.StatusFailed, job.Status)
}

func TestUploadAnalysisEmptyBody(t *testing.T) {
	env := newTestEnv(t)
	srv := analysisStub(t, http.StatusOK, "")
	h, _ := newUploadHandler(env, srv.URL)

	rec, c := env.doUploadRequest("upload", "squat.mp4", []byte("video-bytes"), alicePrincipal())
	require.NoError(t, h.Upload(c))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var result models.AnalysisResult
	require.NoError(t, env.DB.First(&result).Error)
	require.Nil(t, result.Score)
}

func TestVideosListsOwnJobs(t *testing.T) {
	env := newTestEnv(t)
	srv := analysisStub(t, http.StatusOK, `{"score": 91.0, "feedback": ["good depth"]}`)
	h, _ := newUploadHandler(env, srv.URL)

	rec, c := env.doUploadRequest("upload", "squat.mp4", []byte("video-bytes"), alicePrincipal())
	require.NoError(t, h.Upload(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// another user's job must not show up
	other := &middleware.Principal{Username: "bob", Role: "ROLE_USER", RealName: "Bob Lee"}
	recB, cB := env.doUploadRequest("upload", "deadlift.mov", []byte("other-bytes"), other)
	require.NoError(t, h.Upload(cB))
	require.Equal(t, http.StatusOK, recB.Code)

	req := httptest.NewRequest(http.MethodGet, "/videos", nil)
	recList := httptest.NewRecorder()
	cList := env.E.NewContext(req, recList)
	cList.Set("principal", alicePrincipal())

	require.NoError(t, h.Videos(cList))
	require.Equal(t, http.StatusOK, recList.Code)

	var resp struct {
		Videos []struct {
			OriginalFilename string `json:"original_filename"`
			Status           string `json:"status"`
			Result           *struct {
				Score    *float64 `json:"score"`
				Feedback string   `json:"feedback"`
			} `json:"result"`
		} `json:"videos"`
	}
	require.NoError(t, json.Unmarshal(recList.Body.Bytes(), &resp))
	require.Len(t, resp.Videos, 1)
	require.Equal(t, "squat.mp4", resp.Videos[0].OriginalFilename)
	require.Equal(t, "DONE", resp.Videos[0].Status)
	require.NotNil(t, resp.Videos[0].Result)
	require.Equal(t, 91.0, *resp.Videos[0].Result.Score)
	require.Equal(t, "good depth", resp.Videos[0].Result.Feedback)
}
