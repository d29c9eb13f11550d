package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveBackgroundSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("x-api-key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("image_file")
		require.NoError(t, err)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("cutout-png"))
	}))
	defer srv.Close()

	client := NewPhotoroom(srv.URL, "secret-key", 5*time.Second)
	result, err := client.RemoveBackground(context.Background(), []byte("original"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, []byte("cutout-png"), result)
}

func TestRemoveBackgroundNonSuccessIsCapabilityError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewPhotoroom(srv.URL, "bad-key", 5*time.Second)
	_, err := client.RemoveBackground(context.Background(), []byte("original"), "image/jpeg")

	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "Photoroom", capErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, capErr.StatusCode)
	assert.Contains(t, capErr.Message, "invalid api key")
}

func TestGenerateSceneSendsPromptAndFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer stability-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, ScenePrompt, r.FormValue("prompt"))
		assert.Equal(t, "png", r.FormValue("output_format"))
		_, _ = w.Write([]byte("scene-png"))
	}))
	defer srv.Close()

	client := NewStability(srv.URL, "stability-key", 5*time.Second)
	result, err := client.GenerateScene(context.Background(), []byte("cutout"), ScenePrompt)
	require.NoError(t, err)
	assert.Equal(t, []byte("scene-png"), result)
}

func TestGenerateSceneNonSuccessIsCapabilityError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewStability(srv.URL, "stability-key", 5*time.Second)
	_, err := client.GenerateScene(context.Background(), []byte("cutout"), ScenePrompt)

	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "Stability AI", capErr.Provider)
}

func TestBuildScenePromptIncludesTitle(t *testing.T) {
	prompt := BuildScenePrompt("Oak Rainbow Stacker")
	assert.Contains(t, prompt, `"Oak Rainbow Stacker"`)
	assert.Contains(t, prompt, "product photography")
}
