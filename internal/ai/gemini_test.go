package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiServer(t *testing.T, modelText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]any{{"text": modelText}},
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestGemini(endpoint string) *Gemini {
	return NewGemini(endpoint, "test-key", "gemini-2.0-flash", 5*time.Second, zerolog.Nop())
}

func TestGenerateCopyParsesWellFormedResponse(t *testing.T) {
	modelText := `{
		"productTitle": "Oak Rainbow Stacker",
		"captions": ["First caption.", "Second caption.", "Third caption."],
		"hashtags": ["#Handmade", "WOODTOY", "gift"]
	}`
	srv := geminiServer(t, modelText)
	defer srv.Close()

	result, err := newTestGemini(srv.URL).GenerateCopy(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "Oak Rainbow Stacker", result.ProductTitle)
	assert.Equal(t, []string{"First caption.", "Second caption.", "Third caption."}, result.Captions)
	assert.Equal(t, []string{"handmade", "woodtoy", "gift"}, result.Hashtags)
}

func TestGenerateCopyStripsMarkdownFences(t *testing.T) {
	modelText := "```json\n{\"productTitle\":\"Felt Fox\",\"captions\":[\"a\",\"b\",\"c\"],\"hashtags\":[\"fox\"]}\n```"
	srv := geminiServer(t, modelText)
	defer srv.Close()

	result, err := newTestGemini(srv.URL).GenerateCopy(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Felt Fox", result.ProductTitle)
	assert.Len(t, result.Captions, 3)
}

func TestGenerateCopyRepairsUnparsableResponse(t *testing.T) {
	srv := geminiServer(t, "Sorry, I cannot help with that.")
	defer srv.Close()

	result, err := newTestGemini(srv.URL).GenerateCopy(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err, "malformed model output must be absorbed, not raised")

	assert.Equal(t, defaultProductTitle, result.ProductTitle)
	require.Len(t, result.Captions, 3)
	for _, c := range result.Captions {
		assert.NotEmpty(t, c)
	}
	assert.NotEmpty(t, result.Hashtags)
}

func TestGenerateCopyPadsLegacySingleCaption(t *testing.T) {
	srv := geminiServer(t, `{"productTitle":"Tiny Boat","caption":"One lonely caption.","hashtags":["boat"]}`)
	defer srv.Close()

	result, err := newTestGemini(srv.URL).GenerateCopy(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)

	require.Len(t, result.Captions, 3)
	assert.Equal(t, "One lonely caption.", result.Captions[0])
}

func TestGenerateCopyHTTPErrorIsCapabilityError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestGemini(srv.URL).GenerateCopy(context.Background(), []byte("img"), "image/png")
	require.Error(t, err)

	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "Gemini", capErr.Provider)
	assert.Equal(t, http.StatusTooManyRequests, capErr.StatusCode)
}

func TestNormalizeHashtags(t *testing.T) {
	got := NormalizeHashtags([]string{"#Handmade", "  #ARTISAN  ", "", "plain", "#"})
	assert.Equal(t, []string{"handmade", "artisan", "plain"}, got)
}
