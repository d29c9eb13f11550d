package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// ScenePrompt is the fixed scene description used on every run. A
// title-aware prompt exists (BuildScenePrompt) but is intentionally not
// used by the pipeline.
const ScenePrompt = "A bright, sunny, minimalist playroom with natural lighting, soft shadows, " +
	"and a clean aesthetic, perfect for showcasing handcrafted wooden toys."

// Stability generates a lifestyle scene around a background-removed
// product cutout.
type Stability struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

func NewStability(endpoint, apiKey string, timeout time.Duration) *Stability {
	return &Stability{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

func (s *Stability) GenerateScene(ctx context.Context, image []byte, prompt string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", "product.png")
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write image part: %w", err)
	}
	if err := writer.WriteField("prompt", prompt); err != nil {
		return nil, fmt.Errorf("write prompt field: %w", err)
	}
	if err := writer.WriteField("output_format", "png"); err != nil {
		return nil, fmt.Errorf("write format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "image/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &CapabilityError{Provider: "Stability AI", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CapabilityError{
			Provider:   "Stability AI",
			StatusCode: resp.StatusCode,
			Message:    readErrorBody(resp.Body),
		}
	}

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return result, nil
}

// BuildScenePrompt derives a scene description from the generated
// product title. Kept for per-product scenes; the pipeline currently
// always passes ScenePrompt instead.
func BuildScenePrompt(productTitle string) string {
	return fmt.Sprintf(
		"A beautiful, high-end product photography scene for a handcrafted artisanal toy: %q. "+
			"The toy is placed on a rustic wooden surface with soft, warm studio lighting. "+
			"Blurred cozy background with fairy lights, craft supplies, and warm earth tones. "+
			"Professional lifestyle product photography, shallow depth of field, 4K quality.",
		productTitle,
	)
}
