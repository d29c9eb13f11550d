package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Copy is the marketing package produced for one product image. The
// contract guarantees exactly three captions and at least one hashtag;
// GenerateCopy repairs anything the model gets wrong.
type Copy struct {
	ProductTitle string
	Captions     []string
	Hashtags     []string
}

// Gemini analyses a product photo and writes the marketing copy.
type Gemini struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
	log        zerolog.Logger
}

func NewGemini(endpoint, apiKey, model string, timeout time.Duration, log zerolog.Logger) *Gemini {
	return &Gemini{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiKey:     apiKey,
		model:      model,
		log:        log,
	}
}

const copyPrompt = `You are an expert marketing copywriter for artisanal, handcrafted toys and gifts.

Analyse this product image and return a JSON object with exactly these keys:

{
  "productTitle": "A short, catchy product name (max 8 words)",
  "captions": [
    "First caption: an engaging, SEO-optimised Instagram caption (~60 words). Highlight craftsmanship and uniqueness.",
    "Second caption: a playful, emotive caption (~50 words). Focus on gift-giving and joy.",
    "Third caption: a concise, hashtag-ready caption (~40 words). Emphasize handmade quality and artisan pride."
  ],
  "hashtags": ["array", "of", "10", "relevant", "hashtags", "without-the-hash-symbol"]
}

IMPORTANT:
- Return ONLY the raw JSON object, no markdown fences, no extra text.
- Generate exactly 3 distinct Instagram captions tailored for an artisanal toy maker.
- Hashtags should be lowercase, no spaces, no # prefix.
- Focus on artisan, handmade, craft, toy, and gift niches.`

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	Text       string            `json:"text,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// rawCopy mirrors the JSON the model is asked to emit. Caption (singular)
// is an older response shape some model versions still produce.
type rawCopy struct {
	ProductTitle string   `json:"productTitle"`
	Captions     []string `json:"captions"`
	Caption      string   `json:"caption"`
	Hashtags     []string `json:"hashtags"`
}

// GenerateCopy calls the model and returns a well-formed Copy. Network
// and HTTP errors surface as CapabilityError; malformed model output is
// repaired with deterministic defaults and never returned as an error.
func (g *Gemini) GenerateCopy(ctx context.Context, image []byte, mimeType string) (Copy, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MIMEType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
				{Text: copyPrompt},
			},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.7,
			TopP:            0.9,
			MaxOutputTokens: 512,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Copy{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Copy{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Copy{}, &CapabilityError{Provider: "Gemini", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Copy{}, &CapabilityError{
			Provider:   "Gemini",
			StatusCode: resp.StatusCode,
			Message:    readErrorBody(resp.Body),
		}
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		g.log.Error().Err(err).Msg("gemini response not decodable, using default copy")
		return defaultCopy(), nil
	}

	text := ""
	if len(decoded.Candidates) > 0 && len(decoded.Candidates[0].Content.Parts) > 0 {
		text = decoded.Candidates[0].Content.Parts[0].Text
	}

	return g.repairCopy(text), nil
}

var codeFenceRe = regexp.MustCompile("(?i)```(?:json)?\\s*")

// repairCopy turns whatever the model wrote into a valid Copy. Parse
// failures and missing fields fall back to the deterministic defaults.
func (g *Gemini) repairCopy(text string) Copy {
	cleaned := strings.TrimSpace(codeFenceRe.ReplaceAllString(text, ""))

	var parsed rawCopy
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		g.log.Error().Str("response", truncate(cleaned, 256)).Msg("failed to parse gemini copy, using defaults")
		return defaultCopy()
	}

	copyResult := Copy{ProductTitle: strings.TrimSpace(parsed.ProductTitle)}
	if copyResult.ProductTitle == "" {
		copyResult.ProductTitle = defaultProductTitle
	}

	captions := make([]string, 0, 3)
	for _, c := range parsed.Captions {
		if c = strings.TrimSpace(c); c != "" {
			captions = append(captions, c)
		}
	}
	if len(captions) == 0 && strings.TrimSpace(parsed.Caption) != "" {
		captions = append(captions, strings.TrimSpace(parsed.Caption))
	}
	// Exactly three captions: pad from defaults, drop extras.
	for i := 0; len(captions) < 3; i++ {
		captions = append(captions, defaultCaptions[i%len(defaultCaptions)])
	}
	copyResult.Captions = captions[:3]

	copyResult.Hashtags = NormalizeHashtags(parsed.Hashtags)
	if len(copyResult.Hashtags) == 0 {
		copyResult.Hashtags = append([]string(nil), defaultHashtags[:5]...)
	}

	return copyResult
}

// NormalizeHashtags lowercases tags and strips any leading '#'. Empty
// entries are dropped.
func NormalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func defaultCopy() Copy {
	return Copy{
		ProductTitle: defaultProductTitle,
		Captions:     append([]string(nil), defaultCaptions...),
		Hashtags:     append([]string(nil), defaultHashtags...),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
