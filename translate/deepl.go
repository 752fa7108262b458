package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"pubmed-digest/config"
)

// Interne Wire-Konvention des Übersetzungs-Batchings. joinToken packt mehrere
// Dokumente in einen physischen Aufruf; ColonToken schützt den wörtlichen
// Doppelpunkt vor der Übersetzung. Beides darf niemals in Nutzinhalten
// vorkommen und taucht nie in den Rückgaben auf.
const (
	joinToken = "__UNIQUE_SPLIT__"
	// ColonToken wird vom Parser vor Labels eingesetzt und hier beim
	// Zurücklesen wieder zu ":" repariert.
	ColonToken = "__UNIQUE_COLON__"
)

// ErrSegmentMismatch zeigt eine Protokollverletzung an: Die Zahl der
// zurückgewonnenen Segmente passt nicht zur Zahl der eingereichten Texte.
// Das ist nie tolerierbar, weil es stille Datenverschiebung bedeuten würde.
var ErrSegmentMismatch = errors.New("translated segment count does not match input count")

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Client kapselt die Aufrufe gegen die DeepL-API.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt einen neuen DeepL-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// deeplResponse repräsentiert die JSON-Antwort des Übersetzungsendpunkts.
type deeplResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// TranslateMany übersetzt eine geordnete Liste von Texten in einem Batch.
// Alle Eingaben werden mit dem Join-Token verbunden, in größenbeschränkte
// Chunks zerlegt, Chunk für Chunk übersetzt und anschließend wieder in
// einzelne Segmente zerlegt. Die Rückgabe hat exakt die Länge und Reihenfolge
// der Eingabe. Jeder Fehler der API ist fatal für den gesamten Batch.
func (c *Client) TranslateMany(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	combined := strings.Join(texts, joinToken)
	chunks := Chunk(combined, c.Config.DeepLMaxChunk)
	c.Logger.Debug("Übersetzungs-Batch vorbereitet",
		zap.Int("documents", len(texts)),
		zap.Int("chunks", len(chunks)))

	var sb strings.Builder
	for _, chunk := range chunks {
		translated, err := c.translateChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("translate chunk: %w", err)
		}
		sb.WriteString(translated)
	}

	segments := strings.Split(sb.String(), joinToken)
	if len(segments) != len(texts) {
		c.Logger.Error("Segmentzahl nach Übersetzung inkonsistent",
			zap.Int("want", len(texts)),
			zap.Int("got", len(segments)))
		return nil, fmt.Errorf("%w: want %d, got %d", ErrSegmentMismatch, len(texts), len(segments))
	}

	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}
	return segments, nil
}

// translateChunk schickt einen einzelnen Chunk an DeepL und repariert den
// Doppelpunkt-Platzhalter in der Antwort.
func (c *Client) translateChunk(ctx context.Context, text string) (string, error) {
	form := url.Values{
		"auth_key":    {c.Config.DeepLAPIKey},
		"text":        {text},
		"source_lang": {c.Config.DeepLSourceLang},
		"target_lang": {c.Config.DeepLTargetLang},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.Config.DeepLBaseURL+"/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepl translate failed: status %d: %s", resp.StatusCode, string(body))
	}

	var result deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("deepl response decode: %w", err)
	}
	if len(result.Translations) == 0 {
		return "", fmt.Errorf("unexpected response format from DeepL API")
	}

	var sb strings.Builder
	for _, t := range result.Translations {
		sb.WriteString(strings.ReplaceAll(t.Text, ColonToken, ":"))
	}
	return sb.String(), nil
}
