// Package pubmed enthält die Logik für die Interaktion mit der eutils-API
// (esearch/efetch) inklusive Paginierung und lenientem XML-Parsing.
package pubmed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"pubmed-digest/config"
	"pubmed-digest/models"
)

const (
	sourceDB = "pubmed"
	// dateType beschränkt die Suche auf das Publikationsdatum (pdat).
	dateType = "pdat"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Client kapselt die eutils-Aufrufe gegen esearch und efetch.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt eine neue Instanz des eutils-Clients.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// Continuation ist das Sitzungs-Token-Paar aus esearch, mit dem efetch eine
// paginierte Suche fortsetzen kann, ohne die Query neu aufzulösen.
type Continuation struct {
	QueryKey string
	WebEnv   string
}

// Page bündelt das Ergebnis eines Seitenabrufs: die rohen Artikel-Dokumente,
// die PMID-Liste, das Continuation-Paar und die unveränderten efetch-Bytes
// (für das optionale Archiv).
type Page struct {
	PMIDs        []string
	Docs         []*etree.Element
	Continuation Continuation
	Raw          []byte
}

// Pages berechnet die Seitenzahl als ceil(total/perPage). perPage muss
// positiv sein.
func Pages(total, perPage int) (int, error) {
	if perPage <= 0 {
		return 0, fmt.Errorf("items per page must be positive, got %d", perPage)
	}
	return (total + perPage - 1) / perPage, nil
}

// Count führt eine reine Zähl-Suche aus und gibt die Gesamttrefferzahl zurück.
func (c *Client) Count(ctx context.Context, query models.SearchQuery) (int, error) {
	params := c.searchParams(query)
	params.Set("retmax", "0")

	doc, _, err := c.getXML(ctx, c.Config.PubMedBaseURL+"/esearch.fcgi", params)
	if err != nil {
		return 0, fmt.Errorf("esearch count: %w", err)
	}

	countEl := doc.FindElement("//Count")
	if countEl == nil {
		return 0, fmt.Errorf("esearch response missing Count element")
	}
	count, err := strconv.Atoi(countEl.Text())
	if err != nil {
		return 0, fmt.Errorf("esearch count not numeric: %w", err)
	}
	return count, nil
}

// FetchPage holt genau eine Ergebnis-Seite: esearch liefert PMIDs und das
// Continuation-Paar, efetch anschließend die Artikel-Dokumente. Der
// Start-Offset ist (page-1)*perPage, nullbasiert.
func (c *Client) FetchPage(ctx context.Context, query models.SearchQuery, page, perPage int) (*Page, error) {
	start := (page - 1) * perPage

	searchParams := c.searchParams(query)
	searchParams.Set("retstart", strconv.Itoa(start))
	searchParams.Set("retmax", strconv.Itoa(perPage))

	searchDoc, _, err := c.getXML(ctx, c.Config.PubMedBaseURL+"/esearch.fcgi", searchParams)
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}

	var pmids []string
	for _, idEl := range searchDoc.FindElements("//IdList/Id") {
		pmids = append(pmids, idEl.Text())
	}

	queryKeyEl := searchDoc.FindElement("//QueryKey")
	webEnvEl := searchDoc.FindElement("//WebEnv")
	if queryKeyEl == nil || webEnvEl == nil {
		// Ohne Sitzungstoken kann efetch nicht fortsetzen; das ist eine
		// unerwartete Antwortform, kein tolerierbarer Parse-Ausfall.
		return nil, fmt.Errorf("esearch response missing QueryKey/WebEnv session tokens")
	}
	cont := Continuation{QueryKey: queryKeyEl.Text(), WebEnv: webEnvEl.Text()}

	fetchParams := url.Values{}
	fetchParams.Set("db", sourceDB)
	fetchParams.Set("query_key", cont.QueryKey)
	fetchParams.Set("WebEnv", cont.WebEnv)
	fetchParams.Set("retmode", "xml")
	fetchParams.Set("rettype", "abstract")
	fetchParams.Set("retstart", strconv.Itoa(start))
	fetchParams.Set("retmax", strconv.Itoa(perPage))
	if c.Config.PubMedAPIKey != "" {
		fetchParams.Set("api_key", c.Config.PubMedAPIKey)
	}

	fetchDoc, raw, err := c.getXML(ctx, c.Config.PubMedBaseURL+"/efetch.fcgi", fetchParams)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}

	docs := fetchDoc.FindElements("//PubmedArticle")
	c.Logger.Info("Seite von PubMed geladen",
		zap.Int("page", page),
		zap.Int("retstart", start),
		zap.Int("articles", len(docs)))

	return &Page{PMIDs: pmids, Docs: docs, Continuation: cont, Raw: raw}, nil
}

// searchParams baut die gemeinsamen esearch-Parameter für eine Query.
func (c *Client) searchParams(query models.SearchQuery) url.Values {
	params := url.Values{}
	params.Set("db", sourceDB)
	params.Set("term", query.Term)
	params.Set("datetype", dateType)
	params.Set("mindate", query.MinDate)
	params.Set("maxdate", query.MaxDate)
	params.Set("usehistory", "y")
	if c.Config.PubMedAPIKey != "" {
		params.Set("api_key", c.Config.PubMedAPIKey)
	}
	return params
}

// getXML führt einen GET aus und parst die Antwort mit lenientem
// (wiederherstellendem) XML-Parsing, da efetch-Dokumente nicht immer
// wohlgeformt sind.
func (c *Client) getXML(ctx context.Context, baseURL string, params url.Values) (*etree.Document, []byte, error) {
	reqURL := baseURL + "?" + params.Encode()
	c.Logger.Debug("Rufe eutils-URL auf", zap.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("eutils request failed: status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, nil, fmt.Errorf("xml parse: %w", err)
	}
	if doc.Root() == nil {
		return nil, nil, fmt.Errorf("xml parse: empty document")
	}
	return doc, body, nil
}
