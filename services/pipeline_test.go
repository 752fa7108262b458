package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pubmed-digest/config"
	"pubmed-digest/journals"
	"pubmed-digest/models"
	"pubmed-digest/pubmed"
	"pubmed-digest/translate"
)

// fakeDetector: japanische Schriftzeichen → "ja", sonst "en".
type fakeDetector struct{}

func (fakeDetector) Detect(text string) string {
	if text == "" {
		return ""
	}
	for _, r := range text {
		if (r >= 0x3040 && r <= 0x30ff) || (r >= 0x4e00 && r <= 0x9fff) {
			return "ja"
		}
	}
	return "en"
}

// fakeStore ist das In-Memory-Gegenstück zum Datenbank-Store.
type fakeStore struct {
	journals    []models.Journal
	createCalls []string
	nextID      uint
}

func (s *fakeStore) List() ([]models.Journal, error) {
	return s.journals, nil
}

func (s *fakeStore) Create(name string) (models.Journal, error) {
	s.createCalls = append(s.createCalls, name)
	s.nextID++
	journal := models.Journal{ID: s.nextID + 100, Name: name}
	s.journals = append(s.journals, journal)
	return journal, nil
}

const pipelineSearchXML = `<eSearchResult>
  <Count>2</Count>
  <QueryKey>1</QueryKey>
  <WebEnv>MCID_PIPE</WebEnv>
  <IdList><Id>111</Id><Id>222</Id></IdList>
</eSearchResult>`

// Artikel A: englisches Abstract mit Label plus unbeschriftetem Abschnitt.
// Artikel B: nur japanisches Abstract, das herausgefiltert wird.
const pipelineFetchXML = `<PubmedArticleSet>
<PubmedArticle>
  <MedlineCitation>
    <PMID>111</PMID>
    <Article>
      <Journal>
        <Title>The Lancet</Title>
        <JournalIssue><PubDate><Year>2020</Year><Month>Apr</Month></PubDate></JournalIssue>
      </Journal>
      <ArticleTitle>Curcumin and inflammation</ArticleTitle>
      <Abstract>
        <AbstractText Label="BACKGROUND">Inflammation drives disease.</AbstractText>
        <AbstractText>Curcumin reduced markers.</AbstractText>
      </Abstract>
      <AuthorList><Author><LastName>Tanaka</LastName><ForeName>Yuki</ForeName></Author></AuthorList>
      <ELocationID EIdType="doi">10.1000/test.111</ELocationID>
    </Article>
    <KeywordList><Keyword>curcumin</Keyword></KeywordList>
  </MedlineCitation>
</PubmedArticle>
<PubmedArticle>
  <MedlineCitation>
    <PMID>222</PMID>
    <Article>
      <Journal>
        <Title>Shinyaku to Chiryo</Title>
        <JournalIssue><PubDate><Year>2020</Year><Month>May</Month></PubDate></JournalIssue>
      </Journal>
      <ArticleTitle>A second article</ArticleTitle>
      <Abstract>
        <AbstractText>この要約は日本語だけです。</AbstractText>
      </Abstract>
    </Article>
  </MedlineCitation>
</PubmedArticle>
</PubmedArticleSet>`

func newPipelineEutilsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pipelineSearchXML))
	})
	mux.HandleFunc("/efetch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pipelineFetchXML))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newEchoDeepLServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"translations": []map[string]string{{"text": r.FormValue("text")}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPipeline(t *testing.T, eutilsURL, deeplURL string, store *fakeStore) *Pipeline {
	t.Helper()
	cfg := &config.Config{
		PubMedBaseURL:   eutilsURL,
		ItemsPerPage:    10,
		DeepLAPIKey:     "test-key",
		DeepLBaseURL:    deeplURL,
		DeepLSourceLang: "EN",
		DeepLTargetLang: "JA",
		DeepLMaxChunk:   4000,
	}
	logger := zap.NewNop()
	registry, err := journals.NewRegistry(store, logger)
	require.NoError(t, err)
	return NewPipeline(cfg, logger,
		pubmed.NewClient(cfg, logger),
		pubmed.NewParser(fakeDetector{}, logger),
		translate.NewClient(cfg, logger),
		registry, nil)
}

func TestPipelineRun(t *testing.T) {
	eutils := newPipelineEutilsServer(t)
	deepl := newEchoDeepLServer(t)
	store := &fakeStore{journals: []models.Journal{{ID: 7, Name: "The Lancet", ImpactFactor: 59.1}}}
	pipeline := newTestPipeline(t, eutils.URL, deepl.URL, store)

	articles, err := pipeline.Run(context.Background(), models.SearchQuery{Term: "curcumin"}, 1)
	require.NoError(t, err)
	require.Len(t, articles, 2)

	first, second := articles[0], articles[1]

	assert.Equal(t, "111", first.PMID)
	assert.Equal(t, "2020-Apr", first.DatePublish)
	assert.Equal(t, "Curcumin and inflammation", first.Title)
	// Label mit wiederhergestelltem Doppelpunkt, Abschnitte per <br> verbunden.
	assert.Equal(t, "BACKGROUND  :  Inflammation drives disease.<br>Curcumin reduced markers.", first.Abstract)
	assert.NotContains(t, first.Abstract, "__UNIQUE")
	assert.Equal(t, "Yuki Tanaka", first.Authors)
	assert.Equal(t, "https://doi.org/10.1000/test.111", first.DOI)
	assert.JSONEq(t, `["curcumin"]`, string(first.Keywords))

	// Bekanntes Journal wird aufgelöst statt neu angelegt.
	assert.Equal(t, uint(7), first.JournalID)
	assert.Equal(t, 59.1, first.Journal.ImpactFactor)

	// Nicht-englisches Abstract bleibt als leerer String erhalten, der
	// Artikel selbst wird nicht verworfen.
	assert.Equal(t, "222", second.PMID)
	assert.Empty(t, second.Abstract)
	assert.Empty(t, second.DOI)
	assert.Equal(t, "A second article", second.Title)

	// Unbekanntes Journal wurde genau einmal registriert.
	assert.Equal(t, []string{"Shinyaku to Chiryo"}, store.createCalls)
	assert.Equal(t, "Shinyaku to Chiryo", second.Journal.Name)
}

func TestPipelineRunAbortsOnTranslationFailure(t *testing.T) {
	eutils := newPipelineEutilsServer(t)
	deepl := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusInternalServerError)
	}))
	t.Cleanup(deepl.Close)
	store := &fakeStore{}
	pipeline := newTestPipeline(t, eutils.URL, deepl.URL, store)

	articles, err := pipeline.Run(context.Background(), models.SearchQuery{Term: "curcumin"}, 1)
	require.Error(t, err)
	assert.Nil(t, articles)
	assert.Contains(t, err.Error(), "translate")
}

func TestPipelineRunAbortsOnFetchFailure(t *testing.T) {
	eutils := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(eutils.Close)
	deepl := newEchoDeepLServer(t)
	store := &fakeStore{}
	pipeline := newTestPipeline(t, eutils.URL, deepl.URL, store)

	articles, err := pipeline.Run(context.Background(), models.SearchQuery{Term: "curcumin"}, 1)
	require.Error(t, err)
	assert.Nil(t, articles)
	assert.Contains(t, err.Error(), "fetch page")
}

func TestAbstractToHTML(t *testing.T) {
	assert.Equal(t, "", abstractToHTML(""))
	assert.Equal(t, "only one part", abstractToHTML("only one part"))
	assert.Equal(t, "a<br>b<br>c", abstractToHTML("a\nb\nc"))
}
