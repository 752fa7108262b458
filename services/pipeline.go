package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"pubmed-digest/config"
	"pubmed-digest/journals"
	"pubmed-digest/models"
	"pubmed-digest/pubmed"
	"pubmed-digest/storage"
	"pubmed-digest/translate"
)

// Pipeline orchestriert die Aufbereitung einer Ergebnis-Seite:
// Suche → Seitenabruf → Parsen → Journal-Auflösung → Batch-Übersetzung →
// Zusammenbau der Artikel-Datensätze. Alle Stufen laufen sequenziell; ein
// Fehler in irgendeiner Stufe bricht die ganze Seite ab, es gibt keine
// Teilergebnisse.
type Pipeline struct {
	Config     *config.Config
	Logger     *zap.Logger
	Client     *pubmed.Client
	Parser     *pubmed.Parser
	Translator *translate.Client
	Registry   *journals.Registry
	Archive    *storage.Archiver // nil, wenn kein Archiv konfiguriert ist
}

// NewPipeline erstellt eine neue Pipeline-Instanz.
func NewPipeline(cfg *config.Config, logger *zap.Logger, client *pubmed.Client,
	parser *pubmed.Parser, translator *translate.Client,
	registry *journals.Registry, archive *storage.Archiver) *Pipeline {
	return &Pipeline{
		Config:     cfg,
		Logger:     logger,
		Client:     client,
		Parser:     parser,
		Translator: translator,
		Registry:   registry,
		Archive:    archive,
	}
}

// Run verarbeitet genau eine Seite der Suche und gibt die fertig übersetzten
// Artikel-Datensätze zurück. Persistiert wird hier nichts; das macht der
// Aufrufer erst nach erfolgreichem Durchlauf.
func (p *Pipeline) Run(ctx context.Context, query models.SearchQuery, page int) ([]models.Article, error) {
	log := p.Logger.With(zap.String("term", query.Term), zap.Int("page", page))
	log.Info("Starte Pipeline-Durchlauf.")

	pg, err := p.Client.FetchPage(ctx, query, page, p.Config.ItemsPerPage)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	if p.Archive != nil {
		if link, err := p.Archive.StorePage(ctx, query.Term, page, pg.Raw); err != nil {
			log.Warn("Archivierung der Rohseite fehlgeschlagen", zap.Error(err))
		} else {
			log.Debug("Rohseite archiviert", zap.String("link", link))
		}
	}

	parsed := make([]models.ParsedArticle, 0, len(pg.Docs))
	for _, doc := range pg.Docs {
		parsed = append(parsed, p.Parser.Parse(doc))
	}

	// Journal-Auflösung gegen den Register-Schnappschuss; unbekannte Namen
	// werden sofort registriert und sind für spätere Artikel derselben Seite
	// sichtbar.
	resolved := make([]models.Journal, len(parsed))
	for i, art := range parsed {
		journal, err := p.Registry.Resolve(art.JournalTitle)
		if err != nil {
			return nil, fmt.Errorf("resolve journal %q: %w", art.JournalTitle, err)
		}
		resolved[i] = journal
	}

	// Titel und Abstracts je als ein Batch, damit pro Seite genau zwei
	// Übersetzungsaufrufe anfallen. Leere Abstracts bleiben im Batch, damit
	// die Positionen 1:1 erhalten bleiben.
	titles := make([]string, len(parsed))
	abstracts := make([]string, len(parsed))
	for i, art := range parsed {
		titles[i] = art.Title
		abstracts[i] = art.Abstract
	}

	translatedTitles, err := p.Translator.TranslateMany(ctx, titles)
	if err != nil {
		return nil, fmt.Errorf("translate titles: %w", err)
	}
	translatedAbstracts, err := p.Translator.TranslateMany(ctx, abstracts)
	if err != nil {
		return nil, fmt.Errorf("translate abstracts: %w", err)
	}

	articles := make([]models.Article, 0, len(parsed))
	for i, art := range parsed {
		doi := ""
		if art.DOI != "" {
			doi = "https://doi.org/" + art.DOI
		}

		keywordsJSON, err := json.Marshal(art.Keywords)
		if err != nil {
			return nil, fmt.Errorf("marshal keywords: %w", err)
		}
		meshJSON, err := json.Marshal(art.MeshTerms)
		if err != nil {
			return nil, fmt.Errorf("marshal mesh terms: %w", err)
		}

		articles = append(articles, models.Article{
			PMID:        art.PMID,
			DatePublish: art.DatePublish,
			Title:       translatedTitles[i],
			Authors:     art.Authors,
			Abstract:    abstractToHTML(translatedAbstracts[i]),
			JournalID:   resolved[i].ID,
			Journal:     resolved[i],
			DOI:         doi,
			Keywords:    datatypes.JSON(keywordsJSON),
			MeshTerms:   datatypes.JSON(meshJSON),
		})
	}

	log.Info("Pipeline-Durchlauf abgeschlossen", zap.Int("articles", len(articles)))
	return articles, nil
}

// abstractToHTML macht aus dem übersetzten Abstract-Text die Anzeigefassung:
// Die Abschnitte (per Newline getrennt, Labels bereits als "Label:Inhalt"
// repariert) werden mit <br> verbunden.
func abstractToHTML(text string) string {
	if text == "" {
		return ""
	}
	return strings.Join(strings.Split(text, "\n"), "<br>")
}
