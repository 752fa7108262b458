// Package journals gleicht freie Journal-Namen gegen das kanonische Register ab.
package journals

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"pubmed-digest/models"
)

// matchThreshold ist die minimale WRatio-Punktzahl (von 100), ab der ein
// Fuzzy-Treffer akzeptiert wird. 85 wird akzeptiert, 84 nicht.
const matchThreshold = 85

// Match sucht name im Register: erst exakt (case-insensitiv), dann per
// WRatio-Fuzzy-Score. Bei Gleichstand gewinnt der erste maximale Eintrag in
// Registerreihenfolge. Gibt den Eintrag in Originalschreibweise zurück, oder
// ("", false) wenn kein Treffer über der Schwelle liegt.
func Match(name string, registry []string) (string, bool) {
	return match(name, registry, fuzzy.WRatio, matchThreshold)
}

// match ist die von Match benutzte Kernlogik mit austauschbarem Scorer.
func match(name string, registry []string, scorer func(a, b string) int, threshold int) (string, bool) {
	lowered := strings.ToLower(name)
	for _, entry := range registry {
		if strings.ToLower(entry) == lowered {
			return entry, true
		}
	}

	bestScore := -1
	bestIdx := -1
	for i, entry := range registry {
		score := scorer(lowered, strings.ToLower(entry))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx >= 0 && bestScore >= threshold {
		return registry[bestIdx], true
	}
	return "", false
}

// Store ist die Persistenzschnittstelle, die das Register benötigt.
type Store interface {
	// List liefert alle bekannten Journale.
	List() ([]models.Journal, error)
	// Create legt ein Journal mit Impact Factor 0 an (idempotent bei
	// bereits vorhandenem Namen).
	Create(name string) (models.Journal, error)
}

// GormStore implementiert Store über die Datenbank.
type GormStore struct {
	DB *gorm.DB
}

func (s *GormStore) List() ([]models.Journal, error) {
	var journals []models.Journal
	err := s.DB.Find(&journals).Error
	return journals, err
}

func (s *GormStore) Create(name string) (models.Journal, error) {
	journal := models.Journal{Name: name}
	err := s.DB.Where(models.Journal{Name: name}).FirstOrCreate(&journal).Error
	return journal, err
}

// Registry hält einen explizit geladenen Schnappschuss des Registers.
// Neu angelegte Journale werden sofort in den Schnappschuss übernommen,
// damit ein wiederholter unbekannter Name innerhalb derselben Seite nicht
// doppelt angelegt wird.
type Registry struct {
	store    Store
	journals []models.Journal
	names    []string
	logger   *zap.Logger
}

// NewRegistry lädt den aktuellen Registerstand aus dem Store.
func NewRegistry(store Store, logger *zap.Logger) (*Registry, error) {
	journals, err := store.List()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(journals))
	for i, j := range journals {
		names[i] = j.Name
	}
	return &Registry{store: store, journals: journals, names: names, logger: logger}, nil
}

// Resolve ordnet einen rohen Journal-Namen einem Registereintrag zu. Ohne
// Treffer über der Schwelle wird der Name als neues Journal registriert und
// unverändert zurückgegeben; das ist ein normaler Zweig, kein Fehler.
func (r *Registry) Resolve(name string) (models.Journal, error) {
	if matched, ok := Match(name, r.names); ok {
		for _, j := range r.journals {
			if j.Name == matched {
				return j, nil
			}
		}
	}

	journal, err := r.store.Create(name)
	if err != nil {
		return models.Journal{}, err
	}
	r.logger.Info("Neues Journal registriert", zap.String("name", name))
	r.journals = append(r.journals, journal)
	r.names = append(r.names, journal.Name)
	return journal, nil
}
