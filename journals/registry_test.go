package journals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pubmed-digest/models"
)

func TestMatchExactCaseInsensitive(t *testing.T) {
	registry := []string{"The Lancet", "Nature Medicine", "Cell"}

	got, ok := Match("the lancet", registry)
	require.True(t, ok)
	// Originalschreibweise des Registers, nicht die Eingabe.
	assert.Equal(t, "The Lancet", got)
}

// Ein exakter Treffer gewinnt immer, unabhängig davon, was der Fuzzy-Scorer
// für andere Einträge melden würde.
func TestMatchExactBeatsFuzzy(t *testing.T) {
	registry := []string{"Nature", "Nature Medicine"}
	scorer := func(a, b string) int { return 100 }

	got, ok := match("NATURE", registry, scorer, matchThreshold)
	require.True(t, ok)
	assert.Equal(t, "Nature", got)
}

func TestMatchThresholdBoundary(t *testing.T) {
	registry := []string{"Journal of Clinical Oncology"}

	tests := []struct {
		name  string
		score int
		want  bool
	}{
		{"score at threshold is accepted", 85, true},
		{"score below threshold is rejected", 84, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := func(a, b string) int { return tt.score }
			got, ok := match("J Clin Oncol", registry, scorer, matchThreshold)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, "Journal of Clinical Oncology", got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestMatchFirstMaximalEntryWins(t *testing.T) {
	registry := []string{"Journal A", "Journal B"}
	scorer := func(a, b string) int { return 90 }

	got, ok := match("journal", registry, scorer, matchThreshold)
	require.True(t, ok)
	assert.Equal(t, "Journal A", got)
}

func TestMatchRealScorer(t *testing.T) {
	registry := []string{"The New England Journal of Medicine", "Cell"}

	// Nahezu identischer Name muss über der Schwelle liegen.
	got, ok := Match("The New England Journal of Medicine.", registry)
	require.True(t, ok)
	assert.Equal(t, "The New England Journal of Medicine", got)

	// Völlig fremder Name signalisiert "neues Journal".
	_, ok = Match("Acta Astronautica", registry)
	assert.False(t, ok)
}

func TestMatchEmptyRegistry(t *testing.T) {
	_, ok := Match("Anything", nil)
	assert.False(t, ok)
}

// fakeStore zählt Create-Aufrufe und vergibt fortlaufende IDs.
type fakeStore struct {
	journals    []models.Journal
	createCalls int
}

func (s *fakeStore) List() ([]models.Journal, error) {
	return s.journals, nil
}

func (s *fakeStore) Create(name string) (models.Journal, error) {
	s.createCalls++
	journal := models.Journal{ID: uint(len(s.journals) + 1), Name: name}
	s.journals = append(s.journals, journal)
	return journal, nil
}

func TestRegistryResolveKnownName(t *testing.T) {
	store := &fakeStore{journals: []models.Journal{{ID: 1, Name: "The Lancet", ImpactFactor: 59.1}}}
	registry, err := NewRegistry(store, zap.NewNop())
	require.NoError(t, err)

	journal, err := registry.Resolve("THE LANCET")
	require.NoError(t, err)
	assert.Equal(t, uint(1), journal.ID)
	assert.Equal(t, "The Lancet", journal.Name)
	assert.Zero(t, store.createCalls)
}

func TestRegistryResolveCreatesUnknownName(t *testing.T) {
	store := &fakeStore{}
	registry, err := NewRegistry(store, zap.NewNop())
	require.NoError(t, err)

	journal, err := registry.Resolve("Totally New Journal")
	require.NoError(t, err)
	assert.Equal(t, "Totally New Journal", journal.Name)
	assert.Zero(t, journal.ImpactFactor)
	assert.Equal(t, 1, store.createCalls)
}

// Ein wiederholter unbekannter Name innerhalb desselben Laufs darf nur einmal
// angelegt werden: Der Schnappschuss wird sofort aktualisiert.
func TestRegistryNewEntryVisibleImmediately(t *testing.T) {
	store := &fakeStore{}
	registry, err := NewRegistry(store, zap.NewNop())
	require.NoError(t, err)

	first, err := registry.Resolve("Frontiers in Microbiology")
	require.NoError(t, err)
	second, err := registry.Resolve("Frontiers in Microbiology")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.createCalls)
}
