package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"activity-reward-system/database"
	"activity-reward-system/models"
	"activity-reward-system/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncService struct {
	mu      sync.Mutex
	species []RemoteSpecies
	items   []RemoteItem
	since   []string
}

func (f *fakeSyncService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/species", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Service-Token") != "svc-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.since = append(f.since, r.URL.Query().Get("since"))
		body := speciesChanges{Species: f.species}
		f.mu.Unlock()
		require.NoError(t, json.NewEncoder(w).Encode(body))
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Service-Token") != "svc-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		body := itemChanges{Items: f.items}
		f.mu.Unlock()
		require.NoError(t, json.NewEncoder(w).Encode(body))
	})
	return mux
}

func TestCatalogSyncUpserts(t *testing.T) {
	db := database.NewTestDB(t)
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &fakeSyncService{
		species: []RemoteSpecies{
			{ExternalID: "pokemon-1", Franchise: "pokemon", Name: "Bulbasaur", Types: []string{"Grass", "Poison"}, Rarity: "Common", Stage: "Base Stage", UpdatedAt: updated},
			{ExternalID: "digimon-7", Franchise: "digimon", Name: "Agumon", Stage: "Rookie", UpdatedAt: updated},
			{ExternalID: "", Franchise: "yokai", Name: "Nameless"},
		},
		items: []RemoteItem{
			{ExternalID: "item-1", Name: "Oran Berry", Category: "berries", Effect: "Restores 10 HP", UpdatedAt: updated},
		},
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	w := NewCatalogSyncWorker(db, srv.URL, "svc-token", time.Minute)
	require.NoError(t, w.SyncOnce(context.Background()))

	var species []models.Species
	require.NoError(t, db.Order("external_id").Find(&species).Error)
	require.Len(t, species, 2)
	assert.Equal(t, "|Grass|Poison|", species[1].TypeTags)

	// a second pass updates in place and asks only for newer rows
	fake.mu.Lock()
	fake.species = []RemoteSpecies{{ExternalID: "pokemon-1", Franchise: "pokemon", Name: "Bulbasaur", Types: []string{"Grass"}, Rarity: "Uncommon", UpdatedAt: updated.Add(time.Hour)}}
	fake.mu.Unlock()
	require.NoError(t, w.SyncOnce(context.Background()))

	var bulba models.Species
	require.NoError(t, db.First(&bulba, "external_id = ?", "pokemon-1").Error)
	assert.Equal(t, "Uncommon", bulba.Rarity)
	assert.Equal(t, []string{"Grass"}, bulba.Types)

	fake.mu.Lock()
	assert.Equal(t, []string{"", updated.Format(time.RFC3339)}, fake.since)
	fake.mu.Unlock()

	// the mirrored rows feed the catalogs the generator reads
	creature, err := services.NewGormCreatureCatalog(db).FindRandom(context.Background(), services.CreatureFilter{
		Franchise: "pokemon",
		Types:     []string{"Water", "Grass"},
		Rarities:  []string{"Uncommon"},
	})
	require.NoError(t, err)
	require.NotNil(t, creature)
	assert.Equal(t, "Bulbasaur", creature.Name)

	items, err := services.NewGormItemCatalog(db).ListByCategory(context.Background(), "Berries")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Restores 10 HP", items[0].Effect)
}

func TestCatalogSyncRejectedToken(t *testing.T) {
	db := database.NewTestDB(t)
	srv := httptest.NewServer((&fakeSyncService{}).handler(t))
	defer srv.Close()

	w := NewCatalogSyncWorker(db, srv.URL, "wrong", time.Minute)
	err := w.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
