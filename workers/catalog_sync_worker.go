// workers/catalog_sync_worker.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"activity-reward-system/models"
	"activity-reward-system/services"
	"activity-reward-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteSpecies is one creature as served by the catalog sync service.
type RemoteSpecies struct {
	ExternalID string    `json:"external_id"`
	Franchise  string    `json:"franchise"`
	Name       string    `json:"name"`
	Types      []string  `json:"types"`
	Stage      string    `json:"stage,omitempty"`
	Rank       string    `json:"rank,omitempty"`
	Rarity     string    `json:"rarity,omitempty"`
	Attribute  string    `json:"attribute,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RemoteItem struct {
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Effect     string    `json:"effect,omitempty"`
	Icon       string    `json:"icon,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type speciesChanges struct {
	Species []RemoteSpecies `json:"species"`
}

type itemChanges struct {
	Items []RemoteItem `json:"items"`
}

// CatalogSyncWorker mirrors the remote creature and item catalogs into local tables,
// which the reward generator reads during completion.
type CatalogSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g. "http://catalog-sync:8600"
	serviceToken string
	httpClient   *http.Client
}

func NewCatalogSyncWorker(db *gorm.DB, baseURL, serviceToken string, interval time.Duration) *CatalogSyncWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &CatalogSyncWorker{
		db:           db,
		interval:     interval,
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *CatalogSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Catalog Sync Worker (sync-service → species, catalog_items)…")
	go w.run(ctx)
}

func (w *CatalogSyncWorker) run(ctx context.Context) {
	if err := w.SyncOnce(ctx); err != nil {
		log.Printf("⚠️ Initial catalog sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.SyncOnce(ctx); err != nil {
				log.Printf("❌ Catalog sync failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Catalog Sync Worker stopped")
			return
		}
	}
}

// SyncOnce pulls species and item changes since the newest local row of each.
func (w *CatalogSyncWorker) SyncOnce(ctx context.Context) error {
	speciesErr := w.syncSpecies(ctx, w.lastSync(&models.Species{}))
	itemsErr := w.syncItems(ctx, w.lastSync(&models.CatalogItem{}))
	return errors.Join(speciesErr, itemsErr)
}

// lastSync is the newest updated_at in the table, or the zero time when it is empty.
func (w *CatalogSyncWorker) lastSync(model any) time.Time {
	var row struct{ UpdatedAt time.Time }
	err := w.db.Model(model).Select("updated_at").Order("updated_at DESC").Limit(1).Take(&row).Error
	if err != nil {
		return time.Time{}
	}
	return row.UpdatedAt
}

func sinceQuery(since time.Time) url.Values {
	q := url.Values{}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	return q
}

func (w *CatalogSyncWorker) syncSpecies(ctx context.Context, since time.Time) error {
	var resp speciesChanges
	if err := utils.GetServiceJSON(ctx, w.httpClient, w.baseURL, "/species", sinceQuery(since), w.serviceToken, &resp); err != nil {
		log.Printf("[CATALOG_SYNC] ❌ species: %v", err)
		return fmt.Errorf("species sync: %w", err)
	}
	if len(resp.Species) == 0 {
		return nil
	}

	var upserted, failed int
	for _, remote := range resp.Species {
		if remote.ExternalID == "" || remote.Franchise == "" || remote.Name == "" {
			failed++
			continue
		}
		local := models.Species{
			ID:         uuid.NewString(),
			ExternalID: remote.ExternalID,
			Franchise:  remote.Franchise,
			Name:       remote.Name,
			Types:      remote.Types,
			TypeTags:   services.TypeTags(remote.Types),
			Stage:      remote.Stage,
			Rank:       remote.Rank,
			Rarity:     remote.Rarity,
			Attribute:  remote.Attribute,
			ImageURL:   remote.ImageURL,
			CreatedAt:  remote.CreatedAt.UTC(),
			UpdatedAt:  remote.UpdatedAt.UTC(),
		}
		err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"franchise", "name", "types", "type_tags", "stage", "rank",
				"rarity", "attribute", "image_url", "updated_at",
			}),
		}).Create(&local).Error
		if err != nil {
			failed++
			log.Printf("[CATALOG_SYNC] ⚠️ Failed to upsert species (external_id=%q): %v", remote.ExternalID, err)
			continue
		}
		upserted++
	}

	log.Printf("[CATALOG_SYNC] ✅ Synced %d species (%d upserted, %d skipped)", len(resp.Species), upserted, failed)
	return nil
}

func (w *CatalogSyncWorker) syncItems(ctx context.Context, since time.Time) error {
	var resp itemChanges
	if err := utils.GetServiceJSON(ctx, w.httpClient, w.baseURL, "/items", sinceQuery(since), w.serviceToken, &resp); err != nil {
		log.Printf("[CATALOG_SYNC] ❌ items: %v", err)
		return fmt.Errorf("item sync: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil
	}

	var upserted, failed int
	for _, remote := range resp.Items {
		if remote.ExternalID == "" || remote.Name == "" || remote.Category == "" {
			failed++
			continue
		}
		local := models.CatalogItem{
			ID:         uuid.NewString(),
			ExternalID: remote.ExternalID,
			Name:       remote.Name,
			Category:   remote.Category,
			Effect:     remote.Effect,
			Icon:       remote.Icon,
			CreatedAt:  remote.CreatedAt.UTC(),
			UpdatedAt:  remote.UpdatedAt.UTC(),
		}
		err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "category", "effect", "icon", "updated_at"}),
		}).Create(&local).Error
		if err != nil {
			failed++
			log.Printf("[CATALOG_SYNC] ⚠️ Failed to upsert item (external_id=%q): %v", remote.ExternalID, err)
			continue
		}
		upserted++
	}

	log.Printf("[CATALOG_SYNC] ✅ Synced %d items (%d upserted, %d skipped)", len(resp.Items), upserted, failed)
	return nil
}
