// Package main provides a CLI tool for bootstrapping the database schema
// and seeding it with demo data.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"stockledger/internal/core/id"
	"stockledger/internal/core/tenant"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/catalog/item"
	"stockledger/internal/domain/catalog/location"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	if err := ensureSchema(ctx, pool); err != nil {
		log.Fatalw("failed to create schema", "error", err)
	}
	log.Info("schema is up to date")

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, pool, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// schemaStatements are idempotent and safe to re-run.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
		id          UUID PRIMARY KEY,
		slug        TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'active',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS cat_items (
		id             UUID PRIMARY KEY,
		tenant_id      UUID NOT NULL REFERENCES tenants(id),
		sku            TEXT NOT NULL,
		name           TEXT NOT NULL,
		category       TEXT,
		uom            TEXT NOT NULL,
		reorder_level  BIGINT NOT NULL DEFAULT 0,
		deletion_mark  BOOLEAN NOT NULL DEFAULT FALSE,
		version        INTEGER NOT NULL DEFAULT 1,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_cat_items_tenant_sku
		ON cat_items (tenant_id, sku) WHERE NOT deletion_mark`,

	`CREATE TABLE IF NOT EXISTS cat_locations (
		id             UUID PRIMARY KEY,
		tenant_id      UUID NOT NULL REFERENCES tenants(id),
		code           TEXT NOT NULL,
		name           TEXT NOT NULL,
		deletion_mark  BOOLEAN NOT NULL DEFAULT FALSE,
		version        INTEGER NOT NULL DEFAULT 1,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_cat_locations_tenant_code
		ON cat_locations (tenant_id, code) WHERE NOT deletion_mark`,

	// Movement rows are append-only: no UPDATE or DELETE path exists in
	// the application, balances are derived by folding this log.
	`CREATE TABLE IF NOT EXISTS reg_stock_movements (
		id                UUID PRIMARY KEY,
		tenant_id         UUID NOT NULL REFERENCES tenants(id),
		item_id           UUID NOT NULL REFERENCES cat_items(id),
		kind              TEXT NOT NULL CHECK (kind IN ('receipt', 'issue', 'transfer')),
		quantity          BIGINT NOT NULL CHECK (quantity > 0),
		from_location_id  UUID REFERENCES cat_locations(id),
		to_location_id    UUID REFERENCES cat_locations(id),
		reference         TEXT,
		note              TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (from_location_id IS DISTINCT FROM to_location_id)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_movements_tenant_item
		ON reg_stock_movements (tenant_id, item_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS ix_movements_tenant_from
		ON reg_stock_movements (tenant_id, item_id, from_location_id)`,
	`CREATE INDEX IF NOT EXISTS ix_movements_tenant_to
		ON reg_stock_movements (tenant_id, item_id, to_location_id)`,

	`CREATE TABLE IF NOT EXISTS reg_stock_balances (
		tenant_id    UUID NOT NULL REFERENCES tenants(id),
		item_id      UUID NOT NULL,
		location_id  UUID NOT NULL,
		quantity     BIGINT NOT NULL DEFAULT 0,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (tenant_id, item_id, location_id)
	)`,

	`CREATE TABLE IF NOT EXISTS sys_idempotency (
		tenant_id              UUID NOT NULL,
		idempotency_key        TEXT NOT NULL,
		operation              TEXT NOT NULL,
		status                 TEXT NOT NULL,
		request_hash           TEXT NOT NULL,
		response               BYTEA,
		compression_algo       TEXT NOT NULL DEFAULT 'none',
		response_status        INTEGER NOT NULL DEFAULT 0,
		response_content_type  TEXT NOT NULL DEFAULT '',
		created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at             TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (tenant_id, idempotency_key)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_idempotency_expires
		ON sys_idempotency (expires_at)`,
}

func ensureSchema(ctx context.Context, pool *postgres.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}

func seedDemoTenant(ctx context.Context, pool *postgres.Pool, log *logger.Logger) (id.ID, error) {
	slug := os.Getenv("DEMO_TENANT_SLUG")
	if slug == "" {
		slug = "demo"
	}

	var existingID id.ID
	err := pool.Pool.QueryRow(ctx,
		`SELECT id FROM tenants WHERE slug = $1`, slug,
	).Scan(&existingID)
	if err == nil {
		log.Infow("demo tenant already exists", "slug", slug, "tenant_id", existingID)
		return existingID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return id.Nil(), fmt.Errorf("check tenant exists: %w", err)
	}

	tenantID := id.New()
	_, err = pool.Pool.Exec(ctx, `
		INSERT INTO tenants (id, slug, name, status)
		VALUES ($1, $2, $3, $4)
	`, tenantID, slug, "Demo Tenant", tenant.StatusActive)
	if err != nil {
		return id.Nil(), fmt.Errorf("insert tenant: %w", err)
	}

	log.Infow("demo tenant created", "slug", slug, "tenant_id", tenantID)
	return tenantID, nil
}

func seedDemoData(ctx context.Context, pool *postgres.Pool, log *logger.Logger) error {
	log.Info("seeding demo data...")

	tenantID, err := seedDemoTenant(ctx, pool, log)
	if err != nil {
		return err
	}

	scope, err := tenant.NewScope(tenantID)
	if err != nil {
		return err
	}
	ctx = tenant.WithScope(ctx, scope)

	// Go through the real services so unique checks and validation apply
	// the same way they do over HTTP.
	txManager := postgres.NewTxManager(pool)
	itemRepo := catalog_repo.NewItemRepo(txManager)
	locationRepo := catalog_repo.NewLocationRepo(txManager)
	itemService := item.NewService(itemRepo)
	locationService := location.NewService(locationRepo)
	lookup := catalog.NewLookup(itemService, locationService)
	ledgerService := ledger.NewService(ledger_repo.NewLedgerRepo(txManager), lookup, txManager, ledger.DefaultConfig())

	locations := []struct {
		code string
		name string
	}{
		{"MAIN", "Main Warehouse"},
		{"STORE", "Storefront"},
		{"RETURNS", "Returns Area"},
	}

	locationIDs := make(map[string]id.ID)
	for _, l := range locations {
		loc := location.NewLocation(l.code, l.name)
		if err := locationService.Create(ctx, scope, loc); err != nil {
			existing, getErr := locationRepo.GetByCode(ctx, scope, l.code)
			if getErr != nil {
				log.Warnw("failed to seed location", "code", l.code, "error", err)
				continue
			}
			loc = existing
		}
		locationIDs[l.code] = loc.ID
	}

	items := []struct {
		sku      string
		name     string
		category string
		uom      string
		opening  int64
	}{
		{"WIDGET-1", "Standard Widget", "widgets", "each", 100},
		{"WIDGET-2", "Deluxe Widget", "widgets", "each", 40},
		{"BOLT-M8", "M8 Bolt", "fasteners", "box", 250},
	}

	mainID, haveMain := locationIDs["MAIN"]
	for _, it := range items {
		itm := item.NewItem(it.sku, it.name, it.uom)
		category := it.category
		itm.Category = &category

		if err := itemService.Create(ctx, scope, itm); err != nil {
			existing, getErr := itemRepo.GetBySKU(ctx, scope, it.sku)
			if getErr != nil {
				log.Warnw("failed to seed item", "sku", it.sku, "error", err)
				continue
			}
			log.Infow("item already exists, skipping opening receipt", "sku", it.sku, "item_id", existing.ID)
			continue
		}

		if !haveMain || it.opening <= 0 {
			continue
		}
		_, err := ledgerService.RecordReceipt(ctx, scope, ledger.ReceiptInput{
			ItemID:       itm.ID,
			Quantity:     types.NewQuantity(it.opening),
			ToLocationID: mainID,
			Reference:    "SEED-" + it.sku,
		})
		if err != nil {
			log.Warnw("failed to record opening receipt", "sku", it.sku, "error", err)
		}
	}

	log.Infow("demo data seeded", "tenant_id", tenantID)
	return nil
}
