// Package sync keeps the local mirror of one tenant's remote indexed data
// consistent: incremental catch-up from the last known-good block, tenant
// scoping, and idempotent upserts.
package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"symmio/internal/client/subgraph"
	"symmio/internal/config"
	"symmio/internal/models"
	"symmio/internal/repository"
)

// deployBackdate pads the recorded deploy time so near-boundary data is not
// missed by the timestamp > deployTime filters.
const deployBackdate = 72 * time.Hour

// Source is the paginated remote data source.
type Source interface {
	LoadAll(ctx context.Context, q subgraph.Query, paginationField string) ([]subgraph.Record, error)
}

// DecimalsReader reads the collateral token's on-chain decimals, needed once
// when a tenant's runtime configuration is first created.
type DecimalsReader interface {
	Decimals(ctx context.Context) (int32, error)
}

type Synchronizer struct {
	repo     repository.Repository
	source   Source
	decimals DecimalsReader
	tenant   config.TenantConfig
	logger   *zap.Logger
}

func New(repo repository.Repository, source Source, decimals DecimalsReader, tenant config.TenantConfig, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		repo:     repo,
		source:   source,
		decimals: decimals,
		tenant:   tenant,
		logger:   logger,
	}
}

// LoadOrCreateRuntimeConfiguration returns the tenant's checkpoint row,
// creating it on first run by reading the collateral decimals on-chain and
// backdating the deploy time.
func (s *Synchronizer) LoadOrCreateRuntimeConfiguration(ctx context.Context) (*models.RuntimeConfiguration, error) {
	rc, err := s.repo.GetRuntimeConfiguration(ctx, s.tenant.Name)
	if err != nil {
		return nil, fmt.Errorf("load runtime configuration: %w", err)
	}
	if rc != nil {
		return rc, nil
	}
	decimals, err := s.decimals.Decimals(ctx)
	if err != nil {
		return nil, fmt.Errorf("read collateral decimals: %w", err)
	}
	rc = &models.RuntimeConfiguration{
		Tenant:           s.tenant.Name,
		Decimals:         decimals,
		SnapshotBlockLag: s.tenant.SnapshotBlockLag,
		DeployTimestamp:  time.Unix(s.tenant.DeployTime, 0).UTC().Add(-deployBackdate),
	}
	if err := s.repo.SaveRuntimeConfiguration(ctx, rc); err != nil {
		return nil, fmt.Errorf("create runtime configuration: %w", err)
	}
	s.logger.Info("created runtime configuration",
		zap.String("tenant", s.tenant.Name),
		zap.Int32("decimals", decimals),
		zap.Time("deploy_timestamp", rc.DeployTimestamp))
	return rc, nil
}

// Run brings every mirrored entity type up to date as of block, inside one
// transaction, in foreign-key dependency order. Records are requested with a
// changed-since filter at the checkpoint block and pinned to the target block
// so, together with the on-chain reads of the same pass, the whole run
// describes one point in time. The checkpoint itself is not advanced here;
// see Checkpoint.
func (s *Synchronizer) Run(ctx context.Context, rc *models.RuntimeConfiguration, block uint64) error {
	start := time.Now()
	return s.repo.InTx(ctx, func(tx *gorm.DB) error {
		for _, entity := range Entities {
			query := subgraph.Query{
				Method:         entity.Method,
				Fields:         entity.Fields,
				ChangeBlockGTE: rc.LastSyncBlock,
				BlockNumber:    block,
			}
			records, err := s.source.LoadAll(ctx, query, entity.PaginationField)
			if err != nil {
				return fmt.Errorf("sync %s: %w", entity.Method, err)
			}
			if err := entity.Apply(ctx, tx, s.repo, s.tenant.Name, records, s.logger); err != nil {
				return fmt.Errorf("upsert %s: %w", entity.Method, err)
			}
			s.logger.Debug("entity synced",
				zap.String("tenant", s.tenant.Name),
				zap.String("entity", entity.Method),
				zap.Int("records", len(records)))
		}
		s.logger.Info("mirror synced",
			zap.String("tenant", s.tenant.Name),
			zap.Uint64("block", block),
			zap.Uint64("since_block", rc.LastSyncBlock),
			zap.Duration("took", time.Since(start)))
		return nil
	})
}

// Checkpoint advances the tenant's durable cursors to block. Called only
// after the full sync-then-snapshot unit has succeeded; a failure anywhere
// earlier leaves the previous checkpoint in place so the next tick re-syncs
// from the same unmoved block.
func (s *Synchronizer) Checkpoint(ctx context.Context, rc *models.RuntimeConfiguration, block uint64) error {
	rc.LastSyncBlock = block
	rc.LastSnapshotBlock = block
	if err := s.repo.SaveRuntimeConfiguration(ctx, rc); err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	return nil
}
