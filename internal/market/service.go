package market

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/capmatch/marketdata/internal/conf"
	"github.com/capmatch/marketdata/internal/datastore"
	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/geocoder"
	"github.com/capmatch/marketdata/internal/observability"
)

// Resolver resolves a free-text address to a Census geography.
type Resolver interface {
	Resolve(ctx context.Context, address string) (*geocoder.GeographyReference, error)
}

// Assembler runs the upstream fan-out for a resolved geography.
type Assembler interface {
	Assemble(ctx context.Context, searchAddress, normalizedAddress string, geo *geocoder.GeographyReference) (*MarketRecord, error)
}

// Service is the request-facing pipeline: normalize, cache check,
// geocode, assemble, derive, cache write.
type Service struct {
	resolver  Resolver
	assembler Assembler
	store     datastore.Interface
	settings  conf.PipelineSettings
	metrics   *observability.Metrics
	logger    *slog.Logger

	// walkabilityEnabled distinguishes a degraded walkability section
	// from one that is absent because no scores client is configured.
	walkabilityEnabled bool

	// group collapses concurrent cold lookups for the same normalized
	// address into one pipeline run.
	group singleflight.Group
}

// NewService wires the pipeline stages together.
func NewService(resolver Resolver, assembler Assembler, store datastore.Interface, settings conf.PipelineSettings, walkabilityEnabled bool, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver:           resolver,
		assembler:          assembler,
		store:              store,
		settings:           settings,
		walkabilityEnabled: walkabilityEnabled,
		metrics:            metrics,
		logger:             logger.With("service", "market"),
	}
}

// Lookup returns the market record for an address, serving from the
// persistent cache when possible. The boolean reports whether the
// record came from the cache.
func (s *Service) Lookup(ctx context.Context, rawAddress string) (*MarketRecord, bool, error) {
	normalized, err := ValidateAddress(rawAddress)
	if err != nil {
		return nil, false, err
	}

	if record := s.cachedRecord(normalized); record != nil {
		if s.metrics != nil {
			s.metrics.Pipeline.RecordCacheHit()
			s.metrics.Pipeline.RecordRequest("cached")
		}
		return record, true, nil
	}
	if s.metrics != nil {
		s.metrics.Pipeline.RecordCacheMiss()
	}

	start := time.Now()
	v, err, _ := s.group.Do(normalized, func() (any, error) {
		return s.runPipeline(ctx, rawAddress, normalized)
	})
	if s.metrics != nil {
		s.metrics.Pipeline.RecordPipelineDuration(time.Since(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.Pipeline.RecordRequest("error")
		}
		return nil, false, err
	}

	record := v.(*MarketRecord)
	if s.metrics != nil {
		if s.isPartial(record) {
			s.metrics.Pipeline.RecordPartialResult()
			s.metrics.Pipeline.RecordRequest("partial")
		} else {
			s.metrics.Pipeline.RecordRequest("success")
		}
	}
	return record, false, nil
}

// cachedRecord returns the cached record for a normalized address, or
// nil on a miss. A corrupt cache entry is treated as a miss so the
// pipeline rebuilds it.
func (s *Service) cachedRecord(normalized string) *MarketRecord {
	entry, err := s.store.Get(normalized)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Warn("cache read failed, falling through to pipeline",
				"address", normalized, "error", err)
		}
		return nil
	}
	var record MarketRecord
	if err := json.Unmarshal(entry.Response, &record); err != nil {
		s.logger.Warn("cache entry is not a valid record, rebuilding",
			"address", normalized, "error", err)
		return nil
	}
	return &record
}

// runPipeline executes one cold lookup under the request budget.
func (s *Service) runPipeline(ctx context.Context, rawAddress, normalized string) (*MarketRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settings.RequestBudget)
	defer cancel()

	geo, err := s.resolver.Resolve(ctx, rawAddress)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("address resolved",
		"address", normalized,
		"level", geo.Level,
		"state", geo.StateFIPS, "county", geo.CountyFIPS, "tract", geo.TractFIPS)

	record, err := s.assembler.Assemble(ctx, rawAddress, normalized, geo)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryDataIntegrity).
			Context("address", normalized).
			Component("market").
			Build()
	}
	if err := s.store.Put(normalized, payload); err != nil {
		// the record is still good; surface the cache failure in logs only
		s.logger.Error("cache write failed", "address", normalized, "error", err)
		if s.metrics != nil {
			s.metrics.Pipeline.RecordCacheOperation("put", "error")
		}
	} else if s.metrics != nil {
		s.metrics.Pipeline.RecordCacheOperation("put", "success")
	}

	return record, nil
}

// ListCached returns all cached normalized addresses, newest first.
func (s *Service) ListCached() ([]string, error) {
	keys, err := s.store.List()
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.Pipeline.RecordCacheOperation("list", status)
	}
	return keys, err
}

// DeleteCached removes one cache entry by raw address. Deleting an
// address that was never cached is a not-found error.
func (s *Service) DeleteCached(rawAddress string) error {
	normalized, err := ValidateAddress(rawAddress)
	if err != nil {
		return err
	}
	err = s.store.Delete(normalized)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.Pipeline.RecordCacheOperation("delete", status)
	}
	return err
}

// isPartial reports whether any optional record section degraded to
// null during assembly. A nil walkability section only counts when a
// scores client is configured.
func (s *Service) isPartial(r *MarketRecord) bool {
	if r.Growth == nil || r.Density == nil || r.Trend == nil || r.Migration == nil {
		return true
	}
	return s.walkabilityEnabled && r.Walkability == nil
}
