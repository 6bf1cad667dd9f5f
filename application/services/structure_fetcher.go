package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
	"github.com/yash-217/yash.fun/infrastructure/pdb"
	"github.com/yash-217/yash.fun/internal/infrastructure/cache"
	"github.com/yash-217/yash.fun/internal/infrastructure/observability"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// FetchResult is a downloaded structure ready to replace the graph.
type FetchResult struct {
	StructureID string
	Residues    []*entities.Residue
	Dropped     []pdb.DroppedRecord
	// Offset is the centroid that was subtracted from every residue.
	Offset valueobjects.Position
	Cached bool
}

// StructureFetcher downloads a structure by identifier, parses it and
// recentres it on the origin.
type StructureFetcher struct {
	source  ports.StructureSource
	cache   *cache.MemoryCache[string]
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewStructureFetcher creates a fetcher. textCache and metrics may be nil.
func NewStructureFetcher(source ports.StructureSource, textCache *cache.MemoryCache[string], metrics *observability.Collector, logger *zap.Logger) *StructureFetcher {
	return &StructureFetcher{
		source:  source,
		cache:   textCache,
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch returns freshly identified residues for structureID. It fails with
// a validation error for a malformed identifier, the source's error for a
// failed download, and a parse error when the text holds no residues.
func (f *StructureFetcher) Fetch(ctx context.Context, structureID string) (result *FetchResult, err error) {
	structureID = strings.TrimSpace(structureID)

	ctx, span := observability.Tracer().Start(ctx, "StructureFetcher.Fetch")
	span.SetAttributes(attribute.String("structure.id", structureID))
	defer func() {
		observability.EndSpan(span, err)
		if f.metrics != nil {
			f.metrics.RecordFetch(outcomeLabel(err))
		}
	}()

	if !valueobjects.IsValidStructureID(structureID) {
		return nil, pkgerrors.NewValidationError("invalid structure identifier").
			WithDetail("structureId", structureID)
	}

	text, cached := f.lookup(structureID)
	if !cached {
		text, err = f.source.FetchStructure(ctx, structureID)
		if err != nil {
			f.logger.Warn("Structure download failed",
				zap.String("structureID", structureID),
				zap.Error(err),
			)
			return nil, err
		}
	}

	report, err := pdb.Parse(strings.NewReader(text))
	if err != nil {
		return nil, pkgerrors.NewParseError("unreadable structure text").WithCause(err)
	}
	if len(report.Residues) == 0 {
		return nil, pkgerrors.NewParseError("structure contains no residues").
			WithDetail("structureId", structureID).
			WithDetail("dropped", len(report.Dropped))
	}
	if !cached && f.cache != nil {
		f.cache.Set(structureID, text)
	}

	offset := Recenter(report.Residues)
	span.SetAttributes(
		attribute.Int("structure.residues", len(report.Residues)),
		attribute.Bool("structure.cached", cached),
	)
	f.logger.Info("Structure fetched",
		zap.String("structureID", structureID),
		zap.Int("residues", len(report.Residues)),
		zap.Int("dropped", len(report.Dropped)),
		zap.Bool("cached", cached),
	)

	return &FetchResult{
		StructureID: structureID,
		Residues:    report.Residues,
		Dropped:     report.Dropped,
		Offset:      offset,
		Cached:      cached,
	}, nil
}

func (f *StructureFetcher) lookup(structureID string) (string, bool) {
	if f.cache == nil {
		return "", false
	}
	text, ok := f.cache.Get(structureID)
	if f.metrics != nil {
		f.metrics.RecordCacheLookup(ok)
	}
	return text, ok
}

// Recenter translates residues so their centroid is the origin and
// returns the centroid that was removed.
func Recenter(residues []*entities.Residue) valueobjects.Position {
	if len(residues) == 0 {
		return valueobjects.Origin()
	}
	positions := make([]valueobjects.Position, 0, len(residues))
	for _, r := range residues {
		positions = append(positions, r.Position())
	}
	center := valueobjects.Centroid(positions)
	for _, r := range residues {
		r.MoveTo(r.Position().Sub(center))
	}
	return center
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		return strings.ToLower(string(appErr.Type))
	}
	return "error"
}
