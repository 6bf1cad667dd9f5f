package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/core/entities"
	"github.com/yash-217/yash.fun/infrastructure/pdb"
	"github.com/yash-217/yash.fun/internal/infrastructure/observability"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// SearchState is a step of the search workflow.
type SearchState string

const (
	SearchIdle       SearchState = "idle"
	SearchSubmitting SearchState = "submitting"
	SearchPolling    SearchState = "polling"
	SearchParsing    SearchState = "parsing"
	SearchCompleted  SearchState = "completed"
	SearchFailed     SearchState = "failed"
	SearchCancelled  SearchState = "cancelled"
)

// IsTerminal reports whether no further transitions follow s.
func (s SearchState) IsTerminal() bool {
	return s == SearchCompleted || s == SearchFailed || s == SearchCancelled
}

// SearchSettings tunes the workflow. It can be swapped at runtime.
type SearchSettings struct {
	Mode                  string
	Databases             []string
	PollInterval          time.Duration
	MaxAttempts           int
	Timeout               time.Duration
	MaxMatchesPerDatabase int
}

// DefaultSearchSettings mirrors the public server's expectations.
func DefaultSearchSettings() SearchSettings {
	return SearchSettings{
		Mode:                  "3diaa",
		Databases:             []string{"afdb50"},
		PollInterval:          time.Second,
		MaxAttempts:           300,
		Timeout:               5 * time.Minute,
		MaxMatchesPerDatabase: 10,
	}
}

// Match is one normalized alignment hit.
type Match struct {
	TargetID     string  `json:"targetId"`
	Score        float64 `json:"score"`
	DisplayName  string  `json:"displayName"`
	QueryLength  int     `json:"queryLength"`
	TargetLength int     `json:"targetLength"`
	Database     string  `json:"database"`
	Probability  float64 `json:"probability,omitempty"`
	EValue       float64 `json:"eValue,omitempty"`
}

// SearchOutcome is a finished search.
type SearchOutcome struct {
	TicketID string  `json:"ticketId"`
	Matches  []Match `json:"matches"`
	Attempts int     `json:"attempts"`
	// Generation is the graph generation the query was exported from.
	Generation int64 `json:"generation"`
}

// SearchProgress receives every state transition.
type SearchProgress func(state SearchState, attempts int)

// SearchOrchestrator runs submit, poll and parse against a remote
// structure similarity service.
type SearchOrchestrator struct {
	client  ports.SearchClient
	metrics *observability.Collector
	logger  *zap.Logger

	mu       sync.RWMutex
	settings SearchSettings
}

// NewSearchOrchestrator creates an orchestrator. metrics may be nil.
func NewSearchOrchestrator(client ports.SearchClient, settings SearchSettings, metrics *observability.Collector, logger *zap.Logger) *SearchOrchestrator {
	return &SearchOrchestrator{
		client:   client,
		metrics:  metrics,
		logger:   logger,
		settings: normalizeSettings(settings),
	}
}

// Settings returns a copy of the current settings.
func (o *SearchOrchestrator) Settings() SearchSettings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := o.settings
	s.Databases = append([]string(nil), o.settings.Databases...)
	return s
}

// UpdateSettings replaces the settings used by searches started afterwards.
func (o *SearchOrchestrator) UpdateSettings(settings SearchSettings) {
	o.mu.Lock()
	o.settings = normalizeSettings(settings)
	o.mu.Unlock()
	o.logger.Info("Search settings updated",
		zap.Duration("pollInterval", settings.PollInterval),
		zap.Int("maxAttempts", settings.MaxAttempts),
		zap.Duration("timeout", settings.Timeout),
	)
}

func normalizeSettings(s SearchSettings) SearchSettings {
	d := DefaultSearchSettings()
	if s.Mode == "" {
		s.Mode = d.Mode
	}
	if len(s.Databases) == 0 {
		s.Databases = d.Databases
	}
	if s.PollInterval <= 0 {
		s.PollInterval = d.PollInterval
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = d.MaxAttempts
	}
	if s.Timeout <= 0 {
		s.Timeout = d.Timeout
	}
	if s.MaxMatchesPerDatabase <= 0 {
		s.MaxMatchesPerDatabase = d.MaxMatchesPerDatabase
	}
	s.Databases = append([]string(nil), s.Databases...)
	return s
}

// Search exports residues, submits them and waits for the ranked matches.
// generation is the graph generation residues were taken at; the outcome
// carries it back so callers can tell whether the graph moved on.
func (o *SearchOrchestrator) Search(ctx context.Context, residues []*entities.Residue, generation int64) (*SearchOutcome, error) {
	return o.SearchWithProgress(ctx, residues, generation, nil)
}

// SearchWithProgress is Search with a callback on every state change.
//
// Errors are categorised: validation when the residues cannot be exported,
// transport for submission or network failures, remote when the service
// reports an error or sends an unreadable payload, empty-result when the
// search completed without hits, timeout when the attempt cap or deadline
// is reached, and canceled when ctx is cancelled.
func (o *SearchOrchestrator) SearchWithProgress(ctx context.Context, residues []*entities.Residue, generation int64, progress SearchProgress) (outcome *SearchOutcome, err error) {
	settings := o.Settings()
	started := time.Now()
	attempts := 0

	ctx, span := observability.Tracer().Start(ctx, "SearchOrchestrator.Search")
	span.SetAttributes(
		attribute.Int("search.residues", len(residues)),
		attribute.Int64("search.generation", generation),
		attribute.String("search.mode", settings.Mode),
		attribute.StringSlice("search.databases", settings.Databases),
	)

	notify := func(state SearchState) {
		if progress != nil {
			progress(state, attempts)
		}
	}

	defer func() {
		span.SetAttributes(attribute.Int("search.poll_attempts", attempts))
		observability.EndSpan(span, err)

		final := SearchCompleted
		label := string(SearchCompleted)
		if err != nil {
			final = SearchFailed
			if pkgerrors.IsType(err, pkgerrors.ErrorTypeCanceled) {
				final = SearchCancelled
			}
			if appErr := pkgerrors.GetAppError(err); appErr != nil {
				label = strings.ToLower(string(appErr.Type))
			} else {
				label = "error"
			}
		}
		notify(final)
		if o.metrics != nil {
			o.metrics.RecordSearch(label, attempts, time.Since(started))
		}
	}()

	export := pdb.Export(residues)
	if !export.IsValid {
		return nil, pkgerrors.NewValidationError("structure cannot be searched").
			WithDetail("warnings", export.Warnings)
	}

	ctx, cancel := context.WithTimeout(ctx, settings.Timeout)
	defer cancel()

	notify(SearchSubmitting)
	if ctxErr := pkgerrors.FromContext(ctx, "search submit"); ctxErr != nil {
		return nil, ctxErr
	}
	ticketID, err := o.client.SubmitTicket(ctx, ports.SearchQuery{
		PDB:       export.Text,
		Mode:      settings.Mode,
		Databases: settings.Databases,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("search.ticket_id", ticketID))
	o.logger.Info("Search submitted",
		zap.String("ticketID", ticketID),
		zap.Int("residues", len(residues)),
	)

	notify(SearchPolling)
	payload, err := o.poll(ctx, ticketID, settings, &attempts)
	if err != nil {
		o.logger.Warn("Search did not complete",
			zap.String("ticketID", ticketID),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return nil, err
	}

	notify(SearchParsing)
	matches, err := ParseMatches(payload, settings.MaxMatchesPerDatabase)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Search completed",
		zap.String("ticketID", ticketID),
		zap.Int("attempts", attempts),
		zap.Int("matches", len(matches)),
	)
	return &SearchOutcome{TicketID: ticketID, Matches: matches, Attempts: attempts, Generation: generation}, nil
}

// poll fetches the ticket status until it is terminal. The first status
// request goes out immediately, later ones after settings.PollInterval.
func (o *SearchOrchestrator) poll(ctx context.Context, ticketID string, settings SearchSettings, attempts *int) (json.RawMessage, error) {
	for {
		if *attempts >= settings.MaxAttempts {
			return nil, pkgerrors.NewTimeoutError("search polling").
				WithDetail("attempts", *attempts).
				WithDetail("ticketId", ticketID)
		}
		if *attempts > 0 {
			if err := wait(ctx, settings.PollInterval, "search polling"); err != nil {
				return nil, err
			}
		}

		*attempts++
		status, err := o.client.TicketStatus(ctx, ticketID)
		if err != nil {
			return nil, err
		}

		switch strings.ToLower(strings.TrimSpace(status.Status)) {
		case "complete":
			if len(status.Result) > 0 && string(status.Result) != "null" {
				return status.Result, nil
			}
			return o.client.TicketResult(ctx, ticketID)
		case "error":
			msg := status.Message
			if msg == "" {
				msg = "search service reported an error"
			}
			return nil, pkgerrors.NewRemoteError(msg).WithDetail("ticketId", ticketID)
		default:
			o.logger.Debug("Search pending",
				zap.String("ticketID", ticketID),
				zap.String("status", status.Status),
				zap.Int("attempt", *attempts),
			)
		}
	}
}

func wait(ctx context.Context, d time.Duration, operation string) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return pkgerrors.FromContext(ctx, operation)
	case <-timer.C:
		return nil
	}
}

type resultPayload struct {
	Results []struct {
		DB         string          `json:"db"`
		Alignments json.RawMessage `json:"alignments"`
	} `json:"results"`
}

type alignment struct {
	Target  string   `json:"target"`
	TaxName string   `json:"taxName"`
	Score   *float64 `json:"score"`
	Prob    *float64 `json:"prob"`
	EValue  *float64 `json:"eval"`
	QLen    int      `json:"qLen"`
	DBLen   int      `json:"dbLen"`
	TLen    int      `json:"tLen"`
}

// ParseMatches flattens a result payload into at most perDatabase matches
// for each database, in the service's order. Alignments may be a list or
// a list of lists. A payload without any alignment is an empty-result error.
func ParseMatches(payload json.RawMessage, perDatabase int) ([]Match, error) {
	var res resultPayload
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, pkgerrors.NewRemoteError("malformed search result").WithCause(err)
	}

	var matches []Match
	for i, db := range res.Results {
		alignments, err := flattenAlignments(db.Alignments)
		if err != nil {
			return nil, pkgerrors.NewRemoteError(fmt.Sprintf("malformed alignments for result %d", i)).WithCause(err)
		}
		for j, a := range alignments {
			if perDatabase > 0 && j >= perDatabase {
				break
			}
			matches = append(matches, toMatch(db.DB, a))
		}
	}

	if len(matches) == 0 {
		return nil, pkgerrors.NewEmptyResultError("search returned no matches")
	}
	return matches, nil
}

func flattenAlignments(raw json.RawMessage) ([]alignment, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	var out []alignment
	for _, item := range items {
		trimmed := strings.TrimSpace(string(item))
		switch {
		case trimmed == "null":
		case strings.HasPrefix(trimmed, "["):
			var group []alignment
			if err := json.Unmarshal(item, &group); err != nil {
				return nil, err
			}
			out = append(out, group...)
		default:
			var a alignment
			if err := json.Unmarshal(item, &a); err != nil {
				return nil, err
			}
			out = append(out, a)
		}
	}
	return out, nil
}

func toMatch(db string, a alignment) Match {
	m := Match{
		TargetID:     a.Target,
		DisplayName:  a.Target,
		QueryLength:  a.QLen,
		TargetLength: a.DBLen,
		Database:     db,
	}
	// The target field is "<accession> <description>".
	if id, name, ok := strings.Cut(strings.TrimSpace(a.Target), " "); ok {
		m.TargetID = id
		m.DisplayName = strings.TrimSpace(name)
	} else if a.TaxName != "" {
		m.DisplayName = a.TaxName
	}
	if m.TargetLength == 0 {
		m.TargetLength = a.TLen
	}
	switch {
	case a.Score != nil:
		m.Score = *a.Score
	case a.Prob != nil:
		m.Score = *a.Prob
	}
	if a.Prob != nil {
		m.Probability = *a.Prob
	}
	if a.EValue != nil {
		m.EValue = *a.EValue
	}
	return m
}
