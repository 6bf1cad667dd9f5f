// Package rcsb downloads structure files from the RCSB Protein Data Bank and
// the AlphaFold protein structure database.
package rcsb

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/core/valueobjects"
	"github.com/yash-217/yash.fun/infrastructure/external"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

const (
	// DefaultPDBURLTemplate is formatted with an upper-case PDB ID.
	DefaultPDBURLTemplate = "https://files.rcsb.org/download/%s.pdb"
	// DefaultAlphaFoldURLTemplate is formatted with an AlphaFold entry ID such as AF-P69905-F1.
	DefaultAlphaFoldURLTemplate = "https://alphafold.ebi.ac.uk/files/%s-model_v4.pdb"
)

var (
	pdbCode        = regexp.MustCompile(`^[0-9][A-Za-z0-9]{3}`)
	alphaFoldModel = regexp.MustCompile(`(?i)-model_v\d+(\.pdb)?$`)
)

// Config configures the client.
type Config struct {
	PDBURLTemplate       string
	AlphaFoldURLTemplate string
	RequestTimeout       time.Duration
	UserAgent            string
	Breaker              external.BreakerConfig
}

// Client implements ports.StructureSource.
type Client struct {
	pdbURL       string
	alphaFoldURL string
	userAgent    string
	http         *http.Client
	breaker      *gobreaker.CircuitBreaker
	logger       *zap.Logger
}

var _ ports.StructureSource = (*Client)(nil)

// NewClient creates a client. A nil httpClient gets one with cfg.RequestTimeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.PDBURLTemplate == "" {
		cfg.PDBURLTemplate = DefaultPDBURLTemplate
	}
	if cfg.AlphaFoldURLTemplate == "" {
		cfg.AlphaFoldURLTemplate = DefaultAlphaFoldURLTemplate
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{
		pdbURL:       cfg.PDBURLTemplate,
		alphaFoldURL: cfg.AlphaFoldURLTemplate,
		userAgent:    cfg.UserAgent,
		http:         httpClient,
		breaker:      external.NewBreaker("structure-download", cfg.Breaker, logger),
		logger:       logger,
	}
}

// ResolveURL maps an identifier to its download URL. Search hits such as
// "AF-P69905-F1-model_v4" or "1a3n-assembly1.cif.gz_A" are accepted.
func (c *Client) ResolveURL(structureID string) (string, error) {
	id := strings.TrimSpace(structureID)
	if !valueobjects.IsValidStructureID(id) {
		return "", pkgerrors.NewValidationError("invalid structure identifier").WithDetail("structureId", structureID)
	}

	if strings.HasPrefix(strings.ToUpper(id), "AF-") {
		id = alphaFoldModel.ReplaceAllString(id, "")
		return fmt.Sprintf(c.alphaFoldURL, "AF-"+id[3:]), nil
	}
	if code := pdbCode.FindString(id); code != "" {
		return fmt.Sprintf(c.pdbURL, strings.ToUpper(code)), nil
	}
	return "", pkgerrors.NewValidationError("unrecognised structure identifier").WithDetail("structureId", structureID)
}

// FetchStructure downloads the PDB text for structureID with a single GET.
func (c *Client) FetchStructure(ctx context.Context, structureID string) (string, error) {
	target, err := c.ResolveURL(structureID)
	if err != nil {
		return "", err
	}

	return external.Execute(c.breaker, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return "", pkgerrors.NewInternalError("building download request").WithCause(err)
		}
		req.Header.Set("Accept", "chemical/x-pdb, text/plain")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		start := time.Now()
		resp, err := external.Do(ctx, c.http, req, "structure download")
		if err != nil {
			return "", err
		}
		body, err := external.ReadBody(ctx, resp, "structure download")
		if err != nil {
			return "", err
		}

		c.logger.Debug("Structure download completed",
			zap.String("structureID", structureID),
			zap.String("url", target),
			zap.Int("status", resp.StatusCode),
			zap.Int("bytes", len(body)),
			zap.Duration("duration", time.Since(start)),
		)

		if resp.StatusCode == http.StatusNotFound {
			return "", pkgerrors.NewNotFoundError("structure " + structureID)
		}
		if !external.IsSuccess(resp.StatusCode) {
			return "", external.StatusError("structure download", resp.StatusCode, body)
		}
		return string(body), nil
	})
}
