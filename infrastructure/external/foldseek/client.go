// Package foldseek is a client for the Foldseek search server's ticket API.
package foldseek

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/infrastructure/external"
	pkgerrors "github.com/yash-217/yash.fun/pkg/errors"
)

// DefaultBaseURL is the public Foldseek server.
const DefaultBaseURL = "https://search.foldseek.com/api"

// Config configures the client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	UserAgent      string
	Breaker        external.BreakerConfig
}

// Client implements ports.SearchClient.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

var _ ports.SearchClient = (*Client)(nil)

// NewClient creates a client. A nil httpClient gets one with cfg.RequestTimeout.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      httpClient,
		breaker:   external.NewBreaker("foldseek", cfg.Breaker, logger),
		logger:    logger,
	}
}

type ticketResponse struct {
	ID      string          `json:"id"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Result  json.RawMessage `json:"result"`
}

// SubmitTicket posts the query as multipart form data: the structure as
// file part "q", the mode, and one "database[]" field per database.
func (c *Client) SubmitTicket(ctx context.Context, query ports.SearchQuery) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("q", "query.pdb")
	if err != nil {
		return "", pkgerrors.NewInternalError("building search request").WithCause(err)
	}
	if _, err := part.Write([]byte(query.PDB)); err != nil {
		return "", pkgerrors.NewInternalError("building search request").WithCause(err)
	}
	if err := w.WriteField("mode", query.Mode); err != nil {
		return "", pkgerrors.NewInternalError("building search request").WithCause(err)
	}
	for _, db := range query.Databases {
		if err := w.WriteField("database[]", db); err != nil {
			return "", pkgerrors.NewInternalError("building search request").WithCause(err)
		}
	}
	if err := w.Close(); err != nil {
		return "", pkgerrors.NewInternalError("building search request").WithCause(err)
	}

	return external.Execute(c.breaker, func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ticket", bytes.NewReader(body.Bytes()))
		if err != nil {
			return "", pkgerrors.NewInternalError("building search request").WithCause(err)
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Accept", "application/json")
		c.setUserAgent(req)

		var tr ticketResponse
		if err := c.doJSON(ctx, req, "ticket submission", &tr); err != nil {
			if pkgerrors.IsType(err, pkgerrors.ErrorTypeRemote) {
				return "", pkgerrors.NewTransportError("ticket submission response is not a ticket", err)
			}
			return "", err
		}
		if tr.ID == "" {
			return "", pkgerrors.NewTransportError("ticket submission response has no ticket id", nil)
		}

		c.logger.Debug("Search ticket created",
			zap.String("ticketID", tr.ID),
			zap.String("status", tr.Status),
		)
		return tr.ID, nil
	})
}

// TicketStatus fetches the status of a ticket.
func (c *Client) TicketStatus(ctx context.Context, ticketID string) (*ports.TicketStatus, error) {
	return external.Execute(c.breaker, func() (*ports.TicketStatus, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ticket/"+url.PathEscape(ticketID), nil)
		if err != nil {
			return nil, pkgerrors.NewInternalError("building status request").WithCause(err)
		}
		req.Header.Set("Accept", "application/json")
		c.setUserAgent(req)

		var tr ticketResponse
		if err := c.doJSON(ctx, req, "ticket status", &tr); err != nil {
			return nil, err
		}
		msg := tr.Message
		if msg == "" {
			msg = tr.Error
		}
		return &ports.TicketStatus{Status: tr.Status, Message: msg, Result: tr.Result}, nil
	})
}

// TicketResult downloads the result of a completed ticket.
func (c *Client) TicketResult(ctx context.Context, ticketID string) (json.RawMessage, error) {
	return external.Execute(c.breaker, func() (json.RawMessage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/result/"+url.PathEscape(ticketID)+"/0", nil)
		if err != nil {
			return nil, pkgerrors.NewInternalError("building result request").WithCause(err)
		}
		req.Header.Set("Accept", "application/json")
		c.setUserAgent(req)

		var raw json.RawMessage
		if err := c.doJSON(ctx, req, "ticket result", &raw); err != nil {
			return nil, err
		}
		return raw, nil
	})
}

func (c *Client) doJSON(ctx context.Context, req *http.Request, operation string, out interface{}) error {
	start := time.Now()
	resp, err := external.Do(ctx, c.http, req, operation)
	if err != nil {
		return err
	}
	body, err := external.ReadBody(ctx, resp, operation)
	if err != nil {
		return err
	}

	c.logger.Debug("Foldseek request completed",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if !external.IsSuccess(resp.StatusCode) {
		return external.StatusError(operation, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return pkgerrors.NewRemoteError(operation + " returned malformed JSON").WithCause(err)
	}
	return nil
}

func (c *Client) setUserAgent(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
