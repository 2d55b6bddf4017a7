// Package ingest submits articles to the downstream storage service over
// its tool-call RPC and classifies responses into new, duplicate, or
// error. Per-article failures are contained: one bad article never
// aborts its batch.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/newsgrid/harvester/pkg/plugin"
)

// callRequest is the storage service's RPC envelope.
type callRequest struct {
	Agent  string         `json:"agent"`
	Tool   string         `json:"tool"`
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

// callResponse covers both response shapes the service emits: nested
// {status, data:{...}} and flat {status, duplicate, error}.
type callResponse struct {
	Status    string        `json:"status"`
	Duplicate bool          `json:"duplicate"`
	Error     string        `json:"error"`
	Data      *callResponse `json:"data"`
}

// statement is one pre-computed tuple the storage service consumes
// verbatim.
type statement struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

// Client posts articles to the storage tool endpoint.
type Client struct {
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// New builds a Client against the MCP bus endpoint.
func New(endpoint string, logger zerolog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
				ResponseHeaderTimeout: 10 * time.Second,
			},
			Timeout: 12 * time.Second,
		},
		logger: logger.With().Str("module", "ingest").Logger(),
	}
}

// IngestBatch submits each article and annotates its IngestionStatus in
// place. Network errors count as per-article errors and the batch
// continues.
func (c *Client) IngestBatch(ctx context.Context, articles []*plugin.ArticleRecord) *plugin.IngestOutcome {
	out := &plugin.IngestOutcome{}
	for _, article := range articles {
		detail := plugin.IngestDetail{URL: article.URL}

		duplicate, errMsg := c.ingestOne(ctx, article)
		switch {
		case errMsg != "":
			out.Errors++
			article.IngestionStatus = plugin.IngestionError
			detail.Status = string(plugin.IngestionError)
			detail.Error = errMsg
			c.logger.Warn().Str("url", article.URL).Str("error", errMsg).Msg("ingestion error")
		case duplicate:
			out.Duplicates++
			article.IngestionStatus = plugin.IngestionDuplicate
			detail.Status = string(plugin.IngestionDuplicate)
		default:
			out.NewArticles++
			article.IngestionStatus = plugin.IngestionNew
			detail.Status = string(plugin.IngestionNew)
		}
		out.Details = append(out.Details, detail)
	}
	return out
}

// ingestOne performs the RPC for a single article and returns the
// duplicate flag and error message (empty on success).
func (c *Client) ingestOne(ctx context.Context, article *plugin.ArticleRecord) (duplicate bool, errMsg string) {
	payload := callRequest{
		Agent: "memory",
		Tool:  "ingest_article",
		Args:  []any{},
		Kwargs: map[string]any{
			"article_payload": article,
			"statements":      buildStatements(article),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Sprintf("marshal: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/call", bytes.NewReader(body))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()

	var parsed callResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, fmt.Sprintf("decode response: %v", err)
	}

	// The effective status is data.status when the nested shape is used.
	effective := &parsed
	if parsed.Data != nil {
		effective = parsed.Data
	}
	switch effective.Status {
	case "ok", "success":
		return effective.Duplicate, ""
	default:
		msg := effective.Error
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %q", effective.Status)
		}
		return false, msg
	}
}

// buildStatements pre-computes the storage tuples for an article.
func buildStatements(article *plugin.ArticleRecord) []statement {
	return []statement{
		{
			SQL: "INSERT INTO articles (url_hash, normalized_url, canonical_url, title, domain, source_name, publication_date, language) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			Args: []any{
				article.URLHash, article.NormalizedURL, article.Canonical,
				article.Title, article.Domain, article.SourceName,
				article.PublicationDate, article.Language,
			},
		},
		{
			SQL:  "INSERT INTO article_content (url_hash, content, raw_html_ref) VALUES (?, ?, ?)",
			Args: []any{article.URLHash, article.Content, article.RawHTMLRef},
		},
	}
}
