// Package fetch drives paginated reads from the upstream API.
//
// Both REST cursor pagination and GraphQL connection pagination are
// supported. A run walks pages sequentially until the upstream reports
// no more data or the configured page bound is reached.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/apiobserve/collector/pkg/config"
	"github.com/apiobserve/collector/pkg/errors"
	"github.com/apiobserve/collector/pkg/extract"
	"github.com/apiobserve/collector/pkg/metrics"
)

const requestTimeout = 60 * time.Second

// Fetcher reads all available records from the configured endpoint.
type Fetcher struct {
	cfg        *config.APIConfig
	path       string
	headers    map[string]string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewFetcher builds a Fetcher that sends the given headers on every
// request. The response path used to locate records comes from cfg.
func NewFetcher(cfg *config.APIConfig, headers map[string]string, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		cfg:     cfg,
		path:    cfg.ResponsePath,
		headers: headers,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// FetchAll walks the upstream pages and returns every record found.
//
// The loop stops on the first empty batch, after one page when
// pagination is disabled, when the upstream stops returning a next
// cursor, or after MaxPages pages. Any request or decode failure aborts
// the whole run.
func (f *Fetcher) FetchAll(ctx context.Context) ([]interface{}, error) {
	var all []interface{}
	cursor := ""

	for page := 1; page <= f.cfg.MaxPages; page++ {
		timer := metrics.NewTimer()

		var (
			records []interface{}
			next    string
			err     error
		)
		if f.cfg.QueryType == config.QueryTypeGraphQL {
			records, next, err = f.fetchGraphQLPage(ctx, cursor)
		} else {
			records, next, err = f.fetchRESTPage(ctx, cursor)
		}
		if err != nil {
			metrics.PagesFetched.WithLabelValues(f.cfg.QueryType, "failure").Inc()
			return nil, err
		}
		metrics.PagesFetched.WithLabelValues(f.cfg.QueryType, "success").Inc()
		metrics.PageFetchLatency.WithLabelValues(f.cfg.QueryType).Observe(timer.Stop().Seconds())

		if len(records) == 0 {
			f.logger.Debug("empty page, stopping",
				zap.Int("page", page))
			break
		}

		all = append(all, records...)
		metrics.RecordsFetched.Add(float64(len(records)))
		f.logger.Info("fetched page",
			zap.Int("page", page),
			zap.Int("records", len(records)),
			zap.Int("total", len(all)))

		if !f.cfg.PaginationEnabled {
			break
		}
		if next == "" {
			break
		}
		cursor = next

		if page == f.cfg.MaxPages {
			f.logger.Warn("reached page bound with more data available",
				zap.Int("max_pages", f.cfg.MaxPages))
		}
	}

	return all, nil
}

// fetchRESTPage issues GET <data_url>?limit=<n>[&cursor=<c>] and returns
// the page's records plus the next cursor, if any.
func (f *Fetcher) fetchRESTPage(ctx context.Context, cursor string) ([]interface{}, string, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(f.cfg.PageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	reqURL := f.cfg.DataURL() + "?" + q.Encode()

	body, err := f.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", err
	}

	records := extract.Records(body, f.path)
	next := restNextCursor(body)
	return records, next, nil
}

// restNextCursor probes the conventional cursor locations in order.
func restNextCursor(body interface{}) string {
	for _, path := range []string{"nextCursor", "next", "pagination.cursor"} {
		if c := extract.Cursor(body, path); c != "" {
			return c
		}
	}
	return ""
}

// fetchGraphQLPage posts the configured query, injecting the cursor on
// follow-up pages, and reads the next cursor from the response's
// pageInfo connection metadata.
func (f *Fetcher) fetchGraphQLPage(ctx context.Context, cursor string) ([]interface{}, string, error) {
	query := f.cfg.FullQuery
	if cursor != "" {
		query = InjectCursor(query, cursor, f.cfg.PageSize, f.logger)
	}

	payload, err := gojson.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode GraphQL request")
	}

	body, err := f.doRequest(ctx, http.MethodPost, f.cfg.DataURL(), payload)
	if err != nil {
		return nil, "", err
	}

	records := extract.Records(body, f.path)

	next := ""
	if extract.Bool(body, "data.pageInfo.hasNextPage") {
		next = extract.Cursor(body, "data.pageInfo.endCursor")
	}
	return records, next, nil
}

// doRequest issues one HTTP request and decodes the JSON response body.
// Numbers are decoded with full precision preserved.
func (f *Fetcher) doRequest(ctx context.Context, method, reqURL string, payload []byte) (interface{}, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to build API request")
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeUpstream, "API request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.New(errors.ErrorTypeUpstream,
			fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(snippet))).
			WithDetail("url", reqURL).
			WithDetail("status", resp.StatusCode)
	}

	dec := gojson.NewDecoder(resp.Body)
	dec.UseNumber()
	var body interface{}
	if err := dec.Decode(&body); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeUpstream, "failed to decode API response")
	}
	return body, nil
}
