// Package cds retrieves datasets from the Copernicus Climate Data Store.
package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-anomaly-etl/internal/observability"
)

// ErrJobFailed is returned when the CDS rejects or fails a retrieval job.
var ErrJobFailed = errors.New("cds job failed")

const maxPollInterval = time.Minute

// Client submits retrieval jobs to the CDS processing API, waits for them
// and downloads the result file.
type Client struct {
	key          string
	baseURL      string
	httpClient   *http.Client
	download     *http.Client
	pollInterval time.Duration
	clock        clockwork.Clock
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a CDS client. timeout bounds each API call and the wait
// for a download's response headers, but not the download body or the whole
// job; pollInterval is the first delay between status checks and doubles up
// to a minute.
func NewClient(baseURL, key string, timeout, pollInterval time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		key:          key,
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		download:     newDownloadClient(timeout),
		pollInterval: pollInterval,
		clock:        clockwork.NewRealClock(),
		metrics:      metrics,
		logger:       logger,
	}
}

// RetrieveAll runs every catalog request in order and returns the paths of
// the files in dir. It stops at the first failure.
func (c *Client) RetrieveAll(ctx context.Context, catalog Catalog, dir string) ([]string, error) {
	paths := make([]string, 0, len(catalog.Requests))
	for _, req := range catalog.Requests {
		path, err := c.Retrieve(ctx, req, dir)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Retrieve downloads one request into dir/req.Target. An existing target is
// kept and no job is submitted. The file appears only once fully written.
func (c *Client) Retrieve(ctx context.Context, req Request, dir string) (string, error) {
	target := filepath.Join(dir, req.Target)
	if _, err := os.Stat(target); err == nil {
		c.metrics.CDSRequests.WithLabelValues("skipped").Inc()
		c.logger.Info("cds target exists, skipping", "request", req.Name, "path", target)
		return target, nil
	}

	start := c.clock.Now()
	if err := c.retrieve(ctx, req, target); err != nil {
		c.metrics.CDSRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("retrieve %s: %w", req.Name, err)
	}
	c.metrics.CDSRequests.WithLabelValues("success").Inc()
	c.logger.Info("cds download complete",
		"request", req.Name,
		"dataset", req.Dataset,
		"path", target,
		"duration", c.clock.Since(start),
	)
	return target, nil
}

func (c *Client) retrieve(ctx context.Context, req Request, target string) error {
	job, err := c.submit(ctx, req)
	if err != nil {
		return err
	}
	c.logger.Info("cds job submitted", "request", req.Name, "job_id", job.ID, "status", job.Status)

	if err := c.wait(ctx, job); err != nil {
		return err
	}

	href, err := c.resultHref(ctx, job.ID)
	if err != nil {
		return err
	}
	return c.fetch(ctx, href, target)
}

func (c *Client) submit(ctx context.Context, req Request) (jobStatus, error) {
	body, err := json.Marshal(executeRequest{Inputs: req.Inputs})
	if err != nil {
		return jobStatus{}, fmt.Errorf("encode request: %w", err)
	}
	u := fmt.Sprintf("%s/retrieve/v1/processes/%s/execution", c.baseURL, url.PathEscape(req.Dataset))

	var job jobStatus
	if err := c.doJSON(ctx, http.MethodPost, u, body, &job); err != nil {
		return jobStatus{}, fmt.Errorf("submit: %w", err)
	}
	if job.ID == "" {
		return jobStatus{}, errors.New("submit: response has no jobID")
	}
	return job, nil
}

// wait polls the job until it finishes, backing off between checks.
func (c *Client) wait(ctx context.Context, job jobStatus) error {
	delay := c.pollInterval
	u := fmt.Sprintf("%s/retrieve/v1/jobs/%s", c.baseURL, url.PathEscape(job.ID))
	for {
		switch job.Status {
		case "successful":
			return nil
		case "failed", "rejected", "dismissed":
			return fmt.Errorf("%w: job %s %s", ErrJobFailed, job.ID, job.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(delay):
		}
		delay = retry.NextBackoff(delay, maxPollInterval)

		if err := c.doJSON(ctx, http.MethodGet, u, nil, &job); err != nil {
			return fmt.Errorf("poll job %s: %w", job.ID, err)
		}
		c.logger.Debug("cds job status", "job_id", job.ID, "status", job.Status)
	}
}

func (c *Client) resultHref(ctx context.Context, jobID string) (string, error) {
	u := fmt.Sprintf("%s/retrieve/v1/jobs/%s/results", c.baseURL, url.PathEscape(jobID))
	var res jobResults
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &res); err != nil {
		return "", fmt.Errorf("job results: %w", err)
	}
	if res.Asset.Value.Href == "" {
		return "", fmt.Errorf("job %s results have no asset href", jobID)
	}
	return c.resolve(res.Asset.Value.Href)
}

// newDownloadClient bounds the wait for response headers only. Result assets
// can take far longer than one API call to stream; ctx cancels them.
func newDownloadClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

// fetch streams href into a temp file next to target and renames it.
func (c *Client) fetch(ctx context.Context, href, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("download: status %d: %s", resp.StatusCode, body)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".cds-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("publish %s: %w", target, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, u string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("cds API error: status %d: %s", resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) resolve(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse asset href: %w", err)
	}
	if ref.IsAbs() {
		return href, nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// CDS API payloads.

type executeRequest struct {
	Inputs map[string]any `json:"inputs"`
}

type jobStatus struct {
	ID     string `json:"jobID"`
	Status string `json:"status"`
}

type jobResults struct {
	Asset struct {
		Value struct {
			Href string `json:"href"`
			Size int64  `json:"file:size"`
		} `json:"value"`
	} `json:"asset"`
}
