// Package dataexplorer drives Stack Exchange Data Explorer query jobs.
//
// The Data Explorer has no push channel: a query is submitted, answered with
// a job identifier, and then polled until it stops running. Start submits a
// query and returns a Job; Job.Await waits for its rows under a cancel
// signal. Fetch combines both and decodes rows into typed values.
package dataexplorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/soprofile/pkg/logger"
	"github.com/okian/soprofile/pkg/metrics"
)

const (
	DefaultBaseURL      = "https://data.stackexchange.com"
	DefaultPollInterval = 4 * time.Second

	defaultRequestTimeout = 30 * time.Second
	maxBodyBytes          = 32 << 20
)

// Client submits and polls query jobs.
type Client struct {
	baseURL  string
	cookie   string
	interval time.Duration
	http     *http.Client
	log      logger.Logger
}

// NewClient creates a client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		interval: DefaultPollInterval,
		http:     &http.Client{Timeout: defaultRequestTimeout},
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("dataexplorer")
	return c
}

// PollInterval returns the configured delay between polls.
func (c *Client) PollInterval() time.Duration { return c.interval }

// Row is one result tuple with its cells left undecoded.
type Row []json.RawMessage

type resultSet struct {
	Rows []Row `json:"rows"`
}

type submitResponse struct {
	JobID      jobID       `json:"job_id"`
	FromCache  bool        `json:"fromCache"`
	ResultSets []resultSet `json:"resultSets"`
}

type statusResponse struct {
	Running    bool        `json:"running"`
	ResultSets []resultSet `json:"resultSets"`
}

// jobID accepts both string and numeric identifiers.
type jobID string

func (j *jobID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*j = jobID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("job_id: %w", err)
	}
	*j = jobID(n.String())
	return nil
}

// Start submits spec for tag. A submission answered from the remote cache
// returns a Job that is already resolved and never polls.
func (c *Client) Start(ctx context.Context, spec Spec, tag string) (*Job, error) {
	fail := func(status int, err error) (*Job, error) {
		metrics.RecordJobFailure(spec.Name, "submit")
		c.log.Error(ctx, "query job submission failed",
			logger.String("query", spec.Name), logger.String("tag", tag),
			logger.Int("status", status), logger.Error(err))
		return nil, &SubmissionError{Query: spec.Name, Tag: tag, Status: status, Err: err}
	}

	form := url.Values{}
	form.Set("tagName", tag)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+spec.Path, strings.NewReader(form.Encode()))
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.authorize(req)

	var body submitResponse
	status, err := c.do(req, &body)
	if err != nil {
		return fail(status, err)
	}

	metrics.RecordJobSubmitted(spec.Name)
	now := time.Now()

	if body.FromCache {
		if len(body.ResultSets) == 0 {
			return fail(status, errNoResultSet)
		}
		metrics.RecordJobFromCache(spec.Name)
		c.log.Info(ctx, "query answered from cache",
			logger.String("query", spec.Name), logger.String("tag", tag),
			logger.Int("rows", len(body.ResultSets[0].Rows)))
		return newResolvedJob(spec, tag, string(body.JobID), nonNil(body.ResultSets[0].Rows)), nil
	}

	if body.JobID == "" {
		return fail(status, errMissingJobID)
	}

	c.log.Info(ctx, "query job started",
		logger.String("query", spec.Name), logger.String("tag", tag),
		logger.String("job_id", string(body.JobID)))

	j := newJob(c, spec, tag, string(body.JobID), now)
	go j.run(context.WithoutCancel(ctx))
	return j, nil
}

// poll issues one status request.
func (c *Client) poll(ctx context.Context, spec Spec, id string) ([]Row, bool, error) {
	fail := func(status int, err error) ([]Row, bool, error) {
		metrics.RecordJobFailure(spec.Name, "poll")
		return nil, false, &PollError{Query: spec.Name, JobID: id, Status: status, Err: err}
	}

	metrics.RecordJobPoll(spec.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query/job/"+url.PathEscape(id), nil)
	if err != nil {
		return fail(0, err)
	}
	c.authorize(req)

	var body statusResponse
	status, err := c.do(req, &body)
	if err != nil {
		return fail(status, err)
	}
	if body.Running {
		return nil, true, nil
	}
	if len(body.ResultSets) == 0 {
		return fail(status, errNoResultSet)
	}
	return nonNil(body.ResultSets[0].Rows), false, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	req.Header.Set("Accept", "application/json")
}

// do sends req and decodes a JSON body into out. The returned status is zero
// when no response was received.
func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode body: %w", err)
	}
	return resp.StatusCode, nil
}

func nonNil(rows []Row) []Row {
	if rows == nil {
		return []Row{}
	}
	return rows
}
