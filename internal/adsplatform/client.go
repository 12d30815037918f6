// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package adsplatform is the HTTP client for the ads platform Graph API:
// library lookups, batched uploads and ad creation, campaign and ad set creation.
package adsplatform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	xglog "github.com/BrianApollo/Ops-dashboard/internal/log"
	"github.com/BrianApollo/Ops-dashboard/internal/metrics"
	"github.com/BrianApollo/Ops-dashboard/internal/ratelimit"
	"github.com/BrianApollo/Ops-dashboard/internal/resilience"
	"github.com/BrianApollo/Ops-dashboard/internal/telemetry"
)

const (
	DefaultAPIVersion = "v21.0"

	tracerName       = "opsdash/adsplatform"
	defaultTimeout   = 60 * time.Second
	maxResponseBytes = 8 << 20
	maxBodyInError   = 512
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	APIVersion  string
	AccessToken string
	Timeout     time.Duration

	// Pacing defaults to ratelimit.DefaultConfig when GlobalRate is zero.
	Pacing ratelimit.Config

	BreakerThreshold int
	BreakerReset     time.Duration

	// Transport overrides the base round tripper (tests, proxies).
	Transport http.RoundTripper
}

// Client talks to the platform API. It is safe for concurrent use.
type Client struct {
	base    string
	version string
	token   string
	http    *http.Client
	pacer   *ratelimit.Pacer
	pacing  ratelimit.Config
	breaker *resilience.CircuitBreaker
	log     zerolog.Logger
}

// New validates opts and builds a client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("adsplatform: invalid base URL %q", opts.BaseURL)
	}
	if opts.AccessToken == "" {
		return nil, fmt.Errorf("adsplatform: access token is required")
	}

	version := strings.Trim(opts.APIVersion, "/")
	if version == "" {
		version = DefaultAPIVersion
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pacing := opts.Pacing
	if pacing.GlobalRate == 0 {
		pacing = ratelimit.DefaultConfig()
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Client{
		base:    base,
		version: version,
		token:   opts.AccessToken,
		http: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "adsplatform " + r.Method
				}),
			),
		},
		pacer:  ratelimit.New(pacing),
		pacing: pacing,
		breaker: resilience.NewCircuitBreaker("adsplatform", opts.BreakerThreshold, opts.BreakerReset,
			resilience.WithFailureClassifier(countsAgainstBreaker)),
		log: xglog.WithComponent("adsplatform"),
	}, nil
}

// BreakerState exposes the circuit state for health checks.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

func accountPath(accountID string) string {
	return "act_" + strings.TrimPrefix(accountID, "act_")
}

// request describes one API call.
type request struct {
	op      string // metric and span name
	class   string // pacing class
	account string
	method  string
	path    string // relative to the versioned base
	params  url.Values
}

// call paces, guards and performs one API request. The returned rate is the
// usage reported by the response, or -1 when no response arrived.
func (c *Client) call(ctx context.Context, r request, out any) (float64, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "adsplatform."+r.op)

	if err := c.pacer.Wait(ctx, r.class); err != nil {
		telemetry.EndSpan(span, err, "pacer")
		return -1, err
	}

	start := time.Now()
	rate := -1.0
	err := c.breaker.Execute(func() error {
		var callErr error
		rate, callErr = c.do(ctx, r, out)
		return callErr
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = &PlatformError{Sentinel: ErrUpstreamUnavailable, Operation: r.op, Err: err}
	}

	outcome := outcomeOf(err)
	metrics.ObservePlatformRequest(r.op, outcome, time.Since(start).Seconds())
	if rate >= 0 {
		metrics.SetPlatformRate(rate)
		c.pacer.Throttle(rate, c.pacing)
	}
	span.SetAttributes(telemetry.PlatformAttributes(r.op, r.account, max(rate, 0))...)
	telemetry.EndSpan(span, err, outcome)

	if err != nil {
		c.log.Debug().
			Str(xglog.FieldEvent, "platform.request_failed").
			Str("operation", r.op).
			Str(xglog.FieldAccountID, r.account).
			Float64(xglog.FieldRate, rate).
			Err(err).
			Msg("platform request failed")
	}
	return rate, err
}

func (c *Client) do(ctx context.Context, r request, out any) (float64, error) {
	op, method, params := r.op, r.method, r.params
	endpoint := c.base + "/" + c.version + "/" + strings.TrimLeft(r.path, "/")

	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return -1, fmt.Errorf("adsplatform: build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return -1, classifyTransport(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	rate := ParseUsage(resp.Header)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return rate, &PlatformError{Sentinel: ErrUpstreamBadResponse, Operation: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 400 {
		var env errorEnvelope
		if json.Unmarshal(body, &env) == nil && env.Error != nil {
			env.Error.HTTPStatus = resp.StatusCode
			return rate, env.Error
		}
		return rate, &PlatformError{
			Sentinel:  sentinelForStatus(resp.StatusCode),
			Operation: op,
			Status:    resp.StatusCode,
			Body:      truncate(string(body), maxBodyInError),
		}
	}

	if out == nil {
		return rate, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return rate, &PlatformError{Sentinel: ErrUpstreamBadResponse, Operation: op, Status: resp.StatusCode, Err: err}
	}
	return rate, nil
}

func classifyTransport(op string, err error) error {
	sentinel := ErrUpstreamUnavailable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		sentinel = ErrTimeout
	}
	return &PlatformError{Sentinel: sentinel, Operation: op, Err: err}
}

func sentinelForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrUpstreamError
	default:
		return ErrRejected
	}
}

func outcomeOf(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "transport_error"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
