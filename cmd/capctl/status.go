package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

var statusEndpoints = []string{"healthz", "surfaces", "workspaces", "focus", "device", "frames"}

// newStatusClient builds a resty client whose transport retries
// connection failures and 5xx answers with backoff
func newStatusClient(base string, retries int) *resty.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil

	return resty.NewWithClient(rc.StandardClient()).
		SetBaseURL(strings.TrimSuffix(base, "/")).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "capctl/1.0")
}

func (a *app) status(ctx context.Context, args []string) error {
	endpoint := "surfaces"
	switch len(args) {
	case 0:
	case 1:
		endpoint = strings.TrimPrefix(args[0], "/")
	default:
		return fmt.Errorf("usage: status [endpoint]")
	}
	if !slices.Contains(statusEndpoints, endpoint) {
		return fmt.Errorf("unknown endpoint %q, want one of %s", endpoint, strings.Join(statusEndpoints, ", "))
	}

	resp, err := newStatusClient(a.addr, a.retries).R().SetContext(ctx).Get("/" + endpoint)
	if err != nil {
		return fmt.Errorf("status %s: %w", endpoint, err)
	}
	if resp.IsError() {
		return fmt.Errorf("status %s: %s", endpoint, resp.Status())
	}

	var body map[string]any
	if err := sonic.Unmarshal(resp.Body(), &body); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	delete(body, "success")
	return a.print(body, nil)
}
