// Package faucet requests initial funding for a freshly created identity.
package faucet

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/ledgersync/internal/netx"
)

type HTTPFaucet struct {
	endpoint string
	client   *http.Client
}

// New returns a faucet client for endpoint. Each request is bounded by
// timeout.
func New(endpoint string, timeout time.Duration) *HTTPFaucet {
	return &HTTPFaucet{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// RequestFunds asks the faucet to send funds to address.
func (f *HTTPFaucet) RequestFunds(ctx context.Context, address string) error {
	if f.endpoint == "" {
		return fmt.Errorf("faucet endpoint not configured")
	}
	if err := netx.Get(ctx, f.client, f.endpoint, url.Values{"address": {address}}); err != nil {
		return fmt.Errorf("faucet request for %s: %w", address, err)
	}
	return nil
}
