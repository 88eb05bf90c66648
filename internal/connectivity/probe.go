package connectivity

import (
	"context"
	"fmt"
	"net"
	"net/http"
)

// HTTPProber considers the network reachable when a GET to URL returns any
// status below 500.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func (p *HTTPProber) Probe(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false, err
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return false, fmt.Errorf("probe %s: status %d", p.URL, resp.StatusCode)
	}
	return true, nil
}

// DialProber considers the network reachable when a TCP connection to Addr
// can be established.
type DialProber struct {
	Addr string
}

func (p *DialProber) Probe(ctx context.Context) (bool, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false, err
	}
	conn.Close()
	return true, nil
}

// NewProber picks a prober for the configured target. It returns nil when
// neither is set.
func NewProber(probeURL, probeAddr string) Prober {
	switch {
	case probeURL != "":
		return &HTTPProber{URL: probeURL}
	case probeAddr != "":
		return &DialProber{Addr: probeAddr}
	default:
		return nil
	}
}
