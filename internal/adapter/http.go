package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/MKhiriev/go-fish-log/internal/config"
	"github.com/MKhiriev/go-fish-log/internal/logger"
	"github.com/MKhiriev/go-fish-log/internal/utils"
)

type httpProbe struct {
	client *utils.HTTPClient
	url    string
}

// NewHTTPProbe returns a ConnectivityProbe that issues a GET against
// cfg.ProbeURL. A 2xx, 3xx or 4xx answer means online; a transport failure
// or a 5xx means offline. An empty URL yields a probe that always
// reports online.
func NewHTTPProbe(cfg config.Adapter) (ConnectivityProbe, error) {
	if strings.TrimSpace(cfg.ProbeURL) == "" {
		return staticProbe(true), nil
	}

	probeURL, err := normalizeURL(cfg.ProbeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid probe url: %w", err)
	}

	client := utils.NewHTTPClient(cfg.RequestTimeout)
	client.SetRetryCount(0)

	return &httpProbe{client: client, url: probeURL}, nil
}

func (p *httpProbe) Online(ctx context.Context) bool {
	resp, err := p.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(p.url)
	if err != nil {
		logger.FromContext(ctx).Debug().Err(err).Str("func", "httpProbe.Online").Msg("probe failed")
		return false
	}
	if body := resp.RawBody(); body != nil {
		body.Close()
	}
	return resp.StatusCode() < 500
}

type staticProbe bool

func (p staticProbe) Online(context.Context) bool {
	return bool(p)
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}
	return u.String(), nil
}
