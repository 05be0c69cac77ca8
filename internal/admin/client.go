package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Client talks to a running admin server.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(addr, token string) *Client {
	base := strings.TrimSpace(addr)
	if base == "" {
		base = DefaultAddr
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		BaseURL: strings.TrimSuffix(base, "/"),
		Token:   strings.TrimSpace(token),
		HTTP:    &http.Client{Timeout: 15 * time.Minute},
	}
}

func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", &out)
	return out, err
}

// Run triggers job ("daily" or "hourly"). A skipped run is not an error; a
// failed run returns the report together with the error.
func (c *Client) Run(ctx context.Context, job string) (RunResponse, error) {
	var out RunResponse
	err := c.do(ctx, http.MethodPost, "/run/"+job, &out)
	if err == nil && out.Error != "" {
		err = errors.Newf("%s run failed: %s", job, out.Error)
	}
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusConflict, http.StatusInternalServerError:
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}
