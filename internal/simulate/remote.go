package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gachasim/internal/adapters/http/api"
	"github.com/okian/gachasim/internal/domain/model"
	"github.com/okian/gachasim/internal/domain/types"
	"github.com/okian/gachasim/pkg/logger"
)

const maxResponseBytes = 8 << 20

// client wraps http.Client with the server base URL.
type client struct {
	http *http.Client
	base string
}

func newClient(base string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, base: strings.TrimRight(base, "/")}
}

// do sends a request and decodes a JSON reply into out when non-nil.
func (c *client) do(ctx context.Context, method, path string, body any, header http.Header, want int, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnexpectedStatus, method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode: %w", method, path, err)
		}
	}
	return nil
}

// RunRemote drives a running server. Pulls are sequential because the
// server rejects overlapping pulls. The server wallet is overwritten so it
// covers exactly the configured pulls, and every tenth ten-pull is retried
// with the same Idempotency-Key to verify the replay.
func RunRemote(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.GetOr(logger.Nop()).Named("simulate")
	c := newClient(cfg.BaseURL, cfg.Timeout)

	var health map[string]string
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK, &health); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}

	if cfg.BannerID != "" {
		if err := c.do(ctx, http.MethodPut, "/selection", map[string]string{"banner_id": cfg.BannerID}, nil, http.StatusOK, nil); err != nil {
			return nil, err
		}
	}
	var sel types.BannerSummary
	if err := c.do(ctx, http.MethodGet, "/selection", nil, nil, http.StatusOK, &sel); err != nil {
		return nil, err
	}
	var view types.RatesView
	if err := c.do(ctx, http.MethodGet, "/banners/"+url.PathEscape(sel.ID)+"/rates", nil, nil, http.StatusOK, &view); err != nil {
		return nil, err
	}

	var before model.Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, nil, http.StatusOK, &before); err != nil {
		return nil, err
	}

	sessions := cfg.Sessions
	total := cfg
	total.TenPulls *= sessions
	total.Singles *= sessions
	crystals, tickets := total.wallet()
	if err := c.do(ctx, http.MethodPut, "/wallet", model.CurrencyLedger{Crystals: crystals, Tickets: tickets}, nil, http.StatusOK, nil); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     cfg.RunID,
		Mode:      ModeRemote,
		BannerID:  sel.ID,
		Sessions:  sessions,
		Workers:   1,
		StartedAt: time.Now(),
		Tally:     NewTally(),
		Expected:  Expect(tableFromView(view)),
	}

	for i := 0; i < total.TenPulls; i++ {
		key := uuid.NewString()
		header := http.Header{api.IdempotencyHeader: []string{key}}
		var first types.PullResponse
		if err := c.do(ctx, http.MethodPost, "/pull/ten", nil, header, http.StatusOK, &first); err != nil {
			return nil, err
		}
		report.Tally.AddTen(first.Results, false)

		if i%10 == 0 {
			var again types.PullResponse
			if err := c.do(ctx, http.MethodPost, "/pull/ten", nil, header, http.StatusOK, &again); err != nil {
				return nil, err
			}
			if !again.Replayed || !reflect.DeepEqual(again.Results, first.Results) {
				return nil, fmt.Errorf("%w: key %s", ErrReplayMismatch, key)
			}
			report.Tally.Replays++
		}
		if cfg.Verbose {
			log.Debug(ctx, "ten-pull", logger.Int("n", i+1), logger.Int("of", total.TenPulls))
		}
	}
	for i := 0; i < total.Singles; i++ {
		var resp types.PullResponse
		path := "/pull/single?ticket=" + fmt.Sprint(i%2 == 0)
		if err := c.do(ctx, http.MethodPost, path, nil, nil, http.StatusOK, &resp); err != nil {
			return nil, err
		}
		report.Tally.AddSingle(resp.Results[0])
	}

	var after model.Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, nil, http.StatusOK, &after); err != nil {
		return nil, err
	}
	if got, want := after.TotalPulls-before.TotalPulls, report.Tally.Slots(); got != want {
		return nil, fmt.Errorf("%w: server counted %d, drew %d", ErrStatsMismatch, got, want)
	}
	var wallet model.CurrencyLedger
	if err := c.do(ctx, http.MethodGet, "/wallet", nil, nil, http.StatusOK, &wallet); err != nil {
		return nil, err
	}
	if wallet != (model.CurrencyLedger{}) {
		return nil, fmt.Errorf("%w: server left %d crystals, %d tickets", ErrLedgerMismatch, wallet.Crystals, wallet.Tickets)
	}

	report.finish(cfg.Sigma)
	return report, nil
}
