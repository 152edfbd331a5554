// Package webhook posts finished research results to an external endpoint.
// Delivery is best effort; a dead endpoint never fails a research run.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body, keyed by
// the shared webhook secret. Absent when no secret is configured.
const SignatureHeader = "X-Prospect-Signature"

// Deliverer posts research results to the configured webhook URL.
type Deliverer struct {
	cfg    config.WebhookConfig
	client *http.Client
}

// NewDeliverer creates a Deliverer from webhook config.
func NewDeliverer(cfg config.WebhookConfig) *Deliverer {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Deliverer{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (d *Deliverer) Enabled() bool {
	return d.cfg.URL != ""
}

// Deliver posts the result as JSON. The caller decides whether to treat an
// error as fatal; the research pipeline logs and moves on.
func (d *Deliverer) Deliver(ctx context.Context, result *model.ResearchResult) error {
	if !d.Enabled() {
		return nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "webhook: encode result")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "webhook: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, sign(d.cfg.Secret, payload))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "webhook: post result")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("webhook: endpoint returned %d", resp.StatusCode)
	}

	zap.L().Info("webhook: result delivered",
		zap.String("run_id", result.RunID),
		zap.String("subject", result.Subject.Name))
	return nil
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
