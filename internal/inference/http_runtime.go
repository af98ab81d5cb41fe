package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// HTTPRuntime forwards load/translate/release calls to a sidecar
// inference process over HTTP. It is the production Runtime
// implementation; tests use package-local in-memory fakes instead.
type HTTPRuntime struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRuntime creates an HTTPRuntime pointed at baseURL, with a
// connection-pooled client in the same shape the rest of this codebase
// uses for outbound calls.
func NewHTTPRuntime(baseURL string) *HTTPRuntime {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &HTTPRuntime{
		baseURL: baseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   120 * time.Second,
		},
	}
}

type loadRequest struct {
	ModelID string         `json:"model_id"`
	Device  string         `json:"device"`
	Extra   map[string]any `json:"extra,omitempty"`
}

type loadResponse struct {
	PipelineID string `json:"pipeline_id"`
}

func (h *HTTPRuntime) Load(ctx context.Context, args LoadArgs) (*Pipeline, error) {
	var resp loadResponse
	if err := h.postJSON(ctx, "/load", loadRequest{
		ModelID: args.ModelID,
		Device:  args.Device,
		Extra:   args.Extra,
	}, &resp); err != nil {
		return nil, fmt.Errorf("inference: load %s: %w", args.ModelID, err)
	}
	return &Pipeline{ID: resp.PipelineID, ModelID: args.ModelID, Device: args.Device}, nil
}

type translateRequest struct {
	PipelineID string   `json:"pipeline_id"`
	Texts      []string `json:"texts"`
	BatchSize  int      `json:"batch_size"`
	BeamSize   int      `json:"beam_size,omitempty"`
	MaxLength  int      `json:"max_length,omitempty"`
	SrcCode    string   `json:"src_code,omitempty"`
	TgtCode    string   `json:"tgt_code,omitempty"`
}

type translateResponse struct {
	Outputs []string `json:"outputs"`
}

func (h *HTTPRuntime) Translate(ctx context.Context, p *Pipeline, texts []string, args TranslateArgs) ([]string, error) {
	var resp translateResponse
	if err := h.postJSON(ctx, "/translate", translateRequest{
		PipelineID: p.ID,
		Texts:      texts,
		BatchSize:  args.BatchSize,
		BeamSize:   args.BeamSize,
		MaxLength:  args.MaxLength,
		SrcCode:    args.SrcCode,
		TgtCode:    args.TgtCode,
	}, &resp); err != nil {
		return nil, fmt.Errorf("inference: translate on %s: %w", p.ModelID, err)
	}
	if len(resp.Outputs) != len(texts) {
		return nil, fmt.Errorf("inference: runtime returned %d outputs for %d inputs", len(resp.Outputs), len(texts))
	}
	return resp.Outputs, nil
}

type releaseRequest struct {
	PipelineID string `json:"pipeline_id"`
}

func (h *HTTPRuntime) Release(ctx context.Context, p *Pipeline) error {
	if err := h.postJSON(ctx, "/release", releaseRequest{PipelineID: p.ID}, nil); err != nil {
		return fmt.Errorf("inference: release %s: %w", p.ModelID, err)
	}
	return nil
}

type probeResponse struct {
	GPUAvailable bool `json:"gpu_available"`
}

func (h *HTTPRuntime) GPUAvailable(ctx context.Context) bool {
	var resp probeResponse
	if err := h.postJSON(ctx, "/probe", struct{}{}, &resp); err != nil {
		return false
	}
	return resp.GPUAvailable
}

func (h *HTTPRuntime) postJSON(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}
