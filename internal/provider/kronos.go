package provider

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

	"tpush/internal/config"
	"tpush/internal/pkg/circuit"
	"tpush/internal/signal"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// 中文说明：
// Kronos 是外部 AI 预测服务，通过 REST 获取方向预测。响应先过 JSON Schema
// 校验再解析，熔断器保护连续失败后的调用。

const kronosPredictPath = "/api/v1/predict"

// 响应至少要有 action 与 [0,1] 区间的 confidence。
const kronosResponseSchema = `{
	"type": "object",
	"required": ["action", "confidence"],
	"properties": {
		"action": {"type": "string", "minLength": 1},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"summary": {"type": "string"}
	}
}`

// KronosProvider 调用外部预测服务。
type KronosProvider struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	breaker    *circuit.Breaker
	schema     *jsonschema.Schema
}

// NewKronosProvider 从配置构造 Kronos Provider。
func NewKronosProvider(cfg config.KronosProviderConfig) (*KronosProvider, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("kronos base_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing kronos base_url failed: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	cooldown := time.Duration(cfg.BreakerCooldownSeconds) * time.Second
	if cooldown <= 0 {
		cooldown = 2 * time.Minute
	}
	threshold := cfg.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("kronos.json", strings.NewReader(kronosResponseSchema)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("kronos.json")
	if err != nil {
		return nil, err
	}
	return &KronosProvider{
		baseURL:    parsed,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuit.NewBreaker("kronos", threshold, cooldown),
		schema:     schema,
	}, nil
}

func (p *KronosProvider) Kind() signal.ProviderKind {
	return signal.ProviderKronos
}

func (p *KronosProvider) Analyze(ctx context.Context, symbol string) (signal.SourceOpinion, error) {
	if !p.breaker.Allow() {
		return signal.SourceOpinion{}, Unavailable(p.Kind(), fmt.Errorf("circuit breaker open"))
	}
	opinion, err := p.predict(ctx, symbol)
	if err != nil {
		p.breaker.RecordFailure()
		return signal.SourceOpinion{}, Unavailable(p.Kind(), err)
	}
	p.breaker.RecordSuccess()
	return opinion, nil
}

func (p *KronosProvider) predict(ctx context.Context, symbol string) (signal.SourceOpinion, error) {
	payload := map[string]any{"symbol": symbol}
	body, err := json.Marshal(payload)
	if err != nil {
		return signal.SourceOpinion{}, err
	}
	endpoint := *p.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + kronosPredictPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return signal.SourceOpinion{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return signal.SourceOpinion{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return signal.SourceOpinion{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return signal.SourceOpinion{}, fmt.Errorf("kronos returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return signal.SourceOpinion{}, fmt.Errorf("kronos response is not valid JSON: %w", err)
	}
	if err := p.schema.Validate(decoded); err != nil {
		return signal.SourceOpinion{}, fmt.Errorf("kronos response failed schema validation: %w", err)
	}

	parsed := gjson.ParseBytes(raw)
	action := signal.NormalizeAction(parsed.Get("action").String())
	if action == "" {
		return signal.SourceOpinion{}, fmt.Errorf("kronos returned unknown action %q", parsed.Get("action").String())
	}
	return signal.SourceOpinion{
		Provider:   p.Kind(),
		Action:     action,
		Confidence: parsed.Get("confidence").Float(),
		Summary:    parsed.Get("summary").String(),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
