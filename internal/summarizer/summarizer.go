// Package summarizer orchestrates a summarisation request: it analyses the
// text, consults the similarity cache, picks a strategy, builds the prompt,
// calls the language model and records the outcome.
package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/localrivet/smartsummary/internal/cache"
	"github.com/localrivet/smartsummary/internal/classifier"
	"github.com/localrivet/smartsummary/internal/errortypes"
	"github.com/localrivet/smartsummary/internal/gateway"
	"github.com/localrivet/smartsummary/internal/ledger"
	"github.com/localrivet/smartsummary/internal/prompt"
	"github.com/localrivet/smartsummary/internal/strategy"
	"github.com/localrivet/smartsummary/internal/telemetry"
	"github.com/localrivet/smartsummary/internal/tokenizer"
)

const (
	// DefaultMaxLength is the summary length in words when a request gives none.
	DefaultMaxLength = 200

	// DefaultTemperature is the sampling temperature sent to the model.
	DefaultTemperature = 0.3

	// similarK is how many cache neighbours are considered per request.
	similarK = 3

	complexModelThreshold = 0.7
	longModelTokens       = 1000
)

// Models names the model used for each kind of request. Empty names defer to
// the gateway client's default.
type Models struct {
	Default  string `json:"default"`
	Complex  string `json:"complex"`
	Long     string `json:"long"`
	Override string `json:"override"`
}

// Options configures an Orchestrator. Gateway and Cache are required.
type Options struct {
	Gateway       gateway.Client
	Cache         *cache.SimilarityCache
	Classifier    *classifier.Classifier
	Selector      *strategy.Selector
	Builder       *prompt.Builder
	Estimator     tokenizer.Estimator
	Pricing       gateway.Pricing
	Ledger        ledger.Ledger
	Metrics       *telemetry.MetricsCollector
	Logger        *slog.Logger
	Models        Models
	DefaultBudget float64
	Temperature   float64
}

// Request is a summarisation request.
type Request struct {
	Text       string
	MaxLength  int
	APIKey     string
	CostBudget float64
	RequestID  string
}

// SummaryResult is the outcome of a blocking summarisation.
type SummaryResult struct {
	Summary          string            `json:"summary"`
	OriginalLength   int               `json:"original_length"`
	SummaryLength    int               `json:"summary_length"`
	Strategy         strategy.Strategy `json:"strategy"`
	Domain           classifier.Domain `json:"domain"`
	Complexity       float64           `json:"complexity"`
	Model            string            `json:"model,omitempty"`
	PromptTokens     int               `json:"prompt_tokens"`
	CompletionTokens int               `json:"completion_tokens"`
	Cost             float64           `json:"cost"`
	CacheHit         bool              `json:"cache_hit"`
	RequestID        string            `json:"request_id"`
	Duration         time.Duration     `json:"duration_ns"`
}

// Fragment is one element of a streamed summary. Exactly one of Text, Err or
// Done is meaningful.
type Fragment struct {
	Text string
	Err  error
	Done bool
}

// Orchestrator runs summarisation requests. It is safe for concurrent use.
type Orchestrator struct {
	gateway     gateway.Client
	cache       *cache.SimilarityCache
	classifier  *classifier.Classifier
	selector    *strategy.Selector
	builder     *prompt.Builder
	estimator   tokenizer.Estimator
	pricing     gateway.Pricing
	ledger      ledger.Ledger
	metrics     *telemetry.MetricsCollector
	logger      *slog.Logger
	models      Models
	budget      float64
	temperature float64
}

// New creates an Orchestrator, filling unset options with defaults.
func New(opts Options) (*Orchestrator, error) {
	if opts.Gateway == nil {
		return nil, errortypes.ConfigError(errors.New("gateway is required"), "invalid summarizer options")
	}
	if opts.Cache == nil {
		return nil, errortypes.ConfigError(errors.New("cache is required"), "invalid summarizer options")
	}

	if opts.Estimator == nil {
		opts.Estimator = tokenizer.NewHeuristicEstimator()
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.NewDefault()
	}
	if opts.Selector == nil {
		opts.Selector = strategy.NewSelector(strategy.DefaultThresholds())
	}
	if opts.Pricing == nil {
		opts.Pricing = gateway.DefaultPricingTable()
	}
	if opts.Builder == nil {
		pricing, model := opts.Pricing, opts.Models.Default
		opts.Builder = prompt.NewBuilder(opts.Estimator, func(in, out int) float64 {
			return pricing.Cost(model, in, out)
		})
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewMetricsCollector()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultBudget <= 0 {
		opts.DefaultBudget = strategy.DefaultCostBudget
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}

	return &Orchestrator{
		gateway:     opts.Gateway,
		cache:       opts.Cache,
		classifier:  opts.Classifier,
		selector:    opts.Selector,
		builder:     opts.Builder,
		estimator:   opts.Estimator,
		pricing:     opts.Pricing,
		ledger:      opts.Ledger,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		models:      opts.Models,
		budget:      opts.DefaultBudget,
		temperature: opts.Temperature,
	}, nil
}

// plan is everything decided about a request before the model is called.
type plan struct {
	requestID string
	start     time.Time
	tc        strategy.TextContext
	opt       *prompt.OptimizationResult
	matches   []cache.Match
	model     string
	client    gateway.Client
}

func (p *plan) cacheHit() bool {
	return p.opt.Strategy == strategy.CacheHit
}

// prepare validates the request and runs analysis, cache lookup, strategy
// selection and prompt building. It makes no provider calls.
func (o *Orchestrator) prepare(ctx context.Context, req Request) (*plan, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errortypes.EmptyInputError()
	}

	p := &plan{requestID: req.RequestID, start: time.Now()}
	if p.requestID == "" {
		p.requestID = uuid.NewString()
	}

	maxLength := req.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	budget := req.CostBudget
	if budget <= 0 {
		budget = o.budget
	}

	p.tc = strategy.NewTextContext(req.Text, maxLength, budget, o.estimator, o.classifier)

	matches, err := o.cache.FindSimilar(ctx, req.Text, similarK)
	if err != nil {
		// A failed lookup only costs us the cache; the request can still be served.
		o.logger.Warn("Similarity lookup failed", "request_id", p.requestID, "error", err)
		matches = nil
	}
	p.matches = matches

	chosen := o.selector.Select(p.tc, matches)
	opt, err := o.builder.Build(chosen, p.tc, o.selector.Similar(matches))
	if err != nil {
		return nil, err
	}
	p.opt = opt

	o.cache.RecordOutcome(p.cacheHit())
	o.metrics.IncrementCounter(telemetry.MetricStrategyPrefix+string(opt.Strategy), 1)

	if !p.cacheHit() {
		p.model = o.chooseModel(p.tc)
		p.client = o.gateway
		if req.APIKey != "" {
			p.client = o.gateway.WithAPIKey(req.APIKey)
		}
		opt.CostEstimate = o.pricing.Cost(firstNonEmpty(p.model, p.client.Name()), opt.InputTokens, opt.OutputTokens)
	}

	o.logger.Debug("Planned summarization",
		"request_id", p.requestID,
		"strategy", opt.Strategy,
		"domain", p.tc.Domain,
		"complexity", p.tc.Complexity,
		"tokens", p.tc.EstimatedTokens,
		"model", p.model,
		"cost_estimate", opt.CostEstimate)
	return p, nil
}

// chooseModel picks the model for a request. A configured override always wins.
func (o *Orchestrator) chooseModel(tc strategy.TextContext) string {
	switch {
	case o.models.Override != "":
		return o.models.Override
	case tc.Complexity > complexModelThreshold && tc.CostBudget > o.selector.Thresholds().ChunkBudget:
		return firstNonEmpty(o.models.Complex, o.models.Default)
	case tc.EstimatedTokens > longModelTokens:
		return firstNonEmpty(o.models.Long, o.models.Default)
	default:
		return o.models.Default
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (o *Orchestrator) gatewayRequest(p *plan) gateway.Request {
	return gateway.Request{
		Model:       p.model,
		System:      prompt.SystemInstruction,
		Prompt:      p.opt.Prompt,
		MaxTokens:   p.opt.OutputTokens,
		Temperature: o.temperature,
		Source:      p.tc.Text,
	}
}

// Summarize produces a summary, serving it from the cache when an
// almost identical text was summarised before.
func (o *Orchestrator) Summarize(ctx context.Context, req Request) (*SummaryResult, error) {
	o.metrics.IncrementCounter(telemetry.MetricRequests, 1)
	o.metrics.RecordTimestamp(telemetry.MetricLastRequest)

	p, err := o.prepare(ctx, req)
	if err != nil {
		o.metrics.IncrementCounter(telemetry.MetricRequestsFailed, 1)
		return nil, err
	}

	if p.cacheHit() {
		result := o.result(p, p.matches[0].Summary, gateway.Usage{}, "", 0)
		o.record(ctx, result)
		return result, nil
	}

	callStart := time.Now()
	o.metrics.IncrementCounter(telemetry.MetricLLMCalls, 1)
	resp, err := p.client.Complete(ctx, o.gatewayRequest(p))
	o.metrics.RecordTimer(telemetry.MetricLLMResponseTime, time.Since(callStart))
	if err != nil {
		o.fail(p, err)
		return nil, err
	}

	summary := strings.TrimSpace(resp.Text)
	usage := o.fillUsage(p, resp.Usage, summary)
	model := firstNonEmpty(resp.Model, p.model, p.client.Name())
	cost := o.pricing.Cost(model, usage.PromptTokens, usage.CompletionTokens)

	result := o.result(p, summary, usage, model, cost)
	o.remember(ctx, p, summary)
	o.record(ctx, result)
	return result, nil
}

// SummarizeStream is the streaming form of Summarize. Validation errors are
// returned directly; every later failure arrives as a Fragment with Err set.
// Unless ctx is cancelled the channel ends with exactly one Done fragment and
// is then closed. Cancelling ctx closes the provider stream.
func (o *Orchestrator) SummarizeStream(ctx context.Context, req Request) (<-chan Fragment, error) {
	o.metrics.IncrementCounter(telemetry.MetricStreamRequests, 1)
	o.metrics.RecordTimestamp(telemetry.MetricLastRequest)

	p, err := o.prepare(ctx, req)
	if err != nil {
		o.metrics.IncrementCounter(telemetry.MetricRequestsFailed, 1)
		return nil, err
	}

	out := make(chan Fragment)
	if p.cacheHit() {
		go o.replayCached(ctx, p, out)
	} else {
		go o.relay(ctx, p, out)
	}
	return out, nil
}

func send(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// replayCached emits a cached summary one word at a time.
func (o *Orchestrator) replayCached(ctx context.Context, p *plan, out chan<- Fragment) {
	defer close(out)

	summary := p.matches[0].Summary
	words := gateway.NewWordStream(ctx, summary, "", gateway.Usage{})
	for words.Next() {
		if !send(ctx, out, Fragment{Text: words.Current()}) {
			o.metrics.IncrementCounter(telemetry.MetricStreamCanceled, 1)
			return
		}
	}
	if words.Err() != nil {
		o.metrics.IncrementCounter(telemetry.MetricStreamCanceled, 1)
		return
	}

	o.record(ctx, o.result(p, summary, gateway.Usage{}, "", 0))
	send(ctx, out, Fragment{Done: true})
}

// relay forwards provider fragments in order, then caches and records the
// completed summary.
func (o *Orchestrator) relay(ctx context.Context, p *plan, out chan<- Fragment) {
	defer close(out)

	callStart := time.Now()
	o.metrics.IncrementCounter(telemetry.MetricLLMCalls, 1)

	stream, err := p.client.Stream(ctx, o.gatewayRequest(p))
	if err != nil {
		o.fail(p, err)
		if send(ctx, out, Fragment{Err: err}) {
			send(ctx, out, Fragment{Done: true})
		}
		return
	}
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		fragment := stream.Current()
		b.WriteString(fragment)
		if !send(ctx, out, Fragment{Text: fragment}) {
			o.canceled(p)
			return
		}
	}
	o.metrics.RecordTimer(telemetry.MetricLLMResponseTime, time.Since(callStart))

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			o.canceled(p)
			return
		}
		o.fail(p, err)
		if send(ctx, out, Fragment{Err: err}) {
			send(ctx, out, Fragment{Done: true})
		}
		return
	}

	summary := strings.TrimSpace(b.String())
	usage := o.fillUsage(p, stream.Usage(), summary)
	model := firstNonEmpty(stream.Model(), p.model, p.client.Name())

	o.remember(ctx, p, summary)
	o.record(ctx, o.result(p, summary, usage, model, o.pricing.Cost(model, usage.PromptTokens, usage.CompletionTokens)))
	send(ctx, out, Fragment{Done: true})
}

func (o *Orchestrator) canceled(p *plan) {
	o.metrics.IncrementCounter(telemetry.MetricStreamCanceled, 1)
	o.logger.Info("Stream canceled by consumer", "request_id", p.requestID)
}

func (o *Orchestrator) fail(p *plan, err error) {
	o.metrics.IncrementCounter(telemetry.MetricLLMFailures, 1)
	o.metrics.IncrementCounter(telemetry.MetricRequestsFailed, 1)
	errortypes.LogError(o.logger.With("request_id", p.requestID, "strategy", p.opt.Strategy), err)
}

// fillUsage substitutes local estimates for usage the provider did not report.
func (o *Orchestrator) fillUsage(p *plan, u gateway.Usage, summary string) gateway.Usage {
	if u.PromptTokens == 0 {
		u.PromptTokens = p.opt.InputTokens
	}
	if u.CompletionTokens == 0 {
		u.CompletionTokens = o.estimator.CountTokens(summary)
	}
	return u
}

// remember stores a fresh summary in the cache. Failures are logged only.
func (o *Orchestrator) remember(ctx context.Context, p *plan, summary string) {
	if summary == "" {
		return
	}
	if err := o.cache.Insert(ctx, p.tc.Text, summary, string(p.opt.Strategy)); err != nil {
		o.logger.Warn("Failed to cache summary", "request_id", p.requestID, "error", err)
	}
}

func (o *Orchestrator) result(p *plan, summary string, usage gateway.Usage, model string, cost float64) *SummaryResult {
	return &SummaryResult{
		Summary:          summary,
		OriginalLength:   p.tc.WordCount,
		SummaryLength:    tokenizer.CountWords(summary),
		Strategy:         p.opt.Strategy,
		Domain:           p.tc.Domain,
		Complexity:       p.tc.Complexity,
		Model:            model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Cost:             cost,
		CacheHit:         p.cacheHit(),
		RequestID:        p.requestID,
		Duration:         time.Since(p.start),
	}
}

// record writes metrics and the ledger row for a finished request.
func (o *Orchestrator) record(ctx context.Context, r *SummaryResult) {
	o.metrics.RecordTimer(telemetry.MetricRequestDuration, r.Duration)
	o.metrics.IncrementCounter(telemetry.MetricLLMInputTokens, int64(r.PromptTokens))
	o.metrics.IncrementCounter(telemetry.MetricLLMOutputTokens, int64(r.CompletionTokens))
	o.metrics.IncrementCounter(telemetry.MetricLLMCostMicros, int64(r.Cost*1e6))

	o.logger.Info("Summarization complete",
		"request_id", r.RequestID,
		"strategy", r.Strategy,
		"cache_hit", r.CacheHit,
		"model", r.Model,
		"words", r.SummaryLength,
		"cost", r.Cost,
		"duration", r.Duration)

	if o.ledger == nil {
		return
	}
	err := o.ledger.Record(ctx, ledger.Usage{
		RequestID:        r.RequestID,
		Strategy:         string(r.Strategy),
		Model:            r.Model,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		Cost:             r.Cost,
		CacheHit:         r.CacheHit,
	})
	if err != nil {
		errortypes.LogError(o.logger, err)
	}
}

// ValidateKey checks key against the configured provider. An invalid key is
// reported through the returned values, not as an error.
func (o *Orchestrator) ValidateKey(ctx context.Context, key string) (valid bool, message string, provider string) {
	provider = o.gateway.Name()
	if strings.TrimSpace(key) == "" {
		return false, "API key is required", provider
	}
	if err := o.gateway.ValidateKey(ctx, key); err != nil {
		o.logger.Info("API key validation failed", "provider", provider, "type", errortypes.TypeOf(err))
		return false, "API key validation failed: " + err.Error(), provider
	}
	return true, "API key is valid", provider
}

// FindSimilar exposes the cache lookup for tools that browse past summaries.
func (o *Orchestrator) FindSimilar(ctx context.Context, text string, k int) ([]cache.Match, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errortypes.EmptyInputError()
	}
	return o.cache.FindSimilar(ctx, text, k)
}

// Metrics returns the orchestrator's metrics collector.
func (o *Orchestrator) Metrics() *telemetry.MetricsCollector {
	return o.metrics
}

// Provider returns the name of the configured gateway client.
func (o *Orchestrator) Provider() string {
	return o.gateway.Name()
}
