// Package prompt turns a selected strategy into the prompt sent to the language
// model, together with its output budget and a confidence score.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/localrivet/smartsummary/internal/cache"
	"github.com/localrivet/smartsummary/internal/classifier"
	"github.com/localrivet/smartsummary/internal/errortypes"
	"github.com/localrivet/smartsummary/internal/strategy"
	"github.com/localrivet/smartsummary/internal/tokenizer"
)

// SystemInstruction is sent as the system message with every prompt.
const SystemInstruction = "You are an expert summarizer focused on clarity and conciseness."

const (
	// MinTargetWords is the smallest word target any strategy asks for.
	MinTargetWords = 10

	compressTopSentences  = 5
	compressShortMax      = 3
	chunkWords            = 300
	chunkMaxSections      = 3
	shallowMaxExamples    = 2
	shallowExampleChars   = 200
	sentenceLengthDivisor = 20.0
)

// Templates holds the per-domain instruction used by the template strategy.
var Templates = map[classifier.Domain]string{
	classifier.DomainTechnical: "Summarize this technical content, focusing on key concepts, methodologies, and outcomes",
	classifier.DomainBusiness:  "Provide a business summary highlighting main objectives, strategies, and results",
	classifier.DomainAcademic:  "Summarize this academic content, emphasizing research findings and conclusions",
	classifier.DomainLegal:     "Summarize this legal content, focusing on main clauses and implications",
	classifier.DomainMedical:   "Summarize this medical content, noting conditions, treatments, and patient outcomes",
	classifier.DomainNews:      "Create a news summary with key facts and developments",
	classifier.DomainGeneral:   "Provide a clear, concise summary of the main points",
}

// OptimizationResult is the outcome of building a prompt for one request.
type OptimizationResult struct {
	Strategy     strategy.Strategy `json:"strategy"`
	Prompt       string            `json:"-"`
	InputTokens  int               `json:"input_tokens"`
	OutputTokens int               `json:"output_tokens"`
	TargetWords  int               `json:"target_words"`
	Confidence   float64           `json:"confidence"`
	CostEstimate float64           `json:"cost_estimate"`
	Examples     []cache.Match     `json:"-"`
}

// CostFunc prices a call from its input and output token counts.
type CostFunc func(inputTokens, outputTokens int) float64

type buildFunc func(tc strategy.TextContext, examples []cache.Match) *OptimizationResult

// Builder builds prompts through a dispatch table keyed by strategy.
type Builder struct {
	estimator tokenizer.Estimator
	cost      CostFunc
	builders  map[strategy.Strategy]buildFunc
}

// NewBuilder creates a Builder. cost may be nil, in which case estimates are zero.
func NewBuilder(est tokenizer.Estimator, cost CostFunc) *Builder {
	if est == nil {
		est = tokenizer.NewHeuristicEstimator()
	}
	b := &Builder{estimator: est, cost: cost}
	b.builders = map[strategy.Strategy]buildFunc{
		strategy.CacheHit:     b.cacheHit,
		strategy.Compress:     b.compress,
		strategy.Chunk:        b.chunk,
		strategy.Template:     b.template,
		strategy.ShallowTrain: b.shallowTrain,
	}
	return b
}

// Build produces the prompt for s. Strategies with nothing to work with fall back
// to the template strategy, and the returned Strategy reflects that.
func (b *Builder) Build(s strategy.Strategy, tc strategy.TextContext, examples []cache.Match) (*OptimizationResult, error) {
	fn, ok := b.builders[s]
	if !ok {
		return nil, errortypes.InternalError(fmt.Errorf("unknown strategy %q", s), "cannot build prompt")
	}

	res := fn(tc, examples)
	if res.Strategy != strategy.CacheHit {
		res.InputTokens = b.estimator.CountTokens(SystemInstruction) + b.estimator.CountTokens(res.Prompt)
		if b.cost != nil {
			res.CostEstimate = b.cost(res.InputTokens, res.OutputTokens)
		}
	}
	return res, nil
}

// TargetWords returns the word target for a strategy given the requested maximum length.
func TargetWords(s strategy.Strategy, maxLength int) int {
	var n int
	switch s {
	case strategy.ShallowTrain:
		n = maxLength / 4
	case strategy.Compress:
		n = maxLength / 5
	default:
		n = maxLength / 3
	}
	if n < MinTargetWords {
		n = MinTargetWords
	}
	return n
}

func newResult(s strategy.Strategy, tc strategy.TextContext, confidence float64) *OptimizationResult {
	target := TargetWords(s, tc.MaxLength)
	return &OptimizationResult{
		Strategy:     s,
		TargetWords:  target,
		OutputTokens: tokenizer.EstimateOutputTokens(target),
		Confidence:   confidence,
	}
}

func limit(words int) string {
	return fmt.Sprintf("in at most %d words", words)
}

func (b *Builder) cacheHit(strategy.TextContext, []cache.Match) *OptimizationResult {
	return &OptimizationResult{Strategy: strategy.CacheHit, Confidence: 1.0}
}

func (b *Builder) template(tc strategy.TextContext, _ []cache.Match) *OptimizationResult {
	res := newResult(strategy.Template, tc, 0.9)

	instruction, ok := Templates[tc.Domain]
	if !ok {
		instruction = Templates[classifier.DomainGeneral]
	}
	res.Prompt = fmt.Sprintf("%s %s:\n\n%s", instruction, limit(res.TargetWords), tc.Text)
	return res
}

type scoredSentence struct {
	text  string
	score float64
}

func (b *Builder) compress(tc strategy.TextContext, _ []cache.Match) *OptimizationResult {
	sentences := tokenizer.Sentences(tc.Text)
	if len(sentences) <= compressShortMax {
		res := newResult(strategy.Compress, tc, 0.9)
		res.Prompt = fmt.Sprintf("Summarize concisely %s: %s", limit(res.TargetWords), tc.Text)
		return res
	}

	scored := make([]scoredSentence, len(sentences))
	last := len(sentences) - 1
	for i, s := range sentences {
		position := 0.5
		if i < 2 || i > last-2 {
			position = 1.0
		}
		length := float64(tokenizer.CountWords(s)) / sentenceLengthDivisor
		if length > 1 {
			length = 1
		}
		scored[i] = scoredSentence{text: s, score: position + length}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > compressTopSentences {
		scored = scored[:compressTopSentences]
	}

	picked := make([]string, len(scored))
	for i, s := range scored {
		picked[i] = s.text
	}

	res := newResult(strategy.Compress, tc, 0.8)
	res.Prompt = fmt.Sprintf("Summarize this key information %s: %s", limit(res.TargetWords), strings.Join(picked, ". "))
	return res
}

func (b *Builder) chunk(tc strategy.TextContext, examples []cache.Match) *OptimizationResult {
	words := tokenizer.Words(tc.Text)
	if len(words) <= chunkWords {
		return b.template(tc, examples)
	}

	var sections []string
	for start := 0; start < len(words); start += chunkWords {
		end := min(start+chunkWords, len(words))
		sections = append(sections, strings.Join(words[start:end], " "))
	}

	res := newResult(strategy.Chunk, tc, 0.85)

	var p strings.Builder
	fmt.Fprintf(&p, "Summarize these %d sections separately, then provide an overall summary %s:\n\n",
		len(sections), limit(res.TargetWords))
	for i, s := range sections {
		if i == chunkMaxSections {
			break
		}
		fmt.Fprintf(&p, "Section %d: %s\n\n", i+1, s)
	}
	res.Prompt = p.String()
	return res
}

func (b *Builder) shallowTrain(tc strategy.TextContext, examples []cache.Match) *OptimizationResult {
	if len(examples) == 0 {
		return b.template(tc, examples)
	}
	if len(examples) > shallowMaxExamples {
		examples = examples[:shallowMaxExamples]
	}

	confidence := 0.75
	if len(examples) == shallowMaxExamples {
		confidence = 0.95
	}
	res := newResult(strategy.ShallowTrain, tc, confidence)
	res.Examples = examples

	var p strings.Builder
	p.WriteString("Based on these examples:\n")
	for _, ex := range examples {
		fmt.Fprintf(&p, "Text: %s...\nSummary: %s\n\n", tokenizer.TruncateRunes(ex.Text, shallowExampleChars), ex.Summary)
	}
	fmt.Fprintf(&p, "Now summarize this text %s: %s", limit(res.TargetWords), tc.Text)
	res.Prompt = p.String()
	return res
}
