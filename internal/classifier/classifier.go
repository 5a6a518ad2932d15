// Package classifier assigns a coarse domain label and a complexity score to
// input text using keyword counts and lexical statistics.
package classifier

import (
	"strings"
	"unicode"

	"github.com/localrivet/smartsummary/internal/tokenizer"
)

// Domain is a coarse category of input text used to pick a prompt template.
type Domain string

// Domains, in tie-breaking order.
const (
	DomainTechnical Domain = "technical"
	DomainBusiness  Domain = "business"
	DomainAcademic  Domain = "academic"
	DomainLegal     Domain = "legal"
	DomainMedical   Domain = "medical"
	DomainNews      Domain = "news"
	DomainGeneral   Domain = "general"
)

// Domains lists every label in enumeration order. Ties are broken by position in this slice.
var Domains = []Domain{
	DomainTechnical,
	DomainBusiness,
	DomainAcademic,
	DomainLegal,
	DomainMedical,
	DomainNews,
	DomainGeneral,
}

// DefaultKeywords maps each domain to the lowercase keywords counted for it.
// DomainGeneral has no keywords; it is the fallback when nothing matches.
var DefaultKeywords = map[Domain][]string{
	DomainTechnical: {"algorithm", "system", "code", "software", "programming", "api", "database", "server", "function"},
	DomainBusiness:  {"revenue", "profit", "strategy", "market", "sales", "budget", "customer", "quarter"},
	DomainAcademic:  {"research", "study", "analysis", "methodology", "findings", "hypothesis", "journal"},
	DomainLegal:     {"contract", "agreement", "clause", "legal", "court", "liability", "statute"},
	DomainMedical:   {"patient", "clinical", "diagnosis", "treatment", "symptom", "disease", "medication"},
	DomainNews:      {"reported", "according", "statement", "official", "announced", "spokesperson"},
}

// Weights controls the complexity score. Each component is normalised to [0,1]
// by dividing by its Norm value and clipping, then combined with its weight.
type Weights struct {
	SentenceLength     float64
	SentenceLengthNorm float64 // words per sentence that counts as fully complex
	WordLength         float64
	WordLengthNorm     float64 // characters per word that counts as fully complex
	Punctuation        float64
	PunctuationNorm    float64 // punctuation marks per word that counts as fully complex
}

// DefaultWeights returns the weights used when none are configured.
func DefaultWeights() Weights {
	return Weights{
		SentenceLength:     0.4,
		SentenceLengthNorm: 25,
		WordLength:         0.4,
		WordLengthNorm:     10,
		Punctuation:        0.2,
		PunctuationNorm:    0.5,
	}
}

// Analysis is the result of classifying a text.
type Analysis struct {
	Domain     Domain  `json:"domain"`
	Complexity float64 `json:"complexity"`
}

// Classifier is a pure, deterministic text classifier. The zero value is not usable; call New.
type Classifier struct {
	keywords map[Domain][]string
	weights  Weights
}

// New creates a Classifier. A nil keyword map selects DefaultKeywords.
func New(keywords map[Domain][]string, weights Weights) *Classifier {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	return &Classifier{keywords: keywords, weights: weights}
}

// NewDefault creates a Classifier with the default keywords and weights.
func NewDefault() *Classifier {
	return New(nil, DefaultWeights())
}

// Classify returns the domain and complexity of text.
func (c *Classifier) Classify(text string) Analysis {
	return Analysis{
		Domain:     c.DetectDomain(text),
		Complexity: c.Complexity(text),
	}
}

// DetectDomain counts case-insensitive keyword occurrences per domain and returns
// the domain with the highest count. Ties go to the domain listed first in Domains.
func (c *Classifier) DetectDomain(text string) Domain {
	lower := strings.ToLower(text)

	best := DomainGeneral
	bestScore := 0
	for _, d := range Domains {
		score := 0
		for _, kw := range c.keywords[d] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

// Complexity scores text in [0,1] from average sentence length, average word
// length and punctuation density.
func (c *Classifier) Complexity(text string) float64 {
	words := tokenizer.Words(text)
	if len(words) == 0 {
		return 0
	}

	sentences := len(tokenizer.Sentences(text))
	if sentences == 0 {
		sentences = 1
	}

	var letters, punct int
	for _, w := range words {
		for _, r := range w {
			if unicode.IsPunct(r) {
				punct++
				continue
			}
			letters++
		}
	}

	avgSentence := float64(len(words)) / float64(sentences)
	avgWord := float64(letters) / float64(len(words))
	punctPerWord := float64(punct) / float64(len(words))

	w := c.weights
	score := w.SentenceLength*norm(avgSentence, w.SentenceLengthNorm) +
		w.WordLength*norm(avgWord, w.WordLengthNorm) +
		w.Punctuation*norm(punctPerWord, w.PunctuationNorm)
	return clip01(score)
}

func norm(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clip01(v / max)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
