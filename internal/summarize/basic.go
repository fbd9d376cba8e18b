package summarize

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/lifewrapped/lw-engine/internal/model"
)

// maxSentences caps the extractive summary length.
const maxSentences = 4

// maxHighlights caps the keyword list.
const maxHighlights = 5

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true, "had": true,
	"has": true, "have": true, "i": true, "in": true, "is": true, "it": true,
	"my": true, "of": true, "on": true, "or": true, "so": true, "that": true,
	"the": true, "this": true, "to": true, "was": true, "we": true, "were": true,
	"with": true, "you": true, "about": true, "just": true, "like": true,
	"really": true, "very": true, "then": true, "them": true, "they": true,
}

// BasicEngine is local frequency-based extractive summarization. It has no
// external dependency and is the universal fallback tier: Available is
// unconditionally true and Summarize cannot fail for availability reasons.
type BasicEngine struct{}

func NewBasicEngine() *BasicEngine { return &BasicEngine{} }

func (e *BasicEngine) Tier() model.EngineTier             { return model.TierBasic }
func (e *BasicEngine) Name() string                       { return "extract" }
func (e *BasicEngine) Available(ctx context.Context) bool { return true }

func (e *BasicEngine) Phase() string {
	return "Extracting key moments"
}

func (e *BasicEngine) Summarize(ctx context.Context, t *model.Transcript, lang string, onProgress ProgressFunc) (*model.SummaryResult, error) {
	report(onProgress, 0.1)

	sentences := splitSentences(t.Text)
	freq := wordFrequencies(t.Text)
	report(onProgress, 0.5)

	type scored struct {
		index int
		text  string
		score float64
	}
	ranked := make([]scored, 0, len(sentences))
	for i, s := range sentences {
		ranked = append(ranked, scored{index: i, text: s, score: sentenceScore(s, freq)})
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	n := maxSentences
	if n > len(ranked) {
		n = len(ranked)
	}
	picked := ranked[:n]
	// Restore spoken order so the summary reads chronologically.
	sort.Slice(picked, func(a, b int) bool { return picked[a].index < picked[b].index })

	parts := make([]string, 0, n)
	for _, s := range picked {
		parts = append(parts, s.text)
	}
	report(onProgress, 0.9)

	return &model.SummaryResult{
		Text:               strings.Join(parts, " "),
		Highlights:         topKeywords(freq, maxHighlights),
		Tier:               model.TierBasic,
		Engine:             e.Name(),
		SourceTranscriptID: t.ID,
		GeneratedAt:        time.Now().UTC(),
	}, nil
}

// splitSentences breaks text on terminal punctuation. Good enough for spoken
// transcripts, which rarely contain abbreviations with trailing periods.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func wordFrequencies(text string) map[string]int {
	freq := make(map[string]int)
	for _, w := range tokenize(text) {
		if stopwords[w] || len(w) < 3 {
			continue
		}
		freq[w]++
	}
	return freq
}

func sentenceScore(sentence string, freq map[string]int) float64 {
	words := tokenize(sentence)
	if len(words) == 0 {
		return 0
	}
	total := 0
	for _, w := range words {
		total += freq[w]
	}
	return float64(total) / float64(len(words))
}

// topKeywords returns the n most frequent content words, ties broken
// alphabetically so output is deterministic.
func topKeywords(freq map[string]int, n int) []string {
	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(a, b int) bool {
		if freq[words[a]] != freq[words[b]] {
			return freq[words[a]] > freq[words[b]]
		}
		return words[a] < words[b]
	})
	if n > len(words) {
		n = len(words)
	}
	return words[:n]
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}
