package language

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// candidates is the fixed set of languages the detector distinguishes.
// A fixed set keeps confidence values stable across engine restarts.
var candidates = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Japanese,
	lingua.Korean,
	lingua.Chinese,
	lingua.Vietnamese,
	lingua.Arabic,
	lingua.Hindi,
	lingua.Russian,
}

// Detector estimates the dominant language of transcript text. It is purely
// computational: no side effects, deterministic for identical input, safe for
// concurrent use.
type Detector struct {
	inner lingua.LanguageDetector
}

// NewDetector builds a detector over the fixed candidate set.
func NewDetector() *Detector {
	return &Detector{
		inner: lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidates...).
			Build(),
	}
}

// Detect returns the dominant language of text as a lowercase ISO 639-1 code.
// Empty or whitespace-only text yields ok=false, which is a no-result, not an
// error. The returned code is always a key of Hypotheses(text) carrying the
// (or a tied) maximum confidence.
func (d *Detector) Detect(text string) (code string, ok bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	hyp := d.Hypotheses(text)
	if len(hyp) == 0 {
		return "", false
	}
	return dominant(hyp), true
}

// Hypotheses returns a confidence value in [0,1] per candidate language code
// for the given text. Empty input returns an empty map; any non-empty input,
// including letterless text such as digits, yields at least one entry.
func (d *Detector) Hypotheses(text string) map[string]float64 {
	out := make(map[string]float64)
	if strings.TrimSpace(text) == "" {
		return out
	}
	for _, cv := range d.inner.ComputeLanguageConfidenceValues(text) {
		v := cv.Value()
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		out[isoCode(cv.Language())] = v
	}
	// Letterless input can leave lingua with nothing to score. Zero-confidence
	// entries keep the map non-empty so Detect still resolves one code.
	if len(out) == 0 {
		for _, l := range candidates {
			out[isoCode(l)] = 0
		}
	}
	return out
}

// dominant picks the highest-confidence code. Ties break toward the
// lexicographically smallest code so mixed-language input still yields one
// deterministic decision.
func dominant(hyp map[string]float64) string {
	best := ""
	bestConf := -1.0
	for code, conf := range hyp {
		if conf > bestConf || (conf == bestConf && code < best) {
			best = code
			bestConf = conf
		}
	}
	return best
}

func isoCode(l lingua.Language) string {
	return strings.ToLower(l.IsoCode639_1().String())
}
