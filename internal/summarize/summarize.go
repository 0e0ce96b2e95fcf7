// Package summarize provides extractive text summarization for place
// reviews. The summarizer is an optional collaborator: callers check
// Available and fall back to joining the first few reviews when it is
// absent or fails.
package summarize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Summarizer condenses free-form review text into a few sentences.
type Summarizer interface {
	// Available reports whether summarization can be performed.
	Available() bool

	// Summarize returns up to maxSentences extracted sentences.
	Summarize(text string, maxSentences int) (string, error)
}

// JoinFirst is the degraded fallback: the first n reviews joined with
// spaces, or a placeholder when there are none.
func JoinFirst(reviews []string, n int) string {
	var kept []string
	for _, r := range reviews {
		if strings.TrimSpace(r) == "" {
			continue
		}
		kept = append(kept, r)
		if len(kept) >= n {
			break
		}
	}
	if len(kept) == 0 {
		return "No reviews available"
	}
	return strings.Join(kept, " ")
}

// Extractive is a frequency-scored extractive summarizer. Sentences
// are ranked by the summed frequency of their non-stopword terms and
// the top ranks are returned in original order. Stopwords cover German
// (the review corpus language) minus negations, which flip sentence
// meaning and must survive filtering.
type Extractive struct {
	stopwords map[string]struct{}
}

// NewExtractive creates the extractive summarizer with the built-in
// German stopword list.
func NewExtractive() *Extractive {
	sw := make(map[string]struct{}, len(germanStopwords))
	for _, w := range germanStopwords {
		if _, keep := negationKeeplist[w]; keep {
			continue
		}
		sw[w] = struct{}{}
	}
	return &Extractive{stopwords: sw}
}

// Available implements Summarizer.
func (e *Extractive) Available() bool { return true }

var sentenceSplit = regexp.MustCompile(`[.!?]+\s+|[.!?]+$`)
var wordSplit = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Summarize implements Summarizer.
func (e *Extractive) Summarize(text string, maxSentences int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("summarize: empty input")
	}
	if maxSentences <= 0 {
		maxSentences = 3
	}

	sentences := splitSentences(text)
	if len(sentences) <= maxSentences {
		return strings.Join(sentences, " "), nil
	}

	// Term frequencies over the whole document, stopwords excluded.
	freq := make(map[string]int)
	for _, s := range sentences {
		for _, w := range wordSplit.FindAllString(strings.ToLower(s), -1) {
			if _, skip := e.stopwords[w]; skip {
				continue
			}
			freq[w]++
		}
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		words := wordSplit.FindAllString(strings.ToLower(s), -1)
		var sum int
		for _, w := range words {
			sum += freq[w]
		}
		score := 0.0
		if len(words) > 0 {
			// Normalize by length so long rambling sentences don't win by bulk.
			score = float64(sum) / float64(len(words))
		}
		ranked[i] = scored{index: i, score: score}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	picked := ranked[:maxSentences]
	sort.Slice(picked, func(a, b int) bool {
		return picked[a].index < picked[b].index
	})

	out := make([]string, len(picked))
	for i, p := range picked {
		out[i] = sentences[p.index]
	}
	return strings.Join(out, " "), nil
}

// splitSentences breaks text on terminal punctuation, keeping the
// punctuation attached to its sentence.
func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceSplit.FindAllStringIndex(text, -1) {
		s := strings.TrimSpace(text[last:loc[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// Unavailable is a Summarizer that reports no capability. Used when
// summarization is disabled so call sites exercise the fallback path
// without nil checks.
type Unavailable struct{}

// Available implements Summarizer.
func (Unavailable) Available() bool { return false }

// Summarize implements Summarizer.
func (Unavailable) Summarize(string, int) (string, error) {
	return "", fmt.Errorf("summarize: not available")
}

// negationKeeplist holds words excluded from the stopword list because
// they negate sentence meaning.
var negationKeeplist = map[string]struct{}{
	"nicht": {},
	"nein":  {},
	"kein":  {},
}

var germanStopwords = []string{
	"aber", "alle", "allem", "allen", "aller", "alles", "als", "also",
	"am", "an", "andere", "auch", "auf", "aus", "bei", "bin", "bis",
	"bist", "da", "damit", "dann", "das", "dass", "dein", "dem", "den",
	"der", "des", "die", "dies", "diese", "doch", "dort", "du", "durch",
	"ein", "eine", "einem", "einen", "einer", "eines", "er", "es", "für",
	"gegen", "gewesen", "hab", "habe", "haben", "hat", "hatte", "hier",
	"hin", "hinter", "ich", "ihr", "ihre", "im", "in", "ist", "ja",
	"jede", "jedem", "jeden", "jeder", "jedes", "kann", "kein", "können",
	"könnte", "machen", "man", "mein", "meine", "mit", "muss", "nach",
	"nein", "nicht", "noch", "nun", "nur", "ob", "oder", "ohne", "sehr",
	"sein", "seine", "sich", "sie", "sind", "so", "über", "um", "und",
	"uns", "unser", "unter", "vom", "von", "vor", "war", "waren", "was",
	"weiter", "wenn", "werde", "werden", "wie", "wieder", "wir", "wird",
	"wo", "zu", "zum", "zur",
}
