package agents

import (
	"net/netip"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"geo-insights/models"
)

// Matcher classifies a single user-agent string.
type Matcher interface {
	Match(userAgent string) models.MatchResult
}

type compiled struct {
	sig    models.AgentSignature
	re     *regexp.Regexp
	ranges []netip.Prefix
}

// FirstMatch evaluates signatures in load order and returns the first whose
// pattern occurs in the user agent, even when a later one would fit better.
type FirstMatch struct {
	rules []compiled
}

// NewFirstMatch compiles every signature's pattern. A pattern that no longer
// compiles falls back to the literal rule built from the name.
func NewFirstMatch(sigs []models.AgentSignature, logger *zap.Logger) *FirstMatch {
	if logger == nil {
		logger = zap.NewNop()
	}
	fm := &FirstMatch{rules: make([]compiled, 0, len(sigs))}
	for _, sig := range sigs {
		re, err := regexp.Compile(sig.Pattern)
		if err != nil || sig.Pattern == "" {
			logger.Warn("Falling back to name pattern",
				zap.String("signature", sig.Name),
				zap.String("pattern", sig.Pattern),
				zap.Error(err))
			re = regexp.MustCompile(BuildPattern(sig.Name))
		}
		fm.rules = append(fm.rules, compiled{sig: sig, re: re})
	}
	return fm
}

func (fm *FirstMatch) Match(userAgent string) models.MatchResult {
	if userAgent == "" {
		return unknown()
	}
	tokens := tokenSpans(userAgent)
	for _, rule := range fm.rules {
		hits := rule.re.FindAllStringIndex(userAgent, -1)
		if len(hits) == 0 {
			continue
		}
		confidence := models.ConfidenceMedium
		for _, hit := range hits {
			if coversToken(hit, tokens) {
				confidence = models.ConfidenceHigh
				break
			}
		}
		return models.MatchResult{
			SignatureID:  rule.sig.ID,
			DetectedName: rule.sig.Name,
			Confidence:   confidence,
		}
	}
	return unknown()
}

func unknown() models.MatchResult {
	return models.MatchResult{
		DetectedName: models.UnknownAgent,
		Confidence:   models.ConfidenceNone,
	}
}

type span struct {
	start, end, productEnd int
}

// tokenSpans splits a user agent on whitespace and ;(), separators. The
// product part of a token ends at its first '/', as in "GPTBot/1.0".
func tokenSpans(ua string) []span {
	var spans []span
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		s := span{start: start, end: end, productEnd: end}
		if i := strings.IndexByte(ua[start:end], '/'); i > 0 {
			s.productEnd = start + i
		}
		spans = append(spans, s)
		start = -1
	}
	for i, r := range ua {
		switch r {
		case ' ', '\t', ';', '(', ')', ',':
			flush(i)
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(ua))
	return spans
}

func coversToken(hit []int, tokens []span) bool {
	for _, t := range tokens {
		if hit[0] == t.start && (hit[1] == t.end || hit[1] == t.productEnd) {
			return true
		}
	}
	return false
}

// Classifier layers weaker evidence over a Matcher: an explicit bot label on
// the log row, or a client address inside a signature's published ranges.
// Either yields low confidence.
type Classifier struct {
	matcher Matcher
	byName  map[string]models.AgentSignature
	ranges  []compiled
}

func NewClassifier(matcher Matcher, sigs []models.AgentSignature) *Classifier {
	c := &Classifier{
		matcher: matcher,
		byName:  make(map[string]models.AgentSignature, len(sigs)),
	}
	for _, sig := range sigs {
		key := strings.ToLower(sig.Name)
		if _, ok := c.byName[key]; !ok {
			c.byName[key] = sig
		}
		var ranges []netip.Prefix
		for _, r := range sig.IPRanges {
			if p, err := parseRange(r); err == nil {
				ranges = append(ranges, p)
			}
		}
		if len(ranges) > 0 {
			c.ranges = append(c.ranges, compiled{sig: sig, ranges: ranges})
		}
	}
	return c
}

func (c *Classifier) Classify(rec models.LogRecord) models.MatchResult {
	if res := c.matcher.Match(rec.UserAgent); res.Matched() {
		return res
	}

	label := strings.ToLower(strings.TrimSpace(rec.AgentLabel))
	if label != "" && label != strings.ToLower(models.UnknownAgent) {
		if sig, ok := c.byName[label]; ok {
			return lowConfidence(sig)
		}
	}

	if addr, err := netip.ParseAddr(strings.TrimSpace(rec.IP)); err == nil {
		addr = addr.Unmap()
		for _, rule := range c.ranges {
			for _, p := range rule.ranges {
				if p.Contains(addr) {
					return lowConfidence(rule.sig)
				}
			}
		}
	}
	return unknown()
}

func lowConfidence(sig models.AgentSignature) models.MatchResult {
	return models.MatchResult{
		SignatureID:  sig.ID,
		DetectedName: sig.Name,
		Confidence:   models.ConfidenceLow,
	}
}
