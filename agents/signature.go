// Package agents classifies user-agent strings against a reference table of
// known automated agents and aggregates their activity.
package agents

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"geo-insights/models"
)

var ErrInvalidSignature = errors.New("agents: invalid signature")

// boilerplateSuffixes are trimmed from reference names before they become
// patterns. Longer entries come first so " bot crawler" wins over " crawler".
var boilerplateSuffixes = []string{
	" bot crawler",
	" web crawler",
	" user-agent",
	" user agent",
	" crawler",
	" spider",
}

var trailingParens = regexp.MustCompile(`\s*\([^()]*\)\s*$`)

// LoadSignatures turns reference rows into signatures, keeping row order.
// Blank and "Unknown" names are skipped, and a repeated name keeps its first row.
func LoadSignatures(rows []models.SignatureRow) ([]models.AgentSignature, error) {
	seen := make(map[string]bool)
	sigs := make([]models.AgentSignature, 0, len(rows))

	for i, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" || strings.EqualFold(name, models.UnknownAgent) {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		ranges, err := splitRanges(row.IPRanges)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d (%s): %v", ErrInvalidSignature, i+1, name, err)
		}

		pattern := BuildPattern(name)
		if override := strings.TrimSpace(row.Pattern); override != "" {
			if _, err := regexp.Compile(override); err == nil {
				pattern = override
			}
		}

		sigs = append(sigs, models.AgentSignature{
			ID:       SignatureID(name),
			Name:     name,
			Provider: strings.TrimSpace(row.Provider),
			Category: strings.TrimSpace(row.Category),
			Pattern:  pattern,
			IPRanges: ranges,
		})
	}
	return sigs, nil
}

// BuildPattern returns a case-insensitive literal rule for a reference name.
func BuildPattern(name string) string {
	return "(?i)" + regexp.QuoteMeta(identifyingName(name))
}

func identifyingName(name string) string {
	core := strings.TrimSpace(name)
	if i := strings.Index(core, " - "); i > 0 {
		core = core[:i]
	}
	core = trailingParens.ReplaceAllString(core, "")

	for trimmed := true; trimmed; {
		trimmed = false
		lower := strings.ToLower(core)
		for _, suffix := range boilerplateSuffixes {
			if strings.HasSuffix(lower, suffix) && len(core) > len(suffix) {
				core = strings.TrimSpace(core[:len(core)-len(suffix)])
				trimmed = true
				break
			}
		}
	}

	if core == "" {
		return strings.TrimSpace(name)
	}
	return core
}

// SignatureID is a stable identifier derived from the case-folded name, so
// the same reference table always yields the same keys.
func SignatureID(name string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(name))))
	return "sig_" + hex.EncodeToString(sum[:8])
}

func splitRanges(raw string) ([]string, error) {
	var out []string
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '|'
	}) {
		prefix, err := parseRange(field)
		if err != nil {
			return nil, err
		}
		out = append(out, prefix.String())
	}
	return out, nil
}

// parseRange accepts CIDR notation or a single address.
func parseRange(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
