package textstore

import "strings"

// ruleSet is an ordered, sanitized list of correction rules plus the
// longest active source length, cached so the rewriter doesn't recompute
// it per character.
type ruleSet struct {
	rules      []CorrectionRule
	longestLen int
}

func newRuleSet(rules []CorrectionRule) ruleSet {
	longest := 0
	for _, r := range rules {
		for _, s := range r.Sources {
			if s.Active && len(s.String) > longest {
				longest = len(s.String)
			}
		}
	}
	return ruleSet{rules: rules, longestLen: longest}
}

// sanitizeRules drops rules lacking any non-empty source or a replacement,
// and drops empty source strings from the rules that remain. Order is
// preserved, since rule order is semantically significant.
func sanitizeRules(rules []CorrectionRule) []CorrectionRule {
	out := make([]CorrectionRule, 0, len(rules))
	for _, r := range rules {
		if clean, ok := r.sanitized(); ok {
			out = append(out, clean)
		}
	}
	return out
}

// rewrite applies the rule set to text in a single left-to-right scan with a
// rolling buffer: append a character, try every rule
// in order against the current buffer, and on the first match emit the
// untouched prefix plus the replacement and restart scanning from the
// remainder. A rule firing stops the scan over the remaining rules for that
// character. If nothing fires and the buffer outgrows the longest active
// source, it is cut back to its last (longest-1) characters and the rest is
// emitted, so the buffer never grows without bound. A rule set with no
// active source rewrites nothing.
func (rs ruleSet) rewrite(text string) string {
	if len(rs.rules) == 0 || rs.longestLen == 0 {
		return text
	}

	var out strings.Builder
	buf := ""

	for _, ch := range text {
		buf += string(ch)
		buf = rs.drainMatches(buf, &out)
		if len(buf) > rs.longestLen {
			cut := len(buf) - rs.longestLen + 1
			out.WriteString(buf[:cut])
			buf = buf[cut:]
		}
	}
	out.WriteString(buf)
	return out.String()
}

// drainMatches repeatedly tries to fire a rule against buf, emitting the
// replacement each time one matches, until no rule fires.
func (rs ruleSet) drainMatches(buf string, out *strings.Builder) string {
	for {
		fired := false
		for _, rule := range rs.rules {
			if pos, src, ok := firstMatch(rule, buf); ok {
				out.WriteString(buf[:pos])
				out.WriteString(rule.Replacement)
				buf = buf[pos+len(src):]
				fired = true
				break
			}
		}
		if !fired {
			return buf
		}
	}
}

// firstMatch scans rule's active sources in the order they were configured
// and reports the first one that occurs anywhere in buf, matching the
// reference implementation (it does not search for the earliest-positioned
// match across sources — the first source in list order that matches wins,
// wherever in the buffer it occurs).
func firstMatch(rule CorrectionRule, buf string) (pos int, src string, ok bool) {
	for _, s := range rule.Sources {
		if !s.Active || s.String == "" {
			continue
		}
		if idx := strings.Index(buf, s.String); idx >= 0 {
			return idx, s.String, true
		}
	}
	return 0, "", false
}
