package conversation

import (
	"regexp"
	"strconv"
	"strings"
)

// KeywordDetector classifies short control answers in inbound messages.
type KeywordDetector struct {
	yesRegex      *regexp.Regexp
	noRegex       *regexp.Regexp
	cancelRegex   *regexp.Regexp
	resetRegex    *regexp.Regexp
	backRegex     *regexp.Regexp
	reengageRegex *regexp.Regexp
}

// NewKeywordDetector builds a detector; reengage is the keyword that brings a
// disengaged identity back into the dialogue.
func NewKeywordDetector(reengage string) *KeywordDetector {
	reengage = strings.ToLower(strings.TrimSpace(reengage))
	if reengage == "" {
		reengage = "prenotazione"
	}
	return &KeywordDetector{
		yesRegex:      leadingWord(`yes|yeah|yep|y|ok|okay|sure|si|sì|certo|va bene`),
		noRegex:       leadingWord(`no|nope|n|not now|no grazie`),
		cancelRegex:   leadingWord(`cancel|annulla|stop|quit`),
		resetRegex:    leadingWord(`reset|restart|ricomincia`),
		backRegex:     leadingWord(`back|indietro`),
		reengageRegex: regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(reengage) + wordEnd),
	}
}

// wordEnd is a Unicode-aware replacement for \b, which only knows ASCII letters.
const wordEnd = `(?:$|[^\p{L}\p{N}])`

func leadingWord(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^(?:please\s+|per favore\s+)?(?:` + alternatives + `)` + wordEnd)
}

func (d *KeywordDetector) IsYes(body string) bool      { return matchTrimmed(d.yesRegex, body) }
func (d *KeywordDetector) IsNo(body string) bool       { return matchTrimmed(d.noRegex, body) }
func (d *KeywordDetector) IsCancel(body string) bool   { return matchTrimmed(d.cancelRegex, body) }
func (d *KeywordDetector) IsReset(body string) bool    { return matchTrimmed(d.resetRegex, body) }
func (d *KeywordDetector) IsBack(body string) bool     { return matchTrimmed(d.backRegex, body) }
func (d *KeywordDetector) IsReengage(body string) bool { return matchTrimmed(d.reengageRegex, body) }

func matchTrimmed(re *regexp.Regexp, body string) bool {
	if re == nil {
		return false
	}
	return re.MatchString(strings.TrimSpace(body))
}

// parseModifyChoice maps "3", "time" or "change the date" to a modify step.
func parseModifyChoice(body string) (Step, bool) {
	text := strings.ToLower(strings.TrimSpace(body))
	if n, err := strconv.Atoi(strings.TrimSuffix(text, ".")); err == nil {
		if n >= 1 && n <= len(modifySteps) {
			return modifySteps[n-1].step, true
		}
		return "", false
	}
	padded := " " + strings.Join(strings.Fields(strings.NewReplacer(",", " ", ".", " ", "!", " ", "?", " ").Replace(text)), " ") + " "
	// longer keywords first so "last name" beats "name"
	best, bestLen := Step(""), 0
	for _, option := range modifySteps {
		for _, kw := range option.keywords {
			if strings.Contains(padded, " "+kw+" ") && len(kw) > bestLen {
				best, bestLen = option.step, len(kw)
			}
		}
	}
	return best, best != ""
}
