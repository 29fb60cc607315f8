package analysis

import (
	"regexp"
	"strings"
)

type intentRule struct {
	responseType ResponseType
	// thai keywords match as substrings since Thai is written without spaces.
	thai []string
	// words match whole English words only.
	words *regexp.Regexp
}

// intentRules is checked in order; the first rule with a matching keyword wins.
var intentRules = []intentRule{
	{
		responseType: ResponseProblemSolving,
		thai:         []string{"ปัญหา", "แก้", "ช่วย"},
		words:        wordPattern("problem", "problems", "fix", "fixing", "help"),
	},
	{
		responseType: ResponseEducational,
		thai:         []string{"เรียน", "สอน", "อธิบาย"},
		words:        wordPattern("study", "learn", "learning", "teach", "explain"),
	},
	{
		responseType: ResponseEncouraging,
		thai:         []string{"เหนื่อย", "ท้อ", "กำลังใจ"},
		words:        wordPattern("tired", "discouraged", "encourage"),
	},
}

func wordPattern(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`\b(?:` + strings.Join(words, "|") + `)\b`)
}

// ClassifyIntent picks the response type for free text by keyword match,
// case-insensitively. Text matching no rule is ResponseHelpful.
func ClassifyIntent(text string) ResponseType {
	lower := strings.ToLower(text)
	for _, rule := range intentRules {
		if rule.matches(lower) {
			return rule.responseType
		}
	}
	return ResponseHelpful
}

func (r intentRule) matches(lower string) bool {
	for _, kw := range r.thai {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return r.words != nil && r.words.MatchString(lower)
}
