package inference

import (
	"strings"

	"mcqsolver/internal/dom"
	"mcqsolver/mcq"
)

// ParseAnswer normalizes free-form model output to an option position.
// A lone letter A-D maps to 1-4; otherwise the first digit 1-4 anywhere in
// the text is used.
func ParseAnswer(text string) (mcq.Answer, error) {
	t := strings.TrimSpace(text)
	if len(t) == 1 {
		switch c := t[0] | 0x20; c {
		case 'a', 'b', 'c', 'd':
			return mcq.Answer(c-'a') + 1, nil
		}
	}
	for _, r := range t {
		if r >= '1' && r <= '4' {
			return mcq.Answer(r - '0'), nil
		}
	}
	return 0, &mcq.InferenceError{Kind: mcq.KindParse, Message: "no option digit in response " + quoteShort(t)}
}

func quoteShort(s string) string {
	return `"` + dom.Abbrev(s, 80) + `"`
}
