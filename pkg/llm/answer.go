package llm

import "time"

// MaxAnswerChars is the contract limit on answer length. The model is
// instructed to stay under it, but instruction-following is not guaranteed,
// so the limit is also enforced here.
const MaxAnswerChars = 2000

// ClampAnswer truncates an answer to MaxAnswerChars characters. Truncation
// counts runes, not bytes, so multi-byte text is never cut mid-character.
func ClampAnswer(answer string) string {
	runes := []rune(answer)
	if len(runes) <= MaxAnswerChars {
		return answer
	}
	return string(runes[:MaxAnswerChars])
}

// CacheInfo describes the resolved context cache held for the process
// lifetime. It is read-only metadata surfaced for inspection.
type CacheInfo struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Model       string    `json:"model"`
	ExpireTime  time.Time `json:"expire_time"`
}
