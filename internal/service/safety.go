package service

import (
	"strings"
)

// DefaultBlockNotice is shown in place of a screened-out message.
const DefaultBlockNotice = "This message was not delivered because it conflicts with the care team's content guidelines. A member of your care team has been notified."

// Screener applies the clinician-configured content screen to outgoing
// messages. A hit is not an error: the send succeeds at the transport
// level and carries the blocked flag instead.
type Screener struct {
	terms  []string
	notice string
}

// NewScreener creates a screener over the configured term list. An empty
// notice falls back to DefaultBlockNotice.
func NewScreener(terms []string, notice string) *Screener {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if notice == "" {
		notice = DefaultBlockNotice
	}
	return &Screener{terms: cleaned, notice: notice}
}

// Screen reports whether content is blocked and, if so, the notice to show
// in its place.
func (s *Screener) Screen(content string) (bool, string) {
	lowered := strings.ToLower(content)
	for _, term := range s.terms {
		if strings.Contains(lowered, term) {
			return true, s.notice
		}
	}
	return false, ""
}
