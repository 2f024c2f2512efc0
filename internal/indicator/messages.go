package indicator

import (
	"os"
	"strings"

	"github.com/rbright/voxseal/internal/operation"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	recording string
	pending   map[operation.Kind]string
	succeeded map[operation.Kind]string
	errorText string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			recording: "Recording…",
			pending: map[operation.Kind]string{
				operation.KindEmbed:   "Embedding…",
				operation.KindExtract: "Extracting…",
				operation.KindCompare: "Comparing…",
			},
			succeeded: map[operation.Kind]string{
				operation.KindEmbed:   "Embed complete",
				operation.KindExtract: "Extract complete",
				operation.KindCompare: "Comparison complete",
			},
			errorText: "Operation failed",
		}
	}
}

func (m messages) pendingText(kind operation.Kind) string {
	if text, ok := m.pending[kind]; ok {
		return text
	}
	return "Working…"
}

func (m messages) succeededText(kind operation.Kind) string {
	if text, ok := m.succeeded[kind]; ok {
		return text
	}
	return "Done"
}
