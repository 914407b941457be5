// Package format renders the /create command understood by the downstream
// video bot. The layout is a wire format: field order and labels must not change.
package format

import (
	"strconv"
	"strings"
)

const (
	Command = "/create"

	LabelTitle       = "عنوان"
	LabelDescription = "وصف"
	LabelVoice       = "نوع_الصوت"
	LabelScenes      = "عدد_المشاهد"
	LabelDuration    = "الطول"
)

// Message renders the command text. Inputs are expected to be validated already.
func Message(title, description, voiceType string, scenesCount, duration int) string {
	var b strings.Builder
	b.Grow(len(title) + len(description) + 128)
	b.WriteString(Command)
	field(&b, LabelTitle, title)
	field(&b, LabelDescription, description)
	field(&b, LabelVoice, voiceType)
	field(&b, LabelScenes, strconv.Itoa(scenesCount))
	field(&b, LabelDuration, strconv.Itoa(duration))
	return b.String()
}

func field(b *strings.Builder, label, value string) {
	b.WriteString("\n\n")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
}

// Fields parses a rendered message back into label -> value, in order.
// Returns nil if text does not start with the command marker.
func Fields(text string) [][2]string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, Command) {
		return nil
	}
	var out [][2]string
	for _, line := range strings.Split(strings.TrimPrefix(text, Command), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out = append(out, [2]string{strings.TrimSpace(k), strings.TrimSpace(v)})
	}
	return out
}
