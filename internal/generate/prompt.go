package generate

import (
	"strings"
)

const systemPrompt = `You write titles and short descriptions for short narrated videos in Arabic.
Every title names one specific subject, event, person or place. Never write a generic title.
Answer with exactly two lines and nothing else:
TITLE: <title>
DESCRIPTION: <description>`

// buildPrompt renders the user prompt for one category pair. Each avoided
// title is embedded verbatim on its own line.
func buildPrompt(mainLabel, subLabel string, avoid []string) string {
	var b strings.Builder
	b.WriteString("Category: ")
	b.WriteString(mainLabel)
	b.WriteString("\nSubcategory: ")
	b.WriteString(subLabel)
	b.WriteString("\n\nWrite one specific, non-generic title that fits this category pair, in Arabic.\n")
	b.WriteString("Then write a description of one or two sentences centered on a single concrete moment of that subject.\n")

	if len(avoid) > 0 {
		b.WriteString("\nThese titles were already used. Do not reuse any of them or a close variant:\n")
		for _, t := range avoid {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			b.WriteString("- ")
			b.WriteString(t)
			b.WriteByte('\n')
		}
	}

	b.WriteString("\nReply with exactly two labeled lines:\nTITLE: ...\nDESCRIPTION: ...")
	return b.String()
}
