package generate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"dailytales/internal/ai"
	logx "dailytales/pkg/logx"
)

type fakeAI struct {
	text  string
	err   error
	block bool
	got   ai.Request
	calls int
}

func (f *fakeAI) Complete(ctx context.Context, req ai.Request) (ai.Response, error) {
	f.calls++
	f.got = req
	if f.block {
		<-ctx.Done()
		return ai.Response{}, ctx.Err()
	}
	return ai.Response{Text: f.text}, f.err
}

func TestPromptEmbedsAvoidedTitles(t *testing.T) {
	t.Parallel()
	f := &fakeAI{text: "TITLE: New One\nDESCRIPTION: Something happened."}
	g := New(f, time.Second, logx.Nop())
	g.Generate(context.Background(), "تاريخ", "شخصيات تاريخية", []string{"Cleopatra's Secret", "The Last Pharaoh"})

	require.Equal(t, 1, f.calls)
	require.Contains(t, f.got.Prompt, "Cleopatra's Secret\n")
	require.Contains(t, f.got.Prompt, "The Last Pharaoh\n")
	require.Contains(t, f.got.Prompt, "شخصيات تاريخية")
	require.Contains(t, f.got.Prompt, "TITLE:")
	require.NotEmpty(t, f.got.System)
}

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, text, title, desc string
	}{
		{
			name:  "plain",
			text:  "TITLE: The Glass Harmonica\nDESCRIPTION: Franklin plays it for the first time.",
			title: "The Glass Harmonica", desc: "Franklin plays it for the first time.",
		},
		{
			name:  "lowercase with preamble",
			text:  "Sure!\ntitle: Moon Dust\ndescription: Apollo 11 lands.",
			title: "Moon Dust", desc: "Apollo 11 lands.",
		},
		{
			name:  "markdown bold",
			text:  "**Title:** Tunguska\n**Description:** A forest falls silent.",
			title: "Tunguska", desc: "A forest falls silent.",
		},
		{
			name:  "arabic labels",
			text:  "العنوان: سر الهرم\nالوصف: لحظة فتح الغرفة المغلقة.",
			title: "سر الهرم", desc: "لحظة فتح الغرفة المغلقة.",
		},
		{
			name:  "continuation line",
			text:  "TITLE: Pompeii\nDESCRIPTION: Ash falls\non the forum.",
			title: "Pompeii", desc: "Ash falls on the forum.",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := New(&fakeAI{text: tt.text}, time.Second, logx.Nop()).Generate(context.Background(), "m", "s", nil)
			require.Equal(t, tt.title, c.Title)
			require.Equal(t, tt.desc, c.Description)
			require.False(t, c.Degraded)
		})
	}
}

func TestFallbacks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		ai        ai.Completer
		wantTitle string
		wantDesc  string
	}{
		{name: "no provider", ai: nil, wantTitle: "علوم - تجارب علمية", wantDesc: "علوم - تجارب علمية"},
		{name: "provider error", ai: &fakeAI{err: errors.New("503")}, wantTitle: "علوم - تجارب علمية", wantDesc: "علوم - تجارب علمية"},
		{name: "missing title", ai: &fakeAI{text: "DESCRIPTION: only this"}, wantTitle: "علوم - تجارب علمية", wantDesc: "only this"},
		{name: "missing description", ai: &fakeAI{text: "TITLE: only that"}, wantTitle: "only that", wantDesc: "علوم - تجارب علمية"},
		{name: "unlabeled prose", ai: &fakeAI{text: "Here is a great idea about volcanoes."}, wantTitle: "علوم - تجارب علمية", wantDesc: "علوم - تجارب علمية"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := New(tt.ai, time.Second, logx.Nop()).Generate(context.Background(), "علوم", "تجارب علمية", nil)
			require.Equal(t, tt.wantTitle, c.Title)
			require.Equal(t, tt.wantDesc, c.Description)
			require.True(t, c.Degraded)
		})
	}
}

func TestGenerateTimeoutFallsBack(t *testing.T) {
	t.Parallel()
	f := &fakeAI{block: true}
	start := time.Now()
	c := New(f, 30*time.Millisecond, logx.Nop()).Generate(context.Background(), "a", "b", nil)
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, "a - b", c.Title)
	require.Equal(t, "a - b", c.Description)
}

func TestSanitizeAndTruncate(t *testing.T) {
	t.Parallel()
	longTitle := strings.Repeat("ع", 260)
	longDesc := strings.Repeat("وصف ", 200)
	c := New(&fakeAI{text: "TITLE: " + longTitle + "\nDESCRIPTION: " + longDesc}, time.Second, logx.Nop()).
		Generate(context.Background(), "m", "s", nil)
	require.Equal(t, MaxTitleRunes, utf8.RuneCountInString(c.Title))
	require.LessOrEqual(t, utf8.RuneCountInString(c.Description), MaxDescriptionRunes)

	require.Equal(t, "a b c", sanitize("a\tb\r\x00c", 100))
	require.Equal(t, "quoted", sanitize(`"quoted"`, 100))
	require.NotContains(t, sanitize("line1\nline2", 100), "\n")
}
