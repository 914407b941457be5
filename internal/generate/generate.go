// Package generate produces a title and description for a category pair
// using a text-completion provider. It never fails: missing or unusable
// output falls back to the category labels.
package generate

import (
	"context"
	"time"

	"dailytales/internal/ai"
	"dailytales/internal/metrics"
	logx "dailytales/pkg/logx"
)

type Content struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	// Degraded is set when any field came from the fallback.
	Degraded bool `json:"-"`
}

type Generator struct {
	ai      ai.Completer
	timeout time.Duration
	log     logx.Logger
}

// New returns a Generator. A nil completer makes every call fall back.
func New(c ai.Completer, timeout time.Duration, log logx.Logger) *Generator {
	if timeout <= 0 {
		timeout = ai.DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Generator{ai: c, timeout: timeout, log: log.With(logx.String("comp", "generate"))}
}

// Fallback is the text used for a field the provider did not supply.
func Fallback(mainLabel, subLabel string) string {
	return mainLabel + " - " + subLabel
}

func (g *Generator) Generate(ctx context.Context, mainLabel, subLabel string, avoid []string) Content {
	fb := sanitize(Fallback(mainLabel, subLabel), MaxTitleRunes)
	if g.ai == nil {
		g.degraded("not_configured", nil)
		return Content{Title: fb, Description: sanitize(Fallback(mainLabel, subLabel), MaxDescriptionRunes), Degraded: true}
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	res, err := g.ai.Complete(cctx, ai.Request{
		System: systemPrompt,
		Prompt: buildPrompt(mainLabel, subLabel, avoid),
	})
	if err != nil {
		reason := "error"
		if cctx.Err() != nil {
			reason = "timeout"
		}
		g.degraded(reason, err)
		return Content{Title: fb, Description: sanitize(Fallback(mainLabel, subLabel), MaxDescriptionRunes), Degraded: true}
	}

	rawTitle, rawDesc := parseCompletion(res.Text)
	out := Content{
		Title:       sanitize(rawTitle, MaxTitleRunes),
		Description: sanitize(rawDesc, MaxDescriptionRunes),
	}
	if out.Title == "" {
		out.Title, out.Degraded = fb, true
		g.degraded("missing_title", nil)
	}
	if out.Description == "" {
		out.Description, out.Degraded = sanitize(Fallback(mainLabel, subLabel), MaxDescriptionRunes), true
		g.degraded("missing_description", nil)
	}
	g.log.Debug("generated content",
		logx.Duration("took", time.Since(start)),
		logx.Int("avoid", len(avoid)),
		logx.Bool("degraded", out.Degraded),
	)
	return out
}

func (g *Generator) degraded(reason string, err error) {
	metrics.GenerationDegraded.WithLabelValues(reason).Inc()
	if err != nil {
		g.log.Warn("generation degraded", logx.String("reason", reason), logx.Err(err))
		return
	}
	g.log.Warn("generation degraded", logx.String("reason", reason))
}
