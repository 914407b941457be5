package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/text/language"

	"dailytales/internal/catalog"
	"dailytales/internal/dispatch"
	"dailytales/internal/settings"
	"dailytales/internal/storage"
	logx "dailytales/pkg/logx"
)

const (
	defaultMessagesLimit = 10
	maxMessagesLimit     = 50
)

var langMatcher = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// lang picks the reply language: ?lang= first, then Accept-Language, then
// the configured default.
func (s *Server) lang(r *http.Request) string {
	if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("lang"))); q == dispatch.LangEN || q == dispatch.LangAR {
		return q
	}
	if al := r.Header.Get("Accept-Language"); al != "" {
		tags, _, err := language.ParseAcceptLanguage(al)
		if err == nil && len(tags) > 0 {
			_, idx, conf := langMatcher.Match(tags...)
			if conf != language.No {
				if idx == 1 {
					return dispatch.LangAR
				}
				return dispatch.LangEN
			}
		}
	}
	return s.d.Lang()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"status": "ok", "time": s.d.Now().UTC()}
	status := http.StatusOK
	if s.d.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		err := s.d.Ping(ctx)
		cancel()
		if err != nil {
			s.log.Warn("health ping failed", logx.Err(err))
			out["status"] = "degraded"
			out["storage"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			out["storage"] = "ok"
		}
	}
	if s.d.Workers != nil {
		out["workers"] = s.d.Workers().Workers
	}
	if s.d.Scheduler != nil {
		out["scheduler"] = s.d.Scheduler.Snapshot()
	}
	writeJSON(w, status, out)
}

// dispatchBody mirrors dispatch.Request with optional fields so defaults can
// be told apart from explicit zeros.
type dispatchBody struct {
	MainCategory string  `json:"mainCategory"`
	SubCategory  string  `json:"subCategory"`
	VoiceType    *string `json:"voiceType"`
	ScenesCount  *int    `json:"scenesCount"`
	Duration     *int    `json:"duration"`
}

func (b dispatchBody) request() dispatch.Request {
	req := dispatch.Request{
		MainCategory: strings.TrimSpace(b.MainCategory),
		SubCategory:  strings.TrimSpace(b.SubCategory),
		VoiceType:    catalog.DefaultVoice,
		ScenesCount:  catalog.DefaultScenes,
		Duration:     catalog.DefaultDuration,
	}
	if b.VoiceType != nil {
		req.VoiceType = *b.VoiceType
	}
	if b.ScenesCount != nil {
		req.ScenesCount = *b.ScenesCount
	}
	if b.Duration != nil {
		req.Duration = *b.Duration
	}
	if req.MainCategory == "" && req.SubCategory != "" {
		if main, ok := catalog.MainOf(req.SubCategory); ok {
			req.MainCategory = main
		}
	}
	return req
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var body dispatchBody
	if _, err := decodeJSON(w, r, &body, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.d.Dispatch.Dispatch(r.Context(), body.request())
	s.writeDispatch(w, r, res, err)
}

func (s *Server) handleAutoDispatch(w http.ResponseWriter, r *http.Request) {
	res, err := s.d.Dispatch.AutoDispatch(r.Context())
	s.writeDispatch(w, r, res, err)
}

func (s *Server) writeDispatch(w http.ResponseWriter, r *http.Request, res dispatch.Result, err error) {
	if err != nil {
		s.log.Warn("dispatch failed",
			logx.String("rid", middleware.GetReqID(r.Context())),
			logx.String("kind", string(dispatch.KindOf(err))),
			logx.Err(err),
		)
		s.writeError(w, r, err)
		return
	}
	writeOK(w, dispatch.SuccessMessage(res, s.lang(r)), res)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultMessagesLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeFailure(w, http.StatusBadRequest, "limit must be a positive integer", string(dispatch.KindValidation))
			return
		}
		limit = min(n, maxMessagesLimit)
	}
	recs, err := s.d.History.Recent(r.Context(), limit)
	if err != nil {
		s.log.Warn("history read failed", logx.Err(err))
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []storage.HistoryRecord{}
	}
	writeOK(w, "", recs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.d.History.Stats(r.Context(), s.d.Now())
	if err != nil {
		s.log.Warn("stats read failed", logx.Err(err))
		s.writeError(w, r, err)
		return
	}
	writeOK(w, "", st)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	v, err := s.d.Settings.Get(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, "", v)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var p settings.Patch
	if _, err := decodeJSON(w, r, &p, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.d.Settings.Save(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, "settings saved", v)
}

func (s *Server) handleTestSettings(w http.ResponseWriter, r *http.Request) {
	var p settings.Patch
	ok, err := decodeJSON(w, r, &p, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var override *settings.Patch
	if ok {
		override = &p
	}
	name, err := s.d.Settings.Test(r.Context(), override)
	if err != nil {
		s.log.Warn("connection test failed", logx.Err(err))
		s.writeError(w, r, err)
		return
	}
	writeOK(w, "test message sent", map[string]string{"transport": name})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "", map[string]any{
		"categories": catalog.Categories(),
		"voices":     catalog.Voices(),
		"durations":  catalog.Durations(),
		"scenes":     map[string]int{"min": catalog.MinScenes, "max": catalog.MaxScenes},
		"defaults": map[string]any{
			"voiceType":   catalog.DefaultVoice,
			"scenesCount": catalog.DefaultScenes,
			"duration":    catalog.DefaultDuration,
		},
	})
}
