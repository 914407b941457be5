// Package catalog holds the static content categories, voice types and
// durations a dispatch may choose from.
package catalog

import (
	"errors"
	"fmt"
)

var ErrUnknownCategory = errors.New("unknown category")

type Subcategory struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	LabelEn string `json:"label_en"`
}

type Category struct {
	ID            string        `json:"id"`
	Label         string        `json:"label"`
	LabelEn       string        `json:"label_en"`
	Icon          string        `json:"icon"`
	Subcategories []Subcategory `json:"subcategories"`
}

type Voice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

const (
	MinScenes = 1
	MaxScenes = 20

	// Manual dispatch defaults when the caller leaves a field out.
	DefaultVoice    = "male_arabic"
	DefaultScenes   = 6
	DefaultDuration = 30

	// Auto dispatch keeps to a narrower, safer range.
	AutoMinScenes = 3
	AutoMaxScenes = 10
)

var categories = []Category{
	{ID: "history", Label: "تاريخ", LabelEn: "History", Icon: "🏛️", Subcategories: []Subcategory{
		{ID: "ancient_egypt", Label: "مصر القديمة", LabelEn: "Ancient Egypt"},
		{ID: "islamic_golden_age", Label: "العصر الذهبي الإسلامي", LabelEn: "Islamic Golden Age"},
		{ID: "historical_figures", Label: "شخصيات تاريخية", LabelEn: "Historical Figures"},
		{ID: "battles", Label: "معارك فاصلة", LabelEn: "Decisive Battles"},
		{ID: "lost_civilizations", Label: "حضارات مفقودة", LabelEn: "Lost Civilizations"},
	}},
	{ID: "science", Label: "علوم", LabelEn: "Science", Icon: "🔬", Subcategories: []Subcategory{
		{ID: "experiments", Label: "تجارب علمية", LabelEn: "Experiments"},
		{ID: "space", Label: "الفضاء", LabelEn: "Space"},
		{ID: "inventions", Label: "اختراعات", LabelEn: "Inventions"},
		{ID: "human_body", Label: "جسم الإنسان", LabelEn: "Human Body"},
		{ID: "discoveries", Label: "اكتشافات", LabelEn: "Discoveries"},
	}},
	{ID: "mysteries", Label: "ألغاز", LabelEn: "Mysteries", Icon: "🕵️", Subcategories: []Subcategory{
		{ID: "unsolved_cases", Label: "قضايا غامضة", LabelEn: "Unsolved Cases"},
		{ID: "legends", Label: "أساطير", LabelEn: "Legends"},
		{ID: "disappearances", Label: "اختفاءات غامضة", LabelEn: "Disappearances"},
		{ID: "ancient_secrets", Label: "أسرار قديمة", LabelEn: "Ancient Secrets"},
	}},
	{ID: "nature", Label: "طبيعة", LabelEn: "Nature", Icon: "🌿", Subcategories: []Subcategory{
		{ID: "animals", Label: "حيوانات", LabelEn: "Animals"},
		{ID: "oceans", Label: "أعماق البحار", LabelEn: "Deep Oceans"},
		{ID: "natural_disasters", Label: "كوارث طبيعية", LabelEn: "Natural Disasters"},
		{ID: "plants", Label: "نباتات عجيبة", LabelEn: "Strange Plants"},
	}},
	{ID: "stories", Label: "قصص", LabelEn: "Stories", Icon: "📖", Subcategories: []Subcategory{
		{ID: "inspiring", Label: "قصص ملهمة", LabelEn: "Inspiring"},
		{ID: "horror", Label: "رعب", LabelEn: "Horror"},
		{ID: "adventure", Label: "مغامرات", LabelEn: "Adventure"},
		{ID: "wisdom", Label: "حكم وعبر", LabelEn: "Wisdom"},
	}},
}

var voices = []Voice{
	{ID: "male_arabic", Label: "صوت ذكر عربي"},
	{ID: "female_arabic", Label: "صوت أنثى عربي"},
}

var durations = []int{15, 30, 60}

// subIndex maps subcategory id -> owning category index. Subcategory ids are a flat namespace.
var subIndex = func() map[string]int {
	m := make(map[string]int)
	for i, c := range categories {
		for _, s := range c.Subcategories {
			if _, dup := m[s.ID]; dup {
				panic("catalog: duplicate subcategory id " + s.ID)
			}
			m[s.ID] = i
		}
	}
	return m
}()

// Categories returns a copy of the catalog in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		c.Subcategories = append([]Subcategory(nil), c.Subcategories...)
		out[i] = c
	}
	return out
}

func Voices() []Voice { return append([]Voice(nil), voices...) }

func Durations() []int { return append([]int(nil), durations...) }

// ResolveLabels returns the display labels for a category pair.
// The subcategory must belong to the main category.
func ResolveLabels(mainID, subID string) (string, string, error) {
	idx, ok := subIndex[subID]
	if !ok || categories[idx].ID != mainID {
		return "", "", fmt.Errorf("%w: %s/%s", ErrUnknownCategory, mainID, subID)
	}
	c := categories[idx]
	for _, s := range c.Subcategories {
		if s.ID == subID {
			return c.Label, s.Label, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s/%s", ErrUnknownCategory, mainID, subID)
}

// MainOf returns the category owning subID.
func MainOf(subID string) (string, bool) {
	idx, ok := subIndex[subID]
	if !ok {
		return "", false
	}
	return categories[idx].ID, true
}

func ValidPair(mainID, subID string) bool {
	idx, ok := subIndex[subID]
	return ok && categories[idx].ID == mainID
}

func ValidVoice(id string) bool {
	for _, v := range voices {
		if v.ID == id {
			return true
		}
	}
	return false
}

func ValidDuration(d int) bool {
	for _, v := range durations {
		if v == d {
			return true
		}
	}
	return false
}

func ValidScenes(n int) bool { return n >= MinScenes && n <= MaxScenes }

// Rand is the subset of *math/rand.Rand used for random picks.
type Rand interface {
	Intn(n int) int
}

// Pick is a random selection used by auto dispatch.
type Pick struct {
	MainCategory string
	SubCategory  string
	VoiceType    string
	ScenesCount  int
	Duration     int
}

// Random picks a category pair, voice, scene count and duration.
func Random(r Rand) Pick {
	c := categories[r.Intn(len(categories))]
	s := c.Subcategories[r.Intn(len(c.Subcategories))]
	return Pick{
		MainCategory: c.ID,
		SubCategory:  s.ID,
		VoiceType:    voices[r.Intn(len(voices))].ID,
		ScenesCount:  AutoMinScenes + r.Intn(AutoMaxScenes-AutoMinScenes+1),
		Duration:     durations[r.Intn(len(durations))],
	}
}
