package palm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Reading is the typed view of a palm-reading report. Every section is optional
// and a nil section is omitted when the reading is serialized again.
type Reading struct {
	OverallScore  *float64       `json:"overallScore,omitempty"`
	Overview      *string        `json:"overview,omitempty"`
	LifeLine      *Line          `json:"lifeLine,omitempty"`
	HeartLine     *Line          `json:"heartLine,omitempty"`
	HeadLine      *Line          `json:"headLine,omitempty"`
	FateLine      *Line          `json:"fateLine,omitempty"`
	SunLine       *Line          `json:"sunLine,omitempty"`
	MercuryLine   *Line          `json:"mercuryLine,omitempty"`
	Mounts        *Mounts        `json:"mounts,omitempty"`
	HandShape     *HandShape     `json:"handShape,omitempty"`
	Personality   *Personality   `json:"personality,omitempty"`
	Relationships *Relationships `json:"relationships,omitempty"`
	Career        *Career        `json:"career,omitempty"`
	Health        *Health        `json:"health,omitempty"`
	Talents       *Talents       `json:"talents,omitempty"`
	SpecialSigns  []SpecialSign  `json:"specialSigns,omitempty"`
	Predictions   *Predictions   `json:"predictions,omitempty"`
	LuckyElements *LuckyElements `json:"luckyElements,omitempty"`
	Advice        *string        `json:"advice,omitempty"`
	RawResponse   bool           `json:"rawResponse,omitempty"`
}

type Line struct {
	Score          *float64 `json:"score,omitempty"`
	Description    string   `json:"description,omitempty"`
	Interpretation string   `json:"interpretation,omitempty"`
	Traits         []string `json:"traits,omitempty"`
}

type Mount struct {
	Strength string `json:"strength,omitempty"`
	Meaning  string `json:"meaning,omitempty"`
}

type Mounts struct {
	Jupiter *Mount `json:"jupiter,omitempty"`
	Saturn  *Mount `json:"saturn,omitempty"`
	Apollo  *Mount `json:"apollo,omitempty"`
	Mercury *Mount `json:"mercury,omitempty"`
	Mars    *Mount `json:"mars,omitempty"`
	Venus   *Mount `json:"venus,omitempty"`
	Moon    *Mount `json:"moon,omitempty"`
}

type HandShape struct {
	Type           string `json:"type,omitempty"`
	Description    string `json:"description,omitempty"`
	FingerAnalysis string `json:"fingerAnalysis,omitempty"`
	Proportions    string `json:"proportions,omitempty"`
}

type Personality struct {
	Type       string   `json:"type,omitempty"`
	Element    string   `json:"element,omitempty"`
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

type Relationships struct {
	LoveStyle    string `json:"loveStyle,omitempty"`
	IdealPartner string `json:"idealPartner,omitempty"`
	Challenges   string `json:"challenges,omitempty"`
	Advice       string `json:"advice,omitempty"`
}

type Career struct {
	IdealJobs          []string `json:"idealJobs,omitempty"`
	Talents            string   `json:"talents,omitempty"`
	Path               string   `json:"path,omitempty"`
	FinancialPotential string   `json:"financialPotential,omitempty"`
}

type Health struct {
	Strengths       string `json:"strengths,omitempty"`
	AreasOfConcern  string `json:"areasOfConcern,omitempty"`
	Recommendations string `json:"recommendations,omitempty"`
	EnergyLevel     string `json:"energyLevel,omitempty"`
}

type Talents struct {
	Hidden       []string `json:"hidden,omitempty"`
	Artistic     string   `json:"artistic,omitempty"`
	Intellectual string   `json:"intellectual,omitempty"`
	Social       string   `json:"social,omitempty"`
}

type SpecialSign struct {
	Name     string `json:"name"`
	Meaning  string `json:"meaning"`
	Location string `json:"location,omitempty"`
}

type Predictions struct {
	Love      string `json:"love,omitempty"`
	Career    string `json:"career,omitempty"`
	Health    string `json:"health,omitempty"`
	Wealth    string `json:"wealth,omitempty"`
	Spiritual string `json:"spiritual,omitempty"`
	ShortTerm string `json:"shortTerm,omitempty"`
	LongTerm  string `json:"longTerm,omitempty"`
}

type LuckyElements struct {
	Numbers []float64 `json:"numbers,omitempty"`
	Days    []string  `json:"days,omitempty"`
	Colors  []string  `json:"colors,omitempty"`
	Stones  []string  `json:"stones,omitempty"`
}

// SectionKeys lists the top-level keys a report may carry, in display order.
var SectionKeys = []string{
	"overallScore", "overview",
	"lifeLine", "heartLine", "headLine", "fateLine", "sunLine", "mercuryLine",
	"mounts", "handShape", "personality", "relationships", "career", "health",
	"talents", "specialSigns", "predictions", "luckyElements", "advice",
}

// Report is the outcome of decoding a model answer: the JSON document to store
// and whether it had to fall back to the raw text.
type Report struct {
	Document json.RawMessage
	Fallback bool
}

// BuildReport turns a model answer into a storable JSON object. Answers that do
// not contain a JSON object are kept verbatim under "overview" with rawResponse set.
func BuildReport(answer string) (Report, error) {
	candidate := ExtractJSON(answer)
	if gjson.Valid(candidate) && gjson.Parse(candidate).IsObject() {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(candidate)); err != nil {
			return Report{}, fmt.Errorf("failed to compact report: %w", err)
		}
		return Report{Document: buf.Bytes()}, nil
	}

	doc, err := json.Marshal(Reading{Overview: &answer, RawResponse: true})
	if err != nil {
		return Report{}, fmt.Errorf("failed to encode fallback report: %w", err)
	}
	return Report{Document: doc, Fallback: true}, nil
}

// Sections lists the sections the reading carries, in display order.
func (r Reading) Sections() []string {
	present := map[string]bool{
		"overallScore":  r.OverallScore != nil,
		"overview":      r.Overview != nil,
		"lifeLine":      r.LifeLine != nil,
		"heartLine":     r.HeartLine != nil,
		"headLine":      r.HeadLine != nil,
		"fateLine":      r.FateLine != nil,
		"sunLine":       r.SunLine != nil,
		"mercuryLine":   r.MercuryLine != nil,
		"mounts":        r.Mounts != nil,
		"handShape":     r.HandShape != nil,
		"personality":   r.Personality != nil,
		"relationships": r.Relationships != nil,
		"career":        r.Career != nil,
		"health":        r.Health != nil,
		"talents":       r.Talents != nil,
		"specialSigns":  r.SpecialSigns != nil,
		"predictions":   r.Predictions != nil,
		"luckyElements": r.LuckyElements != nil,
		"advice":        r.Advice != nil,
	}
	sections := make([]string, 0, len(SectionKeys))
	for _, key := range SectionKeys {
		if present[key] {
			sections = append(sections, key)
		}
	}
	return sections
}

// PresentSections reports which known sections a stored document carries.
// Null values count as absent. Documents whose sections do not fit the typed
// view are scanned key by key.
func PresentSections(doc []byte) []string {
	var r Reading
	if err := json.Unmarshal(doc, &r); err == nil {
		return r.Sections()
	}

	sections := make([]string, 0, len(SectionKeys))
	for _, key := range SectionKeys {
		v := gjson.GetBytes(doc, key)
		if v.Exists() && v.Type != gjson.Null {
			sections = append(sections, key)
		}
	}
	return sections
}
