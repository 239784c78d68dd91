package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/numeral/internal/chartservice"
	"github.com/starford/numeral/internal/harmony"
	"github.com/starford/numeral/internal/index"
	"github.com/starford/numeral/internal/theory"
)

// maxChords bounds a single progression.
const maxChords = 1024

// DisplayRequest overrides the default rendering options. Unset fields keep
// the server default.
type DisplayRequest struct {
	ShowFunctions        *bool `json:"show_functions,omitempty"`
	ShowOriginalChords   *bool `json:"show_original_chords,omitempty"`
	AllHarmonicFunctions *bool `json:"all_harmonic_functions,omitempty"`
	ExplicitMinorSeventh *bool `json:"explicit_minor_seventh,omitempty"`
	HalfDiminishedGlyph  *bool `json:"half_diminished_glyph,omitempty"`
}

// apply layers the request over base.
func (d *DisplayRequest) apply(base harmony.Display) harmony.Display {
	if d == nil {
		return base
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&base.ShowFunctions, d.ShowFunctions)
	set(&base.ShowOriginalChords, d.ShowOriginalChords)
	set(&base.AllHarmonicFunctions, d.AllHarmonicFunctions)
	set(&base.ExplicitMinorSeventh, d.ExplicitMinorSeventh)
	set(&base.HalfDiminishedGlyph, d.HalfDiminishedGlyph)
	return base
}

// AnalyzeRequest is the request body of POST /api/analyze and /api/analyze/explain.
type AnalyzeRequest struct {
	Chords  []string        `json:"chords" example:"Dm7,G7,Cmaj7" validate:"required"`
	Key     string          `json:"key,omitempty" example:"C"`
	Display *DisplayRequest `json:"display,omitempty"`
}

// Validate checks the request shape. An empty chord list is valid and yields
// no labels; a missing one is not. Chord spelling is checked by the analyzer.
func (r *AnalyzeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Chords, validation.NotNil, validation.Length(0, maxChords), validation.Each(validation.Required)),
		validation.Field(&r.Key, validation.By(tonic)),
	)
}

// AnalyzeResponse pairs every chord with its label.
type AnalyzeResponse struct {
	Key    string   `json:"key" example:"C" validate:"required"`
	Chords []string `json:"chords" validate:"required"`
	Labels []string `json:"labels" validate:"required"`
}

// ExplainResponse carries the candidate tables of a progression.
type ExplainResponse struct {
	Key   string               `json:"key" validate:"required"`
	Slots []harmony.SlotReport `json:"slots" validate:"required"`
}

// BatchRequest is the request body of POST /api/analyze/batch.
type BatchRequest struct {
	Progressions []chartservice.Progression `json:"progressions" validate:"required"`
	Display      *DisplayRequest            `json:"display,omitempty"`
}

// Validate checks every progression of the batch.
func (r *BatchRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Progressions, validation.Required, validation.Length(1, 256),
			validation.Each(validation.By(progression))),
	)
}

// BatchResponse holds one label list per progression, in request order.
type BatchResponse struct {
	Results [][]string `json:"results" validate:"required"`
}

// CreateChartRequest is the request body for creating a chart.
type CreateChartRequest struct {
	Path    string `json:"path" example:"standards/autumn-leaves.chart" validate:"required"`
	Content string `json:"content" example:"| Cm7 F7 | Bbmaj7 |" validate:"required"`
}

// Validate checks that both fields are present.
func (r *CreateChartRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Content, validation.Required),
	)
}

// UpdateChartRequest is the request body for updating a chart.
type UpdateChartRequest struct {
	Content string `json:"content" example:"| Dm7 G7 | Cmaj7 |" validate:"required"`
}

// Validate checks that content is present.
func (r *UpdateChartRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.Required),
	)
}

// ChartDetail is the full chart response type (aliased from the domain layer).
type ChartDetail = chartservice.ChartDetail

// ChartListItem is a lightweight item in a list response (aliased from the domain layer).
type ChartListItem = chartservice.ChartListItem

// ChartAnalysis is the labelled chart (aliased from the domain layer).
type ChartAnalysis = chartservice.ChartAnalysis

// ChartListResponse wraps paginated chart listings.
type ChartListResponse struct {
	Charts []ChartListItem `json:"charts" validate:"required"`
	Total  int             `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// KeyChartsResponse lists the charts that visit a local key.
type KeyChartsResponse struct {
	Key    string   `json:"key" example:"V" validate:"required"`
	Charts []string `json:"charts" validate:"required"`
}

func tonic(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := theory.Scale(s); err != nil {
		return errors.New("must be a note name such as C, Bb or F#")
	}
	return nil
}

func progression(value interface{}) error {
	p, ok := value.(chartservice.Progression)
	if !ok {
		return errors.New("must be a progression")
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Chords, validation.NotNil, validation.Length(0, maxChords), validation.Each(validation.Required)),
		validation.Field(&p.Key, validation.By(tonic)),
	)
}
