package booksearch

import (
	"fmt"
	"strings"
)

// Phase is the display the widget is in.
type Phase string

const (
	// PhaseBrowsing shows the result list (possibly empty).
	PhaseBrowsing Phase = "browsing"
	// PhaseViewing shows the selected book; the result list is empty.
	PhaseViewing Phase = "viewing"
)

// State is the widget's view of one search session.
type State struct {
	Query    string
	Results  []BookResult
	Selected *SelectedBook
	Loading  bool
	// Failure is the error of the last processed search, nil after a success.
	Failure error
}

// Phase derives the display from the state.
func (s State) Phase() Phase {
	if s.Selected != nil && len(s.Results) == 0 {
		return PhaseViewing
	}
	return PhaseBrowsing
}

func (s State) clone() State {
	out := s
	if s.Results != nil {
		out.Results = append([]BookResult(nil), s.Results...)
	}
	if s.Selected != nil {
		selected := *s.Selected
		out.Selected = &selected
	}
	return out
}

// SupersedePolicy decides what happens when searches overlap.
type SupersedePolicy int

const (
	// LastResolvedWins applies every successful response in arrival order, so a slow
	// earlier search can overwrite a faster later one.
	LastResolvedWins SupersedePolicy = iota
	// LatestIssuedWins cancels the previous fetch when a new search is issued and
	// discards any response that is not from the latest search.
	LatestIssuedWins
)

func (p SupersedePolicy) String() string {
	switch p {
	case LatestIssuedWins:
		return "latest_issued"
	default:
		return "last_resolved"
	}
}

// ParseSupersedePolicy reads the configuration spelling of a policy.
func ParseSupersedePolicy(s string) (SupersedePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last_resolved":
		return LastResolvedWins, nil
	case "latest_issued":
		return LatestIssuedWins, nil
	}
	return LastResolvedWins, fmt.Errorf("unknown supersede policy %q", s)
}

// FailurePolicy decides what a failed search does to the loading indicator.
type FailurePolicy int

const (
	// ResetLoaderOnFailure clears loading, hides the loader and records the failure.
	ResetLoaderOnFailure FailurePolicy = iota
	// KeepLoaderOnFailure leaves loading set and the loader visible.
	KeepLoaderOnFailure
)

func (p FailurePolicy) String() string {
	switch p {
	case KeepLoaderOnFailure:
		return "keep_loader"
	default:
		return "reset_loader"
	}
}

// ParseFailurePolicy reads the configuration spelling of a policy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reset_loader":
		return ResetLoaderOnFailure, nil
	case "keep_loader":
		return KeepLoaderOnFailure, nil
	}
	return ResetLoaderOnFailure, fmt.Errorf("unknown failure policy %q", s)
}

// Selectors locate the host markup the widget drives. Output fields are looked up
// inside Panel.
type Selectors struct {
	Form    string
	Input   string
	Loader  string
	Results string
	Panel   string
	Info    string

	Title       string
	Year        string
	Author      string
	ImageURL    string
	Identifiers string
	SourceID    string
}

// DefaultSelectors matches templates/booksearch.html.
func DefaultSelectors() Selectors {
	return Selectors{
		Form:        "#booksearch-form",
		Input:       "#booksearch-input",
		Loader:      "#loader",
		Results:     "#results",
		Panel:       "#selected",
		Info:        "#info",
		Title:       "#title",
		Year:        "#year",
		Author:      "#author",
		ImageURL:    "#image_url",
		Identifiers: "#identifiers",
		SourceID:    "#source_id",
	}
}

func (s Selectors) inPanel(sel string) string {
	return s.Panel + " " + sel
}

func (s Selectors) required() []string {
	return []string{
		s.Form, s.Input, s.Loader, s.Results, s.Panel,
		s.inPanel(s.Info),
		s.inPanel(s.Title), s.inPanel(s.Year), s.inPanel(s.Author),
		s.inPanel(s.ImageURL), s.inPanel(s.Identifiers), s.inPanel(s.SourceID),
	}
}
