// Package tags implements classification and frequency aggregation for
// tag strings lifted off engineering drawings. Both operations are pure:
// no I/O, no state, deterministic output ordering.
package tags

import (
	"regexp"
	"sort"
	"strings"
)

// Categorized splits a set of tags into three disjoint buckets. Every
// distinct input tag appears in exactly one of them, and every slice is
// sorted ascending.
type Categorized struct {
	PipelineTags  []string            `json:"pipeline_tags"`
	ComponentTags map[string][]string `json:"component_tags"`
	Uncategorized []string            `json:"uncategorized_other"`
}

// pipelineRe matches line numbers such as 13-M2-0041-1.5"-OD-91440X or
// 01-P10A-0002-DN50-CS-L150: numeric prefix, service/area code, sequence
// number, then either a size/material specifier (inch mark, DNxx, MM,
// INCH) or at least one further hyphen segment. The trailing group is
// not optional, so a bare three-segment tag like 20-V-010 does not match.
var pipelineRe = regexp.MustCompile(`(?i)^\d+[\w\-]*` +
	`-[\w\.\-]+` +
	`-\d+[\w\-]*` +
	`(?:` +
	`(?:-[\d\.]+"(?:[A-Z\-\d]*)?|-DN\d+|-[\d\.]+MM|-[\d\.]+INCH?)` +
	`(?:-[\w\-]+)*` +
	`|` +
	`(?:-[\w\-]+)+` +
	`)$`)

// componentPrefixRe captures the leading prefix of a component tag,
// including the number-letter combination form (20-V). The prefix must
// be followed by a hyphen or a digit.
var (
	componentPrefixRe = regexp.MustCompile(`(?i)^([A-Z0-9]+(?:-[A-Z])?|[A-Z]{2,4})[\-0-9]`)
	singleLetterRe    = regexp.MustCompile(`(?i)^([A-Z])[\-0-9]`)
)

// componentCategories maps component tag prefixes to their category
// labels. Closed enumeration covering pumps, valves, vessels and the
// common ISA instrument prefixes.
var componentCategories = map[string]string{
	"P":    "Pumps",
	"BV":   "Ball Valves",
	"GV":   "Gate Valves",
	"CV":   "Control Valves",
	"NRV":  "Non-Return Valves (Check Valves)",
	"RV":   "Relief Valves (General)",
	"PSV":  "Pressure Safety Valves",
	"PRV":  "Pressure Relief Valves",
	"V":    "Valves (Generic/Unspecified)",
	"XV":   "Valves (On/Off / Solenoid)",
	"HV":   "Valves (Hand Operated)",
	"FV":   "Flow Control Valves",
	"LV":   "Level Control Valves",
	"PV":   "Pressure Control Valves",
	"TV":   "Temperature Control Valves",
	"MOV":  "Motor Operated Valves",
	"T":    "Tanks/Vessels (General)",
	"TK":   "Tanks/Vessels",
	"VSL":  "Vessels",
	"E":    "Heat Exchangers",
	"C":    "Compressors/Columns",
	"COL":  "Columns",
	"R":    "Reactors",
	"MIX":  "Mixers",
	"AG":   "Agitators",
	"F":    "Flow Instruments (General)",
	"FI":   "Flow Indicators",
	"FT":   "Flow Transmitters",
	"FE":   "Flow Elements",
	"FIC":  "Flow Indicating Controllers",
	"FC":   "Flow Controllers",
	"L":    "Level Instruments (General)",
	"LI":   "Level Indicators",
	"LT":   "Level Transmitters",
	"LG":   "Level Gauges",
	"LIC":  "Level Indicating Controllers",
	"LC":   "Level Controllers",
	"PI":   "Pressure Instruments (General)",
	"PT":   "Pressure Transmitters",
	"PIC":  "Pressure Indicating Controllers",
	"PC":   "Pressure Controllers",
	"TI":   "Temperature Instruments (General)",
	"TT":   "Temperature Transmitters",
	"TE":   "Temperature Elements",
	"TIC":  "Temperature Indicating Controllers",
	"TC":   "Temperature Controllers",
	"A":    "Analyzers (General)",
	"AI":   "Analyzer Indicators",
	"AT":   "Analyzer Transmitters",
	"AE":   "Analyzer Elements",
	"H":    "Heaters/Furnaces",
	"HTR":  "Heaters",
	"MTR":  "Motors",
	"INST": "General Instruments (Fallback)",
}

// Classify buckets every distinct tag in the input. Duplicates and input
// order do not affect the output. Any string is classifiable; the worst
// case lands in Uncategorized.
func Classify(input []string) Categorized {
	out := Categorized{
		PipelineTags:  []string{},
		ComponentTags: map[string][]string{},
		Uncategorized: []string{},
	}

	seen := make(map[string]struct{}, len(input))
	for _, tag := range input {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}

		if pipelineRe.MatchString(tag) {
			out.PipelineTags = append(out.PipelineTags, tag)
			continue
		}
		if category, ok := componentCategory(tag); ok {
			out.ComponentTags[category] = append(out.ComponentTags[category], tag)
			continue
		}
		out.Uncategorized = append(out.Uncategorized, tag)
	}

	sort.Strings(out.PipelineTags)
	for _, list := range out.ComponentTags {
		sort.Strings(list)
	}
	sort.Strings(out.Uncategorized)
	return out
}

// componentCategory resolves a component tag's category by its prefix,
// preferring the longest candidate: the full captured prefix first, then
// the letter part of a number-letter combination (20-V resolves through
// V), then the single leading letter.
func componentCategory(tag string) (string, bool) {
	if m := componentPrefixRe.FindStringSubmatch(tag); m != nil {
		prefix := strings.ToUpper(m[1])
		if category, ok := componentCategories[prefix]; ok {
			return category, true
		}
		if i := strings.IndexByte(prefix, '-'); i >= 0 {
			if category, ok := componentCategories[prefix[i+1:]]; ok {
				return category, true
			}
		}
	}
	if m := singleLetterRe.FindStringSubmatch(tag); m != nil {
		if category, ok := componentCategories[strings.ToUpper(m[1])]; ok {
			return category, true
		}
	}
	return "", false
}
