// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// StructuredFields is the fixed 23-field annotation schema produced by LLM
// extraction. List fields default to empty collections and scalar fields to
// null; a successfully parsed extraction always carries all 23 fields.
type StructuredFields struct {
	UseCases                 []string `json:"use_cases"`
	Opportunities            []string `json:"opportunities"`
	Challenges               []string `json:"challenges"`
	AICategory               *string  `json:"ai_category"`
	BusinessFunction         *string  `json:"business_function"`
	TechnicalComplexity      *string  `json:"technical_complexity"`
	ROIImpact                *string  `json:"roi_impact"`
	TimeHorizon              *string  `json:"time_horizon"`
	IndustrySegment          *string  `json:"industry_segment"`
	ImplementationStage      *string  `json:"implementation_stage"`
	DataRequirements         []string `json:"data_requirements"`
	ModelFamily              *string  `json:"model_family"`
	DeploymentPattern        *string  `json:"deployment_pattern"`
	HumanInTheLoop           *string  `json:"human_in_the_loop"`
	RiskFactors              []string `json:"risk_factors"`
	ComplianceConsiderations []string `json:"compliance_considerations"`
	KPIs                     []string `json:"kpis"`
	Stakeholders             []string `json:"stakeholders"`
	CostProfile              *string  `json:"cost_profile"`
	Scalability              *string  `json:"scalability"`
	IntegrationComplexity    *string  `json:"integration_complexity"`
	ConfidenceScore          *float64 `json:"confidence_score"`
	ConciseSummary           *string  `json:"concise_summary"`
}

// StructuredFieldNames lists the schema fields in canonical column order.
var StructuredFieldNames = []string{
	"use_cases",
	"opportunities",
	"challenges",
	"ai_category",
	"business_function",
	"technical_complexity",
	"roi_impact",
	"time_horizon",
	"industry_segment",
	"implementation_stage",
	"data_requirements",
	"model_family",
	"deployment_pattern",
	"human_in_the_loop",
	"risk_factors",
	"compliance_considerations",
	"kpis",
	"stakeholders",
	"cost_profile",
	"scalability",
	"integration_complexity",
	"confidence_score",
	"concise_summary",
}

// structuredListFields is the subset of schema fields typed as collections.
var structuredListFields = map[string]bool{
	"use_cases":                 true,
	"opportunities":             true,
	"challenges":                true,
	"data_requirements":         true,
	"risk_factors":              true,
	"compliance_considerations": true,
	"kpis":                      true,
	"stakeholders":              true,
}

// NormalizeStructured coerces an arbitrary decoded JSON object into the
// fixed schema. Unknown keys are dropped; missing or mistyped values take
// the schema default (nil scalar, empty collection). Strings are trimmed.
func NormalizeStructured(payload map[string]any) StructuredFields {
	s := StructuredFields{
		UseCases:                 coerceList(payload["use_cases"]),
		Opportunities:            coerceList(payload["opportunities"]),
		Challenges:               coerceList(payload["challenges"]),
		AICategory:               coerceString(payload["ai_category"]),
		BusinessFunction:         coerceString(payload["business_function"]),
		TechnicalComplexity:      coerceString(payload["technical_complexity"]),
		ROIImpact:                coerceString(payload["roi_impact"]),
		TimeHorizon:              coerceString(payload["time_horizon"]),
		IndustrySegment:          coerceString(payload["industry_segment"]),
		ImplementationStage:      coerceString(payload["implementation_stage"]),
		DataRequirements:         coerceList(payload["data_requirements"]),
		ModelFamily:              coerceString(payload["model_family"]),
		DeploymentPattern:        coerceString(payload["deployment_pattern"]),
		HumanInTheLoop:           coerceString(payload["human_in_the_loop"]),
		RiskFactors:              coerceList(payload["risk_factors"]),
		ComplianceConsiderations: coerceList(payload["compliance_considerations"]),
		KPIs:                     coerceList(payload["kpis"]),
		Stakeholders:             coerceList(payload["stakeholders"]),
		CostProfile:              coerceString(payload["cost_profile"]),
		Scalability:              coerceString(payload["scalability"]),
		IntegrationComplexity:    coerceString(payload["integration_complexity"]),
		ConfidenceScore:          coerceFloat(payload["confidence_score"]),
		ConciseSummary:           coerceString(payload["concise_summary"]),
	}
	return s
}

// BlankStructured returns the all-defaults schema value used for rows whose
// extraction failed: empty collections, nil scalars.
func BlankStructured() StructuredFields {
	return NormalizeStructured(nil)
}

// coerceList accepts a JSON array (string elements kept, other scalars
// stringified) or a bare string (wrapped). Anything else yields the empty
// collection.
func coerceList(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			switch it := item.(type) {
			case string:
				if t := strings.TrimSpace(it); t != "" {
					out = append(out, t)
				}
			case float64, bool:
				out = append(out, fmt.Sprint(it))
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if t := strings.TrimSpace(item); t != "" {
				out = append(out, t)
			}
		}
		return out
	case string:
		if t := strings.TrimSpace(val); t != "" {
			return []string{t}
		}
		return []string{}
	default:
		return []string{}
	}
}

// coerceString accepts a string (trimmed; empty becomes nil). Other types
// yield nil.
func coerceString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// coerceFloat accepts a JSON number. Other types yield nil.
func coerceFloat(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case int:
		f := float64(val)
		return &f
	default:
		return nil
	}
}
