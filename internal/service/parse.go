package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/prompts"
)

var errNoJSONObject = errors.New("no JSON object found")

// ExtractFirstJSONObject returns the first balanced {...} object in raw.
// Scorers sometimes wrap JSON in prose or code fences, or emit several
// objects back to back; only the first one is kept. Braces inside string
// literals are ignored.
func ExtractFirstJSONObject(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", errNoJSONObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object starting at offset %d", start)
}

// decodeFirstObject extracts and unmarshals the first JSON object in raw.
func decodeFirstObject(raw string) (map[string]interface{}, error) {
	obj, err := ExtractFirstJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func weakDecode(input, output interface{}) error {
	return mapstructure.WeakDecode(input, output)
}

// ScoringOutput is the normalized scorer response.
type ScoringOutput struct {
	SkillsScore     int
	ExperienceScore int
	EducationScore  int
	OverallScore    int
	Skills          []domain.Skill
	Recommendations string
	Summary         string
}

type scoringPayload struct {
	SkillsScore     int         `mapstructure:"skills_score"`
	ExperienceScore int         `mapstructure:"experience_score"`
	EducationScore  int         `mapstructure:"education_score"`
	OverallScore    int         `mapstructure:"overall_score"`
	Skills          []any       `mapstructure:"skills"`
	Recommendations interface{} `mapstructure:"recommendations"`
	Summary         interface{} `mapstructure:"summary"`
}

type skillPayload struct {
	Name        string `mapstructure:"name"`
	Skill       string `mapstructure:"skill"`
	Proficiency string `mapstructure:"proficiency"`
	Level       string `mapstructure:"level"`
}

// ParseScoringOutput parses raw scorer text. Every field in required must be
// present; missing ones make the output a parse failure. Scores are clamped to 0..100.
func ParseScoringOutput(raw string, required []string) (*ScoringOutput, error) {
	m, err := decodeFirstObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	// Accept the {"analysis": {...}} envelope as well as a bare object.
	if inner, ok := m["analysis"].(map[string]interface{}); ok && !hasAny(m, required) {
		m = inner
	}

	for _, field := range required {
		if _, ok := m[field]; !ok {
			return nil, fmt.Errorf("%w: missing field %q", ErrParseFailure, field)
		}
	}

	var p scoringPayload
	if err := weakDecode(m, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	out := &ScoringOutput{
		SkillsScore:     clampScore(p.SkillsScore),
		ExperienceScore: clampScore(p.ExperienceScore),
		EducationScore:  clampScore(p.EducationScore),
		OverallScore:    clampScore(p.OverallScore),
		Recommendations: flattenText(p.Recommendations),
		Summary:         flattenText(p.Summary),
	}
	if _, ok := m[prompts.FieldOverall]; !ok {
		out.OverallScore = (out.SkillsScore + out.ExperienceScore + out.EducationScore) / 3
	}

	for _, item := range p.Skills {
		if skill, ok := parseSkill(item); ok {
			out.Skills = append(out.Skills, skill)
		}
	}
	return out, nil
}

func parseSkill(item interface{}) (domain.Skill, bool) {
	switch v := item.(type) {
	case string:
		name := strings.TrimSpace(v)
		return domain.Skill{Name: name}, name != ""
	case map[string]interface{}:
		var sp skillPayload
		if err := weakDecode(v, &sp); err != nil {
			return domain.Skill{}, false
		}
		name := firstNonEmpty(sp.Name, sp.Skill)
		if name == "" {
			return domain.Skill{}, false
		}
		return domain.Skill{
			Name:        name,
			Proficiency: strings.ToLower(firstNonEmpty(sp.Proficiency, sp.Level)),
		}, true
	}
	return domain.Skill{}, false
}

// MatchOutput is the normalized matcher response.
type MatchOutput struct {
	MatchScore      int
	SkillsMatch     int
	ExperienceMatch int
	EducationMatch  int
	Detail          domain.MatchDetail
}

type matchPayload struct {
	MatchScore      int      `mapstructure:"match_score"`
	SkillsMatch     int      `mapstructure:"skills_match"`
	ExperienceMatch int      `mapstructure:"experience_match"`
	EducationMatch  int      `mapstructure:"education_match"`
	MatchedSkills   []string `mapstructure:"matched_skills"`
	MissingSkills   []string `mapstructure:"missing_skills"`
	Strengths       []string `mapstructure:"strengths"`
	Gaps            []string `mapstructure:"gaps"`
	Recommendation  string   `mapstructure:"recommendation"`
	Reasoning       string   `mapstructure:"reasoning"`
}

// ParseMatchOutput parses raw matcher text. match_score is required.
func ParseMatchOutput(raw string) (*MatchOutput, error) {
	m, err := decodeFirstObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	if _, ok := m["match_score"]; !ok {
		return nil, fmt.Errorf("%w: missing field %q", ErrParseFailure, "match_score")
	}

	var p matchPayload
	if err := weakDecode(m, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	out := &MatchOutput{
		MatchScore:      clampScore(p.MatchScore),
		SkillsMatch:     clampScore(p.SkillsMatch),
		ExperienceMatch: clampScore(p.ExperienceMatch),
		EducationMatch:  clampScore(p.EducationMatch),
		Detail: domain.MatchDetail{
			MatchedSkills: nonNil(p.MatchedSkills),
			MissingSkills: nonNil(p.MissingSkills),
			Strengths:     nonNil(p.Strengths),
			Gaps:          nonNil(p.Gaps),
			Reasoning:     p.Reasoning,
		},
	}
	out.Detail.Recommendation = normalizeRecommendation(p.Recommendation, out.MatchScore)
	return out, nil
}

// normalizeRecommendation keeps a known tag or derives one from the score.
func normalizeRecommendation(tag string, score int) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.ReplaceAll(tag, " ", "_")
	switch tag {
	case domain.RecommendationStrong, domain.RecommendationGood, domain.RecommendationModerate, domain.RecommendationWeak:
		return tag
	}
	switch {
	case score >= 80:
		return domain.RecommendationStrong
	case score >= 65:
		return domain.RecommendationGood
	case score >= 50:
		return domain.RecommendationModerate
	default:
		return domain.RecommendationWeak
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func flattenText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if s := flattenText(item); s != "" {
				lines = append(lines, s)
			}
		}
		return strings.Join(lines, "\n")
	default:
		var s string
		if err := weakDecode(t, &s); err == nil {
			return strings.TrimSpace(s)
		}
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func hasAny(m map[string]interface{}, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
