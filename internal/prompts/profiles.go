package prompts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Score fields a profile can require from the scorer.
const (
	FieldSkills     = "skills_score"
	FieldExperience = "experience_score"
	FieldEducation  = "education_score"
	FieldOverall    = "overall_score"
)

// DefaultProfile is used when a request names no profile.
const DefaultProfile = "standard"

// Profile parameterizes one resume scoring run.
type Profile struct {
	Name         string
	Model        string // empty means the provider default
	SystemPrompt string
	UserTemplate string // placeholders: {{RESUME_TEXT}}, {{COVER_LETTER}}, {{SCORE_FIELDS}}
	ScoreFields  []string
	Temperature  float32
}

// RenderUser fills the profile's user template.
func (p Profile) RenderUser(resumeText, coverLetter string) string {
	if strings.TrimSpace(coverLetter) == "" {
		coverLetter = "(none provided)"
	}
	return Render(p.UserTemplate, map[string]string{
		"RESUME_TEXT":  resumeText,
		"COVER_LETTER": coverLetter,
		"SCORE_FIELDS": scoreFieldsSchema(p.ScoreFields),
	})
}

func scoreFieldsSchema(fields []string) string {
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "  %q: integer 0-100,\n", f)
	}
	return b.String()
}

const scoringSystemPrompt = `You are an expert HR analyst. You evaluate resumes objectively and return structured scores.
Score every dimension as an integer from 0 to 100. Respond with a single JSON object and nothing else.`

const standardUserTemplate = `Analyze the following resume and cover letter.

Resume:
{{RESUME_TEXT}}

Cover letter:
{{COVER_LETTER}}

Return JSON with these keys:
{
{{SCORE_FIELDS}}  "skills": [{"name": string, "proficiency": "beginner" | "intermediate" | "advanced" | "expert"}],
  "recommendations": string,
  "summary": string
}`

const detailedSystemPrompt = `You are a senior technical recruiter and HR analyst with deep domain knowledge.
Evaluate resumes rigorously: weigh recency and depth of experience, verify that claimed skills are backed by concrete work, and penalize vague statements.
Score every dimension as an integer from 0 to 100. Respond with a single JSON object and nothing else.`

const detailedUserTemplate = `Perform an in-depth analysis of the candidate below.

Resume:
{{RESUME_TEXT}}

Cover letter:
{{COVER_LETTER}}

For every skill, infer proficiency from evidence in the resume (years used, scope, outcomes).
Recommendations must be concrete and actionable for the hiring team.
The summary must be 3-5 sentences covering strengths, risks and seniority.

Return JSON with these keys:
{
{{SCORE_FIELDS}}  "skills": [{"name": string, "proficiency": "beginner" | "intermediate" | "advanced" | "expert"}],
  "recommendations": string,
  "summary": string
}`

// ErrUnknownProfile is returned for a profile name that is not registered.
var ErrUnknownProfile = errors.New("unknown scoring profile")

var allScoreFields = []string{FieldSkills, FieldExperience, FieldEducation, FieldOverall}

var profiles = map[string]Profile{
	"standard": {
		Name:         "standard",
		SystemPrompt: scoringSystemPrompt,
		UserTemplate: standardUserTemplate,
		ScoreFields:  allScoreFields,
		Temperature:  0.2,
	},
	"detailed": {
		Name:         "detailed",
		Model:        "gpt-4o",
		SystemPrompt: detailedSystemPrompt,
		UserTemplate: detailedUserTemplate,
		ScoreFields:  allScoreFields,
		Temperature:  0.1,
	},
}

// LookupProfile returns the named profile. An empty name selects DefaultProfile.
func LookupProfile(name string) (Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// ProfileNames lists the registered profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
