package prompts

import "strings"

// ============================================================================
// Extraction Prompts (multimodal)
// ============================================================================

// ExtractionSystemPrompt defines the role for document text extraction.
const ExtractionSystemPrompt = `You are a document transcription assistant. You only transcribe the text content of the attached document.`

// ExtractionUserPrompt instructs the model to output only the document text.
const ExtractionUserPrompt = `Extract all text from this resume document. Keep the original reading order and line breaks.
Output only the extracted text, with no commentary, headings or prefixes.
If the document contains no readable text, output an empty string.`

// ============================================================================
// Matching Prompts (LLM)
// ============================================================================

// MatchingSystemPrompt is the system prompt for candidate-to-requirement matching.
const MatchingSystemPrompt = `You are an experienced technical recruiter. You compare a candidate profile with a job requirement and return a structured assessment.
Be strict about required skills and minimum experience. Never invent skills the profile does not mention.
Respond with a single JSON object and nothing else.`

// MatchingUserTemplate is filled with the requirement and candidate profile.
// Placeholders: {{REQUIREMENT_JSON}}, {{PROFILE_JSON}}.
const MatchingUserTemplate = `Job requirement:
{{REQUIREMENT_JSON}}

Candidate profile:
{{PROFILE_JSON}}

Return JSON with exactly these keys:
{
  "match_score": integer 0-100,
  "skills_match": integer 0-100,
  "experience_match": integer 0-100,
  "education_match": integer 0-100,
  "matched_skills": [string],
  "missing_skills": [string],
  "strengths": [string],
  "gaps": [string],
  "recommendation": one of "strong_match", "good_match", "moderate_match", "weak_match",
  "reasoning": short string
}`

// Render replaces {{KEY}} placeholders in tpl with the given values.
// Unknown placeholders are left as they are.
func Render(tpl string, values map[string]string) string {
	if len(values) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
