package service

import (
	"html"
	"regexp"
)

// Template is a subject/body pair with {{variable}} placeholders.
type Template struct {
	Subject string
	Body    string
}

// Recognized template variables.
const (
	VarCandidateName     = "candidate_name"
	VarJobRole           = "job_role"
	VarMatchScore        = "match_score"
	VarScoreMessage      = "score_message"
	VarCount             = "count"
	VarPlural            = "plural"
	VarThreshold         = "threshold"
	VarRecruiterGreeting = "recruiter_greeting"
	VarCandidatesList    = "candidates_list"
	VarStatus            = "status"
	VarStatusMessage     = "status_message"
)

// rawHTMLVars are inserted without escaping because they are built as HTML.
var rawHTMLVars = map[string]bool{
	VarCandidatesList: true,
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// RenderText substitutes vars into tpl verbatim. Unknown placeholders are left untouched.
func RenderText(tpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// RenderHTML substitutes vars into tpl, HTML-escaping every value except
// pre-built HTML fragments. Unknown placeholders are left untouched.
func RenderHTML(tpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			return m
		}
		if rawHTMLVars[name] {
			return v
		}
		return html.EscapeString(v)
	})
}

// Render fills both parts of t.
func (t Template) Render(vars map[string]string) (subject, body string) {
	return RenderText(t.Subject, vars), RenderHTML(t.Body, vars)
}

// defaultTemplates are used when no active template is stored for a type.
var defaultTemplates = map[string]Template{
	"analysis_complete": {
		Subject: "Your application for {{job_role}} has been reviewed",
		Body: `<p>Hi {{candidate_name}},</p>
<p>Thank you for applying for the <strong>{{job_role}}</strong> position. Our AI review of your resume is complete.</p>
<p>Your overall score: <strong>{{match_score}}/100</strong>. {{score_message}}</p>
<p>A recruiter will be in touch about next steps.</p>`,
	},
	"high_score_candidate": {
		Subject: "Great news about your {{job_role}} application",
		Body: `<p>Hi {{candidate_name}},</p>
<p>Your profile is a strong match for the <strong>{{job_role}}</strong> role, with a match score of <strong>{{match_score}}%</strong>.</p>
<p>Our recruiting team will contact you shortly.</p>`,
	},
	"recruiter_high_score": {
		Subject: "{{count}} high-scoring candidate{{plural}} for {{job_role}}",
		Body: `<p>{{recruiter_greeting}}</p>
<p>{{count}} candidate{{plural}} scored at or above {{threshold}}% for <strong>{{job_role}}</strong>:</p>
{{candidates_list}}
<p>Review them in the hiring dashboard.</p>`,
	},
	"status_change": {
		Subject: "Update on your {{job_role}} application",
		Body: `<p>Hi {{candidate_name}},</p>
<p>Your application for <strong>{{job_role}}</strong> has moved to the <strong>{{status}}</strong> stage.</p>
<p>{{status_message}}</p>`,
	},
}
