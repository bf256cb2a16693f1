package agent

import (
	"fmt"

	"github.com/casualjim/bookstart/api"
)

// Role is the job an agent performs in book production.
type Role string

const (
	RoleOutliner   Role = "outliner"
	RoleWriter     Role = "writer"
	RoleEditor     Role = "editor"
	RoleResearcher Role = "researcher"
)

// Roles lists every role in the order they act on a book.
func Roles() []Role {
	return []Role{RoleOutliner, RoleResearcher, RoleWriter, RoleEditor}
}

// The instruction templates read these variables:
//
//	book           book.Book
//	approve_score  int, editor only
const (
	outlinerInstructions = `You are an experienced book architect planning "{{.book.Title}}".
Theme: {{.book.Theme}}
{{- with .book.Genre}}
Genre: {{.}}{{end}}
{{- with .book.Audience}}
Audience: {{.}}{{end}}
{{- with .book.Style}}
Style: {{.}}{{end}}

Design a compelling structure of exactly {{.book.ChapterCount}} chapters written in {{.book.Language}}.
Every chapter needs a short evocative title, a summary of two to four sentences that
moves the story or argument forward, and three to six lower case keywords.
Answer with the JSON document requested and nothing else.`

	writerInstructions = `You are a skilled author writing the book "{{.book.Title}}" in {{.book.Language}}.
Theme: {{.book.Theme}}
{{- with .book.Genre}}
Genre: {{.}}{{end}}
{{- with .book.Audience}}
Audience: {{.}}{{end}}
{{- with .book.Style}}
Style: {{.}}{{end}}

Write vivid, coherent prose of about {{.book.WordsPerChapter}} words per chapter.
Stay consistent with the outline and the previous chapters. Use markdown
paragraphs, never repeat the chapter heading and never comment on your own writing.`

	editorInstructions = `You are a demanding editor reviewing chapters of "{{.book.Title}}".
Judge each chapter on clarity, pacing, consistency with its outline entry,
voice{{with .book.Style}} ("{{.}}"){{end}} and grammar.
Score from 0 to 10; only chapters that score {{.approve_score}} or more are approved.
List concrete issues and actionable suggestions.
Answer with the JSON document requested and nothing else.`

	researcherInstructions = `You are a meticulous researcher supporting the author of "{{.book.Title}}".
Theme: {{.book.Theme}}

Write concise research notes in markdown on the topic you are given: key facts,
vocabulary, sensory details and pitfalls the author should know about.
Close with a line "Keywords:" followed by five to ten comma separated lower case keywords.`
)

var roleInstructions = map[Role]string{
	RoleOutliner:   outlinerInstructions,
	RoleWriter:     writerInstructions,
	RoleEditor:     editorInstructions,
	RoleResearcher: researcherInstructions,
}

// ForRole creates the agent for role on model.
func ForRole(role Role, model api.Model) (api.Agent, error) {
	instructions, ok := roleInstructions[role]
	if !ok {
		return nil, fmt.Errorf("unknown agent role %q", role)
	}
	return New(Name(string(role)), Model(model), Instructions(instructions)), nil
}

// Team holds one agent per role.
type Team struct {
	Outliner   api.Agent
	Writer     api.Agent
	Editor     api.Agent
	Researcher api.Agent
}

// NewTeam creates every role on model and registers the agents.
func NewTeam(model api.Model) Team {
	team := Team{}
	for _, role := range Roles() {
		a, _ := ForRole(role, model)
		Add(a)
		switch role {
		case RoleOutliner:
			team.Outliner = a
		case RoleWriter:
			team.Writer = a
		case RoleEditor:
			team.Editor = a
		case RoleResearcher:
			team.Researcher = a
		}
	}
	return team
}
