package book

import "time"

// EditReport is the outcome of one editor pass over one chapter.
type EditReport struct {
	Chapter     int       `json:"chapter" jsonschema:"description=Chapter number that was reviewed"`
	Pass        int       `json:"pass" jsonschema:"description=Review pass number"`
	Score       int       `json:"score" jsonschema:"description=Quality score from 0 (unusable) to 10 (publishable),minimum=0,maximum=10"`
	Approved    bool      `json:"approved" jsonschema:"description=True when the chapter needs no further revision"`
	Summary     string    `json:"summary" jsonschema:"description=One paragraph assessment"`
	Issues      []string  `json:"issues" jsonschema:"description=Concrete problems found"`
	Suggestions []string  `json:"suggestions" jsonschema:"description=Concrete changes the writer should make"`
	CreatedAt   time.Time `json:"created_at" jsonschema:"-"`
}

// Clamp keeps the score within 0..10 and withdraws approval when the score is
// below the approval threshold.
func (r *EditReport) Clamp(approveScore int) {
	r.Score = min(max(r.Score, 0), 10)
	if r.Score < approveScore {
		r.Approved = false
	}
}
