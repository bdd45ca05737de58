package authprobe

import (
	"encoding/json"
	"io"
	"time"

	"github.com/louisbranch/tcrt-authprobe/internal/tcrt"
)

// Step names, in run order.
const (
	StepDatabase = "database"
	StepAccount  = "account"
	StepLogin    = "login"
	StepVerify   = "verify"
	StepValidate = "validate"
	StepTeams    = "teams"
	StepLogout   = "logout"
	StepSummary  = "summary"
)

// StepResult records the outcome of one step.
type StepResult struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	DurationMS int64  `json:"duration_ms"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
	Warning    string `json:"warning,omitempty"`
}

// Result is the JSON report of a run.
type Result struct {
	DBPath     string       `json:"db_path"`
	APIBaseURL string       `json:"api_base_url"`
	StartedAt  time.Time    `json:"started_at"`
	Username   string       `json:"username,omitempty"`
	UserCount  int          `json:"active_users"`
	Passed     bool         `json:"passed"`
	Steps      []StepResult `json:"steps"`
	Teams      []tcrt.Team  `json:"teams,omitempty"`
	Summary    *Summary     `json:"summary,omitempty"`
}

// FailedStep returns the first failed step, if any.
func (r Result) FailedStep() (StepResult, bool) {
	for _, step := range r.Steps {
		if !step.Passed {
			return step, true
		}
	}
	return StepResult{}, false
}

func writeJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
