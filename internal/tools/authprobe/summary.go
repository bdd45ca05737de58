package authprobe

import (
	"strconv"

	"golang.org/x/text/message"
)

// Summary is the integration recommendation printed after a passing run.
type Summary struct {
	DatabaseSchema             SummaryNote         `json:"database_schema"`
	AuthenticationFlow         AuthenticationFlow  `json:"authentication_flow"`
	IntegrationApproaches      []IntegrationOption `json:"integration_approaches"`
	RecommendedApproach        Recommendation      `json:"recommended_approach"`
	ImplementationRequirements []string            `json:"implementation_requirements"`
}

// SummaryNote records a compatibility verdict.
type SummaryNote struct {
	Compatible bool   `json:"compatible"`
	Notes      string `json:"notes"`
}

// AuthenticationFlow describes what TCRT supports.
type AuthenticationFlow struct {
	SupportedMethods []string `json:"supported_methods"`
	TokenType        string   `json:"token_type"`
	TokenStorage     string   `json:"token_storage"`
}

// IntegrationOption is one way the story map tool could use TCRT accounts.
type IntegrationOption struct {
	Approach    string   `json:"approach"`
	Description string   `json:"description"`
	Pros        []string `json:"pros"`
	Cons        []string `json:"cons"`
}

// Recommendation is the chosen approach and its rollout steps.
type Recommendation struct {
	Name  string   `json:"name"`
	Steps []string `json:"steps"`
}

// integrationSummary renders the recommendation in the printer's language.
func integrationSummary(printer *message.Printer) Summary {
	text := func(key string) string { return printer.Sprintf(key) }
	list := func(prefix string, n int) []string {
		out := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			out = append(out, text(prefix+"."+strconv.Itoa(i)))
		}
		return out
	}
	option := func(name string, pros, cons int) IntegrationOption {
		return IntegrationOption{
			Approach:    text("summary." + name + ".name"),
			Description: text("summary." + name + ".description"),
			Pros:        list("summary."+name+".pro", pros),
			Cons:        list("summary."+name+".con", cons),
		}
	}

	return Summary{
		DatabaseSchema: SummaryNote{
			Compatible: true,
			Notes:      text("summary.schema.notes"),
		},
		AuthenticationFlow: AuthenticationFlow{
			SupportedMethods: []string{
				text("summary.flow.method.challenge"),
				text("summary.flow.method.plaintext"),
			},
			TokenType:    text("summary.flow.token_type"),
			TokenStorage: text("summary.flow.token_storage"),
		},
		IntegrationApproaches: []IntegrationOption{
			option("shared", 3, 3),
			option("api", 4, 2),
			option("sso", 3, 2),
		},
		RecommendedApproach: Recommendation{
			Name:  text("summary.recommended.name"),
			Steps: list("summary.recommended.step", 7),
		},
		ImplementationRequirements: list("summary.requirement", 5),
	}
}
