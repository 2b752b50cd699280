// Package analysis flags weak points of an indictment for the defence.
//
// The checks are a preliminary screen: keyword rules over the text and
// omission rules over the structured fields pulled out of it.
package analysis

import (
	"strings"

	"github.com/hyperifyio/melkor/internal/indictment"
)

// NoFindings is the single finding returned when no rule fires.
const NoFindings = "Nenhum ponto fraco óbvio identificado na análise preliminar."

// Finding is one weak point.
type Finding struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// KeywordRule fires when any of its phrases occurs in the lower-cased text.
type KeywordRule struct {
	Name    string
	Phrases []string
	Message string
}

// OmissionRule fires when Missing reports the field absent.
type OmissionRule struct {
	Name    string
	Missing func(indictment.Info) bool
	Message string
}

// DefaultKeywordRules are checked in order.
var DefaultKeywordRules = []KeywordRule{
	{
		Name:    "contradicao",
		Phrases: []string{"contradição evidente"},
		Message: "Identificada uma contradição evidente na narrativa da acusação.",
	},
	{
		Name:    "falta_provas",
		Phrases: []string{"falta de provas materiais"},
		Message: "Aparente falta de provas materiais para corroborar certas alegações.",
	},
	{
		Name:    "testemunho_indireto",
		Phrases: []string{"testemunho indireto", "testemunhos indiretos"},
		Message: "A acusação se apoia em testemunho indireto.",
	},
	{
		Name:    "arma_nao_apreendida",
		Phrases: []string{"não foi apreendida", "não foi apreendido"},
		Message: "Objeto ou arma do crime não foi apreendido; a materialidade pode ser contestada.",
	},
}

// DefaultOmissionRules are checked after the keyword rules.
var DefaultOmissionRules = []OmissionRule{
	{
		Name:    "sem_data",
		Missing: func(i indictment.Info) bool { return strings.TrimSpace(i.IncidentDate) == "" },
		Message: "A denúncia não indica com clareza a data do fato.",
	},
	{
		Name:    "sem_local",
		Missing: func(i indictment.Info) bool { return strings.TrimSpace(i.IncidentLocation) == "" },
		Message: "A denúncia não indica com clareza o local do fato.",
	},
	{
		Name:    "sem_testemunhas",
		Missing: func(i indictment.Info) bool { return len(i.Witnesses) == 0 },
		Message: "Nenhuma testemunha foi arrolada na denúncia.",
	},
}

// Analyzer runs a fixed set of rules.
type Analyzer struct {
	Keywords  []KeywordRule
	Omissions []OmissionRule
}

// Default returns an Analyzer with the built-in rules.
func Default() Analyzer {
	return Analyzer{Keywords: DefaultKeywordRules, Omissions: DefaultOmissionRules}
}

// Analyze runs the built-in rules.
func Analyze(text string, info indictment.Info) []Finding {
	return Default().Analyze(text, info)
}

// Analyze returns findings in rule order. It never returns an empty slice:
// when nothing fires, the result holds a single NoFindings entry.
func (a Analyzer) Analyze(text string, info indictment.Info) []Finding {
	lower := strings.ToLower(text)
	var out []Finding
	for _, r := range a.Keywords {
		for _, p := range r.Phrases {
			if strings.Contains(lower, strings.ToLower(p)) {
				out = append(out, Finding{Rule: r.Name, Message: r.Message})
				break
			}
		}
	}
	for _, r := range a.Omissions {
		if r.Missing != nil && r.Missing(info) {
			out = append(out, Finding{Rule: r.Name, Message: r.Message})
		}
	}
	if len(out) == 0 {
		return []Finding{{Rule: "nenhum", Message: NoFindings}}
	}
	return out
}
