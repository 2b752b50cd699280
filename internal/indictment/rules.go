package indictment

import "regexp"

// Field names a semantic slot of Info.
type Field string

const (
	FieldDefendants       Field = "defendants"
	FieldVictims          Field = "victims"
	FieldCharges          Field = "charges"
	FieldIncidentDate     Field = "incident_date"
	FieldIncidentLocation Field = "incident_location"
	FieldWitnesses        Field = "witnesses"
)

// Rule is a named pattern whose first capture group is the extracted value.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// FieldRules lists the rules for one field in priority order.
type FieldRules struct {
	Field Field
	// Multi fields collect every match of every rule; single fields stop at the
	// first rule that matches anywhere in the text.
	Multi bool
	// Split, when set, breaks a single capture into several values.
	Split *regexp.Regexp
	Rules []Rule
}

// RuleSet is an ordered list of field rules.
type RuleSet []FieldRules

func rule(name, expr string) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(`(?i)` + expr)}
}

const (
	// name fragment ended by comma, semicolon, newline or period
	fragment = `([^,;\n\.]+)`
	months   = `(?:janeiro|fevereiro|março|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)`
	numDate  = `(\d{1,2}/\d{1,2}/\d{2,4})`
	longDate = `(\d{1,2}\s+de\s+` + months + `\s+de\s+\d{2,4})`
	// \b is ASCII-only and treats accented letters as boundaries
	notWord = `(?:^|[^\p{L}\p{N}])`
	// explicit temporal connectors; bare "em" is weaker and tried last
	strongWhen = `(?:no dia|na data de|datado de)\s*`
	weakWhen   = notWord + `em\s*`
	placePrep  = notWord + `(?:em|no|na|nos|nas)\s+`
	place      = `([^,;\n\.]{5,100})`
)

var conjunction = regexp.MustCompile(`\s+e\s+`)

// DefaultRules holds the rules tuned for Brazilian criminal indictments.
var DefaultRules = RuleSet{
	{
		Field: FieldDefendants, Multi: true, Split: conjunction,
		Rules: []Rule{
			rule("denunciado", `denunciados?:?\s*`+fragment),
			rule("acusado", `acusados?:?\s*`+fragment),
			rule("reu", `réus?:?\s*`+fragment),
		},
	},
	{
		Field: FieldVictims, Multi: true, Split: conjunction,
		Rules: []Rule{
			rule("vitima", `vítimas?:?\s*`+fragment),
			rule("ofendido", `ofendidos?:?\s*`+fragment),
		},
	},
	{
		Field: FieldCharges, Multi: true,
		Rules: []Rule{
			rule("crime", `crimes? (?:de|do|da)?\s*`+fragment),
			rule("delito", `delitos? (?:de|do|da)?\s*`+fragment),
			rule("artigo", `(\b(?:art\.?|artigo)\s*\d+[^.;\n]*?\b(?:do|da)\s+(?:CP|Código Penal))`),
		},
	},
	{
		Field: FieldIncidentDate,
		Rules: []Rule{
			rule("data-numerica", strongWhen+numDate),
			rule("data-extenso", strongWhen+longDate),
			rule("em-data-numerica", weakWhen+numDate),
			rule("em-data-extenso", weakWhen+longDate),
		},
	},
	{
		Field: FieldIncidentLocation,
		Rules: []Rule{
			rule("ocorrencia", `(?:ocorrido|ocorrida|ocorreram|aconteceu|sucedeu|deu-se)[^,;\.]*?`+placePrep+place),
			rule("local", `(?:local|lugar|endereço)[^,;\.]*?`+placePrep+place),
		},
	},
	{
		Field: FieldWitnesses, Multi: true, Split: conjunction,
		Rules: []Rule{
			rule("testemunha", `testemunhas?:?\s*`+fragment),
			rule("depoimento", `(?:ouvir|ouvido|depoimento de)\s*`+fragment),
		},
	},
}
