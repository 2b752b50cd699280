package analysis

import (
	"testing"

	"github.com/hyperifyio/melkor/internal/indictment"
)

const weakIndictment = `
O réu é acusado de ter cometido o crime de roubo em plena luz do dia.
No entanto, há uma Contradição Evidente no depoimento da principal testemunha.
Ademais, parece haver uma falta de provas materiais que conectem o réu ao local do crime.
A acusação se baseia fortemente em testemunhos indiretos.
A arma não foi apreendida.
`

func complete() indictment.Info {
	return indictment.Info{
		IncidentDate:     "10 de janeiro de 2023",
		IncidentLocation: "Rua das Flores",
		Witnesses:        []string{"PEDRO SANTOS"},
	}
}

func rules(fs []Finding) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Rule
	}
	return out
}

func TestAnalyze_KeywordRules(t *testing.T) {
	got := rules(Analyze(weakIndictment, complete()))
	want := []string{"contradicao", "falta_provas", "testemunho_indireto", "arma_nao_apreendida"}
	if len(got) != len(want) {
		t.Fatalf("rules = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rules = %v, want %v", got, want)
		}
	}
}

func TestAnalyze_OmissionRules(t *testing.T) {
	got := rules(Analyze("texto sem nada de especial", indictment.Info{}))
	want := []string{"sem_data", "sem_local", "sem_testemunhas"}
	if len(got) != len(want) {
		t.Fatalf("rules = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rules = %v, want %v", got, want)
		}
	}
}

func TestAnalyze_NothingFound(t *testing.T) {
	got := Analyze("Denúncia clara e bem fundamentada.", complete())
	if len(got) != 1 || got[0].Message != NoFindings {
		t.Fatalf("findings = %+v", got)
	}
}

func TestAnalyzer_CustomRules(t *testing.T) {
	a := Analyzer{Keywords: []KeywordRule{{Name: "x", Phrases: []string{"PRESCRIÇÃO"}, Message: "m"}}}
	got := a.Analyze("possível prescrição da pretensão punitiva", indictment.Info{})
	if len(got) != 1 || got[0].Rule != "x" {
		t.Fatalf("findings = %+v", got)
	}
}
