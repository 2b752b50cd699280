package jurisprudence

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/melkor/internal/browser"
)

// formSite submits the site's search form but has no result selectors yet.
// It always reports ErrNotImplemented, never results.
type formSite struct {
	name  string
	url   string
	input string
	// submit is a button selector; empty means pressing Enter in input.
	submit string
}

// NewSTF returns the Supremo Tribunal Federal navigation stub.
func NewSTF() Site {
	return &formSite{
		name:  "stf",
		url:   "https://portal.stf.jus.br/jurisprudencia/pesquisarJurisprudencia.asp",
		input: "input[name='pesquisa']",
	}
}

// NewTJMG returns the Tribunal de Justiça de Minas Gerais navigation stub.
func NewTJMG() Site {
	return &formSite{
		name:   "tjmg",
		url:    "https://www5.tjmg.jus.br/jurisprudencia/pesquisaJurisprudenciaPrimeiraInstancia.do",
		input:  "input[name='palavras']",
		submit: "input[name='pesquisar']",
	}
}

func (f *formSite) Name() string { return f.name }

func (f *formSite) Search(ctx context.Context, p browser.Page, term string, env Env) ([]Result, error) {
	if err := f.submitForm(ctx, p, term, env); err != nil {
		log.Debug().Err(err).Str("site", f.name).Msg("stub navigation failed")
		return nil, errors.Join(ErrNotImplemented, err)
	}
	return nil, ErrNotImplemented
}

func (f *formSite) submitForm(ctx context.Context, p browser.Page, term string, env Env) error {
	if err := env.Navigate(ctx, p, f.url); err != nil {
		return err
	}
	if err := env.Do(ctx, func(ctx context.Context) error { return p.Fill(ctx, f.input, term) }); err != nil {
		return err
	}
	err := env.Do(ctx, func(ctx context.Context) error {
		if f.submit == "" {
			return p.Press(ctx, f.input, "Enter")
		}
		return p.Click(ctx, f.submit)
	})
	if err != nil {
		return err
	}
	return env.Settle(ctx)
}
