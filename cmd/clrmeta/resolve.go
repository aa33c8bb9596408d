package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/provider"
	"clrmeta/internal/token"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <module> <token>...",
	Short: "Resolve metadata tokens of a module",
	Long: `Resolve tokens (hex such as 0x1b000001, or decimal) in the scope of a module.
Type, method and field tokens are resolved without a generic context; MemberRef
tokens resolve as a method or a field depending on the reference`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		toks := make([]token.Token, 0, len(args)-1)
		for _, arg := range args[1:] {
			tok, err := token.Parse(arg)
			if err != nil {
				return err
			}
			toks = append(toks, tok)
		}
		return withSession(cmd, func(s *session) error {
			mod, err := s.module(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			failed := 0
			for _, tok := range toks {
				desc, err := describeToken(s.prov, mod.ID, tok)
				if err != nil {
					if metaerr.IsFatal(err) {
						return err
					}
					failed++
					fmt.Fprintf(out, "%s  %s\n", tokenColor.Sprint(tok), errColor.Sprint(err))
					continue
				}
				fmt.Fprintf(out, "%s  %s\n", tokenColor.Sprint(tok), desc)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tokens failed to resolve", failed, len(toks))
			}
			return nil
		})
	},
}

// describeToken resolves tok through the provider and renders the result.
func describeToken(p *provider.Provider, module metadata.ModuleID, tok token.Token) (string, error) {
	none := metadata.GenericContext{}
	switch tok.Kind() {
	case token.TypeDef, token.TypeRef, token.TypeSpec:
		t, err := p.ResolveType(module, tok, none)
		if err != nil {
			return "", err
		}
		return "type " + t.String() + definedIn(p, t.Definition()), nil

	case token.Method, token.MethodSpec:
		return describeMethod(p, module, tok)

	case token.Field:
		return describeField(p, module, tok)

	case token.MemberRef:
		img, err := p.GetImageForModule(module)
		if err != nil {
			return "", err
		}
		raw, _ := tok.RawIndex()
		ref, err := img.MemberRef(raw)
		if err != nil {
			return "", err
		}
		if ref.Field {
			return describeField(p, module, tok)
		}
		return describeMethod(p, module, tok)
	}
	return "", metaerr.InvalidArgument("resolve", "%s tokens cannot be resolved", tok.Kind())
}

func describeMethod(p *provider.Provider, module metadata.ModuleID, tok token.Token) (string, error) {
	m, err := p.ResolveMethod(module, tok, nil, nil)
	if err != nil {
		return "", err
	}
	desc := "method " + m.String() + definedIn(p, m.DeclaringType.Definition())
	switch {
	case m.IsGeneric() && !m.IsInflated():
		desc += "  open"
	case m.Generic != nil:
		desc += "  inflated"
	}
	if _, ok := p.GetBody(m); ok {
		desc += "  body"
	}
	return desc, nil
}

func describeField(p *provider.Provider, module metadata.ModuleID, tok token.Token) (string, error) {
	f, err := p.ResolveFieldFromToken(module, tok, nil, metadata.GenericContext{})
	if err != nil {
		return "", err
	}
	return "field " + f.DeclaringType.String() + "::" + f.Field.Name + definedIn(p, f.Field.Owner()), nil
}

func definedIn(p *provider.Provider, def *metadata.TypeDef) string {
	if def == nil {
		return ""
	}
	if mod, ok := p.Module(def.ID.Module); ok {
		return fmt.Sprintf("  [%s, %s]", mod.Name, mod.Origin)
	}
	return ""
}
