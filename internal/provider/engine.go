package provider

import (
	"clrmeta/internal/metadata"
	"clrmeta/internal/token"
)

// Engine is the view the execution engine uses.
type Engine interface {
	// ResolveType resolves a type token under the caller's generic context.
	ResolveType(module metadata.ModuleID, tok token.Token, ctx metadata.GenericContext) (*metadata.Type, error)
	// ResolveMethod resolves a method token with the enclosing class-level
	// and method-level argument lists (either may be nil).
	ResolveMethod(module metadata.ModuleID, tok token.Token, classInst, methodInst *metadata.Inst) (*metadata.Method, error)
	// GetBody returns the bytecode of an interpreted method.
	GetBody(m *metadata.Method) (*metadata.MethodBody, bool)
}

var _ Engine = (*Provider)(nil)

func (p *Provider) ResolveType(module metadata.ModuleID, tok token.Token, ctx metadata.GenericContext) (*metadata.Type, error) {
	return p.ResolveTypeFromToken(module, tok, nil, ctx)
}

func (p *Provider) ResolveMethod(module metadata.ModuleID, tok token.Token, classInst, methodInst *metadata.Inst) (*metadata.Method, error) {
	return p.ResolveMethodFromToken(module, tok, nil, nil, metadata.GenericContext{ClassInst: classInst, MethodInst: methodInst})
}

func (p *Provider) GetBody(m *metadata.Method) (*metadata.MethodBody, bool) {
	if m == nil || m.Def == nil {
		return nil, false
	}
	return p.GetMethodBody(m.Def.ID.Module, m.Def.ID.Token)
}
