package provider

import (
	"clrmeta/internal/image"
	"clrmeta/internal/metadata"
	"clrmeta/internal/metaerr"
	"clrmeta/internal/token"
)

// GetImageForModule returns the image of a registered module. Compiled
// modules get one adapter, built on first request.
func (p *Provider) GetImageForModule(id metadata.ModuleID) (image.Image, error) {
	const op = "image"
	p.mu.RLock()
	if !p.initialized {
		p.mu.RUnlock()
		return nil, metaerr.NotInitialized(op, "provider")
	}
	e, ok := p.modules[id]
	if ok && e.interp != nil {
		p.mu.RUnlock()
		return e.interp, nil
	}
	adapter, cached := p.adapters[id]
	p.mu.RUnlock()
	if !ok {
		return nil, metaerr.NotFound(op, "module %s is not registered", id)
	}
	if cached {
		return adapter, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil, metaerr.NotInitialized(op, "provider")
	}
	if adapter, cached := p.adapters[id]; cached {
		return adapter, nil
	}
	adapter, err := image.NewCompiled(e.window, p.resolver)
	if err != nil {
		return nil, err
	}
	p.adapters[id] = adapter
	return adapter, nil
}

// ImageForModule implements resolve.Locator.
func (p *Provider) ImageForModule(id metadata.ModuleID) (image.Image, error) {
	return p.GetImageForModule(id)
}

// ImageForAssembly implements resolve.Locator. Assemblies are matched by
// module name.
func (p *Provider) ImageForAssembly(name string) (image.Image, error) {
	mod, ok := p.ModuleByName(name)
	if !ok {
		return nil, metaerr.NotFound("locate", "assembly %q is not loaded", name)
	}
	return p.GetImageForModule(mod.ID)
}

// GetMethodBody returns the body of a Method token; compiled modules have none.
func (p *Provider) GetMethodBody(id metadata.ModuleID, tok token.Token) (*metadata.MethodBody, bool) {
	img, err := p.GetImageForModule(id)
	if err != nil {
		return nil, false
	}
	return img.GetMethodBody(tok)
}

func (p *Provider) GetTypeDefinition(id metadata.ModuleID, raw uint32) (*metadata.TypeDef, error) {
	img, err := p.GetImageForModule(id)
	if err != nil {
		return nil, err
	}
	return img.GetTypeDefinition(raw)
}

func (p *Provider) GetMethodDefinition(id metadata.ModuleID, raw uint32) (*metadata.MethodDef, error) {
	img, err := p.GetImageForModule(id)
	if err != nil {
		return nil, err
	}
	return img.GetMethodDefinition(raw)
}

func (p *Provider) GetFieldDefinition(id metadata.ModuleID, raw uint32) (*metadata.FieldDef, error) {
	img, err := p.GetImageForModule(id)
	if err != nil {
		return nil, err
	}
	return img.GetFieldDefinition(raw)
}

func (p *Provider) GetGenericContainer(id metadata.ModuleID, tok token.Token) (*metadata.GenericContainer, bool) {
	img, err := p.GetImageForModule(id)
	if err != nil {
		return nil, false
	}
	return img.GetGenericContainer(tok)
}

func (p *Provider) ResolveTypeFromToken(id metadata.ModuleID, tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Type, error) {
	img, err := p.GetImageForModule(id)
	if err != nil {
		return nil, err
	}
	return img.ResolveTypeFromToken(tok, class, ctx)
}

func (p *Provider) ResolveMethodFromToken(id metadata.ModuleID, tok token.Token, class, method *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.Method, error) {
	img, err := p.GetImageForModule(id)
	if err != nil {
		return nil, err
	}
	return img.ResolveMethodFromToken(tok, class, method, ctx)
}

func (p *Provider) ResolveFieldFromToken(id metadata.ModuleID, tok token.Token, class *metadata.GenericContainer, ctx metadata.GenericContext) (*metadata.FieldRef, error) {
	img, err := p.GetImageForModule(id)
	if err != nil {
		return nil, err
	}
	return img.ResolveFieldFromToken(tok, class, ctx)
}
