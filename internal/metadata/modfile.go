package metadata

import (
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"clrmeta/internal/metaerr"
)

// ModuleFileSchema is the current module file version; bump when Tables'
// serialized shape changes.
const ModuleFileSchema uint16 = 1

// ModuleFile is the on-disk form of an interpreted module.
type ModuleFile struct {
	Schema uint16
	Name   string
	MVID   string
	Tables Tables
}

// Module returns the module descriptor. Files without an MVID get an id
// derived from their name.
func (f *ModuleFile) Module() (Module, error) {
	mod := Module{Name: f.Name, Origin: OriginInterpreted}
	if f.MVID == "" {
		mod.ID = NewModuleID(f.Name)
		return mod, nil
	}
	id, err := ParseModuleID(f.MVID)
	if err != nil {
		return Module{}, metaerr.New("read-module", metaerr.KindCorrupt).Module(f.Name).Cause(err).Build()
	}
	mod.ID = id
	return mod, nil
}

// WriteModuleFile serializes f.
func WriteModuleFile(w io.Writer, f *ModuleFile) error {
	if f.Schema == 0 {
		f.Schema = ModuleFileSchema
	}
	return msgpack.NewEncoder(w).Encode(f)
}

// ReadModuleFile decodes a module file and rejects other schema versions.
func ReadModuleFile(r io.Reader) (*ModuleFile, error) {
	var f ModuleFile
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, metaerr.New("read-module", metaerr.KindCorrupt).Cause(err).Build()
	}
	if f.Schema != ModuleFileSchema {
		return nil, metaerr.Corrupt("read-module", "schema %d, want %d", f.Schema, ModuleFileSchema)
	}
	if f.Name == "" {
		return nil, metaerr.Corrupt("read-module", "module name is empty")
	}
	return &f, nil
}

// LoadModuleFile reads a module file from disk.
func LoadModuleFile(path string) (*ModuleFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	f, err := ReadModuleFile(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}
