// Package aottest builds decoded compiled-module metadata for tests.
package aottest

import (
	"bytes"

	"clrmeta/internal/aot"
	"clrmeta/internal/metadata"
	"clrmeta/internal/metadata/metatest"
)

// CoreBlob returns an encoded blob holding the Core fixture module.
func CoreBlob() []byte {
	b := aot.NewBuilder()
	if err := b.Add(metatest.CoreName, "", metatest.CoreTables()); err != nil {
		panic(err)
	}
	var buf bytes.Buffer
	if err := aot.Encode(&buf, b.Payload()); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Core decodes CoreBlob.
func Core() *aot.Metadata {
	md, err := aot.Decode(CoreBlob())
	if err != nil {
		panic(err)
	}
	return md
}

// CoreWindow returns the decoded Core window.
func CoreWindow() *aot.Window {
	w, ok := Core().Window(metatest.CoreName)
	if !ok {
		panic("core window missing")
	}
	return w
}

// CoreModule is the identity Core receives when decoded.
func CoreModule() metadata.Module {
	return metadata.Module{ID: metadata.NewModuleID(metatest.CoreName), Name: metatest.CoreName, Origin: metadata.OriginCompiled}
}
