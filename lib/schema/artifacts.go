// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	_ "embed"
	"encoding/json"

	"github.com/tidwall/jsonc"
)

//go:embed schemas/frame.jsonc
var frameSchemaSource []byte

//go:embed schemas/anchor.jsonc
var anchorSchemaSource []byte

//go:embed schemas/binding.jsonc
var bindingSchemaSource []byte

var (
	frameSchema   map[string]any
	anchorSchema  map[string]any
	bindingSchema map[string]any
)

func init() {
	frameSchema = mustParseSchema("frame", frameSchemaSource)
	anchorSchema = mustParseSchema("anchor", anchorSchemaSource)
	bindingSchema = mustParseSchema("binding", bindingSchemaSource)
}

// mustParseSchema strips JSONC comments and unmarshals an embedded
// schema document. The schemas ship inside the binary, so a parse
// failure is a build defect, not runtime data.
func mustParseSchema(name string, source []byte) map[string]any {
	var document map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(source), &document); err != nil {
		panic("schema: embedded " + name + " schema does not parse: " + err.Error())
	}
	return document
}

// Frame returns the attestation frame schema document.
func Frame() map[string]any { return frameSchema }

// Anchor returns the Merkle anchor schema document.
func Anchor() map[string]any { return anchorSchema }

// Binding returns the replay binding schema document.
func Binding() map[string]any { return bindingSchema }
