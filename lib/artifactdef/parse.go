// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

package artifactdef

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// ParseDocument strips JSONC extensions from data and unmarshals the
// result into a generic JSON document. Used for manifests and the
// three artifact template skeletons, whose structure is validated
// later against the artifact schemas.
func ParseDocument(data []byte) (map[string]any, error) {
	var document map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return document, nil
}

// ReadDocument reads a JSONC document from disk.
func ReadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	document, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return document, nil
}

// ParseRoster parses a roster document.
func ParseRoster(data []byte) (*Roster, error) {
	var roster Roster
	if err := json.Unmarshal(jsonc.ToJSON(data), &roster); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}
	if len(roster.Keys) == 0 {
		return nil, fmt.Errorf("roster has no keys")
	}
	return &roster, nil
}

// ReadRoster reads a roster from disk.
func ReadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	roster, err := ParseRoster(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return roster, nil
}

// ParseSignerSet parses a signer secret set document.
func ParseSignerSet(data []byte) (*SignerSet, error) {
	var set SignerSet
	if err := json.Unmarshal(jsonc.ToJSON(data), &set); err != nil {
		return nil, fmt.Errorf("parsing signer set: %w", err)
	}
	if len(set.Signers) == 0 {
		return nil, fmt.Errorf("signer set has no signers")
	}
	if set.Attester.SecretKey == "" {
		return nil, fmt.Errorf("signer set has no attester secret")
	}
	return &set, nil
}

// ParsePartialSignerSet parses a signer secret document that may
// carry only part of a sealing set, such as a single keygen output.
// Accepts either the SignerSet shape or a keygen result envelope
// ({"signer_set": {...}}). Completeness is checked after merging, in
// [MergeSignerSets].
func ParsePartialSignerSet(data []byte) (*SignerSet, error) {
	var set SignerSet
	if err := json.Unmarshal(jsonc.ToJSON(data), &set); err != nil {
		return nil, fmt.Errorf("parsing signer set: %w", err)
	}
	if len(set.Signers) > 0 || set.Attester.SecretKey != "" {
		return &set, nil
	}
	var envelope struct {
		SignerSet *SignerSet `json:"signer_set"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &envelope); err == nil && envelope.SignerSet != nil {
		return envelope.SignerSet, nil
	}
	return nil, fmt.Errorf("signer set holds no secrets")
}

// MergeSignerSets combines per-signer secret files into one sealing
// input: signer lists concatenate, and at most one set may carry the
// attester secret. The merged set must be complete.
func MergeSignerSets(sets ...*SignerSet) (*SignerSet, error) {
	merged := &SignerSet{}
	seen := make(map[string]bool)
	for _, set := range sets {
		for _, secret := range set.Signers {
			if seen[secret.NodeID] {
				return nil, fmt.Errorf("signer sets list %s twice", secret.NodeID)
			}
			seen[secret.NodeID] = true
			merged.Signers = append(merged.Signers, secret)
		}
		if set.Attester.SecretKey != "" {
			if merged.Attester.SecretKey != "" {
				return nil, fmt.Errorf("signer sets carry two attester secrets")
			}
			merged.Attester = set.Attester
		}
	}
	if len(merged.Signers) == 0 {
		return nil, fmt.Errorf("signer set has no signers")
	}
	if merged.Attester.SecretKey == "" {
		return nil, fmt.Errorf("signer set has no attester secret")
	}
	return merged, nil
}

// ReadSignerSet reads a signer secret set from disk.
func ReadSignerSet(path string) (*SignerSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	set, err := ParseSignerSet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
