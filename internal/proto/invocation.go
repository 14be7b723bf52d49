// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

// Package proto defines the wire shapes exchanged with the Roblox Studio
// plugin over the loopback HTTP surface: the tagged-union tool invocation,
// and the plugin's reply.
package proto

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Tool names the tagged-union variant carried by a ToolArgumentValues. The
// tag matches the Rust enum variant names in the original plugin protocol
// so a Studio plugin speaking the original wire format needs no changes.
type Tool string

const (
	ToolRunCode            Tool = "RunCode"
	ToolInsertModel        Tool = "InsertModel"
	ToolInspectEnvironment Tool = "InspectEnvironment"
)

// RunCode runs a Lua snippet in Roblox Studio and returns its printed output.
type RunCode struct {
	Command string `json:"command"`
}

// InsertModel inserts a marketplace model matching query into the workspace.
type InsertModel struct {
	Query string `json:"query"`
}

// InspectSelectionScope toggles which fields are reported about the current
// Studio selection. All fields default to true, matching the plugin's
// "include everything unless told otherwise" convention.
type InspectSelectionScope struct {
	IncludeNames      bool `json:"includeNames"`
	IncludeClassNames bool `json:"includeClassNames"`
	IncludeFullNames  bool `json:"includeFullNames"`
}

// DefaultInspectSelectionScope returns the scope with every field enabled.
func DefaultInspectSelectionScope() InspectSelectionScope {
	return InspectSelectionScope{IncludeNames: true, IncludeClassNames: true, IncludeFullNames: true}
}

// InspectCameraScope toggles which camera fields are reported.
type InspectCameraScope struct {
	IncludeCFrame      bool `json:"includeCFrame"`
	IncludeFocus       bool `json:"includeFocus"`
	IncludeFieldOfView bool `json:"includeFieldOfView"`
}

// DefaultInspectCameraScope returns the scope with every field enabled.
func DefaultInspectCameraScope() InspectCameraScope {
	return InspectCameraScope{IncludeCFrame: true, IncludeFocus: true, IncludeFieldOfView: true}
}

// defaultServiceList mirrors the original plugin's common-service shortlist.
func defaultServiceList() []string {
	return []string{"Workspace", "Players", "Lighting", "ReplicatedStorage", "ServerScriptService", "StarterGui"}
}

// InspectServicesScope selects which named services to inspect.
type InspectServicesScope struct {
	IncludeCounts bool     `json:"includeCounts"`
	Services      []string `json:"services"`
}

// DefaultInspectServicesScope returns counts enabled and the common services.
func DefaultInspectServicesScope() InspectServicesScope {
	return InspectServicesScope{IncludeCounts: true, Services: defaultServiceList()}
}

// InspectEnvironment summarizes selection, camera and service state. Each
// sub-scope is optional; an absent sub-scope means "use the defaults for
// that scope", not "omit it".
type InspectEnvironment struct {
	Selection *InspectSelectionScope `json:"selection,omitempty"`
	Camera    *InspectCameraScope    `json:"camera,omitempty"`
	Services  *InspectServicesScope  `json:"services,omitempty"`
}

// ToolArgumentValues is the tagged union of tool payloads carried by an
// Invocation. Exactly one of the typed fields is populated, selected by Tool.
// It marshals to/from `{"tool": "<Tag>", "params": {...}}`, matching the
// original plugin's `#[serde(tag = "tool", content = "params")]` encoding.
type ToolArgumentValues struct {
	Tool               Tool
	RunCode            *RunCode
	InsertModel        *InsertModel
	InspectEnvironment *InspectEnvironment
}

type taggedEnvelope struct {
	Tool   Tool            `json:"tool"`
	Params json.RawMessage `json:"params"`
}

// MarshalJSON implements json.Marshaler.
func (v ToolArgumentValues) MarshalJSON() ([]byte, error) {
	var params any
	switch v.Tool {
	case ToolRunCode:
		params = v.RunCode
	case ToolInsertModel:
		params = v.InsertModel
	case ToolInspectEnvironment:
		params = v.InspectEnvironment
	default:
		return nil, fmt.Errorf("proto: unknown tool tag %q", v.Tool)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("proto: marshal params for %q: %w", v.Tool, err)
	}
	return json.Marshal(taggedEnvelope{Tool: v.Tool, Params: paramsJSON})
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *ToolArgumentValues) UnmarshalJSON(data []byte) error {
	var env taggedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("proto: decode tagged envelope: %w", err)
	}
	v.Tool = env.Tool
	switch env.Tool {
	case ToolRunCode:
		var p RunCode
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return fmt.Errorf("proto: decode RunCode params: %w", err)
		}
		v.RunCode = &p
	case ToolInsertModel:
		var p InsertModel
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return fmt.Errorf("proto: decode InsertModel params: %w", err)
		}
		v.InsertModel = &p
	case ToolInspectEnvironment:
		var p InspectEnvironment
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return fmt.Errorf("proto: decode InspectEnvironment params: %w", err)
		}
		v.InspectEnvironment = &p
	default:
		return fmt.Errorf("proto: unknown tool tag %q", env.Tool)
	}
	return nil
}

// Invocation is a single tool call destined for the Studio plugin. ID is nil
// only in the instant between construction and stamping; every invocation
// that crosses a process boundary carries a non-nil ID.
type Invocation struct {
	Args ToolArgumentValues `json:"args"`
	ID   *uuid.UUID         `json:"id"`
}

// Reply is the plugin's (or a primary bridge's) answer to an Invocation,
// correlated by ID. Response is opaque text the bridge never parses.
type Reply struct {
	Response string    `json:"response"`
	ID       uuid.UUID `json:"id"`
}
