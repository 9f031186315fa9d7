package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ResultKind classifies a completed assistant response.
type ResultKind string

const (
	// KindContinue means more turns are expected; no structured action.
	KindContinue ResultKind = "continue"
	// KindAdmin means the response carries a schema-mutation payload.
	KindAdmin ResultKind = "admin"
	// KindUser means a plain conversational reply.
	KindUser ResultKind = "user"
)

// StructuredResult is the parsed envelope that closes an assistant turn.
type StructuredResult struct {
	Kind    ResultKind `json:"kind"`
	Reply   string     `json:"reply"`
	Payload *Payload   `json:"payload,omitempty"`
}

// Payload carries independently-optional schema sections generated by the
// assistant. Sections are normalized to ordered lists at the parse boundary;
// absent sections are nil.
type Payload struct {
	Objects   []ObjectDef     `json:"objects,omitempty"`
	Workflows []WorkflowDef   `json:"workflows,omitempty"`
	Layout    []LayoutSection `json:"layout,omitempty"`
}

// ObjectDef is a data-object definition: a named map of field name to type.
type ObjectDef struct {
	Name   string            `json:"name"`
	Fields map[string]string `json:"fields"`
}

// WorkflowDef is a workflow definition.
type WorkflowDef struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Steps       []string `json:"steps"`
}

// LayoutSection is one ordered section of a generated page layout.
type LayoutSection struct {
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
}

// Fingerprint returns a canonical equality key for the result, used to
// suppress duplicate commits of a replayed completion. Payload sections are
// ordered lists after normalization, so the JSON encoding is deterministic.
func (r *StructuredResult) Fingerprint() string {
	data, err := json.Marshal(r)
	if err != nil {
		// Marshal cannot fail for these field types; fall back to the reply.
		data = []byte(r.Reply)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Empty reports whether the payload carries no sections at all.
func (p *Payload) Empty() bool {
	return p == nil || (len(p.Objects) == 0 && len(p.Workflows) == 0 && len(p.Layout) == 0)
}
