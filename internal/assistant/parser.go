package assistant

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/appforge-ai/console-api/internal/model"
)

// DefaultBufferCeiling bounds pathological non-JSON streams: a buffer that
// grows past this without ever parsing is force-closed as plain text.
const DefaultBufferCeiling = 10000

// envelope is the wire shape of a completed response. The backend streams it
// token by token with no terminator frame, so completion is inferred by
// parseability. Pointer fields distinguish "absent" from "empty": valid JSON
// lacking reply or type is still incomplete.
type envelope struct {
	Reply  *string     `json:"reply"`
	Type   *string     `json:"type"`
	Config *wireConfig `json:"config"`
}

// wireConfig is the raw payload bag. Sections arrive duck-typed (sometimes a
// keyed map, sometimes an array), so each is held raw and normalized here,
// at the parse boundary.
type wireConfig struct {
	Objects   json.RawMessage `json:"objects"`
	Workflows json.RawMessage `json:"workflows"`
	Layout    json.RawMessage `json:"layout"`
}

// Parser accumulates streamed fragments and detects in-flight completion of
// the structured response embedded in the stream.
//
// Detection is a full-buffer parse attempt per fragment. This heuristic is
// inherently ambiguous: a JSON-shaped but non-terminal emission, or trailing
// content after the closing brace, is misclassified. Hardening requires a
// protocol-level terminator frame, not a client-side guess.
type Parser struct {
	buf     strings.Builder
	ceiling int
}

// NewParser creates a parser with the given buffer ceiling. A non-positive
// ceiling selects DefaultBufferCeiling.
func NewParser(ceiling int) *Parser {
	if ceiling <= 0 {
		ceiling = DefaultBufferCeiling
	}
	return &Parser{ceiling: ceiling}
}

// Feed appends a fragment and attempts to close the response. It returns the
// structured result and true when the whole buffer parses as a completed
// envelope. Parse failure is the expected steady state, not an error.
func (p *Parser) Feed(fragment string) (*model.StructuredResult, bool) {
	p.buf.WriteString(fragment)
	return p.tryClose()
}

func (p *Parser) tryClose() (*model.StructuredResult, bool) {
	raw := strings.TrimSpace(p.buf.String())
	if raw == "" || raw[0] != '{' {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, false
	}
	if env.Reply == nil || env.Type == nil {
		return nil, false
	}

	return &model.StructuredResult{
		Kind:    model.ResultKind(*env.Type),
		Reply:   *env.Reply,
		Payload: env.Config.normalize(),
	}, true
}

// OverCeiling reports whether the buffer exceeded the hard ceiling without
// producing a parse.
func (p *Parser) OverCeiling() bool {
	return p.buf.Len() > p.ceiling
}

// Raw returns the accumulated text, used as the degraded reply when the
// response never closes.
func (p *Parser) Raw() string {
	return p.buf.String()
}

// Len returns the accumulated buffer length.
func (p *Parser) Len() int {
	return p.buf.Len()
}

// normalize converts the duck-typed wire config into the canonical payload:
// ordered lists, map sections sorted by name. Malformed sections are dropped;
// a payload with no surviving sections is nil.
func (c *wireConfig) normalize() *model.Payload {
	if c == nil {
		return nil
	}
	p := &model.Payload{
		Objects:   normalizeObjects(c.Objects),
		Workflows: normalizeWorkflows(c.Workflows),
		Layout:    normalizeLayout(c.Layout),
	}
	if p.Empty() {
		return nil
	}
	return p
}

func normalizeObjects(raw json.RawMessage) []model.ObjectDef {
	if len(raw) == 0 {
		return nil
	}

	var keyed map[string]map[string]string
	if err := json.Unmarshal(raw, &keyed); err == nil {
		defs := make([]model.ObjectDef, 0, len(keyed))
		for name, fields := range keyed {
			defs = append(defs, model.ObjectDef{Name: name, Fields: fields})
		}
		sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
		return defs
	}

	var listed []model.ObjectDef
	if err := json.Unmarshal(raw, &listed); err == nil {
		return listed
	}
	return nil
}

func normalizeWorkflows(raw json.RawMessage) []model.WorkflowDef {
	if len(raw) == 0 {
		return nil
	}

	type wireWorkflow struct {
		Steps       []string `json:"steps"`
		Description string   `json:"description"`
	}

	var keyed map[string]wireWorkflow
	if err := json.Unmarshal(raw, &keyed); err == nil {
		defs := make([]model.WorkflowDef, 0, len(keyed))
		for name, wf := range keyed {
			defs = append(defs, model.WorkflowDef{
				Name:        name,
				Description: wf.Description,
				Steps:       wf.Steps,
			})
		}
		sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
		return defs
	}

	var listed []model.WorkflowDef
	if err := json.Unmarshal(raw, &listed); err == nil {
		return listed
	}
	return nil
}

func normalizeLayout(raw json.RawMessage) []model.LayoutSection {
	if len(raw) == 0 {
		return nil
	}

	var sections []model.LayoutSection
	if err := json.Unmarshal(raw, &sections); err == nil {
		return sections
	}

	// A bare field list becomes one untitled section.
	var fields []string
	if err := json.Unmarshal(raw, &fields); err == nil && len(fields) > 0 {
		return []model.LayoutSection{{Fields: fields}}
	}
	return nil
}
