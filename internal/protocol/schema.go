package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// inbound lists the messages an observer may send, keyed by type.
var inbound = map[string]func() any{
	TypeSubscribe: func() any { return &SubscribeMsg{} },
	TypeAction:    func() any { return &ActionMsg{} },
	TypeRegionReq: func() any { return &RegionReqMsg{} },
}

// InboundTypes returns the message types accepted from observers.
func InboundTypes() []string {
	out := make([]string, 0, len(inbound))
	for k := range inbound {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Schema reflects the JSON schema of an inbound message type.
func Schema(msgType string) (*jsonschema.Schema, error) {
	newMsg, ok := inbound[msgType]
	if !ok {
		return nil, fmt.Errorf("%w: no schema for %q", ErrBadMessage, msgType)
	}
	r := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
		Anonymous:                  true,
	}
	s := r.Reflect(newMsg())
	s.Title = msgType
	return s, nil
}

// Validator checks raw inbound messages against the reflected schemas before
// they are decoded into their Go types.
type Validator struct {
	schemas map[string]*validator.Schema
}

func NewValidator() (*Validator, error) {
	v := &Validator{schemas: map[string]*validator.Schema{}}
	c := validator.NewCompiler()
	c.Draft = validator.Draft2020
	for _, typ := range InboundTypes() {
		s, err := Schema(typ)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("marshal %s schema: %w", typ, err)
		}
		url := "mem://protocol/" + typ + ".schema.json"
		if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", typ, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", typ, err)
		}
		v.schemas[typ] = compiled
	}
	return v, nil
}

// Decode validates raw and returns the typed message (*SubscribeMsg,
// *ActionMsg or *RegionReqMsg). Every failure wraps ErrBadMessage.
func (v *Validator) Decode(raw []byte) (any, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	s, ok := v.schemas[base.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrBadMessage, base.Type)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadMessage, base.Type, err)
	}
	msg := inbound[base.Type]()
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return msg, nil
}
