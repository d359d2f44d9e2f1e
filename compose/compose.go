// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package compose

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ServicesKey is the top-level key holding the service definitions.
const ServicesKey = "services"

// nonObjectMessage is reported when a document decodes to something other than a mapping.
const nonObjectMessage = "YAML parsed to non-object."

// ParseError reports a document that could not be decoded into a mapping.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

// Document is the decoded form of a compose file.
type Document struct {
	root  map[string]any
	order []string
}

// Parse decodes text into a Document.
// Empty or whitespace-only text returns a nil Document and a nil error.
// Decoder failures and documents that are not mappings return a *ParseError.
func Parse(text string) (*Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, &ParseError{Message: err.Error()}
	}

	node := resolve(&root)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, &ParseError{Message: nonObjectMessage}
	}

	var decoded map[string]any
	if err := node.Decode(&decoded); err != nil {
		return nil, &ParseError{Message: err.Error()}
	}
	if decoded == nil {
		decoded = map[string]any{}
	}

	return &Document{
		root:  decoded,
		order: serviceOrder(node),
	}, nil
}

// Encode serializes v as YAML using two-space indentation.
func Encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode YAML: %w", err)
	}
	return buf.String(), nil
}

// resolve unwraps document and alias nodes down to the content node.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

// serviceOrder returns the service names in source order.
func serviceOrder(root *yaml.Node) []string {
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != ServicesKey {
			continue
		}
		services := resolve(root.Content[i+1])
		if services == nil || services.Kind != yaml.MappingNode {
			return nil
		}
		names := make([]string, 0, len(services.Content)/2)
		for j := 0; j+1 < len(services.Content); j += 2 {
			names = append(names, services.Content[j].Value)
		}
		return names
	}
	return nil
}

// Root returns the decoded top-level mapping.
func (d *Document) Root() map[string]any {
	if d == nil {
		return nil
	}
	return d.root
}

// HasServices reports whether the document has a services mapping.
func (d *Document) HasServices() bool {
	_, ok := d.servicesMap()
	return ok
}

func (d *Document) servicesMap() (map[string]any, bool) {
	if d == nil {
		return nil, false
	}
	m, ok := d.root[ServicesKey].(map[string]any)
	return m, ok
}

// Services returns every well-formed service in source order.
// Entries whose value is not a mapping are skipped.
func (d *Document) Services() []Service {
	raw, ok := d.servicesMap()
	if !ok {
		return nil
	}

	services := make([]Service, 0, len(d.order))
	for _, name := range d.order {
		fields, ok := raw[name].(map[string]any)
		if !ok {
			continue
		}
		services = append(services, Service{Name: name, Fields: fields})
	}
	return services
}

// Service looks up a single well-formed service by name.
func (d *Document) Service(name string) (Service, bool) {
	raw, ok := d.servicesMap()
	if !ok {
		return Service{}, false
	}
	fields, ok := raw[name].(map[string]any)
	if !ok {
		return Service{}, false
	}
	return Service{Name: name, Fields: fields}, true
}
