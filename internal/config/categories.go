package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is one named bucket of file extensions
type Category struct {
	Name       string
	Extensions []string
}

// HasExtension reports whether the category lists ext (case-insensitive, no dot)
func (c Category) HasExtension(ext string) bool {
	for _, e := range c.Extensions {
		if norm, err := NormalizeExtension(e); err == nil && norm == ext {
			return true
		}
	}
	return false
}

// Categories is an ordered category list. In YAML it is a mapping from
// category name to a sequence of extensions; document order is kept
// because the first category listing an extension owns it.
type Categories []Category

// Find returns the category with the given name
func (cs Categories) Find(name string) (Category, bool) {
	for _, c := range cs {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Names returns category names in order
func (cs Categories) Names() []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return names
}

// UnmarshalYAML decodes the category mapping, rejecting duplicate keys and
// non-string values.
func (cs *Categories) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return &ConfigurationError{
			Field: "categories",
			Line:  value.Line,
			Err:   fmt.Errorf("expected a mapping of category name to extensions"),
		}
	}

	result := make(Categories, 0, len(value.Content)/2)
	seen := make(map[string]bool)

	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]

		if key.Kind != yaml.ScalarNode || key.ShortTag() != "!!str" {
			return &ConfigurationError{Field: "categories", Line: key.Line, Err: fmt.Errorf("category name must be a string")}
		}
		name := key.Value
		if seen[name] {
			return &ConfigurationError{Field: "categories." + name, Line: key.Line, Err: fmt.Errorf("duplicate category %q", name)}
		}
		seen[name] = true

		exts := make([]string, 0, len(val.Content))
		switch val.Kind {
		case yaml.SequenceNode:
			for _, item := range val.Content {
				if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
					return &ConfigurationError{
						Field: "categories." + name,
						Line:  item.Line,
						Err:   fmt.Errorf("extension must be a string, got %s", describeNode(item)),
					}
				}
				exts = append(exts, item.Value)
			}
		case yaml.ScalarNode:
			// "Images:" with nothing after it decodes as null
			if val.ShortTag() != "!!null" {
				return &ConfigurationError{Field: "categories." + name, Line: val.Line, Err: fmt.Errorf("extensions must be a list")}
			}
		default:
			return &ConfigurationError{Field: "categories." + name, Line: val.Line, Err: fmt.Errorf("extensions must be a list")}
		}

		result = append(result, Category{Name: name, Extensions: exts})
	}

	*cs = result
	return nil
}

// MarshalYAML encodes categories as an ordered mapping
func (cs Categories) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, c := range cs {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Name}
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, ext := range c.Extensions {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: ext})
		}
		node.Content = append(node.Content, key, seq)
	}
	return node, nil
}

func describeNode(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	default:
		return strings.TrimPrefix(n.ShortTag(), "!!")
	}
}

// NormalizeExtension lowercases an extension and strips one leading dot
func NormalizeExtension(ext string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(ext))
	norm = strings.TrimPrefix(norm, ".")
	if norm == "" {
		return "", fmt.Errorf("empty extension")
	}
	if strings.ContainsAny(norm, `./\`) {
		return "", fmt.Errorf("invalid extension %q", ext)
	}
	return norm, nil
}

// ValidateFolderName checks that name can be used as a single directory component
func ValidateFolderName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("folder name must not be empty")
	case name == "." || name == "..":
		return fmt.Errorf("invalid folder name %q", name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("folder name %q must not contain path separators", name)
	}
	return nil
}

// ConfigurationError reports malformed configuration
type ConfigurationError struct {
	Path  string // config file, empty for in-memory configuration
	Field string
	Line  int
	Err   error
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Path != "" {
		b.WriteString(" in ")
		b.WriteString(e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
