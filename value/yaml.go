package value

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FromYAML converts a decoded YAML node into a Value, keeping mapping order.
// Scalars tagged !!int, !!float, !!bool and !!null map to the matching kinds;
// any other scalar (timestamps, binary, custom tags) is kept as its string form.
func FromYAML(node *yaml.Node) (Value, error) {
	return fromYAML(node, "$")
}

func fromYAML(node *yaml.Node, path string) (Value, error) {
	if node == nil {
		return Null(), nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Null(), nil
		}
		return fromYAML(node.Content[0], path)
	case yaml.AliasNode:
		return fromYAML(node.Alias, path)
	case yaml.SequenceNode:
		items := make([]Value, len(node.Content))
		for i, child := range node.Content {
			v, err := fromYAML(child, indexPath(path, i))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return listOf(items), nil
	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			if keyNode.Kind != yaml.ScalarNode {
				return Value{}, &ConversionError{Path: path, Type: "yaml " + keyNode.Tag, Reason: "mapping key is not a scalar"}
			}
			// merge keys ("<<") are expanded by yaml.v3 only when decoding into Go values
			if keyNode.Tag == "!!merge" {
				return Value{}, &ConversionError{Path: path, Type: "yaml !!merge", Reason: "merge keys are not supported"}
			}
			v, err := fromYAML(node.Content[i+1], keyPath(path, keyNode.Value))
			if err != nil {
				return Value{}, err
			}
			m.Set(keyNode.Value, v)
		}
		return objectOf(m), nil
	case yaml.ScalarNode:
		return fromYAMLScalar(node, path)
	}
	return Value{}, &ConversionError{Path: path, Type: fmt.Sprintf("yaml kind %d", node.Kind)}
}

func fromYAMLScalar(node *yaml.Node, path string) (Value, error) {
	switch node.ShortTag() {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return Value{}, &ConversionError{Path: path, Type: "yaml !!bool", Reason: err.Error()}
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err == nil {
			return Int(i), nil
		}
		var f float64
		if err := node.Decode(&f); err != nil {
			return Value{}, &ConversionError{Path: path, Type: "yaml !!int", Reason: err.Error()}
		}
		return fromFloat(f, path, "yaml !!int")
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Value{}, &ConversionError{Path: path, Type: "yaml !!float", Reason: err.Error()}
		}
		return fromFloat(f, path, "yaml !!float")
	}
	return String(node.Value), nil
}
