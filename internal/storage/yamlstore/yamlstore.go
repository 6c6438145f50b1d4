// Package yamlstore implements the yaml:// storage driver.
//
// Documents are converted through yaml.Node so that mapping order
// survives a load and save.
package yamlstore

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/storage"
)

// Name is the scheme served by the driver.
const Name = "yaml"

// Driver opens YAML files.
type Driver struct{}

// New returns the YAML driver.
func New() Driver { return Driver{} }

// Name implements storage.Driver.
func (Driver) Name() string { return Name }

// Open implements storage.Driver.
func (Driver) Open(_ context.Context, location string, opts storage.Options) (storage.Handle, error) {
	if err := opts.CheckExtra(Name); err != nil {
		return nil, err
	}
	return storage.OpenFile(location, opts, Codec{})
}

// Codec encodes documents as YAML.
type Codec struct{}

// Decode implements storage.Codec.
func (Codec) Decode(data []byte) (*ir.Object, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	v, err := fromNode(&root)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*ir.Object)
	if !ok {
		return nil, fmt.Errorf("expected YAML mapping, got %s", ir.TypeName(v))
	}
	return obj, nil
}

// Encode implements storage.Codec. Compact output uses flow style.
func (Codec) Encode(doc *ir.Object, compact bool) ([]byte, error) {
	node, err := toNode(doc)
	if err != nil {
		return nil, err
	}
	if compact {
		node.Style = yaml.FlowStyle
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fromNode(n *yaml.Node) (ir.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return ir.NewObject(), nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.MappingNode:
		obj := ir.NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping key must be a scalar", key.Line)
			}
			v, err := fromNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Set(key.Value, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := make(ir.Array, len(n.Content))
		for i, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	case yaml.ScalarNode:
		return fromScalar(n)
	}
	return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func fromScalar(n *yaml.Node) (ir.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return ir.Null{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return ir.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return ir.Int(i), nil
		}
		var u uint64
		if err := n.Decode(&u); err != nil {
			return nil, fmt.Errorf("line %d: integer out of range: %s", n.Line, n.Value)
		}
		return ir.Uint(u), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return ir.Float(f), nil
	default:
		return ir.String(n.Value), nil
	}
}

func toNode(v ir.Value) (*yaml.Node, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return scalar("!!null", "null"), nil
	case ir.String:
		return scalar("!!str", string(val)), nil
	case ir.Int:
		return scalar("!!int", strconv.FormatInt(int64(val), 10)), nil
	case ir.Uint:
		return scalar("!!int", strconv.FormatUint(uint64(val), 10)), nil
	case ir.Float:
		s, err := ir.FormatFloat(float64(val), 64)
		if err != nil {
			return nil, err
		}
		return scalar("!!float", s), nil
	case ir.Bool:
		return scalar("!!bool", strconv.FormatBool(bool(val))), nil
	case ir.Array:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range val {
			c, err := toNode(e)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	case *ir.Object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, m := range val.Members() {
			c, err := toNode(m.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m.Key, err)
			}
			n.Content = append(n.Content, scalar("!!str", m.Key), c)
		}
		return n, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
