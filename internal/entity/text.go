package entity

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/roach88/istore/internal/fault"
	"github.com/roach88/istore/internal/ir"
	"github.com/roach88/istore/internal/types"
)

// ToString renders the named property as JSON text with ", " between
// list elements, for example "[1, 2, 3]". Floats use the shortest form
// that reads back to the same value at the property's precision.
func (i *Instance) ToString(name string) (string, error) {
	a, err := i.Get(name)
	if err != nil {
		return "", err
	}
	return a.Text()
}

// FromString parses text as JSON and assigns it to the named property.
// FromString(name, ToString(name)) leaves the property unchanged.
func (i *Instance) FromString(name, text string) error {
	v, err := ir.Unmarshal([]byte(text))
	if err != nil {
		return fault.Wrap(fault.InvalidInput, err, "cannot parse property value", name)
	}
	return i.Set(name, v)
}

// Text renders the array as JSON text with ", " list separators.
func (a Array) Text() (string, error) {
	var sb strings.Builder
	next := 0
	var write func(depth int) error
	write = func(depth int) error {
		if depth == len(a.shape) {
			err := a.writeElemText(&sb, next)
			next++
			return err
		}
		sb.WriteByte('[')
		for k := 0; k < a.shape[depth]; k++ {
			if k > 0 {
				sb.WriteString(", ")
			}
			if err := write(depth + 1); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
		return nil
	}
	if err := write(0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (a Array) writeElemText(sb *strings.Builder, i int) error {
	switch a.typ.Kind {
	case types.KindBool:
		sb.WriteString(strconv.FormatBool(a.Bool(i)))
	case types.KindInt:
		sb.WriteString(strconv.FormatInt(a.Int(i), 10))
	case types.KindUint:
		sb.WriteString(strconv.FormatUint(a.Uint(i), 10))
	case types.KindFloat:
		s, err := ir.FormatFloat(a.Float(i), a.typ.Size*8)
		if err != nil {
			return fault.Wrap(fault.InvalidInput, err, "cannot render float", "")
		}
		sb.WriteString(s)
	case types.KindFixString, types.KindString:
		writeQuoted(sb, a.Str(i))
	case types.KindBlob:
		writeQuoted(sb, hex.EncodeToString(a.elem(i)))
	case types.KindRelation:
		r := a.Relation(i)
		sb.WriteByte('[')
		writeQuoted(sb, r.Subject)
		sb.WriteString(", ")
		writeQuoted(sb, r.Predicate)
		sb.WriteString(", ")
		writeQuoted(sb, r.Object)
		sb.WriteByte(']')
	}
	return nil
}

func writeQuoted(sb *strings.Builder, s string) {
	b, _ := ir.Marshal(ir.String(s)) // strings always encode
	sb.Write(b)
}
