package libsl

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies a resolved type.
type Kind int

const (
	KindPrimitive Kind = iota
	KindStruct
	KindArray
	KindMap
	KindEnum
)

// Resolved is a type use with aliases followed through to a concrete
// shape.
type Resolved struct {
	Kind Kind
	// Name is the declared name for structs and enums and the primitive
	// name (after following simple types) for primitives.
	Name   string
	Struct *StructuredType
	Enum   *EnumType
	Elem   *Resolved
	Key    *Resolved
	Value  *Resolved
	// Ref is the reference as written, before alias resolution.
	Ref TypeRef
}

var arrayNames = map[string]bool{"list": true, "array": true, "List": true, "Array": true, "set": true, "Set": true}
var mapNames = map[string]bool{"map": true, "Map": true}

func (l *Library) index(file string) error {
	l.types = map[string]Type{}
	var errs ParseErrors
	for _, t := range l.Types {
		if _, ok := l.types[t.TypeName()]; ok {
			errs = append(errs, &ParseError{File: file, Message: "duplicate type '" + t.TypeName() + "'"})
			continue
		}
		l.types[t.TypeName()] = t
	}

	automata := map[string]bool{}
	for _, a := range l.Automata {
		if automata[a.Name] {
			errs = append(errs, &ParseError{File: file, Message: "duplicate automaton '" + a.Name + "'"})
		}
		automata[a.Name] = true
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ResolveType follows aliases and simple types until it reaches a struct,
// enum, container or primitive.
func (l *Library) ResolveType(ref TypeRef) (*Resolved, error) {
	return l.resolve(ref, map[string]bool{})
}

func (l *Library) resolve(ref TypeRef, seen map[string]bool) (*Resolved, error) {
	if ref.IsZero() {
		return nil, errors.New("empty type reference")
	}

	if arrayNames[ref.Name] {
		if len(ref.Generics) < 1 {
			return nil, errors.Errorf("array type '%s' needs an element type", ref)
		}
		elem, err := l.resolve(ref.Generics[0], seen)
		if err != nil {
			return nil, err
		}
		return &Resolved{Kind: KindArray, Name: ref.Name, Elem: elem, Ref: ref}, nil
	}

	if mapNames[ref.Name] {
		if len(ref.Generics) != 2 {
			return nil, errors.Errorf("Map type must have exactly two generics: '%s'", ref)
		}
		key, err := l.resolve(ref.Generics[0], seen)
		if err != nil {
			return nil, err
		}
		val, err := l.resolve(ref.Generics[1], seen)
		if err != nil {
			return nil, err
		}
		return &Resolved{Kind: KindMap, Name: ref.Name, Key: key, Value: val, Ref: ref}, nil
	}

	t, ok := l.types[ref.Name]
	if !ok {
		return &Resolved{Kind: KindPrimitive, Name: ref.Name, Ref: ref}, nil
	}

	if seen[ref.Name] {
		return nil, errors.Errorf("type '%s' refers to itself through aliases", ref.Name)
	}

	switch tt := t.(type) {
	case *TypeAlias:
		seen[ref.Name] = true
		defer delete(seen, ref.Name)
		res, err := l.resolve(tt.Original, seen)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving alias '%s'", tt.Name)
		}
		out := *res
		out.Ref = ref
		return &out, nil
	case *SimpleType:
		if _, declared := l.types[tt.Real]; declared && tt.Real != tt.Name {
			seen[ref.Name] = true
			defer delete(seen, ref.Name)
			res, err := l.resolve(TypeRef{Name: tt.Real}, seen)
			if err != nil {
				return nil, err
			}
			out := *res
			out.Ref = ref
			return &out, nil
		}
		return &Resolved{Kind: KindPrimitive, Name: simpleTypeName(tt), Ref: ref}, nil
	case *StructuredType:
		return &Resolved{Kind: KindStruct, Name: tt.Name, Struct: tt, Ref: ref}, nil
	case *EnumType:
		return &Resolved{Kind: KindEnum, Name: tt.Name, Enum: tt, Ref: ref}, nil
	}

	return nil, errors.Errorf("unsupported type '%s'", ref)
}

// simpleTypeName maps a simple type onto the primitive it stands for. A
// well known real type wins over the declared name so that
// "type Str is java.lang.String;" behaves as a string.
func simpleTypeName(t *SimpleType) string {
	if _, ok := hostPrimitives[t.Real]; ok {
		return hostPrimitives[t.Real]
	}
	return t.Name
}

var hostPrimitives = map[string]string{
	"java.lang.String":        "string",
	"java.lang.Integer":       "int32",
	"java.lang.Long":          "int64",
	"java.lang.Float":         "float32",
	"java.lang.Double":        "float64",
	"java.lang.Boolean":       "boolean",
	"java.time.LocalDate":     "java.time.LocalDate",
	"java.time.LocalDateTime": "java.time.LocalDateTime",
}

// Primitive classes used by the contract engine.
const (
	PrimitiveInt    = "int"
	PrimitiveReal   = "real"
	PrimitiveBool   = "bool"
	PrimitiveString = "string"
	PrimitiveDate   = "date"
)

// PrimitiveClass reports the numeric class of a primitive type name, or
// the empty string for anything that is not a primitive.
func PrimitiveClass(name string) string {
	switch strings.TrimSpace(name) {
	case "int", "int8", "int16", "int32", "int64", "long", "Integer", "Long",
		"uint8", "uint16", "uint32", "uint64", "short", "byte":
		return PrimitiveInt
	case "float", "float32", "float64", "double", "Float", "Double":
		return PrimitiveReal
	case "bool", "boolean", "Boolean":
		return PrimitiveBool
	case "string", "String", "char":
		return PrimitiveString
	case "java.time.LocalDate", "java.time.LocalDateTime":
		return PrimitiveDate
	}
	return ""
}
