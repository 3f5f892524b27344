package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Nikpro200125/orchestrator/libsl"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"
)

const (
	// GeneratedTitle and GeneratedVersion describe documents produced from
	// LibSL specifications.
	GeneratedTitle   = "Generated API"
	GeneratedVersion = "1.0.0"

	// RequestBodyNameExtension names the argument that receives the body.
	RequestBodyNameExtension = "x-codegen-request-body-name"
	// FunctionExtension and AutomatonExtension tie an operation back to
	// the LibSL function it was generated from.
	FunctionExtension  = "x-libsl-function"
	AutomatonExtension = "x-libsl-automaton"

	componentPrefix = "#/components/schemas/"
	okDescription   = "Successful operation"
)

var methodAnnotations = map[string]string{
	"GET":    "GET",
	"POST":   "POST",
	"PUT":    "PUT",
	"DELETE": "DELETE",
	"PATCH":  "PATCH",
}

// Argument annotations. The short forms are accepted as synonyms.
var (
	pathAnnotations  = []string{"PathParameter", "InPath"}
	queryAnnotations = []string{"QueryParameter", "InQuery"}
	bodyAnnotations  = []string{"RequestBody", "InBody"}
)

// MethodOf returns the HTTP method declared by the function's annotations
// and false when the function is not an API operation.
func MethodOf(fn *libsl.Function) (string, bool) {
	for _, ann := range fn.Annotations {
		if m, ok := methodAnnotations[strings.ToUpper(ann.Name)]; ok {
			return m, true
		}
	}
	return "", false
}

// ArgLocation classifies where a function argument is read from.
type ArgLocation string

const (
	InPath  ArgLocation = "path"
	InQuery ArgLocation = "query"
	InBody  ArgLocation = "body"
	InNone  ArgLocation = ""
)

// LocationOf returns where the argument is bound in a request.
func LocationOf(arg *libsl.Arg) ArgLocation {
	switch {
	case hasAny(arg, pathAnnotations):
		return InPath
	case hasAny(arg, bodyAnnotations):
		return InBody
	case hasAny(arg, queryAnnotations):
		return InQuery
	default:
		return InNone
	}
}

func hasAny(arg *libsl.Arg, names []string) bool {
	for _, n := range names {
		if arg.HasAnnotation(n) {
			return true
		}
	}
	return false
}

// PathOf returns the route template of an automaton function.
func PathOf(a *libsl.Automaton, fn *libsl.Function) string {
	var sb strings.Builder
	sb.WriteString("/" + a.Name + "/" + fn.Name)
	for _, arg := range fn.Args {
		if LocationOf(arg) == InPath {
			sb.WriteString("/{" + arg.Name + "}")
		}
	}
	return sb.String()
}

type converter struct {
	lib *libsl.Library
	doc *openapi3.T
}

// FromLibrary builds an OpenAPI document with one operation per annotated
// automaton function.
func FromLibrary(lib *libsl.Library) (*openapi3.T, error) {
	if lib == nil {
		return nil, errors.New("library is nil")
	}

	c := &converter{
		lib: lib,
		doc: &openapi3.T{
			OpenAPI: "3.0.1",
			Info: &openapi3.Info{
				Title:   GeneratedTitle,
				Version: GeneratedVersion,
			},
			Paths: openapi3.NewPaths(),
			Components: &openapi3.Components{
				Schemas: openapi3.Schemas{},
			},
		},
	}
	if lib.Header.Name != "" {
		c.doc.Info.Description = fmt.Sprintf("Generated from LibSL library %s", lib.Header.Name)
	}

	for _, a := range lib.Automata {
		for _, fn := range a.Functions {
			if err := c.addFunction(a, fn); err != nil {
				return nil, &ConversionError{Automaton: a.Name, Function: fn.Name, Err: err}
			}
		}
	}

	// structured types are published even when no function uses them
	for _, t := range lib.Types {
		if st, ok := t.(*libsl.StructuredType); ok {
			if err := c.registerStruct(st); err != nil {
				return nil, &ConversionError{Err: err}
			}
		}
	}

	return c.doc, nil
}

func (c *converter) addFunction(a *libsl.Automaton, fn *libsl.Function) error {
	method, ok := MethodOf(fn)
	if !ok {
		return nil
	}

	op := openapi3.NewOperation()
	op.OperationID = a.Name + "_" + fn.Name
	op.Extensions = map[string]any{
		FunctionExtension:  fn.Name,
		AutomatonExtension: a.Name,
	}

	bodies := 0
	for _, arg := range fn.Args {
		if LocationOf(arg) == InBody {
			bodies++
		}
	}
	if bodies > 1 {
		return errors.New("Multiple request bodies are not supported")
	}

	for _, arg := range fn.Args {
		loc := LocationOf(arg)
		if loc == InNone {
			continue
		}

		schema, err := c.componentFor(arg.Type)
		if err != nil {
			return errors.Wrapf(err, "argument '%s'", arg.Name)
		}

		switch loc {
		case InPath:
			op.AddParameter(openapi3.NewPathParameter(arg.Name).WithRequired(true).WithSchema(schema.Value))
			op.Parameters[len(op.Parameters)-1].Value.Schema = schema
		case InQuery:
			op.AddParameter(openapi3.NewQueryParameter(arg.Name).WithSchema(schema.Value))
			op.Parameters[len(op.Parameters)-1].Value.Schema = schema
		case InBody:
			op.RequestBody = &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(schema),
			}
			op.Extensions[RequestBodyNameExtension] = arg.Name
		}
	}

	resp := openapi3.NewResponse().WithDescription(okDescription)
	if !fn.ReturnType.IsZero() && fn.ReturnType.Name != "void" {
		schema, err := c.componentFor(fn.ReturnType)
		if err != nil {
			return errors.Wrap(err, "return type")
		}
		resp.WithJSONSchemaRef(schema)
	}
	op.Responses = openapi3.NewResponses()
	op.Responses.Set("200", &openapi3.ResponseRef{Value: resp})

	path := PathOf(a, fn)
	item := c.doc.Paths.Value(path)
	if item == nil {
		item = &openapi3.PathItem{}
		c.doc.Paths.Set(path, item)
	}
	if item.GetOperation(method) != nil {
		return errors.Errorf("duplicate operation %s %s", method, path)
	}
	item.SetOperation(method, op)

	return nil
}

// componentFor registers the schema of a type use as a component named
// after the type and returns a reference to it.
func (c *converter) componentFor(ref libsl.TypeRef) (*openapi3.SchemaRef, error) {
	name := componentName(ref)
	if existing, ok := c.doc.Components.Schemas[name]; ok {
		return openapi3.NewSchemaRef(componentPrefix+name, existing.Value), nil
	}

	schema, err := c.schemaFor(ref)
	if err != nil {
		return nil, err
	}
	if schema.Ref != componentPrefix+name {
		c.doc.Components.Schemas[name] = schema
	}
	return openapi3.NewSchemaRef(componentPrefix+name, schema.Value), nil
}

// componentName flattens generic arguments into the name, since component
// keys may only hold letters, digits, dots, dashes and underscores:
// map<string, Item> is map_string_Item.
func componentName(ref libsl.TypeRef) string {
	parts := []string{ref.Name}
	for _, g := range ref.Generics {
		parts = append(parts, componentName(g))
	}
	return strings.Join(parts, "_")
}

// schemaFor returns the schema of a type use. Named structured and enum
// types are registered as components and referenced.
func (c *converter) schemaFor(ref libsl.TypeRef) (*openapi3.SchemaRef, error) {
	res, err := c.lib.ResolveType(ref)
	if err != nil {
		return nil, err
	}
	return c.schemaForResolved(res)
}

func (c *converter) schemaForResolved(res *libsl.Resolved) (*openapi3.SchemaRef, error) {
	switch res.Kind {
	case libsl.KindStruct:
		if err := c.registerStruct(res.Struct); err != nil {
			return nil, err
		}
		return openapi3.NewSchemaRef(componentPrefix+res.Name, c.doc.Components.Schemas[res.Name].Value), nil
	case libsl.KindEnum:
		if _, ok := c.doc.Components.Schemas[res.Name]; !ok {
			schema := openapi3.NewStringSchema()
			for _, constant := range res.Enum.Constants {
				schema.Enum = append(schema.Enum, constant.Name)
			}
			c.doc.Components.Schemas[res.Name] = openapi3.NewSchemaRef("", schema)
		}
		return openapi3.NewSchemaRef(componentPrefix+res.Name, c.doc.Components.Schemas[res.Name].Value), nil
	case libsl.KindArray:
		items, err := c.schemaForResolved(res.Elem)
		if err != nil {
			return nil, err
		}
		schema := openapi3.NewArraySchema()
		schema.Items = items
		return openapi3.NewSchemaRef("", schema), nil
	case libsl.KindMap:
		value, err := c.schemaForResolved(res.Value)
		if err != nil {
			return nil, err
		}
		schema := openapi3.NewObjectSchema()
		schema.AdditionalProperties = openapi3.AdditionalProperties{Schema: value}
		return openapi3.NewSchemaRef("", schema), nil
	case libsl.KindPrimitive:
		schema, err := PrimitiveSchema(res.Name)
		if err != nil {
			return nil, err
		}
		return openapi3.NewSchemaRef("", schema), nil
	}
	return nil, errors.Errorf("Unexpected value: %s", res.Ref)
}

func (c *converter) registerStruct(st *libsl.StructuredType) error {
	if _, ok := c.doc.Components.Schemas[st.Name]; ok {
		return nil
	}

	schema := openapi3.NewObjectSchema()
	schema.Properties = openapi3.Schemas{}
	// registered before the fields so that recursive types terminate
	c.doc.Components.Schemas[st.Name] = openapi3.NewSchemaRef("", schema)

	for _, f := range st.Fields {
		fieldSchema, err := c.schemaFor(f.Type)
		if err != nil {
			delete(c.doc.Components.Schemas, st.Name)
			return errors.Wrapf(err, "field '%s.%s'", st.Name, f.Name)
		}
		schema.Properties[f.Name] = fieldSchema
	}

	return nil
}

// PrimitiveSchema maps a primitive type name onto its OpenAPI schema.
func PrimitiveSchema(name string) (*openapi3.Schema, error) {
	switch name {
	case "int", "int8", "int16", "int32", "Integer", "short", "byte":
		return openapi3.NewInt32Schema(), nil
	case "long", "int64", "Long":
		return openapi3.NewInt64Schema(), nil
	case "float", "float32", "Float":
		return openapi3.NewFloat64Schema().WithFormat("float"), nil
	case "double", "float64", "Double":
		return openapi3.NewFloat64Schema().WithFormat("double"), nil
	case "bool", "boolean", "Boolean":
		return openapi3.NewBoolSchema(), nil
	case "string", "String", "char":
		return openapi3.NewStringSchema(), nil
	case "java.time.LocalDate":
		return openapi3.NewStringSchema().WithFormat("date"), nil
	case "java.time.LocalDateTime":
		return openapi3.NewDateTimeSchema(), nil
	}
	return nil, errors.Errorf("Unexpected value: %s", name)
}

// Operation is a single method and path pair of a document.
type Operation struct {
	Method    string
	Path      string
	Operation *openapi3.Operation
	Item      *openapi3.PathItem
}

// Operations lists every operation of the document ordered by path then
// method.
func Operations(doc *openapi3.T) []Operation {
	var out []Operation
	if doc == nil || doc.Paths == nil {
		return out
	}
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			out = append(out, Operation{Method: method, Path: path, Operation: op, Item: item})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}
