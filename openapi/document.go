package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/Nikpro200125/orchestrator/libsl"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// Format names a serialization of an OpenAPI document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func (f Format) Validate() error {
	switch f {
	case FormatJSON, FormatYAML:
		return nil
	default:
		return errors.Errorf("invalid document format '%s'", f)
	}
}

// Load parses a JSON or YAML OpenAPI document and validates it.
func Load(ctx context.Context, data []byte) (*openapi3.T, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ConversionError{Err: errors.New("OpenAPI document is empty")}
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, &ConversionError{Err: errors.Wrap(err, "parsing OpenAPI document")}
	}
	if err = doc.Validate(ctx); err != nil {
		return nil, &ConversionError{Err: errors.Wrap(err, "validating OpenAPI document")}
	}

	return doc, nil
}

// Encode serializes a document. YAML output is converted from the JSON
// form so both encodings agree on field names and omission.
func Encode(doc *openapi3.T, format Format) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("document is nil")
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding OpenAPI document")
	}
	if format == FormatJSON {
		return out, nil
	}

	out, err = yaml.JSONToYAML(out)
	if err != nil {
		return nil, errors.Wrap(err, "converting OpenAPI document to yaml")
	}
	return out, nil
}

// SourceKind separates the two accepted inputs.
type SourceKind string

const (
	SourceOpenAPI SourceKind = "openapi"
	SourceLibSL   SourceKind = "libsl"
)

// DetectSource guesses the kind of an uploaded file, first by extension
// then by content.
func DetectSource(filename string, data []byte) SourceKind {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".lsl"):
		return SourceLibSL
	case strings.HasSuffix(lower, ".json"), strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return SourceOpenAPI
	}

	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) || bytes.Contains(trimmed, []byte("openapi:")) {
		return SourceOpenAPI
	}
	for _, marker := range [][]byte{[]byte("libsl "), []byte("automaton "), []byte("library ")} {
		if bytes.Contains(trimmed, marker) {
			return SourceLibSL
		}
	}
	return SourceOpenAPI
}

// Source is a loaded API description. Library is only set for LibSL
// input.
type Source struct {
	Kind     SourceKind
	Document *openapi3.T
	Library  *libsl.Library
}

// LoadSource parses an uploaded file of either kind into a document.
func LoadSource(ctx context.Context, filename string, data []byte) (*Source, error) {
	kind := DetectSource(filename, data)
	if kind == SourceOpenAPI {
		doc, err := Load(ctx, data)
		if err != nil {
			return nil, err
		}
		return &Source{Kind: kind, Document: doc}, nil
	}

	lib, err := libsl.Parse(filename, data)
	if err != nil {
		return nil, err
	}
	doc, err := FromLibrary(lib)
	if err != nil {
		return nil, err
	}
	if err = doc.Validate(ctx); err != nil {
		return nil, &ConversionError{Err: errors.Wrap(err, "validating generated document")}
	}
	return &Source{Kind: kind, Document: doc, Library: lib}, nil
}
