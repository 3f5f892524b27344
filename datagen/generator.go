// Package datagen produces random JSON values that conform to OpenAPI
// schemas.
package datagen

import (
	"encoding/base64"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"
)

const (
	// MaxInt is the exclusive upper bound of unconstrained integers.
	MaxInt = 1000000
	// MaxNumber scales unconstrained numbers.
	MaxNumber = 1e6
	// MaxItems is the exclusive upper bound of generated collection sizes.
	MaxItems = 10
	// MaxStringLength bounds unconstrained strings.
	MaxStringLength = 10
	// MaxRefDepth is how many times one component may appear on a single
	// path before the value is cut.
	MaxRefDepth = 2

	alphanumeric  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	regexAttempts = 8
)

// Generator creates values from schemas. It is safe for concurrent use.
type Generator struct {
	faker *gofakeit.Faker
}

// New returns a generator. A zero seed picks a random one.
func New(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Generate returns a value for the schema: map[string]any for objects,
// []any for arrays and scalars otherwise. Nil schemas produce nil.
func (g *Generator) Generate(ref *openapi3.SchemaRef) any {
	return g.generate(ref, false, map[string]int{})
}

func (g *Generator) generate(ref *openapi3.SchemaRef, nested bool, path map[string]int) any {
	if ref == nil || ref.Value == nil {
		return nil
	}
	if ref.Ref != "" {
		if path[ref.Ref] >= MaxRefDepth {
			return nil
		}
		path[ref.Ref]++
		defer func() { path[ref.Ref]-- }()
	}

	s := ref.Value
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}

	switch {
	case len(s.AllOf) > 0:
		merged := map[string]any{}
		for _, part := range s.AllOf {
			if obj, ok := g.generate(part, nested, path).(map[string]any); ok {
				for k, v := range obj {
					merged[k] = v
				}
			}
		}
		return merged
	case len(s.OneOf) > 0:
		return g.generate(s.OneOf[0], nested, path)
	case len(s.AnyOf) > 0:
		return g.generate(s.AnyOf[0], nested, path)
	}

	switch typeOf(s) {
	case openapi3.TypeInteger:
		return g.integer(s)
	case openapi3.TypeNumber:
		return g.number(s)
	case openapi3.TypeBoolean:
		return g.faker.Bool()
	case openapi3.TypeString:
		return g.str(s)
	case openapi3.TypeArray:
		n := g.size(nested, s.MinItems, s.MaxItems)
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, g.generate(s.Items, true, path))
		}
		return out
	case openapi3.TypeObject:
		return g.object(s, nested, path)
	}

	return nil
}

func typeOf(s *openapi3.Schema) string {
	if s.Type != nil {
		for _, t := range []string{
			openapi3.TypeObject,
			openapi3.TypeArray,
			openapi3.TypeString,
			openapi3.TypeInteger,
			openapi3.TypeNumber,
			openapi3.TypeBoolean,
		} {
			if s.Type.Is(t) {
				return t
			}
		}
	}

	switch {
	case len(s.Properties) > 0 || s.AdditionalProperties.Schema != nil:
		return openapi3.TypeObject
	case s.Items != nil:
		return openapi3.TypeArray
	}
	return ""
}

func (g *Generator) object(s *openapi3.Schema, nested bool, path map[string]int) map[string]any {
	out := make(map[string]any, len(s.Properties))

	// sorted so one seed always produces the same object
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out[name] = g.generate(s.Properties[name], true, path)
	}

	if s.AdditionalProperties.Schema == nil {
		return out
	}

	n := g.size(nested, s.MinProps, s.MaxProps)
	for added, attempts := 0, 0; added < n && attempts < n*regexAttempts; attempts++ {
		key := g.faker.LetterN(uint(1 + g.faker.IntN(MaxStringLength)))
		if _, ok := out[key]; ok {
			continue
		}
		out[key] = g.generate(s.AdditionalProperties.Schema, true, path)
		added++
	}
	return out
}

// size picks a collection size: [0, MaxItems) at the top level and
// [1, MaxItems) below it, narrowed by schema bounds.
func (g *Generator) size(nested bool, min uint64, max *uint64) int {
	lo, hi := 0, MaxItems-1
	if nested {
		lo = 1
	}
	if min > 0 {
		lo = int(min)
	}
	if max != nil {
		hi = int(*max)
	}
	if lo > hi {
		if max != nil {
			lo = hi
		} else {
			hi = lo
		}
	}
	return g.faker.IntRange(lo, hi)
}

func (g *Generator) integer(s *openapi3.Schema) int64 {
	lo, hi := 0.0, float64(MaxInt-1)
	if s.Min != nil {
		lo = math.Ceil(*s.Min)
		if s.ExclusiveMin && lo == *s.Min {
			lo++
		}
	}
	if s.Max != nil {
		hi = math.Floor(*s.Max)
		if s.ExclusiveMax && hi == *s.Max {
			hi--
		}
	}
	switch {
	case lo > hi && s.Max == nil:
		hi = lo + MaxInt - 1
	case lo > hi && s.Min == nil:
		lo = hi - MaxInt + 1
	case lo > hi:
		return int64(lo)
	}

	if s.MultipleOf != nil && *s.MultipleOf >= 1 {
		m := math.Floor(*s.MultipleOf)
		first, last := math.Ceil(lo/m), math.Floor(hi/m)
		if first <= last {
			return int64(m) * int64(g.faker.IntRange(int(first), int(last)))
		}
	}
	return int64(g.faker.IntRange(int(lo), int(hi)))
}

func (g *Generator) number(s *openapi3.Schema) float64 {
	lo, hi := 0.0, MaxNumber
	if s.Min != nil {
		lo = *s.Min
	}
	if s.Max != nil {
		hi = *s.Max
	}
	switch {
	case lo > hi && s.Max == nil:
		hi = lo + MaxNumber
	case lo > hi && s.Min == nil:
		lo = hi - MaxNumber
	case lo > hi:
		return lo
	}
	return g.faker.Float64Range(lo, hi)
}

func (g *Generator) str(s *openapi3.Schema) string {
	if s.Pattern != "" {
		if out, err := g.Regex(s.Pattern); err == nil {
			return out
		}
	}

	switch s.Format {
	case "date":
		return g.faker.Date().Format("2006-01-02")
	case "date-time":
		return g.faker.Date().UTC().Format(time.RFC3339)
	case "uuid":
		return g.faker.UUID()
	case "email":
		return g.faker.Email()
	case "uri", "url":
		return g.faker.URL()
	case "ipv4":
		return g.faker.IPv4Address()
	case "byte":
		return base64.StdEncoding.EncodeToString([]byte(g.alphanumeric(0, MaxStringLength)))
	}

	lo, hi := int(s.MinLength), MaxStringLength
	if s.MaxLength != nil {
		hi = int(*s.MaxLength)
	}
	if lo > hi {
		if s.MaxLength != nil {
			lo = hi
		} else {
			hi = lo
		}
	}
	return g.alphanumeric(lo, hi)
}

func (g *Generator) alphanumeric(lo, hi int) string {
	n := g.faker.IntRange(lo, hi)
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphanumeric[g.faker.IntN(len(alphanumeric))])
	}
	return b.String()
}

// Regex returns a string matched by the pattern.
func (g *Generator) Regex(pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", errors.Wrapf(err, "invalid regular expression '%s'", pattern)
	}

	for i := 0; i < regexAttempts; i++ {
		out := g.faker.Regex(pattern)
		if re.MatchString(out) {
			return out, nil
		}
	}
	return "", errors.Errorf("could not generate a value for '%s'", pattern)
}
