package openapi

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

// Key identifies the operation within its document.
func (o Operation) Key() string { return o.Method + " " + o.Path }

// SuccessResponse returns the status and body schema a mock should answer
// with: 200, then 201, then the lowest other 2xx, then default. The
// schema is nil when the response has no content.
func (o Operation) SuccessResponse() (int, *openapi3.SchemaRef) {
	if o.Operation == nil || o.Operation.Responses == nil {
		return http.StatusOK, nil
	}

	responses := o.Operation.Responses.Map()
	var codes []string
	for code := range responses {
		if n, err := strconv.Atoi(code); err == nil && n >= 200 && n < 300 {
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool {
		return rank(codes[i]) < rank(codes[j])
	})
	if _, ok := responses["default"]; ok {
		codes = append(codes, "default")
	}

	for _, code := range codes {
		ref := responses[code]
		if ref == nil || ref.Value == nil {
			continue
		}
		status := http.StatusOK
		if n, err := strconv.Atoi(code); err == nil {
			status = n
		}
		return status, contentSchema(ref.Value.Content)
	}
	return http.StatusOK, nil
}

func rank(code string) int {
	switch code {
	case "200":
		return 0
	case "201":
		return 1
	}
	n, _ := strconv.Atoi(code)
	return n
}

func contentSchema(content openapi3.Content) *openapi3.SchemaRef {
	if len(content) == 0 {
		return nil
	}
	if media := content.Get("application/json"); media != nil {
		return media.Schema
	}

	types := make([]string, 0, len(content))
	for t := range content {
		types = append(types, t)
	}
	sort.Strings(types)
	return content[types[0]].Schema
}
