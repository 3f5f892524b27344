package openapi

import (
	"context"
	"os"
	"testing"

	"github.com/Nikpro200125/orchestrator/libsl"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shopLibrary(t *testing.T) *libsl.Library {
	src, err := os.ReadFile("../libsl/testdata/shop.lsl")
	require.NoError(t, err)
	lib, err := libsl.Parse("shop.lsl", src)
	require.NoError(t, err)
	return lib
}

func TestFromLibrary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doc, err := FromLibrary(shopLibrary(t))
	require.NoError(t, err)
	require.NoError(t, doc.Validate(ctx))

	assert.Equal(t, GeneratedTitle, doc.Info.Title)
	assert.Equal(t, GeneratedVersion, doc.Info.Version)

	t.Run("SkipsFunctionsWithoutMethod", func(t *testing.T) {
		assert.Nil(t, doc.Paths.Value("/ShopApi/close"))
		assert.Len(t, Operations(doc), 5)
	})
	t.Run("PathParameters", func(t *testing.T) {
		item := doc.Paths.Value("/ShopApi/getProduct/{id}")
		require.NotNil(t, item)
		require.NotNil(t, item.Get)
		require.Len(t, item.Get.Parameters, 1)
		param := item.Get.Parameters[0].Value
		assert.Equal(t, "path", param.In)
		assert.True(t, param.Required)
		assert.True(t, param.Schema.Value.Type.Is(openapi3.TypeInteger))
		assert.Equal(t, "int64", param.Schema.Value.Format)
		assert.Equal(t, "#/components/schemas/int64", param.Schema.Ref)
		assert.Equal(t, "getProduct", item.Get.Extensions[FunctionExtension])
		assert.Equal(t, "ShopApi", item.Get.Extensions[AutomatonExtension])
	})
	t.Run("QueryParameters", func(t *testing.T) {
		item := doc.Paths.Value("/ShopApi/sum")
		require.NotNil(t, item)
		require.Len(t, item.Get.Parameters, 2)
		assert.Equal(t, "query", item.Get.Parameters[0].Value.In)
		assert.Equal(t, "a", item.Get.Parameters[0].Value.Name)
		for _, param := range item.Get.Parameters {
			assert.Equal(t, "#/components/schemas/int32", param.Value.Schema.Ref)
		}
	})
	t.Run("RequestBody", func(t *testing.T) {
		item := doc.Paths.Value("/ShopApi/createOrder")
		require.NotNil(t, item)
		require.NotNil(t, item.Post)
		require.NotNil(t, item.Post.RequestBody)
		media := item.Post.RequestBody.Value.Content.Get("application/json")
		require.NotNil(t, media)
		assert.Equal(t, "#/components/schemas/Order", media.Schema.Ref)
		assert.Equal(t, "order", item.Post.Extensions[RequestBodyNameExtension])
	})
	t.Run("Responses", func(t *testing.T) {
		ok := doc.Paths.Value("/ShopApi/getProduct/{id}").Get.Responses.Status(200)
		require.NotNil(t, ok)
		assert.Equal(t, "Successful operation", *ok.Value.Description)
		assert.Equal(t, "#/components/schemas/Product", ok.Value.Content.Get("application/json").Schema.Ref)

		empty := doc.Paths.Value("/ShopApi/removeProduct/{id}").Delete.Responses.Status(200)
		require.NotNil(t, empty)
		assert.Empty(t, empty.Value.Content)
	})
	t.Run("Components", func(t *testing.T) {
		product := doc.Components.Schemas["Product"]
		require.NotNil(t, product)
		props := product.Value.Properties
		assert.Equal(t, "int64", props["id"].Value.Format)
		assert.True(t, props["title"].Value.Type.Is(openapi3.TypeString))
		assert.Equal(t, "double", props["price"].Value.Format)
		assert.Equal(t, "int32", props["quantity"].Value.Format)
		assert.True(t, props["available"].Value.Type.Is(openapi3.TypeBoolean))
		assert.True(t, props["tags"].Value.Type.Is(openapi3.TypeArray))

		order := doc.Components.Schemas["Order"]
		require.NotNil(t, order)
		meta := order.Value.Properties["meta"].Value
		require.NotNil(t, meta.AdditionalProperties.Schema)
		assert.Equal(t, "int32", meta.AdditionalProperties.Schema.Value.Format)
		assert.Equal(t, "#/components/schemas/Product", order.Value.Properties["items"].Value.Items.Ref)

		status := doc.Components.Schemas["Status"]
		require.NotNil(t, status)
		assert.Equal(t, []any{"ACTIVE", "BLOCKED"}, status.Value.Enum)
	})
}

func TestFromLibraryComponents(t *testing.T) {
	lib, err := libsl.Parse("a.lsl", []byte(`
type Item { id: int32; }
typealias Ref = int64;
automaton A : int {
    @GET fun get(@PathParameter id: int32, @QueryParameter tags: list<string>): int32;
    @POST fun put(@RequestBody items: map<string, Item>, @QueryParameter ref: Ref);
}`))
	require.NoError(t, err)

	doc, err := FromLibrary(lib)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	get := doc.Paths.Value("/A/get/{id}").Get
	require.NotNil(t, get)
	require.Len(t, get.Parameters, 2)
	assert.Equal(t, "#/components/schemas/int32", get.Parameters[0].Value.Schema.Ref)
	assert.Equal(t, "#/components/schemas/list_string", get.Parameters[1].Value.Schema.Ref)
	assert.True(t, get.Parameters[1].Value.Schema.Value.Type.Is(openapi3.TypeArray))
	ok := get.Responses.Status(200).Value.Content.Get("application/json")
	require.NotNil(t, ok)
	assert.Equal(t, "#/components/schemas/int32", ok.Schema.Ref)

	put := doc.Paths.Value("/A/put").Post
	require.NotNil(t, put)
	body := put.RequestBody.Value.Content.Get("application/json")
	require.NotNil(t, body)
	assert.Equal(t, "#/components/schemas/map_string_Item", body.Schema.Ref)
	require.Len(t, put.Parameters, 1)
	assert.Equal(t, "#/components/schemas/Ref", put.Parameters[0].Value.Schema.Ref)
	assert.Equal(t, "int64", put.Parameters[0].Value.Schema.Value.Format)

	for _, name := range []string{"int32", "list_string", "map_string_Item", "Ref", "Item"} {
		assert.Contains(t, doc.Components.Schemas, name)
	}
	assert.Equal(t, "int32", doc.Components.Schemas["int32"].Value.Format)
}

func TestFromLibraryRegistersUnusedStructs(t *testing.T) {
	lib, err := libsl.Parse("a.lsl", []byte(`type Item { id: int32; } automaton A : int { @GET fun f(); }`))
	require.NoError(t, err)

	doc, err := FromLibrary(lib)
	require.NoError(t, err)
	item := doc.Components.Schemas["Item"]
	require.NotNil(t, item)
	assert.Contains(t, item.Value.Properties, "id")
}

func TestFromLibraryErrors(t *testing.T) {
	for name, test := range map[string]struct {
		src     string
		message string
	}{
		"MultipleBodies": {
			src:     `automaton A : int { @POST fun f(@RequestBody a: int32, @RequestBody b: int32); }`,
			message: "Multiple request bodies are not supported",
		},
		"UnknownType": {
			src:     `automaton A : int { @GET fun f(): Unknown; }`,
			message: "Unexpected value: Unknown",
		},
		"BadMap": {
			src:     `automaton A : int { @GET fun f(): map<string>; }`,
			message: "exactly two generics",
		},
	} {
		t.Run(name, func(t *testing.T) {
			lib, err := libsl.Parse("a.lsl", []byte(test.src))
			require.NoError(t, err)
			_, err = FromLibrary(lib)
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.message)
			assert.True(t, IsInputError(err))
		})
	}
}

func TestMethodAnnotationsIgnoreCase(t *testing.T) {
	lib, err := libsl.Parse("a.lsl", []byte(`automaton A : int { @patch fun f(); @Put fun g(); }`))
	require.NoError(t, err)

	doc, err := FromLibrary(lib)
	require.NoError(t, err)
	require.NotNil(t, doc.Paths.Value("/A/f").Patch)
	require.NotNil(t, doc.Paths.Value("/A/g").Put)
}

func TestLoad(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("Valid", func(t *testing.T) {
		data, err := os.ReadFile("testdata/petstore.yaml")
		require.NoError(t, err)
		doc, err := Load(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, "Petstore", doc.Info.Title)
		assert.Len(t, Operations(doc), 4)
	})
	t.Run("Empty", func(t *testing.T) {
		_, err := Load(ctx, []byte("  "))
		require.Error(t, err)
		assert.True(t, IsInputError(err))
	})
	t.Run("Garbage", func(t *testing.T) {
		_, err := Load(ctx, []byte("{not json"))
		require.Error(t, err)
		assert.True(t, IsInputError(errors.Wrap(err, "wrapped")))
	})
}

func TestOperationsOrder(t *testing.T) {
	data, err := os.ReadFile("testdata/petstore.yaml")
	require.NoError(t, err)
	doc, err := Load(context.Background(), data)
	require.NoError(t, err)

	ops := Operations(doc)
	require.Len(t, ops, 4)
	assert.Equal(t, "/pets", ops[0].Path)
	assert.Equal(t, "GET", ops[0].Method)
	assert.Equal(t, "POST", ops[1].Method)
	assert.Equal(t, "/pets/{petId}", ops[2].Path)
	assert.Equal(t, "DELETE", ops[2].Method)
}

func TestEncodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	doc, err := FromLibrary(shopLibrary(t))
	require.NoError(t, err)

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			out, err := Encode(doc, format)
			require.NoError(t, err)
			loaded, err := Load(ctx, out)
			require.NoError(t, err)
			assert.Equal(t, len(Operations(doc)), len(Operations(loaded)))
		})
	}

	_, err = Encode(doc, Format("xml"))
	assert.Error(t, err)
}

func TestDetectSource(t *testing.T) {
	assert.Equal(t, SourceLibSL, DetectSource("spec.lsl", nil))
	assert.Equal(t, SourceOpenAPI, DetectSource("spec.yaml", nil))
	assert.Equal(t, SourceOpenAPI, DetectSource("upload", []byte(`{"openapi": "3.0.1"}`)))
	assert.Equal(t, SourceLibSL, DetectSource("upload", []byte("libsl \"1.0\";\nautomaton A : int {}")))
}

func TestLoadSource(t *testing.T) {
	src, err := os.ReadFile("../libsl/testdata/shop.lsl")
	require.NoError(t, err)

	source, err := LoadSource(context.Background(), "shop.lsl", src)
	require.NoError(t, err)
	assert.Equal(t, SourceLibSL, source.Kind)
	require.NotNil(t, source.Library)
	require.NotNil(t, source.Document)

	_, err = LoadSource(context.Background(), "bad.lsl", []byte("automaton {"))
	require.Error(t, err)
	assert.True(t, IsInputError(err))
}
