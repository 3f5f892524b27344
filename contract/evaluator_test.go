package contract

import (
	"context"
	"math"
	"net/url"
	"os"
	"testing"

	"github.com/Nikpro200125/orchestrator/libsl"
	"github.com/Nikpro200125/orchestrator/openapi"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, name string, src []byte) (*Evaluator, *openapi3.T) {
	lib, err := libsl.Parse(name, src)
	require.NoError(t, err)
	doc, err := openapi.FromLibrary(lib)
	require.NoError(t, err)
	e, err := NewEvaluator(lib, doc, 42)
	require.NoError(t, err)
	return e, doc
}

func loadShop(t *testing.T) (*Evaluator, *openapi3.T) {
	src, err := os.ReadFile("../libsl/testdata/shop.lsl")
	require.NoError(t, err)
	return load(t, "shop.lsl", src)
}

func operation(t *testing.T, doc *openapi3.T, method, path string) openapi.Operation {
	for _, op := range openapi.Operations(doc) {
		if op.Method == method && op.Path == path {
			return op
		}
	}
	require.FailNow(t, "operation not found", "%s %s", method, path)
	return openapi.Operation{}
}

func TestPreconditions(t *testing.T) {
	e, doc := loadShop(t)
	op := operation(t, doc, "GET", "/ShopApi/getProduct/{id}")

	_, err := e.Respond(context.Background(), op, Request{Path: map[string]string{"id": "0"}})
	require.Error(t, err)
	assert.Equal(t, "Precondition with positiveId failed", err.Error())
	assert.True(t, IsClientError(err))

	_, err = e.Respond(context.Background(), op, Request{Path: map[string]string{"id": "seven"}})
	require.Error(t, err)
	assert.True(t, IsClientError(err))

	assert.Equal(t, "Precondition with unset name failed", (&PreconditionError{}).Error())
}

func TestSolvedEnsures(t *testing.T) {
	e, doc := loadShop(t)
	op := operation(t, doc, "GET", "/ShopApi/getProduct/{id}")

	type pair struct {
		quantity int64
		price    float64
	}
	seen := map[pair]bool{}

	for i := 0; i < 5; i++ {
		out, err := e.Respond(context.Background(), op, Request{Path: map[string]string{"id": "7"}})
		require.NoError(t, err)
		product, ok := out.(map[string]any)
		require.True(t, ok)

		assert.Equal(t, int64(7), product["id"])

		quantity := product["quantity"].(int64)
		assert.True(t, quantity > 0 && quantity < 4, "quantity %d", quantity)

		price := product["price"].(float64)
		assert.True(t, price >= 1.5 && price <= 10.0, "price %g", price)
		assert.InDelta(t, math.Round(price*100)/100, price, 1e-9)

		assert.Regexp(t, `^[A-Z][a-z]{3,8}$`, product["title"])
		assert.Contains(t, product, "available")

		p := pair{quantity: quantity, price: price}
		assert.False(t, seen[p], "solution repeated: %+v", p)
		seen[p] = true
	}
}

const flagsSource = `
type Choice {
    n: int32;
    name: string;
    label: string;
}

automaton Flags : int {
    @GET
    fun pick(): Choice
        ensures result.n >= 1 & result.n <= 2;

    @GET
    fun never(): Choice
        ensures result.n > 5 & result.n < 3;

    @GET
    fun named(@QueryParameter label: string): Choice
        ensures result.name = "fixed";
        ensures result.label = label;

    @GET
    fun broken(): int32 {
        result = missing(1);
    }

    @GET
    fun badAction(): int32 {
        var acc: int32 = 0;
        action ADD_ACTION(acc);
        result = acc;
    }
}
`

func TestSolutionCounterRestarts(t *testing.T) {
	e, doc := load(t, "flags.lsl", []byte(flagsSource))
	op := operation(t, doc, "GET", "/Flags/pick")

	var values []int64
	for i := 0; i < 5; i++ {
		out, err := e.Respond(context.Background(), op, Request{})
		require.NoError(t, err)
		values = append(values, out.(map[string]any)["n"].(int64))
	}

	assert.NotEqual(t, values[0], values[1])
	assert.Equal(t, values[0], values[2])
	assert.Equal(t, values[1], values[3])
	assert.Equal(t, values[0], values[4])
	for _, v := range values {
		assert.True(t, v == 1 || v == 2)
	}
}

func TestUnsatisfiable(t *testing.T) {
	e, doc := load(t, "flags.lsl", []byte(flagsSource))

	_, err := e.Respond(context.Background(), operation(t, doc, "GET", "/Flags/never"), Request{})
	require.Error(t, err)
	assert.Equal(t, "Cannot find solution for the given constraints", err.Error())
	assert.True(t, IsUnsatisfiable(err))
	assert.False(t, IsClientError(err))
}

func TestAssignedEnsures(t *testing.T) {
	e, doc := load(t, "flags.lsl", []byte(flagsSource))
	op := operation(t, doc, "GET", "/Flags/named")

	out, err := e.Respond(context.Background(), op, Request{Query: url.Values{"label": []string{"hello"}}})
	require.NoError(t, err)
	obj := out.(map[string]any)
	assert.Equal(t, "fixed", obj["name"])
	assert.Equal(t, "hello", obj["label"])
}

func TestBodyErrors(t *testing.T) {
	e, doc := load(t, "flags.lsl", []byte(flagsSource))

	_, err := e.Respond(context.Background(), operation(t, doc, "GET", "/Flags/broken"), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Function not found: missing")
	assert.False(t, IsClientError(err))

	_, err = e.Respond(context.Background(), operation(t, doc, "GET", "/Flags/badAction"), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incompatible argument types for action ADD_ACTION")
}

func TestFunctionBodies(t *testing.T) {
	e, doc := loadShop(t)
	ctx := context.Background()

	t.Run("ConstructorsAndProcedures", func(t *testing.T) {
		op := operation(t, doc, "GET", "/ShopApi/count")

		out, err := e.Respond(ctx, op, Request{Query: url.Values{"start": []string{"3"}}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"value": int64(3), "doubled": int64(6)}, out)

		calls, ok := e.Binding(op).interp.state.get("calls")
		require.True(t, ok)
		assert.Equal(t, int64(1), calls)

		out, err = e.Respond(ctx, op, Request{Query: url.Values{"start": []string{"20"}}})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"value": int64(10), "doubled": int64(40)}, out)

		calls, _ = e.Binding(op).interp.state.get("calls")
		assert.Equal(t, int64(1), calls)
	})
	t.Run("Actions", func(t *testing.T) {
		op := operation(t, doc, "GET", "/ShopApi/sum")
		out, err := e.Respond(ctx, op, Request{Query: url.Values{"a": []string{"2"}, "b": []string{"5"}}})
		require.NoError(t, err)
		assert.Equal(t, int64(7), out)
	})
}

func TestRandomResponses(t *testing.T) {
	e, doc := loadShop(t)
	ctx := context.Background()

	out, err := e.Respond(ctx, operation(t, doc, "POST", "/ShopApi/createOrder"), Request{Body: map[string]any{"id": 1.0}})
	require.NoError(t, err)
	order, ok := out.(map[string]any)
	require.True(t, ok)
	for _, field := range []string{"id", "total", "status", "items", "meta"} {
		assert.Contains(t, order, field)
	}
	assert.Equal(t, "ACTIVE", order["status"])

	out, err = e.Respond(ctx, operation(t, doc, "DELETE", "/ShopApi/removeProduct/{id}"), Request{Path: map[string]string{"id": "1"}})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestBindingErrors(t *testing.T) {
	src := `
type Item { title: string; }
automaton A : int {
    @GET
    fun f(): Item
        ensures result.title > 3;
}`
	lib, err := libsl.Parse("bad.lsl", []byte(src))
	require.NoError(t, err)
	doc, err := openapi.FromLibrary(lib)
	require.NoError(t, err)

	_, err = NewEvaluator(lib, doc, 1)
	require.Error(t, err)
	assert.True(t, openapi.IsInputError(err))
	assert.Contains(t, err.Error(), "field = value")
}

func TestCanceledContext(t *testing.T) {
	e, doc := loadShop(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Respond(ctx, operation(t, doc, "GET", "/ShopApi/sum"), Request{})
	assert.Error(t, err)
}
