package sanity_test

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nc9/sanity-go/pkg/sanity"
)

func TestQueryRequest_Builder(t *testing.T) {
	t.Parallel()

	q := sanity.NewQuery(`*[_type == $type]`).
		WithParam("type", "post").
		WithPerspective(sanity.PerspectiveDrafts).
		WithTag("landing").
		WithMethod(sanity.QueryMethodPOST).
		WithResultSourceMap()

	assert.Equal(t, `*[_type == $type]`, q.Query)
	assert.Equal(t, map[string]any{"type": "post"}, q.Params)
	assert.Equal(t, "drafts", q.Perspective)
	assert.Equal(t, "landing", q.Tag)
	assert.Equal(t, sanity.QueryMethodPOST, q.Method)
	assert.True(t, q.ResultSourceMap)
	require.NoError(t, q.Validate())
}

func TestQueryRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		request *sanity.QueryRequest
		wantErr string
	}{
		{name: "valid", request: sanity.NewQuery(`*`)},
		{name: "empty query", request: sanity.NewQuery(""), wantErr: "cannot be blank"},
		{name: "bad method", request: sanity.NewQuery(`*`).WithMethod("PUT"), wantErr: "must be a valid value"},
		{name: "bad param name", request: sanity.NewQuery(`*`).WithParam("1st", 1), wantErr: "invalid parameter name"},
		{name: "dollar in param name", request: sanity.NewQuery(`*`).WithParam("$id", 1), wantErr: "invalid parameter name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.request.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.True(t, sanity.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseQueryResponse(t *testing.T) {
	t.Parallel()
	t.Run("decodes result", func(t *testing.T) {
		t.Parallel()

		res, err := sanity.ParseQueryResponse(200, []byte(`{"ms":12,"query":"*[0]","result":{"_id":"a","n":2}}`))
		require.NoError(t, err)
		assert.Equal(t, 12, res.Ms)
		assert.Equal(t, "*[0]", res.Query)

		var doc struct {
			ID string `json:"_id"`
			N  int    `json:"n"`
		}
		require.NoError(t, res.Decode(&doc))
		assert.Equal(t, "a", doc.ID)
		assert.Equal(t, 2, doc.N)
	})

	t.Run("missing result", func(t *testing.T) {
		t.Parallel()

		res, err := sanity.ParseQueryResponse(200, []byte(`{"ms":1}`))
		require.NoError(t, err)

		var v any
		err = res.Decode(&v)
		require.ErrorIs(t, err, sanity.ErrMissingResult)
		assert.ErrorIs(t, err, sanity.ErrParse)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		_, err := sanity.ParseQueryResponse(200, []byte(`{"ms":`))
		require.Error(t, err)

		var parseErr *sanity.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, 200, parseErr.StatusCode)
		assert.Equal(t, []byte(`{"ms":`), parseErr.Body)
	})

	t.Run("re-encoding keeps unknown fields", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{"ms":3,"result":[1],"resultSourceMap":{"documents":[]}}`)

		res, err := sanity.ParseQueryResponse(200, body)
		require.NoError(t, err)

		out, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, string(body), string(out))
	})
}

func TestQueryResponse_RoundTrip(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("encode then parse preserves every field", prop.ForAll(
		func(ms int, query string, values []string, tags []string) bool {
			result, err := json.Marshal(values)
			if err != nil {
				return false
			}

			if len(tags) == 0 {
				tags = nil
			}

			original := sanity.QueryResponse{Ms: ms, Query: query, Result: result, SyncTags: tags}

			encoded, err := json.Marshal(original)
			if err != nil {
				return false
			}

			parsed, err := sanity.ParseQueryResponse(200, encoded)
			if err != nil {
				return false
			}

			var decoded []string
			if parsed.Decode(&decoded) != nil {
				return false
			}

			reencoded, err := json.Marshal(parsed)
			if err != nil {
				return false
			}

			return parsed.Ms == ms && parsed.Query == query &&
				assert.ObjectsAreEqual(values, decoded) &&
				assert.ObjectsAreEqual(tags, parsed.SyncTags) &&
				string(reencoded) == string(encoded)
		},
		gen.IntRange(0, 1_000_000),
		gen.AlphaString(),
		gen.SliceOf(gen.AnyString()),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}
