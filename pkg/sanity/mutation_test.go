package sanity_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nc9/sanity-go/pkg/sanity"
)

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestMutation_MarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutation sanity.Mutation
		want     string
	}{
		{
			name:     "create",
			mutation: sanity.Create(sanity.Document{"_type": "post", "title": "Hello"}),
			want:     `{"create":{"_type":"post","title":"Hello"}}`,
		},
		{
			name:     "createOrReplace",
			mutation: sanity.CreateOrReplace(sanity.Document{"_id": "post-1", "_type": "post"}),
			want:     `{"createOrReplace":{"_id":"post-1","_type":"post"}}`,
		},
		{
			name:     "createIfNotExists",
			mutation: sanity.CreateIfNotExists(sanity.Document{"_id": "post-1", "_type": "post"}),
			want:     `{"createIfNotExists":{"_id":"post-1","_type":"post"}}`,
		},
		{
			name:     "delete by id",
			mutation: sanity.Delete("post-1"),
			want:     `{"delete":{"id":"post-1"}}`,
		},
		{
			name:     "delete by query",
			mutation: sanity.DeleteByQuery(`*[_type == $t]`, map[string]any{"t": "draft"}),
			want:     `{"delete":{"query":"*[_type == $t]","params":{"t":"draft"}}}`,
		},
		{
			name: "patch with every operation",
			mutation: sanity.PatchID("post-1").
				IfRevisionID("rev-1").
				Set("title", "Updated").
				SetIfMissing("views", 0).
				Unset("legacy", "old").
				Inc("views", 1).
				Dec("stock", 2).
				DiffMatchPatch("body", "@@ -1 +1 @@").
				InsertAfter("tags[-1]", "go").
				Mutation(),
			want: `{"patch":{"id":"post-1","ifRevisionID":"rev-1","set":{"title":"Updated"},` +
				`"setIfMissing":{"views":0},"diffMatchPatch":{"body":"@@ -1 +1 @@"},"unset":["legacy","old"],` +
				`"inc":{"views":1},"dec":{"stock":2},"insert":{"after":"tags[-1]","items":["go"]}}}`,
		},
		{
			name:     "patch by query",
			mutation: sanity.PatchQuery(`*[_type == "post"]`, nil).Set("published", true).Mutation(),
			want:     `{"patch":{"query":"*[_type == \"post\"]","set":{"published":true}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := json.Marshal(tt.mutation)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestPatch_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var m sanity.Mutation

	err := json.Unmarshal([]byte(`{"patch":{"id":"post-1","set":{"title":"x"},"inc":{"n":2}}}`), &m)
	require.NoError(t, err)
	assert.Equal(t, sanity.KindPatch, m.Kind())
	require.NoError(t, m.Validate())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"patch":{"id":"post-1","set":{"title":"x"},"inc":{"n":2}}}`, string(data))
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestMutation_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutation sanity.Mutation
		wantErrs []error
	}{
		{name: "valid create", mutation: sanity.Create(sanity.Document{"_type": "post"})},
		{name: "create without type", mutation: sanity.Create(sanity.Document{"title": "x"}), wantErrs: []error{sanity.ErrDocumentType}},
		{
			name:     "createOrReplace without id or type",
			mutation: sanity.CreateOrReplace(sanity.Document{"title": "x"}),
			wantErrs: []error{sanity.ErrDocumentID, sanity.ErrDocumentType},
		},
		{name: "patch without operations", mutation: sanity.PatchID("a").Mutation(), wantErrs: []error{sanity.ErrPatchEmpty}},
		{
			name:     "patch without selector",
			mutation: sanity.PatchID("").Set("a", 1).Mutation(),
			wantErrs: []error{sanity.ErrSelectorRequired},
		},
		{name: "delete without selector", mutation: sanity.Delete(""), wantErrs: []error{sanity.ErrSelectorRequired}},
		{
			name:     "delete with id and query",
			mutation: sanity.Mutation{Delete: &sanity.Selector{ID: "a", Query: "*"}},
			wantErrs: []error{sanity.ErrSelectorAmbiguous},
		},
		{name: "empty", mutation: sanity.Mutation{}, wantErrs: []error{sanity.ErrMutationEmpty}},
		{
			name:     "two operations",
			mutation: sanity.Mutation{Delete: &sanity.Selector{ID: "a"}, Create: sanity.Document{"_type": "post"}},
			wantErrs: []error{sanity.ErrMutationAmbiguous},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.mutation.Validate()
			if len(tt.wantErrs) == 0 {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)

			for _, want := range tt.wantErrs {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestValidateMutations(t *testing.T) {
	t.Parallel()
	t.Run("zero mutations", func(t *testing.T) {
		t.Parallel()

		err := sanity.ValidateMutations(nil)
		require.ErrorIs(t, err, sanity.ErrNoMutations)
		assert.True(t, sanity.IsValidation(err))
	})

	t.Run("reports every invalid mutation", func(t *testing.T) {
		t.Parallel()

		err := sanity.ValidateMutations([]sanity.Mutation{
			sanity.Delete("ok"),
			sanity.Delete(""),
			sanity.Create(sanity.Document{}),
		})
		require.Error(t, err)
		assert.True(t, sanity.IsValidation(err))
		assert.ErrorIs(t, err, sanity.ErrSelectorRequired)
		assert.ErrorIs(t, err, sanity.ErrDocumentType)
		assert.Contains(t, err.Error(), "mutation 1 (delete)")
		assert.Contains(t, err.Error(), "mutation 2 (create)")
	})

	t.Run("valid transaction", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, sanity.ValidateMutations([]sanity.Mutation{
			sanity.Create(sanity.Document{"_type": "post"}),
			sanity.PatchID("a").Inc("n", 1).Mutation(),
		}))
	})
}

func TestMutationOptions(t *testing.T) {
	t.Parallel()
	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		var opts *sanity.MutationOptions

		v := opts.Values()
		assert.Equal(t, "false", v.Get("returnIds"))
		assert.Equal(t, "false", v.Get("returnDocuments"))
		assert.Equal(t, "sync", v.Get("visibility"))
		assert.Equal(t, "false", v.Get("dryRun"))
		assert.False(t, v.Has("transactionId"))
		assert.False(t, v.Has("autoGenerateArrayKeys"))
	})

	t.Run("all options", func(t *testing.T) {
		t.Parallel()

		opts := &sanity.MutationOptions{
			ReturnIDs:                            true,
			ReturnDocuments:                      true,
			Visibility:                           "deferred",
			DryRun:                               true,
			TransactionID:                        "tx",
			AutoGenerateArrayKeys:                true,
			SkipCrossDatasetReferencesValidation: true,
		}
		require.NoError(t, opts.Validate())

		v := opts.Values()
		assert.Equal(t, "true", v.Get("returnIds"))
		assert.Equal(t, "true", v.Get("returnDocuments"))
		assert.Equal(t, "deferred", v.Get("visibility"))
		assert.Equal(t, "true", v.Get("dryRun"))
		assert.Equal(t, "tx", v.Get("transactionId"))
		assert.Equal(t, "true", v.Get("autoGenerateArrayKeys"))
		assert.Equal(t, "true", v.Get("skipCrossDatasetReferencesValidation"))
	})

	t.Run("invalid visibility", func(t *testing.T) {
		t.Parallel()

		err := (&sanity.MutationOptions{Visibility: "eventually"}).Validate()
		require.Error(t, err)
		assert.True(t, sanity.IsValidation(err))
	})
}

func TestParseMutationResponse(t *testing.T) {
	t.Parallel()

	body := []byte(`{"transactionId":"tx-9","results":[{"id":"a","operation":"create"},{"id":"b","operation":"delete"}],"extra":1}`)

	res, err := sanity.ParseMutationResponse(200, body)
	require.NoError(t, err)
	assert.Equal(t, "tx-9", res.TransactionID)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "create", res.Results[0].Operation)

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, string(body), string(out))

	_, err = sanity.ParseMutationResponse(200, []byte("nope"))
	require.ErrorIs(t, err, sanity.ErrParse)
}
