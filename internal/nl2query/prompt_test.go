package nl2query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/askmesh/askmesh/internal/schema"
)

func mustDescriptor(t *testing.T, variant schema.Variant) schema.Descriptor {
	t.Helper()
	desc, err := schema.For(variant, "")
	require.NoError(t, err)
	return desc
}

func TestBuildMongoPrompt(t *testing.T) {
	desc := mustDescriptor(t, schema.VariantMongo)

	prompt, err := Build("  Count orders by paymentStatus.  ", desc)

	require.NoError(t, err)
	assert.Contains(t, prompt, desc.Text)
	assert.Contains(t, prompt, "Respond with ONLY")
	assert.Contains(t, prompt, `{"find": {"status": "DELIVERED"}}`)
	assert.Contains(t, prompt, "$group")
	assert.Contains(t, prompt, "$unwind")
	assert.Contains(t, prompt, "dot notation")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(prompt), `User question: "Count orders by paymentStatus."`+"\n\nMongoDB Query (JSON only):"))
	assert.NotContains(t, prompt, "<<")
}

func TestBuildSQLPrompt(t *testing.T) {
	desc := mustDescriptor(t, schema.VariantSQL)

	prompt, err := Build("Show total revenue for each region.", desc)

	require.NoError(t, err)
	assert.Contains(t, prompt, desc.Text)
	assert.Contains(t, prompt, "Respond with ONLY the SQL query")
	assert.Contains(t, prompt, "SELECT region, SUM(quantity * unit_price) AS total_revenue FROM sales GROUP BY region")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(prompt), "SQL Query:"))
}

func TestBuildIsDeterministic(t *testing.T) {
	desc := mustDescriptor(t, schema.VariantMongo)
	first, err := Build("List orders", desc)
	require.NoError(t, err)
	second, err := Build("List orders", desc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildRejectsBlankQuestion(t *testing.T) {
	_, err := Build(" \n ", mustDescriptor(t, schema.VariantSQL))
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestBuildDoesNotExpandPlaceholdersInQuestion(t *testing.T) {
	prompt, err := Build("what is <<SCHEMA>>?", mustDescriptor(t, schema.VariantSQL))
	require.NoError(t, err)
	assert.Contains(t, prompt, `User question: "what is <<SCHEMA>>?"`)
}

type fakeGenerator struct {
	body    []byte
	err     error
	prompts []string
	variant schema.Variant
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, variant schema.Variant) ([]byte, error) {
	f.prompts = append(f.prompts, prompt)
	f.variant = variant
	return f.body, f.err
}

func (f *fakeGenerator) Model() string { return "llama3" }

func TestPromptTranslatorTranslate(t *testing.T) {
	gen := &fakeGenerator{body: []byte(`{"response": "{\"aggregate\": [{\"$group\": {\"_id\": \"$status\"}}]}", "done": true}`)}
	translator, err := NewPromptTranslator(mustDescriptor(t, schema.VariantMongo), gen, nil)
	require.NoError(t, err)

	got, err := translator.Translate(context.Background(), Request{Question: "Count orders by status"})

	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.Equal(t, schema.VariantMongo, gen.variant)
	assert.Equal(t, KindAggregate, got.Query.Kind())
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, string(gen.body), got.Raw)
	assert.NoError(t, got.Err())
}

func TestPromptTranslatorPropagatesTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	translator, err := NewPromptTranslator(mustDescriptor(t, schema.VariantSQL), &fakeGenerator{err: boom}, nil)
	require.NoError(t, err)

	_, err = translator.Translate(context.Background(), Request{Question: "Count sales"})

	assert.ErrorIs(t, err, boom)
}

func TestPromptTranslatorSkipsGeneratorForBlankQuestion(t *testing.T) {
	gen := &fakeGenerator{}
	translator, err := NewPromptTranslator(mustDescriptor(t, schema.VariantSQL), gen, nil)
	require.NoError(t, err)

	_, err = translator.Translate(context.Background(), Request{Question: ""})

	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Empty(t, gen.prompts)
}

func TestDisplayAndEncode(t *testing.T) {
	find := FindFilter{
		Filter:     bson.D{{Key: "status", Value: "DELIVERED"}},
		Projection: bson.D{{Key: "_id", Value: int32(0)}},
	}
	assert.JSONEq(t, `{"find": {"status": "DELIVERED"}, "projection": {"_id": 0}}`, Display(find))

	encoded, err := Encode(find)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind": "find", "find": {"status": "DELIVERED"}, "projection": {"_id": 0}}`, string(encoded))

	pipeline := AggregatePipeline{Stages: []bson.D{{{Key: "$match", Value: bson.D{{Key: "status", Value: "PENDING"}}}}}}
	encoded, err = Encode(pipeline)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind": "aggregate", "aggregate": [{"$match": {"status": "PENDING"}}]}`, string(encoded))

	assert.Equal(t, "SELECT 1", Display(SQL{Text: "SELECT 1"}))
	encoded, err = Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind": "none"}`, string(encoded))
}
