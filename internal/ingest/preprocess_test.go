// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/lit-pipeline/pkg/types"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "a  b\t\nc", "a b c"},
		{"trims", "  hello  ", "hello"},
		{"nfkc compatibility forms", "ﬁrst", "first"},
		{"fullwidth digits", "２０２１", "2021"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestHasManufacturingContext(t *testing.T) {
	assert.True(t, HasManufacturingContext("Predictive Maintenance in Plants", ""))
	assert.True(t, HasManufacturingContext("", "applied on the shop floor daily"))
	assert.False(t, HasManufacturingContext("Deep Learning", "a survey of methods"))
}

func TestPreprocess_DropsRowsWithoutAbstract(t *testing.T) {
	out := Preprocess([]types.Record{
		{SourceID: "W1", Abstract: "text"},
		{SourceID: "W2", Abstract: "   "},
		{SourceID: "W3"},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "W1", out[0].SourceID)
	assert.True(t, out[0].HasAbstract)
}

func TestPreprocess_SortsDeterministically(t *testing.T) {
	input := []types.Record{
		{SourceID: "W2", Abstract: "b"},
		{SourceID: "W1", Abstract: "a", PublicationYear: 2022},
		{SourceID: "W1", Abstract: "a", PublicationYear: 2020},
	}
	out := Preprocess(input)
	require.Len(t, out, 3)
	assert.Equal(t, "W1", out[0].SourceID)
	assert.Equal(t, 2020, out[0].PublicationYear)
	assert.Equal(t, 2022, out[1].PublicationYear)
	assert.Equal(t, "W2", out[2].SourceID)

	again := Preprocess(input)
	assert.Equal(t, out, again)
}

func TestPreprocess_SetsManufacturingContext(t *testing.T) {
	out := Preprocess([]types.Record{
		{SourceID: "W1", Title: "Factory automation", Abstract: "text"},
		{SourceID: "W2", Title: "Poetry", Abstract: "verses"},
	})
	require.Len(t, out, 2)
	assert.True(t, out[0].ManufacturingContext)
	assert.False(t, out[1].ManufacturingContext)
}
