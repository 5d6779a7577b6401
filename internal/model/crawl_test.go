package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLRecord_Visible(t *testing.T) {
	t.Parallel()

	yes, no := true, false
	assert.True(t, URLRecord{}.Visible())
	assert.True(t, URLRecord{Display: &yes}.Visible())
	assert.False(t, URLRecord{Display: &no}.Visible())
}

func TestHostRecord_Visible(t *testing.T) {
	t.Parallel()

	no := false
	assert.True(t, HostRecord{}.Visible())
	assert.False(t, HostRecord{Display: &no}.Visible())
}

func TestURLRecord_UnsetFieldsOmitted(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(URLRecord{URL: "http://a.example.com/x", Host: "example.com"})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.NotContains(t, m, "score")
	assert.NotContains(t, m, "interest")
	assert.NotContains(t, m, "display")
	assert.Equal(t, "example.com", m["host"])
}
