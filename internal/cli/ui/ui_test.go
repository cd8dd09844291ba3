package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "ID", "Name", "Type")
	table.AddRow("11", "sku", "text")
	table.AddRow("12", "title", "text", "ignored")
	table.AddRow("13")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"ID  Name   Type",
		"──  ─────  ────",
		"11  sku    text",
		"12  title  text",
		"13         ",
	}, lines)
	assert.Equal(t, 3, table.Len())
}

func TestTable_RenderWithoutHeaders(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()
	assert.Empty(t, buf.String())
}

func TestTable_UnicodeWidth(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "Label", "X")
	table.AddRow("Città", "1")
	table.Render()
	assert.Contains(t, buf.String(), "Città  1")
}

func TestKeyValueTable_Render(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("id", "1")
	kv.AddRow("resource", "product")
	kv.Render()

	assert.Equal(t, "id:       1\nresource: product\n", buf.String())
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "product", true)
	assert.Equal(t, "product\n───────\n", buf.String())
}

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"città", "citta", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Distance(tt.a, tt.b), "%s/%s", tt.a, tt.b)
		assert.Equal(t, tt.want, Distance(tt.b, tt.a), "%s/%s", tt.b, tt.a)
	}
}

func TestSuggest(t *testing.T) {
	candidates := []string{"product", "category", "variant", "produce"}

	assert.Equal(t, []string{"product", "produce"}, Suggest("Prodcut", candidates, 3))
	assert.Equal(t, []string{"product"}, Suggest("prodcut", candidates, 1))
	assert.Empty(t, Suggest("zzzzzzzz", candidates, 3))
}

func TestNotFound(t *testing.T) {
	out := NotFound("resource", "prodcut", []string{"product"}, "See all resources: pim schema", true)
	assert.Equal(t, "✗ RESOURCE NOT FOUND: prodcut\n   Did you mean: product?\n   → See all resources: pim schema\n", out)

	out = NotFound("field", "x", nil, "", true)
	assert.Equal(t, "✗ FIELD NOT FOUND: x\n", out)
}

func TestWriteErrorAndSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, errors.New("boom"), true)
	assert.Equal(t, "Error: boom\n", buf.String())
	assert.Equal(t, "✓ done", Success("done", true))
}
