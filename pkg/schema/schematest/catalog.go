// Package schematest provides a small catalog schema used across package tests.
package schematest

import (
	"testing"

	"github.com/conduit-lang/pim/pkg/schema"
	"github.com/stretchr/testify/require"
)

// Resource ids of the catalog fixture
const (
	Product  schema.ResourceID = 1
	Category schema.ResourceID = 2
	Variant  schema.ResourceID = 3
)

// Field ids of the catalog fixture
const (
	ProductSKU      schema.FieldID = 11
	ProductTitle    schema.FieldID = 12
	ProductPrice    schema.FieldID = 13
	ProductTags     schema.FieldID = 14
	ProductCategory schema.FieldID = 15
	ProductImage    schema.FieldID = 16
	ProductVariants schema.FieldID = 17

	CategoryName     schema.FieldID = 20
	CategoryProducts schema.FieldID = 21
	CategoryParent   schema.FieldID = 22
	CategoryChildren schema.FieldID = 23

	VariantCode    schema.FieldID = 30
	VariantProduct schema.FieldID = 31
	VariantColor   schema.FieldID = 32
)

// Catalog returns a fresh snapshot with products, categories and variants
func Catalog() schema.Snapshot {
	return schema.Snapshot{
		ID:          1,
		Name:        "catalog",
		DefaultLang: "en",
		Languages:   []string{"en", "it"},
		Resources: []schema.ResourceDef{
			{
				ID: Product, Name: "product", Type: "thing", IsMultiple: true,
				Label: schema.Translations{"en": "Product", "it": "Prodotto"},
				Fields: []schema.FieldDef{
					{ID: ProductSKU, Name: "sku", Type: schema.TypeText, IsUnique: true, Order: 1,
						Label: schema.Translations{"en": "SKU"}},
					{ID: ProductTitle, Name: "title", Type: schema.TypeText, IsTranslatable: true, Order: 2,
						Label:       schema.Translations{"en": "Title", "it": "Titolo"},
						Description: schema.Translations{"en": "Display title"}},
					{ID: ProductPrice, Name: "price", Type: schema.TypeNumber, Unit: "EUR", Order: 3},
					{ID: ProductTags, Name: "tags", Type: schema.TypeText, IsMultiple: true, Order: 4},
					relation(ProductCategory, "category", Category, CategoryProducts, schema.RelSource, 5),
					{ID: ProductImage, Name: "image", Type: schema.TypeFile, Order: 6},
					relation(ProductVariants, "variants", Variant, VariantProduct, schema.RelSource, 7),
				},
			},
			{
				ID: Category, Name: "category", Type: "thing", IsMultiple: true,
				Label: schema.Translations{"en": "Category"},
				Fields: []schema.FieldDef{
					{ID: CategoryName, Name: "name", Type: schema.TypeText, IsTranslatable: true, Order: 1},
					relation(CategoryProducts, "products", Product, ProductCategory, schema.RelDestination, 2),
					relation(CategoryParent, "parent", Category, CategoryChildren, schema.RelSource, 3),
					relation(CategoryChildren, "children", Category, CategoryParent, schema.RelDestination, 4),
				},
			},
			{
				ID: Variant, Name: "variant", Type: "thing", IsMultiple: true,
				Fields: []schema.FieldDef{
					{ID: VariantCode, Name: "code", Type: schema.TypeText, Order: 1},
					relation(VariantProduct, "product", Product, ProductVariants, schema.RelDestination, 2),
					{ID: VariantColor, Name: "color", Type: schema.TypeText, Order: 3},
				},
			},
		},
	}
}

// Graph builds the catalog graph or fails the test
func Graph(t testing.TB) *schema.Graph {
	t.Helper()
	g, err := schema.NewGraph(Catalog())
	require.NoError(t, err)
	return g
}

func relation(id schema.FieldID, name string, target schema.ResourceID, reciprocal schema.FieldID, rt schema.RelationType, order int) schema.FieldDef {
	return schema.FieldDef{
		ID:         id,
		Name:       name,
		Type:       schema.TypeRelation,
		IsMultiple: true,
		Order:      order,
		RelResID:   &target,
		RelFieldID: &reciprocal,
		RelType:    &rt,
	}
}
