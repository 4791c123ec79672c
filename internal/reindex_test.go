package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeItemPointer(t *testing.T) {
	assert.Equal(t, uint64(1), EncodeItemPointer(0, 1))
	assert.Equal(t, uint64(1)<<16|3, EncodeItemPointer(1, 3))
	assert.Equal(t, uint64(0xFFFFFFFF)<<16|0xFFFF, EncodeItemPointer(0xFFFFFFFF, 0xFFFF))
}

func TestTableIdentifier(t *testing.T) {
	assert.Equal(t, `"products"`, tableIdentifier("products"))
	assert.Equal(t, `"public"."products"`, tableIdentifier("public.products"))
	assert.Equal(t, `"weird ""table"""`, tableIdentifier(`weird "table"`))
}

func TestIndexNameForTable(t *testing.T) {
	assert.Equal(t, "zdb_products", IndexNameForTable("products"))
	assert.Equal(t, "zdb_products", IndexNameForTable("public.products"))
}
