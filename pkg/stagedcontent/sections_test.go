package stagedcontent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
)

func TestSectionsLoad(t *testing.T) {
	ctx := context.Background()
	gateway := newServedGateway(t)
	uploadHTML(t, gateway, "news/1/sections/abc.html", "<p>stored body</p>")

	sections := stagedcontent.NewSections(stagedcontent.NewResolver(gateway))
	sections.Load(ctx, []stagedcontent.SectionInput{
		{Title: "Stored", Description: "news/1/sections/abc.html"},
		{Title: "Inline", Description: "<p>already markup</p>"},
		{Title: "Empty", Description: ""},
	})

	list := sections.List()
	require.Len(t, list, 3)

	assert.Equal(t, "<p>stored body</p>", list[0].Body)
	assert.Equal(t, "news/1/sections/abc.html", list[0].OriginalKey())

	assert.Equal(t, "<p>already markup</p>", list[1].Body)
	assert.Empty(t, list[1].OriginalKey())

	assert.Empty(t, list[2].Body)
	assert.Empty(t, list[2].OriginalKey())
}

func TestSectionsEdit(t *testing.T) {
	ctx := context.Background()
	sections := stagedcontent.NewSections(stagedcontent.NewResolver(newServedGateway(t)))
	sections.Load(ctx, []stagedcontent.SectionInput{
		{Title: "First", Description: "news/1/sections/a.html"},
	})

	t.Run("set preserves the overwrite target", func(t *testing.T) {
		require.NoError(t, sections.Set(0, "First edited", "<p>new body</p>"))

		list := sections.List()
		assert.Equal(t, "First edited", list[0].Title)
		assert.Equal(t, "<p>new body</p>", list[0].Body)
		assert.Equal(t, "news/1/sections/a.html", list[0].OriginalKey())
	})

	t.Run("append adds an empty section", func(t *testing.T) {
		sections.Append()
		assert.Equal(t, 2, sections.Len())
		assert.Empty(t, sections.List()[1].Title)
	})

	t.Run("remove drops the slot without any ledger", func(t *testing.T) {
		require.NoError(t, sections.Remove(1))
		assert.Equal(t, 1, sections.Len())
	})

	t.Run("out of range indexes are rejected", func(t *testing.T) {
		assert.ErrorIs(t, sections.Set(5, "x", "y"), stagedcontent.ErrIndexOutOfRange)
		assert.ErrorIs(t, sections.Remove(-1), stagedcontent.ErrIndexOutOfRange)
	})
}
