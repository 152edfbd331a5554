package notion

import (
	"strings"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCreateRequest(t *testing.T) {
	page := ReportPage{
		DatabaseID:     "db-123",
		SubjectName:    "Jane Doe",
		Confidence:     0.87,
		Verified:       4,
		Contradicted:   1,
		SalesforceID:   "003xx",
		ReportMarkdown: "# Jane Doe\n\n## Giving\n\n- $50,000 political total",
	}

	req := page.BuildCreateRequest()

	assert.Equal(t, notionapi.DatabaseID("db-123"), req.Parent.DatabaseID)

	title, ok := req.Properties["Name"].(notionapi.TitleProperty)
	require.True(t, ok)
	require.Len(t, title.Title, 1)
	assert.Equal(t, "Jane Doe", title.Title[0].Text.Content)

	conf, ok := req.Properties["Confidence"].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.InDelta(t, 0.87, conf.Number, 1e-9)

	sfID, ok := req.Properties["Salesforce ID"].(notionapi.RichTextProperty)
	require.True(t, ok)
	assert.Equal(t, "003xx", sfID.RichText[0].Text.Content)

	require.Len(t, req.Children, 3)
}

func TestBuildCreateRequestOmitsEmptySalesforceID(t *testing.T) {
	req := ReportPage{DatabaseID: "db", SubjectName: "X"}.BuildCreateRequest()
	_, ok := req.Properties["Salesforce ID"]
	assert.False(t, ok)
}

func TestMarkdownBlocks(t *testing.T) {
	blocks := MarkdownBlocks("# Title\n\n## Section\n\n- first\n- second\n\nplain text")

	require.Len(t, blocks, 5)
	assert.IsType(t, &notionapi.Heading1Block{}, blocks[0])
	assert.IsType(t, &notionapi.Heading2Block{}, blocks[1])
	assert.IsType(t, &notionapi.BulletedListItemBlock{}, blocks[2])
	assert.IsType(t, &notionapi.BulletedListItemBlock{}, blocks[3])

	para, ok := blocks[4].(*notionapi.ParagraphBlock)
	require.True(t, ok)
	assert.Equal(t, "plain text", para.Paragraph.RichText[0].Text.Content)
}

func TestRichTextChunksLongContent(t *testing.T) {
	long := strings.Repeat("a", 4500)
	parts := richText(long)

	require.Len(t, parts, 3)
	assert.Len(t, parts[0].Text.Content, 2000)
	assert.Len(t, parts[2].Text.Content, 500)
}
