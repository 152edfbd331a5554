package notion

import (
	"strings"

	"github.com/jomei/notionapi"
)

// Notion caps a single rich text element at 2000 characters.
const maxRichTextLen = 2000

// ReportPage describes a research report page to create in a Notion database.
type ReportPage struct {
	DatabaseID     string
	SubjectName    string
	Confidence     float64
	Verified       int
	Contradicted   int
	Unverifiable   int
	SalesforceID   string
	ReportMarkdown string
}

// BuildCreateRequest converts a ReportPage into a Notion page create request.
// The report body is converted line by line: markdown headings become Notion
// headings, dashes become bullets, everything else becomes paragraphs.
func (p ReportPage) BuildCreateRequest() *notionapi.PageCreateRequest {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: richText(p.SubjectName),
		},
		"Confidence": notionapi.NumberProperty{
			Number: p.Confidence,
		},
		"Verified": notionapi.NumberProperty{
			Number: float64(p.Verified),
		},
		"Contradicted": notionapi.NumberProperty{
			Number: float64(p.Contradicted),
		},
		"Unverifiable": notionapi.NumberProperty{
			Number: float64(p.Unverifiable),
		},
	}
	if p.SalesforceID != "" {
		props["Salesforce ID"] = notionapi.RichTextProperty{
			RichText: richText(p.SalesforceID),
		}
	}

	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(p.DatabaseID),
		},
		Properties: props,
		Children:   MarkdownBlocks(p.ReportMarkdown),
	}
}

// MarkdownBlocks converts a markdown report into Notion blocks. Only the
// subset the report renderer emits is handled; unknown markdown falls
// through as plain paragraphs.
func MarkdownBlocks(md string) []notionapi.Block {
	var blocks []notionapi.Block
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimRight(line, " \t")
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "## "):
			blocks = append(blocks, &notionapi.Heading2Block{
				BasicBlock: basicBlock(notionapi.BlockTypeHeading2),
				Heading2:   notionapi.Heading{RichText: richText(strings.TrimPrefix(line, "## "))},
			})
		case strings.HasPrefix(line, "# "):
			blocks = append(blocks, &notionapi.Heading1Block{
				BasicBlock: basicBlock(notionapi.BlockTypeHeading1),
				Heading1:   notionapi.Heading{RichText: richText(strings.TrimPrefix(line, "# "))},
			})
		case strings.HasPrefix(line, "- "):
			blocks = append(blocks, &notionapi.BulletedListItemBlock{
				BasicBlock: basicBlock(notionapi.BlockTypeBulletedListItem),
				BulletedListItem: notionapi.ListItem{
					RichText: richText(strings.TrimPrefix(line, "- ")),
				},
			})
		default:
			blocks = append(blocks, &notionapi.ParagraphBlock{
				BasicBlock: basicBlock(notionapi.BlockTypeParagraph),
				Paragraph:  notionapi.Paragraph{RichText: richText(line)},
			})
		}
	}
	return blocks
}

func basicBlock(t notionapi.BlockType) notionapi.BasicBlock {
	return notionapi.BasicBlock{
		Object: notionapi.ObjectTypeBlock,
		Type:   t,
	}
}

// richText splits text into 2000-char chunks to stay under the API limit.
func richText(text string) []notionapi.RichText {
	var out []notionapi.RichText
	for len(text) > maxRichTextLen {
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: text[:maxRichTextLen]},
		})
		text = text[maxRichTextLen:]
	}
	out = append(out, notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: text},
	})
	return out
}
