package gcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/docs/v1"
)

func textRun(text string, rgb *docs.RgbColor) *docs.ParagraphElement {
	run := &docs.TextRun{Content: text, TextStyle: &docs.TextStyle{}}
	if rgb != nil {
		run.TextStyle.ForegroundColor = &docs.OptionalColor{Color: &docs.Color{RgbColor: rgb}}
	}
	return &docs.ParagraphElement{TextRun: run}
}

func TestStyledDocument_WalksParagraphsAndTables(t *testing.T) {
	red := &docs.RgbColor{Red: 1}
	doc := &docs.Document{
		DocumentId: "doc1",
		Title:      "Oakwood",
		Body: &docs.Body{Content: []*docs.StructuralElement{
			{SectionBreak: &docs.SectionBreak{}},
			{Paragraph: &docs.Paragraph{Elements: []*docs.ParagraphElement{
				textRun("7:05 AM 10 Oak Ln\n", red),
			}}},
			{Table: &docs.Table{TableRows: []*docs.TableRow{{TableCells: []*docs.TableCell{
				{Content: []*docs.StructuralElement{{Paragraph: &docs.Paragraph{Elements: []*docs.ParagraphElement{
					textRun("Turn left ", nil),
					textRun("12 Pine Rd", &docs.RgbColor{Red: 0.8, Green: 0.1}),
				}}}}},
			}}}}},
		}},
	}

	out := styledDocument(doc)
	assert.Equal(t, "doc1", out.ID)
	assert.Equal(t, "Oakwood", out.Title)
	require.Len(t, out.Paragraphs, 2)

	first := out.Paragraphs[0].Runs[0]
	assert.True(t, first.HasColor)
	assert.Equal(t, 1.0, first.Red)

	cell := out.Paragraphs[1].Runs
	require.Len(t, cell, 2)
	assert.False(t, cell[0].HasColor)
	assert.True(t, cell[1].HasColor)
	assert.Equal(t, 0.1, cell[1].Green)
}
