package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/degreeplan/pkg/document"
)

func section(blocks ...document.Block) *document.Document {
	all := []document.Block{document.Heading("program-requirements", "Program Requirements")}
	all = append(all, blocks...)
	all = append(all, document.Heading("learning-outcomes", "Learning Outcomes"))
	all = append(all, document.Paragraph("", "never read"))
	return &document.Document{Ref: document.Ref{Kind: document.KindProgram, Code: "MCOMP"}, Blocks: all}
}

func build(t *testing.T, doc *document.Document) Dump {
	t.Helper()
	tree, err := NewBuilder().Build(doc, "program-requirements")
	require.NoError(t, err)
	return tree.Dump(tree.Root())
}

func TestBuildMissingSection(t *testing.T) {
	doc := &document.Document{Blocks: []document.Block{document.Paragraph("", "text")}}
	_, err := NewBuilder().Build(doc, "program-requirements")
	require.ErrorIs(t, err, ErrSectionNotFound)
}

func TestBuildPrincipalCollectsDeeperBlocks(t *testing.T) {
	root := build(t, section(
		document.Paragraph("", "This program requires completion of 96 units, of which:"),
		document.Paragraph("", "48 units from completion of the following compulsory courses:"),
		document.Paragraph("margin-left: 30px;", "COMP6250", "Professional Practice 1"),
		document.Paragraph("margin-left: 40px;", "COMP6442", "Software Construction"),
		document.Paragraph("", "24 units from completion of elective courses offered by ANU"),
	))

	require.Len(t, root.Children, 3)
	assert.Equal(t, "This program requires completion of 96 units, of which:", root.Children[0].Text)
	set := root.Children[1]
	require.Len(t, set.Children, 2)
	assert.Equal(t, 40, set.Children[0].Indent, "30px rounds up to one step")
	assert.Equal(t, "COMP6442 Software Construction", set.Children[1].Text)
	assert.Empty(t, root.Children[2].Children)
}

func TestBuildEitherOr(t *testing.T) {
	root := build(t, section(
		document.Paragraph("", "Either:"),
		document.Paragraph("margin-left: 40px;", "12 units from completion of the following courses:"),
		document.Paragraph("margin-left: 80px;", "COMP8715"),
		document.Paragraph("", "Or:"),
		document.Paragraph("margin-left: 40px;", "12 units from completion of the following courses:"),
		document.Paragraph("margin-left: 80px;", "COMP8755"),
		document.Paragraph(""),
		document.Paragraph("", "6 units from completion of COMP8830"),
	))

	require.Len(t, root.Children, 3)
	either, or := root.Children[0], root.Children[1]
	assert.Equal(t, "Either:", either.Text)
	require.Len(t, either.Children, 1)
	assert.Equal(t, "COMP8715", either.Children[0].Children[0].Text)
	assert.Equal(t, "Or:", or.Text)
	require.Len(t, or.Children, 1)
	assert.Equal(t, "COMP8755", or.Children[0].Children[0].Text)
	assert.Equal(t, "6 units from completion of COMP8830", root.Children[2].Text)
}

func TestBuildSplitsHardBreaksIntoCourseList(t *testing.T) {
	blk := document.Block{Tag: "p", Lines: [][]string{
		{"12 units from completion of the following courses:"},
		{"COMP6710"},
		{"COMP6730"},
	}}
	root := build(t, section(blk))

	require.Len(t, root.Children, 1)
	head := root.Children[0]
	require.Len(t, head.Children, 2)
	assert.Equal(t, 40, head.Children[0].Indent)
	assert.Equal(t, "COMP6730", head.Children[1].Text)
}

func TestBuildSplitsHardBreaksIntoSiblings(t *testing.T) {
	blk := document.Block{Tag: "p", Lines: [][]string{
		{"6 units from completion of COMP6710"},
		{"6 units from completion of COMP6730"},
	}}
	root := build(t, section(blk))

	require.Len(t, root.Children, 2)
	assert.Equal(t, "6 units from completion of COMP6730", root.Children[1].Text)
}

func TestBuildSkipsPassThroughAndBackToTop(t *testing.T) {
	root := build(t, section(
		document.Paragraph("", "The 48 units must consist of:"),
		document.Block{Tag: "div", Class: []string{"back-to-top"}, Lines: [][]string{{"Back to top"}}},
		document.Paragraph("", "6 units from completion of COMP8830"),
	))

	require.Len(t, root.Children, 1)
	assert.Equal(t, "6 units from completion of COMP8830", root.Children[0].Text)
}

func TestIndent(t *testing.T) {
	b := NewBuilder()
	assert.Equal(t, 25, b.indent(document.Block{Tag: "p", Style: "padding-left: 25px"}, 0))
	assert.Equal(t, -5, b.indent(document.Block{Tag: "p", Style: "margin-left:-5px"}, 0))
	assert.Equal(t, 80, b.indent(document.Block{Tag: "p", Style: "color: red"}, 80))
	assert.Equal(t, 80, b.indent(document.Block{Tag: "table"}, 80))
	assert.Equal(t, 0, b.indent(document.Block{Tag: "p"}, 80))

	assert.Equal(t, 0, b.normalize(0))
	assert.Equal(t, 40, b.normalize(1))
	assert.Equal(t, 80, b.normalize(41))
	assert.Equal(t, 30, NewBuilder(WithStep(30)).normalize(30))
}
