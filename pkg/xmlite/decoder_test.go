package xmlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_LeafString(t *testing.T) {
	d := NewDecoder()

	got := d.Decode("<Key>reports/q1.csv</Key>")
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "reports/q1.csv", m["Key"])
}

func TestDecode_RepeatedSiblingsAccumulate(t *testing.T) {
	d := NewDecoder()

	got := d.Decode("<Key>a.txt</Key><Key>b.txt</Key><Key>c.txt</Key>")
	m := got.(map[string]any)
	assert.Equal(t, []any{"a.txt", "b.txt", "c.txt"}, m["Key"])
}

func TestDecode_ForcedSequenceSingleOccurrence(t *testing.T) {
	d := NewDecoder("Contents")

	got := d.Decode("<Contents><Key>only.txt</Key></Contents>")
	m := got.(map[string]any)

	seq, ok := m["Contents"].([]any)
	require.True(t, ok, "a forced key decodes to a sequence even when it occurs once")
	require.Len(t, seq, 1)
	entry := seq[0].(map[string]any)
	assert.Equal(t, "only.txt", entry["Key"])
}

func TestDecode_ForcedSequenceAppliesAtEveryDepth(t *testing.T) {
	d := NewDecoder("Part")

	got := d.Decode("<Result><Part><PartNumber>1</PartNumber></Part></Result>")
	m := got.(map[string]any)
	inner := m["Result"].(map[string]any)
	seq := inner["Part"].([]any)
	require.Len(t, seq, 1)
}

func TestDecode_NestedStructure(t *testing.T) {
	d := NewDecoder("Contents")

	doc := `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <Name>my-bucket</Name>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>a.txt</Key>
    <Size>12</Size>
    <ETag>&quot;abc123&quot;</ETag>
  </Contents>
  <Contents>
    <Key>b.txt</Key>
    <Size>34</Size>
    <ETag>"def456"</ETag>
  </Contents>
</ListBucketResult>`

	m := d.Decode(doc).(map[string]any)
	result := m["ListBucketResult"].(map[string]any)
	assert.Equal(t, "my-bucket", result["Name"])
	assert.Equal(t, "false", result["IsTruncated"])

	contents := result["Contents"].([]any)
	require.Len(t, contents, 2)

	first := contents[0].(map[string]any)
	assert.Equal(t, "a.txt", first["Key"])
	assert.Equal(t, "abc123", first["ETag"], "entity-escaped quotes strip like literal quotes")

	second := contents[1].(map[string]any)
	assert.Equal(t, "def456", second["ETag"], "one quote layer strips from leaf values")
}

func TestDecode_RootAttributesDiscarded(t *testing.T) {
	d := NewDecoder("Contents")

	doc := `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <IsTruncated>true</IsTruncated>
  <Contents>
    <Key>a.txt</Key>
  </Contents>
</ListBucketResult>`

	m, ok := d.Decode(doc).(map[string]any)
	require.True(t, ok, "an attributed root must still decode structurally")
	result := m["ListBucketResult"].(map[string]any)
	assert.Equal(t, "true", result["IsTruncated"])

	contents := result["Contents"].([]any)
	require.Len(t, contents, 1)
	assert.Equal(t, "a.txt", contents[0].(map[string]any)["Key"])
}

func TestDecode_AttributedInnerAndSelfClosingElements(t *testing.T) {
	d := NewDecoder()

	m := d.Decode(`<Result><Owner DisplayName="x"><ID>abc</ID></Owner><Prefix test="y"/></Result>`).(map[string]any)
	inner := m["Result"].(map[string]any)
	owner := inner["Owner"].(map[string]any)
	assert.Equal(t, "abc", owner["ID"])
	assert.Equal(t, "", inner["Prefix"])
}

func TestDecode_SameNameNestingWithRootAttribute(t *testing.T) {
	d := NewDecoder()

	m := d.Decode(`<Node xmlns="ns"><Node><Key>deep</Key></Node></Node>`).(map[string]any)
	outer := m["Node"].(map[string]any)
	nested := outer["Node"].(map[string]any)
	assert.Equal(t, "deep", nested["Key"])
}

func TestDecode_EntityUnescaping(t *testing.T) {
	d := NewDecoder()

	m := d.Decode("<Message>a &lt; b &amp;&amp; c &gt; d &apos;e&apos;</Message>").(map[string]any)
	assert.Equal(t, "a < b && c > d 'e'", m["Message"])
}

func TestDecode_SelfClosingElement(t *testing.T) {
	d := NewDecoder()

	m := d.Decode("<Result><Prefix/><Delimiter>/</Delimiter></Result>").(map[string]any)
	inner := m["Result"].(map[string]any)
	assert.Equal(t, "", inner["Prefix"])
	assert.Equal(t, "/", inner["Delimiter"])
}

func TestDecode_EmptyElementIsEmptyLeaf(t *testing.T) {
	d := NewDecoder()

	m := d.Decode("<Prefix></Prefix>").(map[string]any)
	assert.Equal(t, "", m["Prefix"])
}

func TestDecode_NamespacePrefixFolding(t *testing.T) {
	d := NewDecoder()

	m := d.Decode("<W:Key>x</W:Key>").(map[string]any)
	assert.Equal(t, "x", m["wKey"], "one-letter prefix folds lower-cased onto the name")
}

func TestDecode_PlainTextIsLeaf(t *testing.T) {
	d := NewDecoder()
	assert.Equal(t, "just text", d.Decode("just text"))
}

func TestDecode_QuoteStrippingSingleLayerOnly(t *testing.T) {
	d := NewDecoder()

	m := d.Decode(`<ETag>""double""</ETag>`).(map[string]any)
	assert.Equal(t, `"double"`, m["ETag"])
}
