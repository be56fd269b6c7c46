package frontmatter

import "testing"

func TestSplit_BlockAndBody(t *testing.T) {
	doc := Split("---\ntags: [daily]\n---\n# Today\n{{journal_link}}\n")
	if doc.Block != "---\ntags: [daily]\n---\n" {
		t.Errorf("block = %q", doc.Block)
	}
	if doc.Body != "# Today\n{{journal_link}}\n" {
		t.Errorf("body = %q", doc.Body)
	}
	tags, ok := doc.Fields["tags"].([]any)
	if !ok || len(tags) != 1 || tags[0] != "daily" {
		t.Errorf("fields = %v", doc.Fields)
	}
}

func TestSplit_NoFrontmatter(t *testing.T) {
	in := "# Just a heading\n---\nnot metadata\n"
	doc := Split(in)
	if doc.Block != "" {
		t.Errorf("block = %q, want empty", doc.Block)
	}
	if doc.Body != in {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestSplit_Unterminated(t *testing.T) {
	in := "---\ntitle: x\nno closing\n"
	doc := Split(in)
	if doc.Block != "" || doc.Body != in {
		t.Errorf("unterminated block should be body, got %+v", doc)
	}
}

func TestSplit_InvalidYAMLFallback(t *testing.T) {
	in := "---\n: invalid: yaml: {{{\n---\nBody\n"
	doc := Split(in)
	if doc.Block != "" || doc.Body != in {
		t.Errorf("invalid yaml should be body, got %+v", doc)
	}
}

func TestSplit_ClosingAtEOF(t *testing.T) {
	doc := Split("---\na: 1\n---")
	if doc.Block != "---\na: 1\n---\n" {
		t.Errorf("block = %q", doc.Block)
	}
	if doc.Body != "" {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestWrap_NeverDoubleWraps(t *testing.T) {
	template := "---\ncssclass: daily\n---\nbody\n"
	first := Wrap(template, "links\nbody\nlinks\n")
	second := Wrap(first, Split(first).Body)
	if first != second {
		t.Errorf("re-wrapping changed content:\n%q\n%q", first, second)
	}
	if got := Split(second); got.Block != "---\ncssclass: daily\n---\n" {
		t.Errorf("block after re-wrap = %q", got.Block)
	}
}

func TestJoin_EmptyBlock(t *testing.T) {
	if got := Join("", "body"); got != "body" {
		t.Errorf("Join = %q", got)
	}
	if got := Join("---\na: 1\n---", "body"); got != "---\na: 1\n---\nbody" {
		t.Errorf("Join = %q", got)
	}
}
