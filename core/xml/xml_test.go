package xml

import (
	"errors"
	"io"
	"strings"
	"testing"
)

const sample = `<?xml version="1.0" encoding="utf-8"?>
<IslamAwakenedQuranDatabase>
  <Suwar>
    <Surah SurahNumber="1" SurahTransliteratedName="Al-Fatihah">
      <Ayah AyahNumber="1">
        <Rendition Source="Arabic">بِسْمِ</Rendition>
        <Rendition Source="Muhammad Asad">In the name of God</Rendition>
      </Ayah>
    </Surah>
    <Surah SurahNumber="2">
      <Ayah AyahNumber="1"><Rendition Source="Arabic">الم</Rendition></Ayah>
      <Ayah AyahNumber="x"><Rendition Source="Arabic">?</Rendition></Ayah>
    </Surah>
  </Suwar>
</IslamAwakenedQuranDatabase>`

func TestParseAndSelect(t *testing.T) {
	doc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := doc.Root().Name(); got != "IslamAwakenedQuranDatabase" {
		t.Errorf("Root().Name() = %q", got)
	}

	surahs, err := doc.XPath("//Surah")
	if err != nil {
		t.Fatalf("XPath() error = %v", err)
	}
	if len(surahs) != 2 {
		t.Fatalf("len(surahs) = %d, want 2", len(surahs))
	}
	if got := surahs[0].Attr("SurahTransliteratedName"); got != "Al-Fatihah" {
		t.Errorf("Attr() = %q", got)
	}

	asad := MustCompile("./Ayah/Rendition[@Source='Muhammad Asad']")
	r := surahs[0].SelectFirst(asad)
	if r == nil || r.Text() != "In the name of God" {
		t.Errorf("SelectFirst() = %v", r)
	}
	if surahs[1].SelectFirst(asad) != nil {
		t.Error("second surah has no Asad rendition")
	}
	if got := len(surahs[1].Select(MustCompile("./Ayah"))); got != 2 {
		t.Errorf("len(Select(./Ayah)) = %d, want 2", got)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("<a><b></a>")); err == nil {
		t.Error("Parse() of malformed XML should fail")
	}
}

func TestCompileInvalid(t *testing.T) {
	if _, err := Compile("//Surah[@"); err == nil {
		t.Error("Compile() of invalid XPath should fail")
	}
	doc, _ := Parse([]byte("<a/>"))
	if _, err := doc.XPath("]["); err == nil {
		t.Error("XPath() of invalid expression should fail")
	}
}

func TestAttrInt(t *testing.T) {
	doc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	ayahs, _ := doc.XPath("//Surah[@SurahNumber='2']/Ayah")
	if v, err := ayahs[0].AttrInt("AyahNumber"); err != nil || v != 1 {
		t.Errorf("AttrInt() = %d, %v; want 1", v, err)
	}
	if _, err := ayahs[1].AttrInt("AyahNumber"); err == nil {
		t.Error("AttrInt() of non-integer should fail")
	}
	if _, err := ayahs[1].AttrInt("Missing"); err == nil {
		t.Error("AttrInt() of missing attribute should fail")
	}
}

func TestValidate(t *testing.T) {
	if r := Validate([]byte(sample)); !r.Valid {
		t.Errorf("Validate(sample) = %+v", r)
	}
	r := Validate([]byte("<a>\n<b>\n</a>"))
	if r.Valid || len(r.Errors) != 1 {
		t.Fatalf("Validate(malformed) = %+v", r)
	}
	if r.Errors[0].Line == 0 {
		t.Error("syntax error should carry a line number")
	}
	if r := Validate([]byte(`<!DOCTYPE a [<!ENTITY x "boom">]><a>&x;</a>`)); r.Valid {
		t.Error("entity expansion must be refused")
	}
}

func TestStreamReader(t *testing.T) {
	sr, err := NewStreamReader(strings.NewReader(sample), "//Surah")
	if err != nil {
		t.Fatalf("NewStreamReader() error = %v", err)
	}
	var numbers []string
	for {
		n, err := sr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		numbers = append(numbers, n.Attr("SurahNumber"))
	}
	if strings.Join(numbers, ",") != "1,2" {
		t.Errorf("streamed surahs = %v", numbers)
	}

	if _, err := NewStreamReader(strings.NewReader(sample), "//["); err == nil {
		t.Error("NewStreamReader() with invalid xpath should fail")
	}
}

func TestRender(t *testing.T) {
	root := NewElement("Root").SetAttr("Date", "2024-01-02")
	list := root.Add("List")
	list.Add("Item").SetAttr("N", "1").SetText("a & b")
	list.Add("Item").SetAttr("N", `2"`).SetText("line1\nline2")
	root.Add("Empty")

	got := string(Render(root, FormatOptions{Indent: "    ", Declaration: true}))
	want := `<?xml version="1.0" encoding="utf-8"?>
<Root Date="2024-01-02">
    <List>
        <Item N="1">a &amp; b</Item>
        <Item N="2&quot;">line1
line2</Item>
    </List>
    <Empty/>
</Root>
`
	if got != want {
		t.Errorf("Render() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	root := NewElement("Notes")
	root.Add("Note").SetAttr("Key", "2.255").SetText(`<throne> & "footstool"`)
	data := Render(root, FormatOptions{})

	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Render()) error = %v", err)
	}
	notes, _ := doc.XPath("//Note")
	if len(notes) != 1 || notes[0].Text() != `<throne> & "footstool"` || notes[0].Attr("Key") != "2.255" {
		t.Errorf("round trip lost data: %s", data)
	}
}
