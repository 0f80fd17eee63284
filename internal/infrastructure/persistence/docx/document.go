// Package docx 提供章节 .docx 文档的读写
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const nsWordML = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// HeadingStyle 章节标题使用的段落样式
const HeadingStyle = "Heading1"

// Paragraph 文档段落
type Paragraph struct {
	Style string
	Text  string
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="` + nsWordML + `">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/>` +
	`<w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr>` +
	`<w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/>` +
	`<w:pPr><w:keepNext/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="28"/></w:rPr></w:style>` +
	`</w:styles>`

// Encode 将段落写成最小可用的 .docx 包
func Encode(w io.Writer, paragraphs []Paragraph) error {
	zw := zip.NewWriter(w)

	parts := []struct {
		name string
		body []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{"word/_rels/document.xml.rels", []byte(documentRelsXML)},
		{"word/styles.xml", []byte(stylesXML)},
		{"word/document.xml", renderDocument(paragraphs)},
	}
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := f.Write(p.body); err != nil {
			return fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	return zw.Close()
}

func renderDocument(paragraphs []Paragraph) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<w:document xmlns:w="` + nsWordML + `"><w:body>`)
	for _, p := range paragraphs {
		b.WriteString("<w:p>")
		if p.Style != "" {
			b.WriteString(`<w:pPr><w:pStyle w:val="`)
			_ = xml.EscapeText(&b, []byte(p.Style))
			b.WriteString(`"/></w:pPr>`)
		}
		if p.Text != "" {
			b.WriteString(`<w:r><w:t xml:space="preserve">`)
			_ = xml.EscapeText(&b, []byte(p.Text))
			b.WriteString(`</w:t></w:r>`)
		}
		b.WriteString("</w:p>")
	}
	b.WriteString(`<w:sectPr/></w:body></w:document>`)
	return b.Bytes()
}

// Decode 从 .docx 字节中解析段落
func Decode(raw []byte) ([]Paragraph, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open docx zip: %w", err)
	}

	var xmlData []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, openErr := f.Open()
		if openErr != nil {
			return nil, fmt.Errorf("open document.xml: %w", openErr)
		}
		xmlData, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		break
	}
	if len(xmlData) == 0 {
		return nil, fmt.Errorf("word/document.xml not found")
	}

	return decodeDocument(xmlData)
}

func decodeDocument(xmlData []byte) ([]Paragraph, error) {
	decoder := xml.NewDecoder(bytes.NewReader(xmlData))

	var (
		out     []Paragraph
		cur     Paragraph
		text    strings.Builder
		depth   int // 段落嵌套深度，文本框等内嵌段落并入外层
		inText  bool
		inProps bool
	)
	for {
		tok, tokenErr := decoder.Token()
		if tokenErr == io.EOF {
			break
		}
		if tokenErr != nil {
			return nil, fmt.Errorf("decode document.xml: %w", tokenErr)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !isWordML(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "p":
				depth++
				if depth == 1 {
					cur = Paragraph{}
					text.Reset()
				}
			case "pPr":
				inProps = true
			case "pStyle":
				if inProps && depth == 1 {
					for _, a := range t.Attr {
						if a.Name.Local == "val" {
							cur.Style = a.Value
						}
					}
				}
			case "t":
				inText = true
			case "tab":
				if depth > 0 && !inProps {
					text.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 && !inProps {
					text.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if !isWordML(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "p":
				if depth == 1 {
					cur.Text = text.String()
					out = append(out, cur)
				}
				if depth > 0 {
					depth--
				}
			case "pPr":
				inProps = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && depth > 0 {
				text.Write(t)
			}
		}
	}
	return out, nil
}

func isWordML(name xml.Name) bool {
	return name.Space == nsWordML || name.Space == "" || name.Space == "w"
}

// IsHeading 是否为标题段落
func (p Paragraph) IsHeading() bool {
	return strings.HasPrefix(p.Style, "Heading") || p.Style == "Title"
}
