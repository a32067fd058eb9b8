package summary

import (
	"regexp"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

const (
	docFont     = "Microsoft YaHei"
	docFontSize = 12
)

var (
	mdHeading  = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	mdBold     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdBullet   = regexp.MustCompile(`^[\-\*]\s+(.+)$`)
	mdEmphasis = strings.NewReplacer("**", "", "__", "", "`", "")
)

func writeDocx(path, title string, lines []string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return err
	}
	addRun(doc.AddParagraph(""), title, true, 18)

	for _, line := range strings.Split(strings.Join(lines, "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "" || trimmed == "---":
			continue
		case mdHeading.MatchString(trimmed):
			m := mdHeading.FindStringSubmatch(trimmed)
			addRun(doc.AddParagraph(""), m[2], true, headingSize(len(m[1])))
		case mdBullet.MatchString(trimmed):
			m := mdBullet.FindStringSubmatch(trimmed)
			addRich(doc.AddParagraph(""), "• "+m[1])
		default:
			addRich(doc.AddParagraph(""), trimmed)
		}
	}
	return doc.SaveTo(path)
}

func headingSize(level int) uint64 {
	switch level {
	case 1:
		return 16
	case 2:
		return 15
	case 3:
		return 14
	default:
		return docFontSize
	}
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(mdEmphasis.Replace(text)).Font(docFont).Size(size)
	if bold {
		run.Bold(true)
	}
}

// addRich keeps **bold** spans bold and drops other inline markup.
func addRich(p *docx.Paragraph, text string) {
	parts := mdBold.Split(text, -1)
	matches := mdBold.FindAllStringSubmatch(text, -1)
	for i, part := range parts {
		if part != "" {
			p.AddText(mdEmphasis.Replace(part)).Font(docFont).Size(docFontSize)
		}
		if i < len(matches) {
			p.AddText(mdEmphasis.Replace(matches[i][1])).Font(docFont).Size(docFontSize).Bold(true)
		}
	}
}
