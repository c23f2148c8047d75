// Package pdf renders printable quiz packets.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	indent          = 15.0
	maxSnippetLines = 3
)

// Question is one numbered packet question.
type Question struct {
	Text        string
	CodeSnippet string
	Options     []string
}

// Student is the recipient of one packet page.
type Student struct {
	Name string
	Code string
}

// Packet is a shared question set printed once per student.
type Packet struct {
	Assignment string
	Students   []Student
	Questions  []Question
	CreatedAt  time.Time
}

// Render produces the packet as PDF bytes, one page per student.
func Render(packet Packet) ([]byte, error) {
	if len(packet.Students) == 0 {
		return nil, fmt.Errorf("packet has no students")
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetAutoPageBreak(true, 15)
	doc.SetTitle("Quiz: "+packet.Assignment, true)
	doc.SetCreator("codecheck", true)
	if !packet.CreatedAt.IsZero() {
		doc.SetCreationDate(packet.CreatedAt)
	}
	tr := doc.UnicodeTranslatorFromDescriptor("")

	for _, student := range packet.Students {
		doc.AddPage()
		doc.SetFont("Helvetica", "B", 12)
		doc.CellFormat(0, 10, tr(fmt.Sprintf("Student: %s (%s)", student.Name, student.Code)), "", 1, "L", false, 0, "")
		doc.CellFormat(0, 6, tr("Assignment: "+packet.Assignment), "", 1, "L", false, 0, "")
		doc.Ln(5)

		for i, question := range packet.Questions {
			writeQuestion(doc, tr, i+1, question)
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render quiz packet: %w", err)
	}
	return buf.Bytes(), nil
}

func writeQuestion(doc *fpdf.Fpdf, tr func(string) string, number int, question Question) {
	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(indent, 6, fmt.Sprintf("%d.", number), "", 0, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.MultiCell(0, 6, tr(question.Text), "", "L", false)

	if snippet := strings.TrimSpace(question.CodeSnippet); snippet != "" {
		doc.Ln(2)
		doc.SetFont("Helvetica", "I", 8)
		doc.SetX(doc.GetX() + indent)
		doc.CellFormat(0, 4, "Code:", "", 1, "L", false, 0, "")
		doc.SetFont("Courier", "", 7)
		lines := strings.Split(snippet, "\n")
		if len(lines) > maxSnippetLines {
			lines = lines[:maxSnippetLines]
		}
		for _, line := range lines {
			doc.SetX(doc.GetX() + indent)
			doc.CellFormat(0, 4, tr(strings.ReplaceAll(line, "\t", "    ")), "", 1, "L", false, 0, "")
		}
	}

	if len(question.Options) > 0 {
		doc.Ln(2)
		doc.SetFont("Helvetica", "", 10)
		for j, option := range question.Options {
			doc.SetX(doc.GetX() + indent)
			doc.CellFormat(0, 4, tr(fmt.Sprintf("%d. %s", j+1, option)), "", 1, "L", false, 0, "")
		}
	}

	doc.Ln(3)
}
