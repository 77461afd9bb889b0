package parser

import (
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"research-assistant/internal/models"
)

// parseDOCX returns the whole document body as one record; DOCX has no page numbers.
func parseDOCX(path, source string) ([]models.Document, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := extractTextFromXML(r.Editable().GetContent())
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return []models.Document{{
		Content:    content,
		Source:     source,
		PageNumber: defaultPageNumber,
	}}, nil
}

// parseXLSX yields one record per sheet, numbered from 1.
func parseXLSX(path, source string) ([]models.Document, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, err
	}

	var docs []models.Document
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		docs = appendSheet(docs, text.String(), source, sheetNum+1)
	}
	return docs, nil
}

// parseWorkbook handles macro-enabled workbooks, which tealeg/xlsx does not open.
func parseWorkbook(path, source string) ([]models.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []models.Document
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		docs = appendSheet(docs, text.String(), source, sheetNum+1)
	}
	return docs, nil
}

func appendSheet(docs []models.Document, content, source string, sheet int) []models.Document {
	if strings.TrimSpace(content) == "" {
		return docs
	}
	return append(docs, models.Document{
		Content:    content,
		Source:     source,
		PageNumber: sheet,
	})
}

// extractTextFromXML keeps the text runs of a WordprocessingML body, one paragraph per line.
func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	paragraphs := strings.Split(xmlContent, "</w:p>")
	for _, p := range paragraphs {
		parts := strings.Split(p, "<w:t")
		var line strings.Builder
		for i, part := range parts {
			// skip <w:tab/>, <w:tbl>, <w:tc> and friends
			if i == 0 || part == "" || (part[0] != '>' && part[0] != ' ') {
				continue
			}
			start := strings.Index(part, ">")
			end := strings.Index(part, "</w:t>")
			if start >= 0 && end > start {
				line.WriteString(part[start+1 : end])
			}
		}
		if l := strings.TrimSpace(line.String()); l != "" {
			text.WriteString(l)
			text.WriteString("\n")
		}
	}
	return text.String()
}
