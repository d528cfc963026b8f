// Package report renders tabular listings as xlsx workbooks.
package report

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Column is one exported column.
type Column struct {
	Header string
	Width  float64
}

// Build writes columns and rows to a single-sheet workbook with a bold header row.
func Build(sheet string, columns []Column, rows [][]any) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for i, col := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("%s1", name), col.Header); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, name+"1", name+"1", headerStyle); err != nil {
			return nil, err
		}
		width := col.Width
		if width == 0 {
			width = 18
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return nil, err
		}
	}

	for r, row := range rows {
		for i, v := range row {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// Send streams f as an attachment named filename.
func Send(c *gin.Context, filename string, f *excelize.File) error {
	defer f.Close()
	c.Header("Content-Type", ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	c.Status(http.StatusOK)
	return f.Write(c.Writer)
}
