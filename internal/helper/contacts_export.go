package helper

import (
	"fmt"
	"io"

	"gowa-gateway/internal/model"

	"github.com/xuri/excelize/v2"
)

const ContactsSheet = "Contacts"

var contactHeaders = []string{"ID", "Number", "Name", "Push Name", "Business Name", "Saved"}

// WriteContactsXLSX renders contacts as a single-sheet workbook.
func WriteContactsXLSX(w io.Writer, contacts []model.Contact) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ContactsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for col, h := range contactHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(ContactsSheet, cell, h); err != nil {
			return err
		}
	}

	for i, ct := range contacts {
		row := []interface{}{ct.ID, ct.Number, ct.Name, ct.PushName, ct.BusinessName, ct.IsMyContact}
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(ContactsSheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(ContactsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	return f.Write(w)
}
