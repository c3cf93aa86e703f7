package patient

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Patients"

type exportColumn struct {
	header string
	width  float64
	value  func(*Patient) interface{}
}

var exportColumns = []exportColumn{
	{"ID", 8, func(p *Patient) interface{} { return p.ID }},
	{"PHN", 28, func(p *Patient) interface{} { return p.PHN }},
	{"NIC", 16, func(p *Patient) interface{} { return p.NIC }},
	{"Title", 8, func(p *Patient) interface{} { return p.Title }},
	{"Full Name", 30, func(p *Patient) interface{} { return p.FullName }},
	{"Other Names", 20, func(p *Patient) interface{} { return p.OtherNames }},
	{"Gender", 10, func(p *Patient) interface{} { return p.Gender }},
	{"Birthday", 12, func(p *Patient) interface{} {
		if p.Birthday == nil {
			return ""
		}
		return p.Birthday.String()
	}},
	{"Age", 8, func(p *Patient) interface{} { return p.Age }},
	{"Address Line 1", 30, func(p *Patient) interface{} { return p.AddressLine1 }},
	{"Address Line 2", 30, func(p *Patient) interface{} { return p.AddressLine2 }},
	{"District", 14, func(p *Patient) interface{} { return p.District }},
	{"Province", 14, func(p *Patient) interface{} { return p.Province }},
	{"MOH Division", 14, func(p *Patient) interface{} { return p.MHDivision }},
	{"Contact Numbers", 18, func(p *Patient) interface{} { return p.ContactNumbers }},
	{"Marital Status", 12, func(p *Patient) interface{} { return p.MaritalStatus }},
	{"Guardian", 20, func(p *Patient) interface{} { return p.Guardian }},
	{"Occupation", 14, func(p *Patient) interface{} { return p.Occupation }},
	{"Blood Type", 8, func(p *Patient) interface{} { return p.BloodType }},
	{"Known Allergies", 24, func(p *Patient) interface{} { return p.KnownAllergies }},
	{"Chronic Conditions", 24, func(p *Patient) interface{} { return p.ChronicConditions }},
	{"Primary Physician", 18, func(p *Patient) interface{} { return p.PrimaryPhysician }},
	{"Registered At", 20, func(p *Patient) interface{} { return p.CreatedAt.Format("2006-01-02 15:04:05") }},
}

// ExportHeaders returns the column titles of the register export.
func ExportHeaders() []string {
	headers := make([]string, len(exportColumns))
	for i, col := range exportColumns {
		headers[i] = col.header
	}
	return headers
}

// WriteRegister writes patients as an .xlsx workbook with a frozen header row.
func WriteRegister(w io.Writer, patients []*Patient) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, col := range exportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, col.header); err != nil {
			return fmt.Errorf("set header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("style header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(exportSheet, name, name, col.width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	for r, p := range patients {
		row := make([]interface{}, len(exportColumns))
		for i, col := range exportColumns {
			row[i] = col.value(p)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
