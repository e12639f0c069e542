// Package export renders customer sets as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"customer-analytics-api/internal/analytics"
	"customer-analytics-api/internal/derived"
	"customer-analytics-api/internal/models"
)

const (
	CustomersSheet = "Customers"
	SummarySheet   = "Summary"

	// ContentType is the MIME type of the workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var customerHeader = []interface{}{
	"uid",
	"region_group",
	"region_city",
	"age_group",
	"age",
	"visit_days",
	"total_duration_min",
	"total_payment",
	"retained_90",
	"grade",
	"avg_payment_per_visit",
	"avg_duration_per_visit",
}

// WriteCustomers writes a workbook with one row per customer and a summary
// sheet holding the overall stats and grade distribution of the same set.
func WriteCustomers(w io.Writer, customers []models.Customer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), CustomersSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(CustomersSheet, "A1", &customerHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, c := range customers {
		row := []interface{}{
			c.UID,
			c.RegionGroup,
			c.RegionCity,
			string(c.AgeGroup),
			c.Age,
			c.VisitDays,
			c.TotalDurationMin,
			c.TotalPayment,
			c.Retained90,
			string(derived.CustomerGrade(c.TotalPayment)),
			derived.AveragePaymentPerVisit(c),
			derived.AverageDurationPerVisit(c),
		}
		if err := setRow(f, CustomersSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(CustomersSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := writeSummary(f, customers); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, customers []models.Customer) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}

	rows := [][]interface{}{{"metric", "value"}}
	stats, err := analytics.Overall(customers)
	switch {
	case err == nil:
		rows = append(rows,
			[]interface{}{"count", stats.Count},
			[]interface{}{"total_revenue", stats.TotalRevenue},
			[]interface{}{"avg_revenue", stats.AvgRevenue},
			[]interface{}{"avg_visits", stats.AvgVisits},
			[]interface{}{"total_duration", stats.TotalDuration},
			[]interface{}{"retention_rate", stats.RetentionRate},
		)
	default:
		rows = append(rows, []interface{}{"count", 0})
	}

	rows = append(rows, []interface{}{}, []interface{}{"grade", "count", "total_revenue", "percentage"})
	for _, g := range analytics.GradeDistribution(customers) {
		rows = append(rows, []interface{}{string(g.Grade), g.Count, g.TotalRevenue, g.Percentage})
	}

	for i, row := range rows {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
