package inventory

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/angelmondragon/warehouse-flow/pkg/errors"
)

const defaultExportSheet = "Stock"

var exportHeaders = []string{
	"Item Code", "Name", "Category", "Unit", "Location",
	"Stock", "Reserved", "Available", "Min Stock", "Low",
}

// ExportStockReport writes every item as an xlsx workbook to w.
func (s *service) ExportStockReport(ctx context.Context, w io.Writer, sheet string) error {
	items, err := s.repo.ListItems(ctx, ItemFilters{})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}

	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		sheet = defaultExportSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "name sheet")
	}

	header := make([]any, 0, len(exportHeaders))
	for _, h := range exportHeaders {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write header")
	}

	for i, item := range items {
		location := ""
		if item.Location != nil {
			location = *item.Location
		}
		low := item.MinStock > 0 && item.AvailableQuantity() <= item.MinStock
		row := []any{
			item.ItemCode,
			item.Name,
			item.Category,
			item.Unit,
			location,
			item.StockQuantity,
			item.ReservedQuantity,
			item.AvailableQuantity(),
			item.MinStock,
			low,
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write row").
				WithDetail("item_code", item.ItemCode)
		}
	}

	if err := f.Write(w); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write workbook")
	}
	return nil
}
