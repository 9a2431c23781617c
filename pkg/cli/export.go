package cli

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/facilityhub/facility/pkg/types"
)

func (e *entityCommand[T]) exportCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "export",
		Short: fmt.Sprintf("Export every %s to an Excel workbook", e.kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := e.fetchAll(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, e.row(r))
			}

			if path == "" {
				path = e.kind.Plural() + ".xlsx"
			}
			if err := writeWorkbook(path, sheetName(e.kind), e.headers, rows); err != nil {
				return err
			}

			PrintSuccessf("Exported %d %s to %s", len(records), e.kind.Plural(), CodeStyle.Render(path))
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "Output file (default <kind>s.xlsx)")
	return cmd
}

// fetchAll pages through the collection in id order
func (e *entityCommand[T]) fetchAll(ctx context.Context) ([]T, error) {
	client := getClient()

	var all []T
	for page := 0; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("size", strconv.Itoa(types.MaxPageSize))
		query.Set("sort", "id,asc")

		records, info, err := List[T](ctx, client, e.collectionPath(), query)
		if err != nil {
			return nil, err
		}

		all = append(all, records...)
		if len(records) == 0 || int64(len(all)) >= info.Total {
			return all, nil
		}
	}
}

func sheetName(kind types.Kind) string {
	plural := kind.Plural()
	return strings.ToUpper(plural[:1]) + plural[1:]
}

func writeWorkbook(path, sheet string, headers []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, cellValue(value)); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// cellValue keeps ids and numbers numeric in the sheet
func cellValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if s == "-" {
		return ""
	}
	return s
}
