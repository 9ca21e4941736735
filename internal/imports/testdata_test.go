package imports

import (
	"fmt"
	"strings"
)

const sheetHeader = "id,category_id,subcategory_id,design_no,description,extension,file_type,total_area,duration_min,total_switches,colours,width,height,stabilizer_required,design_options,design_information,confidential,transfer"

// sheetRow renders a complete, valid record for designNo.
func sheetRow(designNo string) string {
	return fmt.Sprintf("7,2,3,%s,Rose border,dst,emb,\"1,234.5\",12.5,4800,6,120mm,80mm,yes,applique,floral,no,yes", designNo)
}

func sheet(rows ...string) string {
	return strings.Join(append([]string{sheetHeader}, rows...), "\n") + "\n"
}

func validRows(n int) []Row {
	rows := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		fields := make(map[string]string, len(RequiredColumns))
		for _, column := range RequiredColumns {
			fields[column] = "1"
		}
		fields["design_no"] = fmt.Sprintf("D%04d", i)
		rows = append(rows, Row{Number: i + 1, Fields: fields})
	}
	return rows
}
