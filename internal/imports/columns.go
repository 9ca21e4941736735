package imports

// RequiredColumns lists the header names every catalog sheet must carry.
// Matching is exact and case-sensitive; column order in the file is free.
var RequiredColumns = []string{
	"id",
	"category_id",
	"subcategory_id",
	"design_no",
	"description",
	"extension",
	"file_type",
	"total_area",
	"duration_min",
	"total_switches",
	"colours",
	"width",
	"height",
	"stabilizer_required",
	"design_options",
	"design_information",
	"confidential",
	"transfer",
}

// MissingColumns returns the required names absent from header, in RequiredColumns order.
func MissingColumns(header []string) []string {
	present := make(map[string]struct{}, len(header))
	for _, name := range header {
		present[name] = struct{}{}
	}
	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
