package enums

// ViewMode selects which foreground a preview shows for a design.
type ViewMode string

const (
	ViewModeDesign    ViewMode = "design"
	ViewModeWorksheet ViewMode = "worksheet"
)

var validViewModes = []ViewMode{
	ViewModeDesign,
	ViewModeWorksheet,
}

func (v ViewMode) String() string { return string(v) }

func (v ViewMode) IsValid() bool { return known(validViewModes, v) }

func ParseViewMode(value string) (ViewMode, error) {
	return parse(validViewModes, "view mode", value)
}
