package enums

// ImportStatus is the lifecycle state of a catalog import job.
type ImportStatus string

const (
	ImportStatusLoaded     ImportStatus = "loaded"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusComplete   ImportStatus = "complete"
	ImportStatusDiscarded  ImportStatus = "discarded"
)

var validImportStatuses = []ImportStatus{
	ImportStatusLoaded,
	ImportStatusProcessing,
	ImportStatusComplete,
	ImportStatusDiscarded,
}

func (s ImportStatus) String() string { return string(s) }

func (s ImportStatus) IsValid() bool { return known(validImportStatuses, s) }

func ParseImportStatus(value string) (ImportStatus, error) {
	return parse(validImportStatuses, "import status", value)
}
