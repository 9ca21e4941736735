package enums

// PlanStatus tracks whether a billing plan is offered to customers.
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "active"
	PlanStatusInactive PlanStatus = "inactive"
)

var validPlanStatuses = []PlanStatus{
	PlanStatusActive,
	PlanStatusInactive,
}

func (p PlanStatus) String() string { return string(p) }

func (p PlanStatus) IsValid() bool { return known(validPlanStatuses, p) }

func ParsePlanStatus(value string) (PlanStatus, error) {
	return parse(validPlanStatuses, "plan status", value)
}
