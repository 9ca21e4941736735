package enums

// BillingInterval defines the cadence for a billing plan.
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalYearly  BillingInterval = "yearly"
)

var validBillingIntervals = []BillingInterval{
	BillingIntervalMonthly,
	BillingIntervalYearly,
}

func (b BillingInterval) String() string { return string(b) }

func (b BillingInterval) IsValid() bool { return known(validBillingIntervals, b) }

func ParseBillingInterval(value string) (BillingInterval, error) {
	return parse(validBillingIntervals, "billing interval", value)
}
