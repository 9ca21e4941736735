package enums

// SubscriptionStatus tracks a customer subscription created by checkout.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusExpired,
	SubscriptionStatusCanceled,
}

func (s SubscriptionStatus) String() string { return string(s) }

func (s SubscriptionStatus) IsValid() bool { return known(validSubscriptionStatuses, s) }

func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	return parse(validSubscriptionStatuses, "subscription status", value)
}
