package enums

// PaymentOrderStatus tracks a hosted checkout order.
type PaymentOrderStatus string

const (
	PaymentOrderStatusCreated PaymentOrderStatus = "created"
	PaymentOrderStatusPaid    PaymentOrderStatus = "paid"
	PaymentOrderStatusFailed  PaymentOrderStatus = "failed"
)

var validPaymentOrderStatuses = []PaymentOrderStatus{
	PaymentOrderStatusCreated,
	PaymentOrderStatusPaid,
	PaymentOrderStatusFailed,
}

func (s PaymentOrderStatus) String() string { return string(s) }

func (s PaymentOrderStatus) IsValid() bool { return known(validPaymentOrderStatuses, s) }

func ParsePaymentOrderStatus(value string) (PaymentOrderStatus, error) {
	return parse(validPaymentOrderStatuses, "payment order status", value)
}
