package order

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	OnProcessing(o *Order) (OrderState, error)
	OnShipped(o *Order) (OrderState, error)
	OnDelivered(o *Order) (OrderState, error)
	OnCancelled(o *Order) (OrderState, error)
}

func stateOf(s Status) (OrderState, error) {
	switch s {
	case StatusPending:
		return pendingState{}, nil
	case StatusProcessing:
		return processingState{}, nil
	case StatusShipped:
		return shippedState{}, nil
	case StatusDelivered:
		return deliveredState{}, nil
	case StatusCancelled:
		return cancelledState{}, nil
	default:
		return nil, ErrInvalidStatus
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnProcessing(*Order) (OrderState, error) { return processingState{}, nil }

func (pendingState) OnShipped(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (pendingState) OnDelivered(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (pendingState) OnCancelled(o *Order) (OrderState, error) {
	refund(o)
	return cancelledState{}, nil
}

type processingState struct{}

func (processingState) Status() Status { return StatusProcessing }

func (processingState) OnProcessing(*Order) (OrderState, error) { return processingState{}, nil }

func (processingState) OnShipped(*Order) (OrderState, error) { return shippedState{}, nil }

func (processingState) OnDelivered(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (processingState) OnCancelled(o *Order) (OrderState, error) {
	refund(o)
	return cancelledState{}, nil
}

type shippedState struct{}

func (shippedState) Status() Status { return StatusShipped }

func (shippedState) OnProcessing(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (shippedState) OnShipped(*Order) (OrderState, error) { return shippedState{}, nil }

func (shippedState) OnDelivered(o *Order) (OrderState, error) {
	// cash is collected on delivery
	if o.PaymentMethod == PaymentCOD && o.PaymentStatus == PaymentPending {
		o.PaymentStatus = PaymentPaid
	}
	return deliveredState{}, nil
}

func (shippedState) OnCancelled(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

type deliveredState struct{}

func (deliveredState) Status() Status { return StatusDelivered }

func (deliveredState) OnProcessing(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (deliveredState) OnShipped(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (deliveredState) OnDelivered(*Order) (OrderState, error) { return deliveredState{}, nil }

func (deliveredState) OnCancelled(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnProcessing(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnShipped(*Order) (OrderState, error) { return nil, ErrInvalidStateTransition }

func (cancelledState) OnDelivered(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCancelled(*Order) (OrderState, error) { return cancelledState{}, nil }

func refund(o *Order) {
	if o.PaymentStatus == PaymentPaid {
		o.PaymentStatus = PaymentRefunded
	}
}
