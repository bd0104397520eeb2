package service

import "context"

// PaymentGateway charges the patient for a consultation. The real gateway is
// an external collaborator; the wire protocol is out of scope here.
type PaymentGateway interface {
	Charge(ctx context.Context, patientID string, amount int64) error
}

// approveAllGateway clears every charge synchronously. Stand-in until a real
// processor is wired; a failed Charge maps to a failed ledger entry.
type approveAllGateway struct{}

func NewApproveAllGateway() PaymentGateway {
	return approveAllGateway{}
}

func (approveAllGateway) Charge(ctx context.Context, patientID string, amount int64) error {
	return nil
}
