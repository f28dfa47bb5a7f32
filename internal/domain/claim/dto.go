package claim

type SubmitRequest struct {
	OrderID     string `json:"order_id" validate:"required,max=128"`
	OrderAmount string `json:"order_amount" validate:"required,decimal"`
	Category    string `json:"category" validate:"required,max=64"`
	EvidenceRef string `json:"evidence_ref" validate:"required,max=512"`
}

type ReviewRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

type SweepResponse struct {
	Matured int `json:"matured"`
}
