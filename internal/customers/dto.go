package customers

// CreateCustomerRequest is the payload for creating a customer.
type CreateCustomerRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Email   string  `json:"email" validate:"omitempty,email,max=254"`
	Phone   string  `json:"phone" validate:"omitempty,max=50"`
	Address string  `json:"address" validate:"omitempty,max=500"`
	Status  string  `json:"status" validate:"omitempty,oneof=Lead Prospect Active VIP Inactive"`
	Notes   *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// UpdateCustomerRequest changes the provided fields. The account number is
// never updatable.
type UpdateCustomerRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
	Status  *string `json:"status,omitempty" validate:"omitempty,oneof=Lead Prospect Active VIP Inactive"`
	Notes   *string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}
