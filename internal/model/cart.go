package model

// CartLine is one raw line of a cart as submitted by the client.  A
// product may appear on several lines with different variations or custom
// field answers.  Quantity is coerced during checkout sanitization.
type CartLine struct {
	ProductID    string            `json:"product_id"`
	Quantity     float64           `json:"quantity"`
	VariationID  string            `json:"variation_id,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// Buyer holds the contact details collected on the checkout form.
type Buyer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}
