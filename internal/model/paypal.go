package model

type Payer struct {
	PayerID string `json:"payer_id"`
	Email   string `json:"email_address"`
}

type PaypalLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type PaypalCreateOrderResult struct {
	ID     string       `json:"id"`
	Links  []PaypalLink `json:"links"`
	Status string       `json:"status"`
}

type Amount struct {
	Currency string `json:"currency_code"`
	Value    string `json:"value"`
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}

type Payments struct {
	Captures []Capture `json:"captures"`
}

type PurchaseUnit struct {
	ReferenceID string   `json:"reference_id"`
	Payments    Payments `json:"payments"`
}

// PaypalCaptureResult is the subset of a /capture response this module reads.
// The full body is kept verbatim as the payment receipt.
type PaypalCaptureResult struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Payer         Payer          `json:"payer"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}
