package models

// Debtor is the guardian responsible for a debt.
type Debtor struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Document string `json:"document,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type School struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
}
