package v1

type BotConfig struct {
	ID                         int64   `json:"id,omitempty"`
	MaxUsers                   int     `json:"max_users,omitempty"`
	Price                      string  `json:"price,omitempty"`
	InvoiceLabel               string  `json:"invoice_label,omitempty"`
	InvoiceTitle               string  `json:"invoice_title,omitempty"`
	InvoiceDescription         string  `json:"invoice_description,omitempty"`
	InvoiceImage               *string `json:"invoice_image,omitempty"`
	EndOfRegistration          *string `json:"end_of_registration,omitempty"`
	StartMessage               string  `json:"start_message,omitempty"`
	MerchantMessage            string  `json:"merchant_message,omitempty"`
	CEOMessage                 string  `json:"ceo_message,omitempty"`
	FormatMessage              string  `json:"format_message,omitempty"`
	AlreadyRegisteredMessage   string  `json:"already_registered_message,omitempty"`
	ClosedRegistrationsMessage string  `json:"closed_registrations_message,omitempty"`
}

type RegistrationStep struct {
	ID           int64  `json:"id,omitempty"`
	Order        int    `json:"order"`
	MessageText  string `json:"message_text"`
	FieldType    string `json:"field_type"`
	FieldName    string `json:"field_name,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	NextStep     *int64 `json:"next_step,omitempty"`
}

type StepOrder struct {
	ID    int64 `json:"id"`
	Order int   `json:"order"`
}

type ReorderResult struct {
	Count int `json:"count"`
}
