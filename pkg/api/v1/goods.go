package v1

type GoodImage struct {
	ID        int64  `json:"id"`
	Image     string `json:"image"`
	IsInvoice bool   `json:"is_invoice"`
}

type Good struct {
	ID          int64       `json:"id,omitempty"`
	Quantity    int         `json:"quantity"`
	Title       string      `json:"title"`
	Label       string      `json:"label,omitempty"`
	Price       string      `json:"price"` // decimal string, e.g. "1500.00"
	Description string      `json:"description"`
	Available   bool        `json:"available"`
	Images      []GoodImage `json:"images,omitempty"`
}

// Page is the DRF pagination envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
