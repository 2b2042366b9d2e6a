package resp

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type AccessResp struct {
	Access string `json:"access"`
}

// ErrorResp mirrors the error body of the bot platform API.
type ErrorResp struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}
