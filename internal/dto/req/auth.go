package req

type LoginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshReq is the body of both the refresh and the blacklist endpoints.
type RefreshReq struct {
	Refresh string `json:"refresh" binding:"required"`
}
