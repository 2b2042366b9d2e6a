package metrics

// ClientObserver receives events from the authenticated API client.
type ClientObserver interface {
	ObserveRequest(method string, status int, duration float64)
	RecordRefresh(outcome string)
	IncQueued()
	DecQueued()
	RecordSessionEnd(reason string)
}

// Refresh cycle outcomes.
const (
	RefreshSuccess = "success"
	RefreshFailure = "failure"
)

type nopObserver struct{}

func NewNopObserver() ClientObserver { return nopObserver{} }

func (nopObserver) ObserveRequest(string, int, float64) {}
func (nopObserver) RecordRefresh(string)                {}
func (nopObserver) IncQueued()                          {}
func (nopObserver) DecQueued()                          {}
func (nopObserver) RecordSessionEnd(string)             {}
