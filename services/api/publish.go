package api

import "encoding/json"

// publishJSON emits a best-effort event on the bus. Publishing is auxiliary
// bookkeeping and must never fail a request, so errors are dropped.
func (a *API) publishJSON(subject string, payload any) {
	if a.store.Bus == nil || subject == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = a.store.Bus.Publish(subject, data)
}
