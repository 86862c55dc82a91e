package updates

// EulaRequest is one pending license agreement blocking an install.
type EulaRequest struct {
	EulaID      string `json:"eulaId"`
	PackageID   string `json:"packageId"`
	Vendor      string `json:"vendor"`
	LicenseText string `json:"licenseText"`
}

// EulaNegotiator holds license agreements reported during a failed install
// pass and surfaces them to the caller strictly one at a time, in arrival
// order. surface is invoked whenever a request becomes the active head.
type EulaNegotiator struct {
	queue   []EulaRequest
	surface func(EulaRequest)
}

func NewEulaNegotiator(surface func(EulaRequest)) *EulaNegotiator {
	return &EulaNegotiator{surface: surface}
}

// Enqueue appends a request. A request with an already-queued eula id is
// dropped (the daemon may re-report agreements it already announced). If the
// queue was empty the new head is surfaced immediately.
func (n *EulaNegotiator) Enqueue(req EulaRequest) {
	for _, queued := range n.queue {
		if queued.EulaID == req.EulaID {
			return
		}
	}

	n.queue = append(n.queue, req)
	if len(n.queue) == 1 {
		n.surface(req)
	}
}

// Head returns the active request, if any.
func (n *EulaNegotiator) Head() (EulaRequest, bool) {
	if len(n.queue) == 0 {
		return EulaRequest{}, false
	}
	return n.queue[0], true
}

// PopHead removes the resolved head and surfaces the next request if one is
// queued. Returns the number of requests still pending.
func (n *EulaNegotiator) PopHead() int {
	if len(n.queue) == 0 {
		return 0
	}
	n.queue = n.queue[1:]
	if len(n.queue) > 0 {
		n.surface(n.queue[0])
	}
	return len(n.queue)
}

// Clear discards all pending requests without surfacing anything.
func (n *EulaNegotiator) Clear() {
	n.queue = nil
}

// Len returns the number of pending requests, including the active head.
func (n *EulaNegotiator) Len() int {
	return len(n.queue)
}
