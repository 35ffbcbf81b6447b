package prefetch

// Handle is a reference to in-flight resolution work for one catalog id.
// Other callers observe and join it instead of duplicating the work; nothing
// cancels it. The handle settles exactly once.
type Handle struct {
	CatalogID string

	done    chan struct{}
	videoID string
	url     string
	err     error
}

func newHandle(catalogID string) *Handle {
	return &Handle{CatalogID: catalogID, done: make(chan struct{})}
}

// Done is closed when the work settles, success or failure.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the settled outcome. Only valid after Done is closed. A
// non-empty videoID with a non-nil err means the id stage succeeded but the
// stream stage failed.
func (h *Handle) Result() (videoID, url string, err error) {
	return h.videoID, h.url, h.err
}

// settle records the outcome and releases joiners.
func (h *Handle) settle(videoID, url string, err error) {
	h.videoID = videoID
	h.url = url
	h.err = err
	close(h.done)
}
