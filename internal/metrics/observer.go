package metrics

type StoreObserver interface {
	RecordRead()
	RecordWrite()
	RecordDelete()
}

type noopObserver struct{}

// NewNoopObserver returns an observer that records nothing, for callers that
// run without a metrics backend.
func NewNoopObserver() StoreObserver {
	return noopObserver{}
}

func (noopObserver) RecordRead()   {}
func (noopObserver) RecordWrite()  {}
func (noopObserver) RecordDelete() {}
