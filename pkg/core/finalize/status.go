package finalize

// SlotStatus is the lifecycle of one (row, slot) within a run.
//
//	pending -> skipped
//	pending -> downloading -> downloaded -> rendering -> done
//	pending -> downloaded (cache hit)
//	any non-terminal state -> failed
type SlotStatus int

const (
	StatusPending SlotStatus = iota
	StatusSkipped
	StatusDownloading
	StatusDownloaded
	StatusRendering
	StatusDone
	StatusFailed
)

var statusNames = [...]string{
	StatusPending:     "pending",
	StatusSkipped:     "skipped",
	StatusDownloading: "downloading",
	StatusDownloaded:  "downloaded",
	StatusRendering:   "rendering",
	StatusDone:        "done",
	StatusFailed:      "failed",
}

func (s SlotStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Terminal reports whether no further transition is possible.
func (s SlotStatus) Terminal() bool {
	return s == StatusSkipped || s == StatusDone || s == StatusFailed
}

// Failure reasons written to the failure log.
const (
	ReasonNoURL          = "no_url"
	ReasonOnlyMissing    = "only_missing"
	ReasonDownloadFailed = "download_failed_or_blocked"
	ReasonRenderFailed   = "render_failed"
	ReasonPDFUnreadable  = "pdf_unreadable"
)

// Slot tracks one document of one task row through a run.
type Slot struct {
	Row      int
	Index    int // 1 or 2
	TaskID   string
	URL      string
	Filename string
	Checksum string
	Status   SlotStatus
	Reason   string
	Err      error
}

func (s *Slot) advance(to SlotStatus) {
	if s.Status.Terminal() {
		return
	}
	s.Status = to
}

func (s *Slot) skip(reason string) {
	s.advance(StatusSkipped)
	s.Reason = reason
}

func (s *Slot) fail(reason string, err error) {
	s.advance(StatusFailed)
	s.Reason = reason
	s.Err = err
}
