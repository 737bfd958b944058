package session

import "iasmeen/internal/analysis"

// Panel is what the results area shows.
type Panel string

const (
	PanelEmpty   Panel = "empty"
	PanelLoading Panel = "loading"
	PanelError   Panel = "error"
	PanelResult  Panel = "result"
)

// ReliabilityPanel is what the reliability area shows.
type ReliabilityPanel string

const (
	ReliabilityHidden  ReliabilityPanel = "hidden" // no result, or file metadata
	ReliabilityOffer   ReliabilityPanel = "offer"
	ReliabilityLoading ReliabilityPanel = "loading"
	ReliabilityError   ReliabilityPanel = "failed"
	ReliabilityReview  ReliabilityPanel = "review"
)

// ViewModel is the presentation-level projection of a State.
type ViewModel struct {
	Panel        Panel            `json:"panel"`
	Reliability  ReliabilityPanel `json:"reliability"`
	CanSearch    bool             `json:"canSearch"`
	CanNewSearch bool             `json:"canNewSearch"`
	CanExport    bool             `json:"canExport"`
	Error        string           `json:"error,omitempty"`
	UploadError  string           `json:"uploadError,omitempty"`
}

// View projects s for rendering.
func View(s State) ViewModel {
	vm := ViewModel{UploadError: s.UploadErr}

	switch s.Primary.Phase {
	case PhasePending:
		vm.Panel = PanelLoading
	case PhaseFailed:
		vm.Panel = PanelError
		vm.Error = s.Primary.Err
	case PhaseSettled:
		vm.Panel = PanelResult
	default:
		vm.Panel = PanelEmpty
	}

	vm.Reliability = ReliabilityHidden
	if vm.Panel == PanelResult && analysis.Reviewable(s.Primary.Result) {
		switch s.Reliability.Phase {
		case PhasePending:
			vm.Reliability = ReliabilityLoading
		case PhaseFailed:
			vm.Reliability = ReliabilityError
		case PhaseSettled:
			vm.Reliability = ReliabilityReview
		default:
			vm.Reliability = ReliabilityOffer
		}
	}

	loading := vm.Panel == PanelLoading
	vm.CanSearch = !loading
	vm.CanNewSearch = !loading && (vm.Panel == PanelResult || vm.Panel == PanelError)
	vm.CanExport = vm.Panel == PanelResult && vm.Reliability != ReliabilityLoading
	return vm
}
