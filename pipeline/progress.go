package pipeline

import "go.uber.org/atomic"

const (
	StatusIdle       = "Idle"
	StatusLoading    = "Loading mesh"
	StatusGrid       = "Building sampling grid"
	StatusResampling = "Resampling"
	StatusRegister   = "Registering outputs"
	StatusDone       = "Done"
	StatusFailed     = "Failed"
)

// progress is the percentage/status pair readers poll while a run is active
type progress struct {
	percent    atomic.Float64
	status     atomic.String
	subscriber func(percent float64, status string)
}

func (p *progress) reset() {
	p.percent.Store(0)
	p.status.Store(StatusIdle)
}

func (p *progress) setStatus(status string) {
	p.status.Store(status)
	p.notify()
}

// advance raises the percentage to pct; lower values are ignored
func (p *progress) advance(pct float64) {
	for {
		old := p.percent.Load()
		if pct <= old {
			return
		}
		if p.percent.CAS(old, pct) {
			p.notify()
			return
		}
	}
}

func (p *progress) notify() {
	if p.subscriber != nil {
		p.subscriber(p.percent.Load(), p.status.Load())
	}
}
