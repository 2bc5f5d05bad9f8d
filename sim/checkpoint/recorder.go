package checkpoint

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/lattice-sim/lattice-sim/sim"
)

// Recorder is a sim.StepObserver that saves a snapshot of its simulator
// every Every steps.
type Recorder struct {
	store *Store
	run   string
	sim   *sim.Simulator
	every int
	saved int
	err   error
}

// NewRecorder attaches a recorder to s. every <= 0 disables recording.
func NewRecorder(store *Store, run string, s *sim.Simulator, every int) *Recorder {
	r := &Recorder{store: store, run: run, sim: s, every: every}
	s.AddObserver(r)
	return r
}

// ObserveStep implements sim.StepObserver. The first save error is kept and
// later saves are skipped.
func (r *Recorder) ObserveStep(st sim.StepStats) {
	if r.every <= 0 || r.err != nil || st.Step%r.every != 0 {
		return
	}
	if err := r.store.Save(r.run, r.sim.Snapshot()); err != nil {
		r.err = err
		logrus.Warnf("[step %07d] checkpoint disabled: %v", st.Step, err)
		return
	}
	r.saved++
	logrus.Debugf("[step %07d] checkpoint saved for run %s", st.Step, r.run)
}

// Saved is the number of snapshots written.
func (r *Recorder) Saved() int { return r.saved }

// Err returns the error that stopped recording, if any.
func (r *Recorder) Err() error { return r.err }

// Resume restores the latest checkpoint of run into s. It reports whether a
// checkpoint was found.
func Resume(store *Store, run string, s *sim.Simulator) (bool, error) {
	st, err := store.Latest(run)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.Restore(st); err != nil {
		return false, err
	}
	logrus.Infof("[step %07d] resumed run %s from checkpoint", st.Step, run)
	return true, nil
}
