package session

import "github.com/pairlink/pairlink-server/pkg/contract"

// startTickLocked launches the tick loop if the application opted in.
// The loop lives for one playing phase; leaving playing stops it before
// session_ended goes out.
func (r *Runtime) startTickLocked() {
	ticker, ok := r.app.(Ticker)
	if !ok {
		return
	}
	interval := ticker.TickInterval()
	if interval <= 0 {
		return
	}
	if r.tickStop != nil {
		return
	}

	stop := make(chan struct{})
	r.tickStop = stop
	r.lastTick = r.clk.Now()

	go func() {
		t := r.clk.Ticker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				r.tick(ticker)
			}
		}
	}()
}

func (r *Runtime) stopTickLocked() {
	if r.tickStop == nil {
		return
	}
	close(r.tickStop)
	r.tickStop = nil
}

// tick runs one loop iteration under the runtime lock. An iteration that
// races a phase change is discarded, so the application callback never
// observes a non-playing session.
func (r *Runtime) tick(ticker Ticker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != contract.PhasePlaying {
		return
	}

	now := r.clk.Now()
	dt := now.Sub(r.lastTick).Seconds()
	r.lastTick = now

	var msgs [][]byte
	r.guard("OnTick", func() {
		for _, m := range ticker.OnTick(dt) {
			msgs = append(msgs, m)
		}
	})
	for _, raw := range msgs {
		r.broadcastRawLocked(raw)
	}

	if checker, ok := r.app.(EndChecker); ok {
		var out *Outcome
		r.guard("CheckSessionEnd", func() {
			out = checker.CheckSessionEnd()
		})
		if out != nil {
			r.endSessionLocked(out.WinnerID, out.WinnerNumber, contract.EndAppCondition)
		}
	}
}
