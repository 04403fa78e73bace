package server

import "context"

// runReaper is §4.4 "Reaper thread": wait until woken (a connection broke)
// or asked to stop, then swap broken-connections out from under lock S and
// drop the lock before letting the swapped-out set deallocate — so no
// transport delegate can still be executing against a ConnectionState
// while it's destroyed (§9 "Re-entrancy-safe teardown").
func (s *Server) runReaper(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reaperWake:
		}

		s.mu.Lock()
		doomed := s.broken
		s.broken = make(map[string]*ServerConnectionState)
		s.mu.Unlock()

		for id, st := range doomed {
			st.log.Debug().Msg("reaped")
			delete(doomed, id)
		}
	}
}
