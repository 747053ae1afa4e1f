package monitor

// Register to receive detection results.
func (m *Monitor) AddWatcher() chan *Detection {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	ch := make(chan *Detection, WatcherChannelSize)
	m.watchers = append(m.watchers, ch)
	return ch
}

// Unregister from detection results
func (m *Monitor) RemoveWatcher(ch chan *Detection) {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	for i, w := range m.watchers {
		if w == ch {
			m.watchers[i] = m.watchers[len(m.watchers)-1]
			m.watchers = m.watchers[:len(m.watchers)-1]
			return
		}
	}
	m.Log.Warnf("Monitor.RemoveWatcher failed to find channel")
}

func (m *Monitor) sendToWatchers(detection *Detection) {
	m.watchersLock.RLock()
	// If a watcher stalls (eg waiting on IO), we drop frames for it rather
	// than stall the whole pipeline, and rather than stall the other watchers.
	for _, ch := range m.watchers {
		if len(ch) >= cap(ch)*9/10 {
			m.Log.Warnf("Monitor watcher is falling behind. I am going to drop frames.")
		} else {
			ch <- detection
		}
	}
	m.watchersLock.RUnlock()
}
