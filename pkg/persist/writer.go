package persist

import "context"

// enqueue replaces the pending snapshot and wakes the writer.
func (p *Store[S]) enqueue(data []byte) {
	p.wmu.Lock()
	p.pending = data
	p.hasPending = true
	p.queued++
	p.wmu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// run is the background writer loop. Bursts of transitions collapse into a
// single write of the newest snapshot.
func (p *Store[S]) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.writePending()
		case <-p.stop:
			p.writePending()
			return
		}
	}
}

func (p *Store[S]) writePending() {
	p.wmu.Lock()
	if !p.hasPending {
		p.wmu.Unlock()
		return
	}
	data, gen := p.pending, p.queued
	p.pending = nil
	p.hasPending = false
	p.wmu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
	p.save(ctx, data)
	cancel()

	p.wmu.Lock()
	p.written = gen
	close(p.progress)
	p.progress = make(chan struct{})
	p.wmu.Unlock()
}

// Flush waits until every snapshot queued before the call has been written
// or dropped after a failed write. It returns immediately in Sync mode.
func (p *Store[S]) Flush(ctx context.Context) error {
	if p.opts.Sync {
		return nil
	}

	p.wmu.Lock()
	target := p.queued
	for p.written < target {
		ch := p.progress
		p.wmu.Unlock()

		select {
		case <-ch:
		case <-p.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

		p.wmu.Lock()
	}
	p.wmu.Unlock()
	return nil
}
