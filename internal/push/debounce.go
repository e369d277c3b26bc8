package push

import (
	"context"
	"time"
)

// Debounce coalesces bursts from in. The first message for a key opens a
// window; later messages for the same key inside the window replace it, and
// the latest one per key is emitted when the window closes. A non-positive
// window passes messages through unchanged. The returned channel closes when
// in closes or ctx is done.
func Debounce(ctx context.Context, in <-chan Message, window time.Duration) <-chan Message {
	out := make(chan Message, subscriberBuffer)
	if window <= 0 {
		go func() {
			defer close(out)
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-in:
					if !ok {
						return
					}
					select {
					case out <- msg:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
		return out
	}

	go func() {
		defer close(out)
		pending := make(map[string]Message)
		var order []string
		var timer *time.Timer
		var fire <-chan time.Time

		flush := func() bool {
			for _, key := range order {
				select {
				case out <- pending[key]:
				case <-ctx.Done():
					return false
				}
			}
			clear(pending)
			order = order[:0]
			fire = nil
			return true
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case msg, ok := <-in:
				if !ok {
					if timer != nil {
						timer.Stop()
					}
					flush()
					return
				}
				key := msg.coalesceKey()
				if _, seen := pending[key]; !seen {
					order = append(order, key)
				}
				pending[key] = msg
				if fire == nil {
					timer = time.NewTimer(window)
					fire = timer.C
				}
			case <-fire:
				if !flush() {
					return
				}
			}
		}
	}()
	return out
}
