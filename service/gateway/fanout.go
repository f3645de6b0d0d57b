package gateway

import "hash/fnv"

// Fanout spreads one payload across many connection handles through a fixed
// worker pool, so a broadcast to a large target set cannot stall the caller.
// Each handle is pinned to one worker by conn id: sequential broadcasts
// reaching the same handle are enqueued in order, which is what gives
// per-connection delivery ordering.

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

type Fanout struct {
	workers []chan fanoutJob
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{workers: make([]chan fanoutJob, workers)}
	for i := range f.workers {
		ch := make(chan fanoutJob, queue)
		f.workers[i] = ch
		go func() {
			for job := range ch {
				for _, c := range job.conns {
					// Slow or mid-disconnect clients are skipped, not retried.
					c.Deliver(job.payload)
				}
			}
		}()
	}
	return f
}

func (f *Fanout) workerFor(connID string) chan fanoutJob {
	h := fnv.New32a()
	_, _ = h.Write([]byte(connID))
	return f.workers[h.Sum32()%uint32(len(f.workers))]
}

// Broadcast queues a delivery job, partitioned by worker. Empty target sets
// and payloads are no-ops.
func (f *Fanout) Broadcast(conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	parts := make(map[chan fanoutJob][]*Client)
	for _, c := range conns {
		ch := f.workerFor(c.ConnID)
		parts[ch] = append(parts[ch], c)
	}
	for ch, part := range parts {
		ch <- fanoutJob{conns: part, payload: payload}
	}
}

// Close stops the workers once queued jobs drain.
func (f *Fanout) Close() {
	for _, ch := range f.workers {
		close(ch)
	}
}
