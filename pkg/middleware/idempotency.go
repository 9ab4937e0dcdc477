package middleware

import (
	"bytes"
	"net/http"
	"sync"
	"time"
)

// ReplayHeader marks a response served from the idempotency cache.
const ReplayHeader = "Idempotent-Replay"

type cachedResponse struct {
	status    int
	header    http.Header
	body      []byte
	expiresAt time.Time
}

// InMemoryIdempotencyStore keeps successful write responses per client key
// until their TTL passes. A background sweep drops expired entries.
type InMemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*cachedResponse
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewInMemoryIdempotencyStore(ttl time.Duration) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		entries: make(map[string]*cachedResponse),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *InMemoryIdempotencyStore) lookup(key string, now time.Time) (*cachedResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if now.After(entry.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return entry, true
}

func (s *InMemoryIdempotencyStore) remember(key string, entry *cachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.expiresAt = time.Now().Add(s.ttl)
	s.entries[key] = entry
}

func (s *InMemoryIdempotencyStore) sweep() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

func (s *InMemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency replays the stored response when a create, update or delete
// is retried with the same key on the same route. Only 2xx responses are
// stored, so a rejected booking can be retried after fixing the input.
func Idempotency(store *InMemoryIdempotencyStore, headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = "Idempotency-Key"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(headerName)
			if clientKey == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Method + " " + r.URL.Path + " " + clientKey

			if cached, ok := store.lookup(key, time.Now()); ok {
				for name, values := range cached.header {
					w.Header()[name] = append([]string(nil), values...)
				}
				w.Header().Set(ReplayHeader, "true")
				w.WriteHeader(cached.status)
				_, _ = w.Write(cached.body)
				return
			}

			rw := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			if rw.status < 200 || rw.status >= 300 {
				return
			}
			store.remember(key, &cachedResponse{
				status: rw.status,
				header: w.Header().Clone(),
				body:   append([]byte(nil), rw.body.Bytes()...),
			})
		})
	}
}
