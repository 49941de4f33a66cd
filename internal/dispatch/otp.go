package dispatch

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// NewOTP draws a 4-digit code uniformly from 1000-9999.
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(1000+n.Int64(), 10), nil
}

func otpMatches(stored *string, presented string) bool {
	if stored == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(presented)) == 1
}

const limiterIdle = 10 * time.Minute

// AttemptLimiter caps OTP submissions per order with a token bucket that
// refills perMinute tokens a minute.
type AttemptLimiter struct {
	perMinute int

	mu      sync.Mutex
	buckets map[int64]*bucket
	now     func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewAttemptLimiter(perMinute int) *AttemptLimiter {
	return &AttemptLimiter{perMinute: perMinute, buckets: make(map[int64]*bucket), now: time.Now}
}

// Allow consumes one attempt for orderID. A zero or negative limit disables
// limiting.
func (l *AttemptLimiter) Allow(orderID int64) bool {
	if l == nil || l.perMinute <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[orderID]
	if !ok {
		l.prune(now)
		b = &bucket{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
		l.buckets[orderID] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Forget drops the bucket once an order's code is spent or replaced.
func (l *AttemptLimiter) Forget(orderID int64) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.buckets, orderID)
	l.mu.Unlock()
}

func (l *AttemptLimiter) prune(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.seen) > limiterIdle {
			delete(l.buckets, id)
		}
	}
}
