package middleware

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/voicehome/internal/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type rateLimiter struct {
	bucket    map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
	mutex     sync.Mutex
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*rate.Limiter),
		rate:      reqRate,
		burstSize: burstSize,
	}
}

func (r *rateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	limiter, exists := r.bucket[ip]
	if !exists {
		limiter = rate.NewLimiter(r.rate, r.burstSize)
		r.bucket[ip] = limiter
	}
	return limiter
}

// RateLimiter limits requests per client IP with a token bucket.
// A non-positive rps disables limiting.
func RateLimiter(rps float64, burst int, log *logrus.Logger) fiber.Handler {
	if rps <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	if burst < 1 {
		burst = 1
	}

	limiter := newRateLimiter(rate.Limit(rps), burst)

	return func(c *fiber.Ctx) error {
		clientIP := c.IP()
		if !limiter.limiterFor(clientIP).Allow() {
			log.WithField("ip", clientIP).Warn("Too many requests")
			return types.NewCustomError(fiber.StatusTooManyRequests, "Too many requests", types.ErrorTypeRateLimit)
		}
		return c.Next()
	}
}
