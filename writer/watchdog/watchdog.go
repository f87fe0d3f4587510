package watchdog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/metrico/qryn-ai/writer/utils/logger"
)

const checkInterval = 5 * time.Second

// Pinger is the dependency the watchdog keeps an eye on.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	mtx       sync.Mutex
	target    Pinger
	lastCheck time.Time
	lastErr   error
)

// Init starts checking p every 5 seconds until the returned stop is called.
func Init(p Pinger) (stop func()) {
	mtx.Lock()
	target = p
	lastCheck = time.Time{}
	lastErr = nil
	mtx.Unlock()

	timer := time.NewTicker(checkInterval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-timer.C:
			}
			if err := Check(); err != nil {
				logger.Error(fmt.Sprintf("[WD001] merge store check failed: %v", err))
				continue
			}
			logger.Info("--- WATCHDOG REPORT: merge store is OK ---")
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			timer.Stop()
			close(done)
		})
	}
}

func Check() error {
	mtx.Lock()
	p := target
	mtx.Unlock()
	var err error
	if p != nil {
		ctx, cancel := context.WithTimeout(context.Background(), checkInterval)
		err = p.Ping(ctx)
		cancel()
	}
	mtx.Lock()
	defer mtx.Unlock()
	lastCheck = time.Now()
	lastErr = err
	return err
}

// FastCheck returns the last result if it is fresher than the check interval.
func FastCheck() error {
	mtx.Lock()
	if !lastCheck.IsZero() && lastCheck.Add(checkInterval).After(time.Now()) {
		err := lastErr
		mtx.Unlock()
		return err
	}
	mtx.Unlock()
	return Check()
}
