package realtime

import (
	"sync"
	"time"
)

// Countdown — клиентский обратный отсчёт, ведомый серверным timestamp'ом.
// Каждый тик он заново считает remaining от авторитетного closes_at, а не
// декрементирует локальный счётчик — так админ и голосующие не расходятся.
// Компонент чисто презентационный: никогда не используется для приёма или
// отклонения голоса.
type Countdown struct {
	mu       sync.Mutex
	closesAt *time.Time
	fired    bool
	onZero   func()
	interval time.Duration
	now      func() time.Time
}

// NewCountdown создаёт отсчёт с тиком раз в секунду. onZero вызывается ровно
// один раз, когда remaining впервые достигает нуля; после Resync на новый
// дедлайн может выстрелить снова.
func NewCountdown(onZero func()) *Countdown {
	return &Countdown{
		onZero:   onZero,
		interval: time.Second,
		now:      time.Now,
	}
}

// Resync принимает свежий серверный дедлайн из push-уведомления.
// nil означает "дедлайна нет" (фаза без таймера).
func (c *Countdown) Resync(closesAt *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closesAt = closesAt
	c.fired = false
}

// Remaining возвращает max(0, closes_at - now) на текущий момент.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Countdown) remainingLocked() time.Duration {
	if c.closesAt == nil {
		return 0
	}
	remaining := c.closesAt.Sub(c.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Run тикает до отмены контекста. Выделен в горутину вызывающим.
func (c *Countdown) Run(done <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Countdown) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closesAt == nil || c.fired {
		return
	}
	if c.remainingLocked() == 0 {
		c.fired = true
		if c.onZero != nil {
			// Колбэк под мьютексом: он презентационный и обязан быть коротким.
			c.onZero()
		}
	}
}
