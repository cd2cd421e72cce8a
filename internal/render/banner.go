package render

import (
	"fmt"
	"sync"
	"time"
)

// Banner holds the most recent transport or decode notice for the
// status line. A notice degrades the view, it never stops it.
type Banner struct {
	mu      sync.Mutex
	msg     string
	at      time.Time
	version uint64
}

func NewBanner() *Banner {
	return &Banner{}
}

// Set replaces the current notice. Later notices win.
func (b *Banner) Set(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msg = msg
	b.at = time.Now()
	b.version++
}

func (b *Banner) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.msg == "" {
		return
	}
	b.msg = ""
	b.version++
}

// Line returns the formatted status line, or "" when no notice is set.
func (b *Banner) Line() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.msg == "" {
		return ""
	}
	return fmt.Sprintf("! %s (%s)", b.msg, b.at.Format("15:04:05"))
}

func (b *Banner) Version() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}
