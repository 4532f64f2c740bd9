package client

import (
	"bufio"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ProxyPool holds SOCKS5 proxies loaded from a file and hands them out
// round-robin.
type ProxyPool struct {
	proxies      []string
	currentIndex int
	mu           sync.Mutex
	random       *rand.Rand

	// reused until RotateSticky
	stickyURL string
}

func NewProxyPool() *ProxyPool {
	return &ProxyPool{
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// LoadProxies loads proxies from a file (one per line) and shuffles them.
// Format: socks5://ip:port or socks5://user:pass@ip:port. Lines that do not
// parse or lack a host are skipped.
func (pp *ProxyPool) LoadProxies(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open proxies: %w", err)
	}
	defer file.Close()

	var loaded []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if u, err := url.Parse(line); err == nil && u.Host != "" {
			loaded = append(loaded, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read proxies: %w", err)
	}

	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.proxies = loaded
	pp.currentIndex = 0
	pp.stickyURL = ""
	pp.random.Shuffle(len(pp.proxies), func(i, j int) {
		pp.proxies[i], pp.proxies[j] = pp.proxies[j], pp.proxies[i]
	})
	return len(loaded), nil
}

// Len returns the number of loaded proxies.
func (pp *ProxyPool) Len() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.proxies)
}

func (pp *ProxyPool) nextLocked() string {
	if len(pp.proxies) == 0 {
		return ""
	}
	p := pp.proxies[pp.currentIndex]
	pp.currentIndex = (pp.currentIndex + 1) % len(pp.proxies)
	return p
}

// Sticky returns the same proxy until RotateSticky is called, so the page
// fetch and the booking POST leave from one address.
func (pp *ProxyPool) Sticky() string {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.stickyURL == "" {
		pp.stickyURL = pp.nextLocked()
	}
	return pp.stickyURL
}

// RotateSticky drops the sticky proxy; the next Sticky call moves on to the
// following one.
func (pp *ProxyPool) RotateSticky() {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	pp.stickyURL = ""
}

// Describe returns a label for logs with credentials stripped.
func Describe(proxyURL string) string {
	if proxyURL == "" {
		return "DIRECT (no proxy)"
	}
	if u, err := url.Parse(proxyURL); err == nil && u.Host != "" {
		return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	return "proxy (unparseable)"
}
