package client

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// FingerprintManager hands out User-Agent strings and browser-like headers
// so a scripted submission looks like the page's own fetch.
type FingerprintManager struct {
	userAgents []string
	mu         sync.Mutex
	random     *rand.Rand
}

// NewFingerprintManager creates a FingerprintManager seeded with a single
// desktop Chrome User-Agent.
func NewFingerprintManager() *FingerprintManager {
	return &FingerprintManager{
		userAgents: []string{defaultUserAgent},
		random:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// LoadUserAgents replaces the pool with the non-empty lines of path.
// An empty file leaves the current pool in place.
func (fm *FingerprintManager) LoadUserAgents(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open user agents: %w", err)
	}
	defer file.Close()

	var loaded []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			loaded = append(loaded, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read user agents: %w", err)
	}

	if len(loaded) > 0 {
		fm.mu.Lock()
		fm.userAgents = loaded
		fm.mu.Unlock()
	}
	return len(loaded), nil
}

// UserAgent returns a random User-Agent from the pool.
func (fm *FingerprintManager) UserAgent() string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.userAgents[fm.random.Intn(len(fm.userAgents))]
}

// Headers returns the headers a browser fetch() from the booking page sends
// besides Content-Type.
func (fm *FingerprintManager) Headers() map[string]string {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	languages := []string{"en-US,en;q=0.9", "en-GB,en;q=0.9", "en-IN,en;q=0.9,hi;q=0.8"}
	return map[string]string{
		"Accept":          "*/*",
		"Accept-Language": languages[fm.random.Intn(len(languages))],
		"Sec-Fetch-Dest":  "empty",
		"Sec-Fetch-Mode":  "cors",
		"Sec-Fetch-Site":  "same-origin",
	}
}
