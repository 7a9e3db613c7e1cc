package theme

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/bus"
)

// Theme is the UI color scheme preference.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// Parse validates a theme name.
func Parse(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case Light, Dark:
		return t, nil
	default:
		return "", fmt.Errorf("unknown theme %q (want light or dark)", s)
	}
}

// Persister stores the theme slot.
type Persister interface {
	LoadTheme() (string, bool, error)
	SaveTheme(string) error
}

// Manager owns the current theme.
type Manager struct {
	mu      sync.RWMutex
	current Theme
	store   Persister
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewManager loads the persisted theme, or detects one from the terminal environment
// when the slot is empty or unreadable. getenv is os.Getenv outside tests.
func NewManager(store Persister, b *bus.Bus, logger *zap.Logger, getenv func(string) string) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{store: store, bus: b, logger: logger}

	saved, ok, err := store.LoadTheme()
	if err != nil {
		logger.Warn("read theme slot", zap.Error(err))
	}
	if t, perr := Parse(saved); ok && perr == nil {
		m.current = t
	} else {
		m.current = Detect(getenv)
	}
	return m
}

// Detect guesses the terminal background from COLORFGBG ("fg;bg"). Defaults to light.
func Detect(getenv func(string) string) Theme {
	v := getenv("COLORFGBG")
	if v == "" {
		return Light
	}
	parts := strings.Split(v, ";")
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return Light
	}
	if bg == 7 || bg >= 9 {
		return Light
	}
	return Dark
}

func (m *Manager) Current() Theme {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Set switches the theme and persists it. The in-memory value changes even if
// persisting fails.
func (m *Manager) Set(t Theme) error {
	m.mu.Lock()
	m.current = t
	m.mu.Unlock()

	m.bus.Emit(bus.ThemeChanged, t)
	if err := m.store.SaveTheme(string(t)); err != nil {
		m.logger.Warn("persist theme", zap.String("theme", string(t)), zap.Error(err))
		return fmt.Errorf("persist theme: %w", err)
	}
	return nil
}

// Toggle flips between light and dark.
func (m *Manager) Toggle() (Theme, error) {
	next := Dark
	if m.Current() == Dark {
		next = Light
	}
	return next, m.Set(next)
}
