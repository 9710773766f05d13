package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"crypto_dash/internal/domain"
)

// Supported UI themes.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Preferences holds persisted presentation settings.
type Preferences struct {
	mu    sync.Mutex
	store domain.KeyValueStore
	theme string
}

// NewPreferences creates preferences using defaultTheme until Load or SetTheme.
func NewPreferences(store domain.KeyValueStore, defaultTheme string) *Preferences {
	if !validTheme(defaultTheme) {
		defaultTheme = ThemeDark
	}
	return &Preferences{store: store, theme: defaultTheme}
}

func (p *Preferences) Load(ctx context.Context) error {
	var theme string
	found, err := p.store.Get(ctx, domain.KeyTheme, &theme)
	if err != nil {
		return fmt.Errorf("load theme: %w", err)
	}
	if found && validTheme(theme) {
		p.mu.Lock()
		p.theme = theme
		p.mu.Unlock()
	}
	return nil
}

func (p *Preferences) Theme() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.theme
}

func (p *Preferences) SetTheme(ctx context.Context, theme string) error {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if !validTheme(theme) {
		return &domain.ValidationError{Field: "theme", Reason: "must be dark or light"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.Set(ctx, domain.KeyTheme, theme); err != nil {
		return fmt.Errorf("persist theme: %w", err)
	}
	p.theme = theme
	return nil
}

func validTheme(t string) bool {
	return t == ThemeDark || t == ThemeLight
}
