package jobs

import (
	"context"
	"sync"

	"renamewiki-system/internal/services"
)

// AfterRenameWikiHook вызывается после успешного переименования.
// filePath указывает на файл с выводом скрипта переименования.
type AfterRenameWikiHook func(ctx context.Context, filePath string, m *services.RequestManager) error

// GetFileHook может подменить путь к файлу вывода до запуска скрипта.
type GetFileHook func(filePath *string, m *services.RequestManager)

// HookRegistry хранит расширения процесса переименования.
type HookRegistry struct {
	mu              sync.RWMutex
	afterRenameWiki []AfterRenameWikiHook
	getFile         []GetFileHook
}

func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

func (h *HookRegistry) OnAfterRenameWiki(hook AfterRenameWikiHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterRenameWiki = append(h.afterRenameWiki, hook)
}

func (h *HookRegistry) OnGetFile(hook GetFileHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.getFile = append(h.getFile, hook)
}

func (h *HookRegistry) RunAfterRenameWiki(ctx context.Context, filePath string, m *services.RequestManager) error {
	h.mu.RLock()
	hooks := append([]AfterRenameWikiHook(nil), h.afterRenameWiki...)
	h.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, filePath, m); err != nil {
			return err
		}
	}
	return nil
}

func (h *HookRegistry) RunGetFile(filePath *string, m *services.RequestManager) {
	h.mu.RLock()
	hooks := append([]GetFileHook(nil), h.getFile...)
	h.mu.RUnlock()

	for _, hook := range hooks {
		hook(filePath, m)
	}
}
