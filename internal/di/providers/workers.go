package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/fishdan-plugins/jsonmaker/internal/config"
	"github.com/fishdan-plugins/jsonmaker/internal/logger"
	"github.com/fishdan-plugins/jsonmaker/internal/service"
)

// Per-account import pacing for the inbox.
const (
	inboxRateLimit = 2.0
	inboxBurst     = 5
)

// InboxHandle runs the import inbox in the background.
// Service is nil when the inbox is disabled.
type InboxHandle struct {
	*service.InboxService
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (h *InboxHandle) Shutdown() error {
	if h.InboxService == nil {
		return nil
	}
	h.cancel()
	<-h.done
	return nil
}

// ProvideInbox starts the inbox watcher when enabled.
func ProvideInbox(i do.Injector) (*InboxHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Inbox.Enabled {
		log.Info("Import inbox disabled by configuration")
		return &InboxHandle{}, nil
	}

	trees := do.MustInvoke[*service.TreeService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	svc := service.NewInboxService(trees, sseHandle.Manager, service.InboxOptions{
		Dir:         cfg.Inbox.Dir,
		SettleDelay: cfg.Inbox.SettleDelay,
		RateLimit:   inboxRateLimit,
		Burst:       inboxBurst,
	}, log.WithComponent("inbox").Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := svc.Run(ctx); err != nil {
			log.Error("Import inbox stopped", "error", err)
		}
	}()

	log.Info("Import inbox started", "dir", cfg.Inbox.Dir)

	return &InboxHandle{
		InboxService: svc,
		cancel:       cancel,
		done:         done,
	}, nil
}
