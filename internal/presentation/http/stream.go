package httppresentation

import (
	"context"
	"net/http"
	"time"

	domainAuth "github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/auth"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/domain/cartsignal"
	"github.com/Zhima-Mochi/minishop-storefront/app/internal/observability"

	"github.com/gorilla/websocket"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamReadTimeout  = 60 * time.Second
	streamPingInterval = 30 * time.Second
)

// handleCartCountStream pushes the badge count once on connect and again after every
// signal change of the caller's guest session or user.
func (h *Handler) handleCartCountStream(w http.ResponseWriter, r *http.Request) {
	id := domainAuth.FromContext(r.Context())
	log := h.logger(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the error response
		log.Warn("ws_upgrade_failed", observability.F("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	guestCh, cancelGuest := h.svc.Signals.Subscribe(cartsignal.GuestKey(id.GuestID))
	defer cancelGuest()
	var userCh <-chan cartsignal.Snapshot
	if id.Authenticated {
		ch, cancelUser := h.svc.Signals.Subscribe(cartsignal.UserKey(id.UserID))
		defer cancelUser()
		userCh = ch
	}

	// the reader only exists to notice the client going away and to extend the deadline on pongs
	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() bool {
		res := h.svc.CartCount.Count(ctx, id)
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(toCountResponse(res)); err != nil {
			log.Debug("ws_write_failed", observability.F("error", err.Error()))
			return false
		}
		return true
	}
	if !send() {
		return
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	sent := 0
	defer func() {
		log.Info("ws_stream_closed", observability.F("messages", sent+1))
	}()
	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-guestCh:
		case <-userCh:
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}
		if !send() {
			return
		}
		sent++
	}
}
