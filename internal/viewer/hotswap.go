package viewer

import (
	"errors"
	"fmt"

	"remoteplay/native/internal/domain"
)

var errStaleAcquisition = errors.New("device acquisition superseded")

// swapSlot is the sender negotiated for one local media kind together with
// the source currently feeding it.
type swapSlot struct {
	sender      domain.Sender
	placeholder domain.MediaSource
	active      domain.MediaSource
	gen         uint64
}

// hotSwap lets devices be granted and revoked after negotiation by
// replacing the producer behind a fixed sender.
type hotSwap struct {
	peer    domain.Peer
	slots   map[domain.MediaKind]*swapSlot
	stopped bool
}

func newHotSwap(peer domain.Peer) *hotSwap {
	return &hotSwap{
		peer:  peer,
		slots: make(map[domain.MediaKind]*swapSlot),
	}
}

// attach binds a placeholder of kind to a sender. It runs once per kind,
// before the local description is created.
func (h *hotSwap) attach(kind domain.MediaKind, dir domain.Direction) error {
	if _, ok := h.slots[kind]; ok {
		return nil
	}
	placeholder, err := h.peer.NewPlaceholder(kind)
	if err != nil {
		return fmt.Errorf("create %s placeholder: %w", kind, err)
	}
	sender, err := h.peer.AttachSource(placeholder, dir)
	if err != nil {
		placeholder.Stop()
		return fmt.Errorf("attach %s placeholder: %w", kind, err)
	}
	h.slots[kind] = &swapSlot{sender: sender, placeholder: placeholder}
	return nil
}

func (h *hotSwap) has(kind domain.MediaKind) bool {
	_, ok := h.slots[kind]
	return ok
}

// begin starts an acquisition for kind and returns its generation.
func (h *hotSwap) begin(kind domain.MediaKind) uint64 {
	slot := h.slots[kind]
	slot.gen++
	return slot.gen
}

// grant swaps src in if gen is still current. A stale src is stopped.
func (h *hotSwap) grant(kind domain.MediaKind, gen uint64, src domain.MediaSource) error {
	slot, ok := h.slots[kind]
	if !ok || h.stopped || slot.gen != gen {
		src.Stop()
		return errStaleAcquisition
	}
	if err := slot.sender.Replace(src); err != nil {
		src.Stop()
		return err
	}
	if slot.active != nil {
		slot.active.Stop()
	}
	slot.active = src
	return nil
}

// revoke puts the placeholder back and stops the real source. Pending
// acquisitions for kind become stale.
func (h *hotSwap) revoke(kind domain.MediaKind) error {
	slot, ok := h.slots[kind]
	if !ok || h.stopped {
		return nil
	}
	slot.gen++
	if slot.active == nil {
		return nil
	}
	err := slot.sender.Replace(slot.placeholder)
	slot.active.Stop()
	slot.active = nil
	return err
}

// stop releases every source. It is idempotent.
func (h *hotSwap) stop() {
	if h.stopped {
		return
	}
	h.stopped = true
	for _, slot := range h.slots {
		slot.gen++
		if slot.active != nil {
			slot.active.Stop()
			slot.active = nil
		}
		slot.placeholder.Stop()
	}
}
