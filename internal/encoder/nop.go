package encoder

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Nop is a Controller for running without an encoder agent. It hands out
// handles and confirms teardown immediately; no media is ever produced.
type Nop struct {
	log *slog.Logger
}

// NewNop returns a Nop controller.
func NewNop(log *slog.Logger) *Nop {
	return &Nop{log: log}
}

// Begin implements Controller.Begin.
func (n *Nop) Begin(_ context.Context, timelineID string) (Handle, error) {
	h := Handle(uuid.NewString())
	n.log.Info("dry-run encoder begin", slog.String("timeline_id", timelineID), slog.String("handle", string(h)))
	return h, nil
}

// Reconfigure implements Controller.Reconfigure.
func (n *Nop) Reconfigure(_ context.Context, h Handle, destinationIDs []string) error {
	n.log.Info("dry-run encoder reconfigure", slog.String("handle", string(h)), slog.Any("destination_ids", destinationIDs))
	return nil
}

// End implements Controller.End.
func (n *Nop) End(_ context.Context, h Handle) error {
	n.log.Info("dry-run encoder end", slog.String("handle", string(h)))
	return nil
}

// AwaitStopped implements Controller.AwaitStopped.
func (n *Nop) AwaitStopped(context.Context, Handle) error {
	return nil
}
