package board

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/medboard/medboard/internal/bus"
)

// Run shows the board until the user quits or ctx is cancelled. Inbound
// messages are forwarded into the UI loop through the messenger callback.
func Run(ctx context.Context, messenger Messenger, outlets Outlets, opts Options) error {
	p := tea.NewProgram(
		newModel(ctx, messenger, outlets, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	messenger.SetMessageReceivedCallback(func(msg bus.InboundMessage) {
		p.Send(receivedMsg(msg))
	})
	defer messenger.SetMessageReceivedCallback(nil)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
