package frames

import "github.com/rs/zerolog"

// Coordinator is the background context. It answers getTabTitle from the
// sender's tab metadata and routes iframe progress to the top frame.
type Coordinator struct {
	bus *Bus
	log zerolog.Logger
}

// NewCoordinator installs a coordinator as bus's background handler.
func NewCoordinator(bus *Bus, log zerolog.Logger) *Coordinator {
	c := &Coordinator{bus: bus, log: log}
	bus.SetBackground(c.Handle)
	return c
}

func (c *Coordinator) Handle(msg Message, from Sender, respond Respond) {
	switch msg.Action {
	case ActionGetTabTitle:
		respond(TabTitle{Title: from.Tab.Title, URL: from.Tab.URL})

	case ActionSyncVideoProgress:
		if from.Tab.ID <= 0 {
			return
		}
		top := TopFrame
		c.bus.SendTab(from.Tab.ID, Message{
			Action:   ActionTriggerAutoUpdate,
			Time:     msg.Time,
			Duration: msg.Duration,
		}, &top, nil)
		c.log.Debug().Int("tab", from.Tab.ID).Int("frame", from.FrameID).Float64("time", msg.Time).Msg("progress forwarded to top frame")
	}
}
