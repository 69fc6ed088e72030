package midi

import (
	"strings"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"jamseq/config"
	"jamseq/debug"
)

// Output delivers messages for instruments
type Output interface {
	// Channel returns the 0-based MIDI channel of an instrument
	Channel(instrumentID string) uint8
	Send(instrumentID string, msg gomidi.Message) error
}

// scanTimeout bounds port enumeration (CoreMIDI can hang)
const scanTimeout = 3 * time.Second

// Outputs routes instruments to MIDI output ports, opening ports lazily
type Outputs struct {
	cfg config.OutputConfig

	senders   map[string]func(gomidi.Message) error
	sendersMu sync.RWMutex
}

// NewOutputs creates a router for the given output config
func NewOutputs(cfg config.OutputConfig) *Outputs {
	return &Outputs{
		cfg:     cfg,
		senders: make(map[string]func(gomidi.Message) error),
	}
}

// Channel returns the configured channel of an instrument (1 if unset)
func (o *Outputs) Channel(instrumentID string) uint8 {
	if ch, ok := o.cfg.Channels[instrumentID]; ok && ch >= 1 && ch <= 16 {
		return ch - 1
	}
	return 0
}

// Send writes msg to the default port
func (o *Outputs) Send(instrumentID string, msg gomidi.Message) error {
	sender, err := o.getSender(o.cfg.PortName)
	if err != nil {
		return err
	}
	debug.Log("midi", "inst=%s %s", instrumentID, msg)
	return sender(msg)
}

// getSender returns a sender for the given port name, lazily opening it
func (o *Outputs) getSender(portName string) (func(gomidi.Message) error, error) {
	o.sendersMu.RLock()
	if sender, ok := o.senders[portName]; ok {
		o.sendersMu.RUnlock()
		return sender, nil
	}
	o.sendersMu.RUnlock()

	o.sendersMu.Lock()
	defer o.sendersMu.Unlock()

	// Double-check after acquiring write lock
	if sender, ok := o.senders[portName]; ok {
		return sender, nil
	}

	ports, err := outPorts()
	if err != nil {
		return nil, err
	}
	port, ok := matchPort(ports, portName)
	if !ok {
		return nil, fault.New("no MIDI output matches "+portName, fmsg.With("opening MIDI output"))
	}
	sender, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("opening MIDI output "+port.String()))
	}
	o.senders[portName] = sender
	debug.Log("midi", "opened output %q", port.String())
	return sender, nil
}

// matchPort finds a port by exact name, then by case-insensitive substring.
// An empty name picks the first port.
func matchPort(ports []drivers.Out, name string) (drivers.Out, bool) {
	if len(ports) == 0 {
		return nil, false
	}
	if name == "" {
		return ports[0], true
	}
	for _, p := range ports {
		if p.String() == name {
			return p, true
		}
	}
	lower := strings.ToLower(name)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), lower) {
			return p, true
		}
	}
	return nil, false
}

// outPorts enumerates output ports with a timeout
func outPorts() ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case ports := <-ch:
		return ports, nil
	case <-time.After(scanTimeout):
		return nil, fault.New("MIDI port scan timed out", fmsg.With("listing MIDI outputs"))
	}
}

// OutPortNames lists the available output port names
func OutPortNames() ([]string, error) {
	ports, err := outPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names, nil
}

// Close releases the MIDI driver
func (o *Outputs) Close() {
	o.sendersMu.Lock()
	o.senders = make(map[string]func(gomidi.Message) error)
	o.sendersMu.Unlock()
	gomidi.CloseDriver()
}
