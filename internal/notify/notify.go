package notify

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
)

// Channel identifies a delivery mechanism.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Target is one delivery destination. Carrier is only used by the sms channel.
type Target struct {
	Channel Channel `json:"channel"`
	Address string  `json:"address"`
	Carrier string  `json:"carrier,omitempty"`
}

// Result is the per-channel outcome of a delivery attempt. A failed channel
// never fails the job that produced the transcript.
type Result struct {
	Channel Channel `json:"channel"`
	Address string  `json:"address"`
	OK      bool    `json:"ok"`
	Error   string  `json:"error,omitempty"`
}

// Message is a formatted transcript ready for delivery.
type Message struct {
	Subject string
	Body    string
	Short   string // condensed form for length-limited channels
}

// Sender delivers a message to a single target over one channel.
type Sender interface {
	Send(ctx context.Context, target Target, msg Message) error
	Name() Channel
}

// Dispatcher fans a transcript out to all requested channels. Channels fail
// independently; there is no rollback across channels.
type Dispatcher struct {
	senders map[Channel]Sender
}

func NewDispatcher(senders ...Sender) *Dispatcher {
	d := &Dispatcher{senders: make(map[Channel]Sender)}
	for _, s := range senders {
		d.senders[s.Name()] = s
		log.Printf("[notify] registered %s channel", s.Name())
	}
	return d
}

// Channels returns the configured channel names in stable order.
func (d *Dispatcher) Channels() []Channel {
	names := make([]Channel, 0, len(d.senders))
	for name := range d.senders {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Dispatch sends msg to every target concurrently and collects one Result per
// target, in input order.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message, targets []Target) []Result {
	results := make([]Result, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target Target) {
			defer wg.Done()
			results[i] = d.send(ctx, msg, target)
		}(i, target)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) send(ctx context.Context, msg Message, target Target) Result {
	res := Result{Channel: target.Channel, Address: target.Address}

	sender, ok := d.senders[target.Channel]
	if !ok {
		res.Error = fmt.Sprintf("channel %s not configured", target.Channel)
		return res
	}

	if err := sender.Send(ctx, target, msg); err != nil {
		log.Printf("[notify] %s delivery to %s failed: %v", target.Channel, target.Address, err)
		res.Error = err.Error()
		return res
	}

	res.OK = true
	return res
}
