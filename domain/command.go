package domain

// Command is an inbound bot command routed to the subscription manager.
type Command interface {
	From() Subscriber
}

type SubscribeCommand struct {
	Subscriber Subscriber
	Identifier string // raw channel identifier as typed by the user
}

func (c SubscribeCommand) From() Subscriber { return c.Subscriber }

type UnsubscribeCommand struct {
	Subscriber Subscriber
	Identifier string
}

func (c UnsubscribeCommand) From() Subscriber { return c.Subscriber }

type ListCommand struct {
	Subscriber Subscriber
}

func (c ListCommand) From() Subscriber { return c.Subscriber }
