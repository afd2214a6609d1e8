/*
Package events provides an in-memory event broker for lockc's container
lifecycle notifications.

The control-plane maintainer is the sole publisher: every successfully
applied add/delete container command is published as a container.created
or container.deleted Event. TypePolicyChanged and TypeHookDenied are
defined, but nothing in lockc publishes them. Consumers (such as lockcd's
own container event logger) subscribe independently without the
maintainer knowing or caring whether anyone is listening.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&events.Event{
		Type:        events.TypeContainerCreated,
		ContainerID: id.String(),
		PolicyLevel: level.String(),
	})

	for ev := range sub {
		log.Printf("%s: %s", ev.Type, ev.ContainerID)
	}

A full subscriber buffer drops new events rather than blocking the
broadcast loop — lockcd's own correctness never depends on an event
being observed.
*/
package events
