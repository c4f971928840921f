// Package message defines the typed viewer-protocol messages and the
// compiled-in registry that maps message ids to them.
//
// Every message type has exactly one Descriptor carrying its id, name,
// constructor and delivery metadata: the trust rule for inbound traffic,
// whether it is sent reliably, whether its body may be zero-coded and
// whether it can be delivered over the HTTP event queue instead of UDP.
//
// The registry is built once by Default and never changes afterwards:
//
//	desc, err := message.Default().Resolve(pkt.ID)
//	if err != nil {
//	    // drop the packet
//	}
//	m := desc.New()
//	if err := message.Decode(m, pkt.Body); err != nil {
//	    // drop the packet
//	}
package message
