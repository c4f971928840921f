package protocol

// Size limits. Decoders never allocate past these, whatever a length or
// count field claims.
const (
	// MaxPacketSize is the largest datagram accepted or produced.
	MaxPacketSize = 4096

	// MTU is the preferred upper bound for outbound datagrams. Senders that
	// batch content (terrain, name replies) size their batches to fit it.
	MTU = 1400

	// HeaderSize is the fixed part of the packet header:
	// flags, sequence number and extra-header length.
	HeaderSize = 6

	// MaxBodySize bounds a decoded body, after zero-code expansion.
	MaxBodySize = MaxPacketSize * 2

	// MaxGroupCount is the most blocks a repeated group can declare.
	MaxGroupCount = 255

	// MaxAppendedAcks is the most acknowledgments one datagram can carry.
	MaxAppendedAcks = 255

	// MaxExtraHeader is the largest extra header the length byte can express.
	MaxExtraHeader = 255
)
