// Package circuit holds per-connection reliability state and the
// connection table.
//
// A Circuit numbers outbound packets, remembers reliable ones until they
// are acknowledged, piggybacks pending acks on outgoing datagrams,
// suppresses duplicate inbound packets and hands out overdue packets for
// retransmission. All of this state is guarded by one mutex per circuit,
// so any goroutine may send on a circuit.
//
// Each circuit also owns a bounded work queue drained by a single worker
// goroutine. The receive path queues decoded messages there, which keeps
// per-circuit delivery in receive order while circuits run in parallel.
//
// The Table is the only owner of circuits. Table.Remove closes a circuit
// exactly once; later calls report false and do nothing.
package circuit
