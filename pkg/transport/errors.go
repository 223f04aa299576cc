package transport

import "errors"

// errDroppedPacket is FlakyLink's internal signal that a simulated radio
// drop occurred; it never escapes SendMessage, which retries on it.
var errDroppedPacket = errors.New("transport: simulated radio drop")
