package gflood

// Wire layout of the in-band header. Byte 0 packs a 3-bit protocol magic,
// the sync flag, and a 4-bit transmission bound; byte 1 carries the relay
// counter and is present whenever the sync flag or the always-relay-count
// option is set.
const (
	headerMagicMask uint8 = 0xe0
	headerSyncMask  uint8 = 0x10
	headerNTxMask   uint8 = 0x0f

	// HeaderMagic identifies flood packets on the wire.
	// Only the top three bits are significant.
	HeaderMagic uint8 = 0xa0

	// MinHeaderLen and MaxHeaderLen bound the encoded header size.
	MinHeaderLen = 1
	MaxHeaderLen = 2
)

// UnknownNTxMax and UnknownPayloadLen are the not-yet-learned sentinels: a
// receiver may start a flood without knowing the transmission bound or the
// payload length, filling them in from the first valid packet it hears.
const (
	UnknownNTxMax     uint8 = 0
	UnknownPayloadLen uint8 = 0
)

// Header is the decoded in-band flood header.
type Header struct {
	// Sync marks a flood that distributes a reference time.
	// It forces the relay counter onto the wire.
	Sync bool

	// NTxMax bounds how many times each node transmits the packet.
	// UnknownNTxMax means unbounded; only the low four bits travel.
	NTxMax uint8

	// RelayCnt counts the slots a packet has traveled from the initiator.
	// It is only meaningful when carried on the wire.
	RelayCnt uint8
}

// WireLen reports the encoded length of h: two bytes when the relay counter
// travels (sync enabled, or forced by alwaysRelayCnt), one otherwise.
func (h Header) WireLen(alwaysRelayCnt bool) uint8 {
	if h.Sync || alwaysRelayCnt {
		return 2
	}
	return 1
}

// AppendWire appends the encoded header to dst and returns the extended
// slice.
func (h Header) AppendWire(dst []byte, alwaysRelayCnt bool) []byte {
	b0 := HeaderMagic | h.NTxMax&headerNTxMask
	if h.Sync {
		b0 |= headerSyncMask
	}
	dst = append(dst, b0)
	if h.Sync || alwaysRelayCnt {
		dst = append(dst, h.RelayCnt)
	}
	return dst
}

// ParseHeader decodes the leading bytes of a frame. It reports false when
// raw is empty or carries a foreign magic. The relay counter is taken from
// the second byte only when withRelayCnt says the local session expects it
// there; otherwise it decodes as zero.
func ParseHeader(raw []byte, withRelayCnt bool) (Header, bool) {
	if len(raw) == 0 || raw[0]&headerMagicMask != HeaderMagic {
		return Header{}, false
	}

	h := Header{
		Sync:   raw[0]&headerSyncMask != 0,
		NTxMax: raw[0] & headerNTxMask,
	}
	if withRelayCnt && len(raw) >= 2 {
		h.RelayCnt = raw[1]
	}
	return h, true
}

// processHeader runs the header learner/validator over the leading bytes of
// a frame: rcvd frames must look like part of the current flood, and once
// crcOK confirms a frame, its header fixes every field the session had left
// open. It reports whether the frame is still acceptable.
//
// The pre-CRC and post-CRC invocations for one frame share the headerOK
// latch, so the field checks run at most once per reception attempt.
func (e *Engine) processHeader(raw []byte, pktLen uint8, crcOK bool) bool {
	rcvd, ok := ParseHeader(raw, e.withRelayCnt())
	if !ok {
		return false
	}

	hdrLen := e.headerLen()

	if !e.s.headerOK {
		if rcvd.Sync != e.s.hdr.Sync {
			// The sync flag is fixed at Start and never learned.
			return false
		}
		if e.s.hdr.NTxMax != UnknownNTxMax && e.s.hdr.NTxMax != rcvd.NTxMax {
			return false
		}
		if e.s.payloadLen != UnknownPayloadLen && e.s.payloadLen != pktLen-hdrLen {
			return false
		}
		if pktLen < hdrLen || pktLen > e.maxPacketLen() {
			// The radio's declared length has been seen to be unreliable.
			return false
		}
		e.s.headerOK = true
	}

	if crcOK {
		if pktLen < hdrLen || pktLen > e.maxPacketLen() {
			return false
		}
		// The frame is whole and checksummed: latch the header, fixing any
		// fields that were unknown, and size future header interrupts to it.
		e.s.hdr = rcvd
		e.s.payloadLen = pktLen - hdrLen
		e.radio.SetHeaderLenRX(hdrLen)
	}

	return true
}

// withRelayCnt reports whether the relay counter travels on the wire for
// the current session.
func (e *Engine) withRelayCnt() bool {
	return e.cfg.AlwaysRelayCnt || e.s.hdr.Sync
}

// headerLen reports the session's wire header length.
func (e *Engine) headerLen() uint8 {
	return e.s.hdr.WireLen(e.cfg.AlwaysRelayCnt)
}

// maxPacketLen bounds the total over-the-air frame length this node
// accepts.
func (e *Engine) maxPacketLen() uint8 {
	return e.cfg.MaxPayloadLen + MaxHeaderLen
}
