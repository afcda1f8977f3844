package globalplatform

// SCP02Keys holds the static or session encryption and MAC keys of an SCP02
// channel.
type SCP02Keys struct {
	enc []byte
	mac []byte
}

func NewSCP02Keys(enc, mac []byte) *SCP02Keys {
	return &SCP02Keys{
		enc: enc,
		mac: mac,
	}
}

func (k *SCP02Keys) Enc() []byte {
	return k.enc
}

func (k *SCP02Keys) Mac() []byte {
	return k.mac
}
