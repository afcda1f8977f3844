package transport

import "errors"

// ErrNoScriptedResponse is returned by the mock when it runs out of
// scripted responses.
var ErrNoScriptedResponse = errors.New("no scripted response left")

// MockReaderName is the reader the mock transport pretends to expose.
const MockReaderName = "Mock Reader 00 00"

// Mock is a scripted Transport. Tests queue raw responses with AddResponse
// and inspect the APDUs the client sent through TransmitLog.
type Mock struct {
	responses   [][]byte
	transmitLog [][]byte
	transmitErr error
	connected   bool
}

func NewMock() *Mock {
	return &Mock{}
}

// AddResponse appends a raw response, status word included, to the script.
func (m *Mock) AddResponse(resp []byte) {
	m.responses = append(m.responses, resp)
}

// FailNextTransmit makes the next Transmit return err instead of consuming
// the script.
func (m *Mock) FailNextTransmit(err error) {
	m.transmitErr = err
}

// TransmitLog returns every APDU transmitted so far.
func (m *Mock) TransmitLog() [][]byte {
	return m.transmitLog
}

// LastTransmit returns the most recent APDU, or nil when nothing was sent.
func (m *Mock) LastTransmit() []byte {
	if len(m.transmitLog) == 0 {
		return nil
	}

	return m.transmitLog[len(m.transmitLog)-1]
}

func (m *Mock) ListReaders() ([]string, error) {
	return []string{MockReaderName}, nil
}

func (m *Mock) Connect(reader string) error {
	m.connected = true
	return nil
}

func (m *Mock) Transmit(data []byte) ([]byte, error) {
	if !m.connected {
		return nil, ErrNotConnected
	}

	if m.transmitErr != nil {
		err := m.transmitErr
		m.transmitErr = nil
		return nil, err
	}

	m.transmitLog = append(m.transmitLog, data)

	if len(m.responses) == 0 {
		return nil, ErrNoScriptedResponse
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]

	if len(resp) < 2 {
		return nil, ErrResponseTooShort
	}

	return resp, nil
}

func (m *Mock) Close() error {
	m.connected = false
	return nil
}
