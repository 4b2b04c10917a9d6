package state

var chainHeadKey = []byte("chain/head")

// ChainHead tracks the height and block time of the last committed
// mutating call.
type ChainHead struct {
	Height uint64
	Time   uint64
}

// ChainHead returns the last committed head, zero-valued on a fresh database.
func (m *Manager) ChainHead() (ChainHead, error) {
	var head ChainHead
	if _, err := m.KVGet(chainHeadKey, &head); err != nil {
		return ChainHead{}, err
	}
	return head, nil
}

// SetChainHead persists head.
func (m *Manager) SetChainHead(head ChainHead) error {
	return m.KVPut(chainHeadKey, &head)
}
