package drafts

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyphera/cyphera-associations/pkg/association"
)

// MemoryRepository keeps drafts in process. Values are copied in and out.
type MemoryRepository struct {
	mu     sync.RWMutex
	drafts map[common.Hash]association.SAR
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{drafts: make(map[common.Hash]association.SAR)}
}

func (m *MemoryRepository) Save(_ context.Context, id common.Hash, sar *association.SAR) error {
	if err := checkKey(id, sar); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[id] = clone(sar)
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id common.Hash) (*association.SAR, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sar, ok := m.drafts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(&sar)
	return &out, nil
}

func (m *MemoryRepository) List(_ context.Context, account []byte) ([]*association.SAR, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]common.Hash, 0, len(m.drafts))
	for id, sar := range m.drafts {
		if bytes.Equal(sar.Record.Initiator, account) || bytes.Equal(sar.Record.Approver, account) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	out := make([]*association.SAR, len(ids))
	for i, id := range ids {
		sar := m.drafts[id]
		c := clone(&sar)
		out[i] = &c
	}
	return out, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drafts[id]; !ok {
		return ErrNotFound
	}
	delete(m.drafts, id)
	return nil
}

func clone(s *association.SAR) association.SAR {
	c := *s
	c.InitiatorSignature = bytes.Clone(s.InitiatorSignature)
	c.ApproverSignature = bytes.Clone(s.ApproverSignature)
	c.Record.Initiator = bytes.Clone(s.Record.Initiator)
	c.Record.Approver = bytes.Clone(s.Record.Approver)
	c.Record.Data = bytes.Clone(s.Record.Data)
	return c
}
