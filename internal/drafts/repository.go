// Package drafts keeps SARs that are still collecting signatures, keyed by
// association id, so the two sides can exchange them before submission.
package drafts

//go:generate mockgen -destination=../mocks/mock_repository.go -package=mocks github.com/cyphera/cyphera-associations/internal/drafts Repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyphera/cyphera-associations/pkg/association"
)

var (
	ErrNotFound    = errors.New("drafts: not found")
	ErrKeyMismatch = errors.New("drafts: record does not hash to key")
)

// Repository stores draft SARs.
type Repository interface {
	Save(ctx context.Context, id common.Hash, sar *association.SAR) error
	Get(ctx context.Context, id common.Hash) (*association.SAR, error)
	// List returns drafts where account is the initiator or the approver.
	List(ctx context.Context, account []byte) ([]*association.SAR, error)
	Delete(ctx context.Context, id common.Hash) error
}

func checkKey(id common.Hash, sar *association.SAR) error {
	if sar == nil {
		return fmt.Errorf("%w: nil draft", ErrKeyMismatch)
	}
	got, err := sar.ID()
	if err != nil {
		return err
	}
	if got != id {
		return fmt.Errorf("%w: key %s, record %s", ErrKeyMismatch, id.Hex(), got.Hex())
	}
	return nil
}
