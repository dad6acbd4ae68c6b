package delegation

import (
	"fmt"
	"math/big"

	"github.com/cyphera/cyphera-associations/pkg/signer"
	"github.com/ethereum/go-ethereum/common"
)

// Sign sets d.Signature to s's signature over the delegation digest. s signs
// for d.Delegator: the delegator key itself, or the owner key of a smart
// account that validates it through ERC-1271.
func Sign(d *Delegation, s signer.Signer, manager common.Address, chainID *big.Int) error {
	digest, err := DelegationDigest(*d, manager, chainID)
	if err != nil {
		return err
	}
	sig, err := s.SignDigest(digest)
	if err != nil {
		return fmt.Errorf("sign delegation: %w", err)
	}
	d.Signature = sig
	return nil
}

// DelegatedSigner signs as the chain's root account using the leaf delegate
// key. Its signatures are encoded proofs.
type DelegatedSigner struct {
	Delegate signer.Signer
	Chain    Chain
}

// Address returns the account the chain resolves to.
func (s DelegatedSigner) Address() common.Address {
	if root := s.Chain.Root(); root != nil {
		return root.Delegator
	}
	return common.Address{}
}

func (s DelegatedSigner) SignDigest(digest common.Hash) ([]byte, error) {
	sig, err := s.Delegate.SignDigest(digest)
	if err != nil {
		return nil, err
	}
	return EncodeProof(Proof{
		Delegate:          s.Delegate.Address(),
		DelegateSignature: sig,
		Delegations:       s.Chain,
	})
}
