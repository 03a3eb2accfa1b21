// Package bbs provides the BBS+ suite over BLS12-381 G2 public keys.
package bbs

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/kmscrypto/crypto/primitive/bbs12381g2pub"
	"github.com/hyperledger/aries-framework-go/component/log"
	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
)

// SuiteName identifies the suite in proofs and public keys.
const SuiteName = "BbsBlsSignature2020"

var logger = log.New("sdvc/signature/bbs")

// Suite implements signature.Suite with BBS+ proofs of knowledge.
type Suite struct {
	bbs *bbs12381g2pub.BBSG2Pub
}

// New returns the BBS+ suite.
func New() *Suite {
	return &Suite{bbs: bbs12381g2pub.New()}
}

// Name implements signature.Suite.
func (s *Suite) Name() string { return SuiteName }

// GenerateKeyPair creates a random BBS+ key pair.
func GenerateKeyPair() (*signature.KeyPair, error) {
	pub, priv, err := bbs12381g2pub.GenerateKeyPair(sha256.New, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate BBS+ key pair: %w", err)
	}
	pubBytes, err := pub.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal BBS+ public key: %w", err)
	}
	privBytes, err := priv.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal BBS+ private key: %w", err)
	}
	return &signature.KeyPair{
		Public:  signature.PublicKey{Type: SuiteName, Value: pubBytes},
		Private: privBytes,
	}, nil
}

// Signer signs message lists with a BBS+ private key.
type Signer struct {
	bbs  *bbs12381g2pub.BBSG2Pub
	priv *bbs12381g2pub.PrivateKey
}

// NewSigner parses a marshalled BBS+ private key.
func NewSigner(privateKey []byte) (*Signer, error) {
	priv, err := bbs12381g2pub.UnmarshalPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse BBS+ private key: %w", err)
	}
	return &Signer{bbs: bbs12381g2pub.New(), priv: priv}, nil
}

// Suite implements signature.Signer.
func (s *Signer) Suite() string { return SuiteName }

// PublicKey returns the public half of the signer's key.
func (s *Signer) PublicKey() (signature.PublicKey, error) {
	b, err := s.priv.PublicKey().Marshal()
	if err != nil {
		return signature.PublicKey{}, fmt.Errorf("failed to marshal BBS+ public key: %w", err)
	}
	return signature.PublicKey{Type: SuiteName, Value: b}, nil
}

// Sign implements signature.Signer.
func (s *Signer) Sign(ctx context.Context, messages [][]byte) ([]byte, error) {
	if err := signature.CtxErr(ctx, "bbs sign"); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, sderr.Newf(sderr.KindCrypto, "bbs sign", "no messages to sign")
	}
	sig, err := s.bbs.SignWithKey(messages, s.priv)
	if err != nil {
		return nil, sderr.New(sderr.KindCrypto, "bbs sign", err)
	}
	return sig, nil
}

func (s *Suite) checkKey(op string, key signature.PublicKey) error {
	if err := signature.CheckKey(SuiteName, key); err != nil {
		return err
	}
	if _, err := bbs12381g2pub.UnmarshalPublicKey(key.Value); err != nil {
		return sderr.New(sderr.KindCrypto, op, fmt.Errorf("parse public key: %w", err))
	}
	return nil
}

// Verify implements signature.Suite.
func (s *Suite) Verify(ctx context.Context, messages [][]byte, proof []byte, key signature.PublicKey) (bool, error) {
	const op = "bbs verify"
	if err := signature.CtxErr(ctx, op); err != nil {
		return false, err
	}
	if err := s.checkKey(op, key); err != nil {
		return false, err
	}
	if err := s.bbs.Verify(messages, proof, key.Value); err != nil {
		logger.Debugf("bbs signature rejected: %v", err)
		return false, nil
	}
	return true, nil
}

// DeriveProof implements signature.Suite. The binding is used as the
// proof nonce.
func (s *Suite) DeriveProof(ctx context.Context, messages [][]byte, proof []byte, key signature.PublicKey,
	revealed []int, b signature.Binding) ([]byte, error) {
	const op = "bbs derive proof"
	if err := signature.CtxErr(ctx, op); err != nil {
		return nil, err
	}
	if err := s.checkKey(op, key); err != nil {
		return nil, err
	}
	idx, err := signature.NormalizeRevealed(revealed, len(messages))
	if err != nil {
		return nil, sderr.New(sderr.KindCrypto, op, err)
	}
	derived, err := s.bbs.DeriveProof(messages, proof, b.Bytes(), key.Value, idx)
	if err != nil {
		return nil, sderr.New(sderr.KindCrypto, op, err)
	}
	return derived, nil
}

// VerifyDerived implements signature.Suite.
func (s *Suite) VerifyDerived(ctx context.Context, revealed []signature.IndexedMessage, total int, derived []byte,
	key signature.PublicKey, b signature.Binding) (ok bool, err error) {
	const op = "bbs verify derived"
	// Malformed proof bytes can trip index checks inside the primitive.
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("bbs derived proof parsing panicked: %v", r)
			ok, err = false, nil
		}
	}()
	if err := signature.CtxErr(ctx, op); err != nil {
		return false, err
	}
	if err := s.checkKey(op, key); err != nil {
		return false, err
	}
	// The primitive pairs messages with the proof's revealed indices by
	// position only, so the supplied indices must match them exactly.
	count, indexes, ok := proofIndexes(derived)
	if !ok || count != total || len(indexes) != len(revealed) {
		return false, nil
	}
	ordered := slices.Clone(revealed)
	slices.SortFunc(ordered, func(x, y signature.IndexedMessage) int { return x.Index - y.Index })
	msgs := make([][]byte, len(ordered))
	for i, m := range ordered {
		if m.Index < 0 || m.Index >= total || m.Index != indexes[i] {
			return false, nil
		}
		msgs[i] = m.Message
	}
	// VerifyProof reorders the bitvector in place.
	if err := s.bbs.VerifyProof(msgs, slices.Clone(derived), b.Bytes(), key.Value); err != nil {
		logger.Debugf("bbs derived proof rejected: %v", err)
		return false, nil
	}
	return true, nil
}

// proofIndexes reads the signed message count and the revealed indices
// from the payload that prefixes a derived proof: a big-endian uint16
// count followed by a bitvector stored most significant byte first.
func proofIndexes(derived []byte) (int, []int, bool) {
	if len(derived) < 2 {
		return 0, nil, false
	}
	count := int(binary.BigEndian.Uint16(derived[:2]))
	end := 2 + count/8 + 1
	if len(derived) < end {
		return 0, nil, false
	}
	vec := derived[2:end]
	var indexes []int
	for i := 0; i < len(vec)*8; i++ {
		if vec[len(vec)-1-i/8]&(1<<uint(i%8)) != 0 {
			indexes = append(indexes, i)
		}
	}
	return count, indexes, true
}
