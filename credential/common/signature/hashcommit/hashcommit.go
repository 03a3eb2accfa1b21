// Package hashcommit provides a pairing-free selective disclosure suite:
// each message is committed to with a random salt, and the ordered list of
// commitments is signed with secp256k1.
package hashcommit

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/hyperledger/aries-framework-go/component/log"

	sdcrypto "github.com/pilacorp/go-sdvc-sdk/credential/common/crypto"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
)

// SuiteName identifies the suite in proofs and public keys.
const SuiteName = "HashCommitSecp256k1"

const (
	saltSize   = 16
	domainTag  = "sdvc/hashcommit/v1"
	bindingTag = "sdvc/hashcommit/binding/v1"
)

var logger = log.New("sdvc/signature/hashcommit")

// encMode yields deterministic CBOR so equal proofs have equal bytes.
var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

type baseProof struct {
	Salts     [][]byte `cbor:"1,keyasint"`
	Signature []byte   `cbor:"2,keyasint"`
}

type derivedProof struct {
	Total       int      `cbor:"1,keyasint"`
	Signature   []byte   `cbor:"2,keyasint"`
	Revealed    []int    `cbor:"3,keyasint"`
	Salts       [][]byte `cbor:"4,keyasint"`
	Hidden      []int    `cbor:"5,keyasint"`
	Commitments [][]byte `cbor:"6,keyasint"`
	Binding     []byte   `cbor:"7,keyasint"`
}

func commit(salt, msg []byte) []byte {
	h := sha256.New()
	h.Write(salt)
	h.Write(msg)
	return h.Sum(nil)
}

func commitmentsDigest(commitments [][]byte) []byte {
	h := sha256.New()
	h.Write([]byte(domainTag))
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(commitments)))
	h.Write(n[:])
	for _, c := range commitments {
		h.Write(c)
	}
	return h.Sum(nil)
}

func bindingDigest(b signature.Binding, sig, commitments []byte) []byte {
	h := sha256.New()
	h.Write([]byte(bindingTag))
	h.Write(b.Bytes())
	h.Write(sig)
	h.Write(commitments)
	return h.Sum(nil)
}

// GenerateKeyPair creates a random secp256k1 key pair for the suite.
func GenerateKeyPair() (*signature.KeyPair, error) {
	priv, pub, err := sdcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &signature.KeyPair{
		Public:  signature.PublicKey{Type: SuiteName, Value: pub},
		Private: priv,
	}, nil
}

// Signer commits to and signs message lists.
type Signer struct {
	priv []byte
}

// NewSigner validates a 32-byte secp256k1 private key.
func NewSigner(privateKey []byte) (*Signer, error) {
	if _, err := sdcrypto.ParsePrivateKey(privateKey); err != nil {
		return nil, fmt.Errorf("failed to parse secp256k1 private key: %w", err)
	}
	return &Signer{priv: append([]byte(nil), privateKey...)}, nil
}

// Suite implements signature.Signer.
func (s *Signer) Suite() string { return SuiteName }

// PublicKey returns the compressed public key of the signer.
func (s *Signer) PublicKey() (signature.PublicKey, error) {
	k, err := sdcrypto.ParsePrivateKey(s.priv)
	if err != nil {
		return signature.PublicKey{}, err
	}
	return signature.PublicKey{Type: SuiteName, Value: sdcrypto.CompressPublicKey(&k.PublicKey)}, nil
}

// Sign implements signature.Signer.
func (s *Signer) Sign(ctx context.Context, messages [][]byte) ([]byte, error) {
	const op = "hashcommit sign"
	if err := signature.CtxErr(ctx, op); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, sderr.Newf(sderr.KindCrypto, op, "no messages to sign")
	}
	salts := make([][]byte, len(messages))
	commitments := make([][]byte, len(messages))
	for i, m := range messages {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, sderr.New(sderr.KindCrypto, op, fmt.Errorf("failed to draw salt: %w", err))
		}
		salts[i] = salt
		commitments[i] = commit(salt, m)
	}
	key, err := sdcrypto.ParsePrivateKey(s.priv)
	if err != nil {
		return nil, sderr.New(sderr.KindCrypto, op, err)
	}
	sig, err := sdcrypto.SignDigest(commitmentsDigest(commitments), key)
	if err != nil {
		return nil, sderr.New(sderr.KindCrypto, op, err)
	}
	out, err := encMode.Marshal(baseProof{Salts: salts, Signature: sig})
	if err != nil {
		return nil, sderr.New(sderr.KindCrypto, op, fmt.Errorf("failed to encode proof: %w", err))
	}
	return out, nil
}

// Suite implements signature.Suite.
type Suite struct{}

// New returns the hash commitment suite.
func New() *Suite { return &Suite{} }

// Name implements signature.Suite.
func (s *Suite) Name() string { return SuiteName }

func checkKey(op string, key signature.PublicKey) error {
	if err := signature.CheckKey(SuiteName, key); err != nil {
		return err
	}
	if _, err := sdcrypto.ParsePublicKey(key.Value); err != nil {
		return sderr.New(sderr.KindCrypto, op, err)
	}
	return nil
}

// Verify implements signature.Suite.
func (s *Suite) Verify(ctx context.Context, messages [][]byte, proof []byte, key signature.PublicKey) (bool, error) {
	const op = "hashcommit verify"
	if err := signature.CtxErr(ctx, op); err != nil {
		return false, err
	}
	if err := checkKey(op, key); err != nil {
		return false, err
	}
	var bp baseProof
	if err := cbor.Unmarshal(proof, &bp); err != nil {
		logger.Debugf("malformed base proof: %v", err)
		return false, nil
	}
	if len(bp.Salts) != len(messages) {
		return false, nil
	}
	commitments := make([][]byte, len(messages))
	for i, m := range messages {
		commitments[i] = commit(bp.Salts[i], m)
	}
	return sdcrypto.VerifyDigest(key.Value, commitmentsDigest(commitments), bp.Signature), nil
}

// DeriveProof implements signature.Suite. Revealed messages keep their
// salts; every other message is replaced by its commitment.
func (s *Suite) DeriveProof(ctx context.Context, messages [][]byte, proof []byte, key signature.PublicKey,
	revealed []int, b signature.Binding) ([]byte, error) {
	const op = "hashcommit derive proof"
	if err := signature.CtxErr(ctx, op); err != nil {
		return nil, err
	}
	if err := checkKey(op, key); err != nil {
		return nil, err
	}
	var bp baseProof
	if err := cbor.Unmarshal(proof, &bp); err != nil {
		return nil, sderr.New(sderr.KindCrypto, op, fmt.Errorf("failed to decode proof: %w", err))
	}
	if len(bp.Salts) != len(messages) {
		return nil, sderr.Newf(sderr.KindCrypto, op, "proof covers %d messages, got %d", len(bp.Salts), len(messages))
	}
	idx, err := signature.NormalizeRevealed(revealed, len(messages))
	if err != nil {
		return nil, sderr.New(sderr.KindCrypto, op, err)
	}

	dp := derivedProof{Total: len(messages), Signature: bp.Signature}
	all := make([][]byte, len(messages))
	next := 0
	for i, m := range messages {
		all[i] = commit(bp.Salts[i], m)
		if next < len(idx) && idx[next] == i {
			dp.Revealed = append(dp.Revealed, i)
			dp.Salts = append(dp.Salts, bp.Salts[i])
			next++
			continue
		}
		dp.Hidden = append(dp.Hidden, i)
		dp.Commitments = append(dp.Commitments, all[i])
	}
	dp.Binding = bindingDigest(b, bp.Signature, commitmentsDigest(all))

	out, err := encMode.Marshal(dp)
	if err != nil {
		return nil, sderr.New(sderr.KindCrypto, op, fmt.Errorf("failed to encode derived proof: %w", err))
	}
	return out, nil
}

// VerifyDerived implements signature.Suite.
func (s *Suite) VerifyDerived(ctx context.Context, revealed []signature.IndexedMessage, total int, derived []byte,
	key signature.PublicKey, b signature.Binding) (bool, error) {
	const op = "hashcommit verify derived"
	if err := signature.CtxErr(ctx, op); err != nil {
		return false, err
	}
	if err := checkKey(op, key); err != nil {
		return false, err
	}
	var dp derivedProof
	if err := cbor.Unmarshal(derived, &dp); err != nil {
		logger.Debugf("malformed derived proof: %v", err)
		return false, nil
	}
	if dp.Total != total || total <= 0 ||
		len(dp.Revealed) != len(revealed) || len(dp.Salts) != len(dp.Revealed) ||
		len(dp.Hidden) != len(dp.Commitments) || len(dp.Revealed)+len(dp.Hidden) != total {
		return false, nil
	}

	byIndex := make(map[int][]byte, len(revealed))
	for _, m := range revealed {
		byIndex[m.Index] = m.Message
	}
	all := make([][]byte, total)
	for j, i := range dp.Revealed {
		msg, ok := byIndex[i]
		if !ok || i < 0 || i >= total || all[i] != nil {
			return false, nil
		}
		all[i] = commit(dp.Salts[j], msg)
	}
	for j, i := range dp.Hidden {
		if i < 0 || i >= total || all[i] != nil || len(dp.Commitments[j]) != sha256.Size {
			return false, nil
		}
		all[i] = dp.Commitments[j]
	}

	digest := commitmentsDigest(all)
	if !bytes.Equal(dp.Binding, bindingDigest(b, dp.Signature, digest)) {
		return false, nil
	}
	return sdcrypto.VerifyDigest(key.Value, digest, dp.Signature), nil
}
