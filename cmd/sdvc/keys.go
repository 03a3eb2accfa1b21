package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/multiformats/go-multibase"
	"github.com/spf13/cobra"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/crypto"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/provider"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature/bbs"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature/hashcommit"
)

// suiteAliases lets the command line name suites by a short alias.
var suiteAliases = map[string]string{
	"bbs":                "bbs",
	"hashcommit":         "hashcommit",
	bbs.SuiteName:        "bbs",
	hashcommit.SuiteName: "hashcommit",
}

// keyFile is the on-disk form of issuer key material. PrivateKeyHex is
// left out of files handed to holders and verifiers.
type keyFile struct {
	Suite              string `json:"suite"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
	PrivateKeyHex      string `json:"privateKeyHex,omitempty"`
}

func generateKeyFile(suite string) (*keyFile, error) {
	var (
		kp  *signature.KeyPair
		err error
	)
	switch suiteAliases[suite] {
	case "bbs":
		kp, err = bbs.GenerateKeyPair()
	case "hashcommit":
		kp, err = hashcommit.GenerateKeyPair()
	default:
		return nil, fmt.Errorf("unsupported suite %q", suite)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	pub, err := multibase.Encode(multibase.Base58BTC, kp.Public.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	return &keyFile{
		Suite:              kp.Public.Type,
		PublicKeyMultibase: pub,
		PrivateKeyHex:      hex.EncodeToString(kp.Private),
	}, nil
}

func readKeyFile(path string) (*keyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	if _, ok := suiteAliases[kf.Suite]; !ok {
		return nil, fmt.Errorf("key file names unsupported suite %q", kf.Suite)
	}

	return &kf, nil
}

func (k *keyFile) publicKey() (signature.PublicKey, error) {
	_, value, err := multibase.Decode(k.PublicKeyMultibase)
	if err != nil {
		return signature.PublicKey{}, fmt.Errorf("failed to decode public key: %w", err)
	}

	return signature.PublicKey{Type: k.Suite, Value: value}, nil
}

func (k *keyFile) signer() (signature.Signer, error) {
	if k.PrivateKeyHex == "" {
		return nil, fmt.Errorf("key file has no private key")
	}
	priv, err := hex.DecodeString(strings.TrimPrefix(k.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	if suiteAliases[k.Suite] == "bbs" {
		return bbs.NewSigner(priv)
	}

	pub, err := k.publicKey()
	if err != nil {
		return nil, err
	}
	if ok, err := crypto.VerifyKeyPair(priv, pub.Value); err != nil || !ok {
		return nil, fmt.Errorf("key file private and public keys do not match")
	}

	return hashcommit.NewSigner(priv)
}

// keyResolver serves the key in keyFilePath for every issuer when it is
// set, and otherwise resolves issuers through the DID resolver at
// resolverURL.
func keyResolver(keyFilePath, resolverURL string) (provider.KeyResolver, error) {
	if keyFilePath != "" {
		kf, err := readKeyFile(keyFilePath)
		if err != nil {
			return nil, err
		}
		key, err := kf.publicKey()
		if err != nil {
			return nil, err
		}

		return provider.KeyResolverFunc(func(context.Context, string, string) (signature.PublicKey, error) {
			return key, nil
		}), nil
	}

	provider.Init(resolverURL)
	logger.Debugf("resolving issuer keys through %s", provider.BaseURL())

	return provider.NewCachingResolver(provider.NewDIDResolver("")), nil
}

func writeJSON(cmd *cobra.Command, outPath string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	return writeOutput(cmd, outPath, data)
}

func writeOutput(cmd *cobra.Command, outPath string, data []byte) error {
	if outPath != "" {
		if err := os.WriteFile(outPath, append(data, '\n'), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}

		return nil
	}

	_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return err
}
