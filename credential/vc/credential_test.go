package vc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/claims"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/schema"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/sderr"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature/bbs"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature/hashcommit"
)

const issuerDID = "did:example:university"

var fixedTime = time.Date(2025, 8, 5, 10, 0, 0, 0, time.UTC)

func aliceSubject() claims.Tree {
	return claims.NewTree(
		claims.F("id", claims.String("did:example:alice")),
		claims.F("name", claims.String("Alice")),
		claims.F("degree", claims.Object(
			claims.F("name", claims.String("BSc Computer Science")),
			claims.F("gpa", claims.Float(3.9)),
		)),
		claims.F("courses", claims.Strings("Math", "Physics")),
	)
}

func newHashCommitIssuer(t *testing.T, opts ...IssuerOpt) (*Issuer, signature.PublicKey) {
	t.Helper()

	kp, err := hashcommit.GenerateKeyPair()
	require.NoError(t, err)
	signer, err := hashcommit.NewSigner(kp.Private)
	require.NoError(t, err)

	opts = append([]IssuerOpt{
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(func() string { return "urn:uuid:1234" }),
	}, opts...)
	issuer, err := NewIssuer(signer, issuerDID, opts...)
	require.NoError(t, err)

	return issuer, kp.Public
}

func TestIssue(t *testing.T) {
	issuer, pub := newHashCommitIssuer(t, WithTypes("UniversityDegreeCredential"))
	ctx := context.Background()

	cred, err := issuer.Issue(ctx, aliceSubject(), Validity{Until: fixedTime.Add(24 * time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, "urn:uuid:1234", cred.ID)
	assert.Equal(t, []string{TypeVerifiableCredential, "UniversityDegreeCredential"}, cred.Types)
	assert.Equal(t, []interface{}{DefaultContext}, cred.Context)
	assert.Equal(t, issuerDID, cred.Issuer)
	assert.True(t, cred.ValidFrom.Equal(fixedTime))
	assert.Equal(t, hashcommit.SuiteName, cred.Proof.Type)
	assert.Equal(t, issuerDID+"#key-1", cred.Proof.VerificationMethod)
	assert.Equal(t, ProofPurposeAssertion, cred.Proof.ProofPurpose)
	assert.Equal(t, "2025-08-05T10:00:00Z", cred.Proof.Created)

	assert.NoError(t, cred.Verify(ctx, hashcommit.New(), pub))

	msgs, err := cred.Messages()
	require.NoError(t, err)
	assert.Len(t, msgs, HeaderSize+5)
}

func TestIssue_DefaultID(t *testing.T) {
	kp, err := hashcommit.GenerateKeyPair()
	require.NoError(t, err)
	signer, err := hashcommit.NewSigner(kp.Private)
	require.NoError(t, err)
	issuer, err := NewIssuer(signer, issuerDID)
	require.NoError(t, err)

	a, err := issuer.Issue(context.Background(), aliceSubject(), Validity{})
	require.NoError(t, err)
	b, err := issuer.Issue(context.Background(), aliceSubject(), Validity{})
	require.NoError(t, err)

	assert.Regexp(t, `^urn:uuid:[0-9a-f-]{36}$`, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.ValidUntil.IsZero())
}

func TestIssue_Errors(t *testing.T) {
	issuer, _ := newHashCommitIssuer(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		subject  claims.Tree
		validity Validity
	}{
		{
			name:    "missing subject id",
			subject: claims.NewTree(claims.F("name", claims.String("Alice"))),
		},
		{
			name:    "non-string subject id",
			subject: claims.NewTree(claims.F("id", claims.Int(7))),
		},
		{
			name:     "inverted validity window",
			subject:  aliceSubject(),
			validity: Validity{From: fixedTime, Until: fixedTime.Add(-time.Hour)},
		},
		{
			name: "concealed claim",
			subject: claims.NewTree(
				claims.F("id", claims.String("did:example:alice")),
				claims.F("name", claims.Concealed()),
			),
		},
		{
			name: "empty field name",
			subject: claims.NewTree(
				claims.F("id", claims.String("did:example:alice")),
				claims.F("", claims.String("x")),
			),
		},
		{
			name: "nested empty field name",
			subject: claims.NewTree(
				claims.F("id", claims.String("did:example:alice")),
				claims.F("degree", claims.Object(claims.F("", claims.Object()))),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Issue(ctx, tt.subject, tt.validity)
			require.Error(t, err)
			assert.True(t, errors.Is(err, sderr.ErrIssuance), err.Error())
		})
	}
}

func TestIssue_SubjectSchema(t *testing.T) {
	v, err := schema.NewValidator([]byte(`{
		"type": "object",
		"required": ["id", "name", "degree"],
		"properties": {"degree": {"type": "object", "required": ["name"]}}
	}`))
	require.NoError(t, err)
	issuer, _ := newHashCommitIssuer(t, WithSubjectSchema(v))

	_, err = issuer.Issue(context.Background(), aliceSubject(), Validity{})
	assert.NoError(t, err)

	_, err = issuer.Issue(context.Background(), claims.NewTree(claims.F("id", claims.String("did:example:bob"))), Validity{})
	require.Error(t, err)
	assert.Equal(t, sderr.KindIssuance, sderr.KindOf(err))
}

func TestIssue_JSONLDContext(t *testing.T) {
	ldContext := map[string]interface{}{
		"name":    "https://schema.org/name",
		"degree":  "https://example.org/vocab#degree",
		"gpa":     "https://example.org/vocab#gpa",
		"courses": "https://example.org/vocab#courses",
	}
	issuer, _ := newHashCommitIssuer(t, WithJSONLDContext([]interface{}{ldContext}))

	cred, err := issuer.Issue(context.Background(), aliceSubject(), Validity{})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{DefaultContext, ldContext}, cred.Context)

	bad := claims.NewTree(
		claims.F("id", claims.String("did:example:alice")),
		claims.F("nickname", claims.String("Al")),
	)
	_, err = issuer.Issue(context.Background(), bad, Validity{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nickname")
}

func TestVerify_Tampered(t *testing.T) {
	issuer, pub := newHashCommitIssuer(t, WithStatus(Status{
		ID:                   "https://example.org/status/1#7",
		Type:                 "BitstringStatusListEntry",
		StatusPurpose:        "revocation",
		StatusListIndex:      "7",
		StatusListCredential: "https://example.org/status/1",
	}))
	ctx := context.Background()
	suite := hashcommit.New()

	tests := []struct {
		name   string
		tamper func(c *Credential)
	}{
		{name: "subject value", tamper: func(c *Credential) {
			c.Subject = claims.NewTree(
				claims.F("id", claims.String("did:example:alice")),
				claims.F("name", claims.String("Mallory")),
				claims.F("degree", claims.Object(
					claims.F("name", claims.String("BSc Computer Science")),
					claims.F("gpa", claims.Float(3.9)),
				)),
				claims.F("courses", claims.Strings("Math", "Physics")),
			)
		}},
		{name: "issuer", tamper: func(c *Credential) { c.Issuer = "did:example:other" }},
		{name: "expiration", tamper: func(c *Credential) { c.ValidUntil = fixedTime.Add(time.Hour) }},
		{name: "status", tamper: func(c *Credential) { c.Status = nil }},
		{name: "types", tamper: func(c *Credential) { c.Types = append(c.Types, "Extra") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := issuer.Issue(ctx, aliceSubject(), Validity{})
			require.NoError(t, err)
			require.NoError(t, cred.Verify(ctx, suite, pub))

			tt.tamper(cred)
			err = cred.Verify(ctx, suite, pub)
			require.Error(t, err)
			assert.True(t, errors.Is(err, sderr.ErrProof), err.Error())
		})
	}
}

func TestVerify_WrongSuite(t *testing.T) {
	issuer, pub := newHashCommitIssuer(t)
	cred, err := issuer.Issue(context.Background(), aliceSubject(), Validity{})
	require.NoError(t, err)

	bbsKey, err := bbs.GenerateKeyPair()
	require.NoError(t, err)

	tests := []struct {
		name  string
		suite signature.Suite
		key   signature.PublicKey
	}{
		{name: "suite differs from proof type", suite: bbs.New(), key: pub},
		{name: "key differs from proof type", suite: hashcommit.New(), key: bbsKey.Public},
		{name: "untyped key", suite: hashcommit.New(), key: signature.PublicKey{Value: pub.Value}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cred.Verify(context.Background(), tt.suite, tt.key)
			require.Error(t, err)
			assert.Equal(t, sderr.KindProof, sderr.KindOf(err), err.Error())
			assert.False(t, sderr.KindOf(err).Retryable())
		})
	}
}

func TestCredentialJSON_RoundTrip(t *testing.T) {
	issuer, pub := newHashCommitIssuer(t, WithTypes("UniversityDegreeCredential"), WithStatus(Status{
		Type:                 "BitstringStatusListEntry",
		StatusPurpose:        "revocation",
		StatusListIndex:      "3",
		StatusListCredential: "https://example.org/status/1",
	}))
	ctx := context.Background()

	cred, err := issuer.Issue(ctx, aliceSubject(), Validity{Until: fixedTime.Add(time.Hour)})
	require.NoError(t, err)

	data, err := json.Marshal(cred)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"validFrom":"2025-08-05T10:00:00Z"`)
	assert.Contains(t, string(data), `"credentialSubject":{"id":"did:example:alice","name":"Alice"`)

	parsed, err := ParseCredential(data)
	require.NoError(t, err)
	assert.True(t, parsed.Subject.Equal(cred.Subject))
	assert.Equal(t, cred.Types, parsed.Types)
	assert.Equal(t, cred.Status, parsed.Status)
	assert.NoError(t, parsed.Verify(ctx, hashcommit.New(), pub))
}

func TestParseCredential_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		errorMsg string
	}{
		{name: "empty", input: "", errorMsg: "JSON string is empty"},
		{name: "invalid JSON", input: `{invalid}`, errorMsg: "failed to unmarshal credential"},
		{name: "no subject id", input: `{"id":"x","type":"VerifiableCredential","issuer":"did:example:i","validFrom":"2025-08-05T10:00:00Z","credentialSubject":{"name":"Alice"}}`, errorMsg: "credentialSubject has no id"},
		{name: "bad time", input: `{"id":"x","type":"VerifiableCredential","issuer":"did:example:i","validFrom":"yesterday","credentialSubject":{"id":"did:example:a"}}`, errorMsg: "failed to parse time"},
		{name: "no proof", input: `{"id":"x","type":"VerifiableCredential","issuer":"did:example:i","validFrom":"2025-08-05T10:00:00Z","credentialSubject":{"id":"did:example:a"}}`, errorMsg: "proof is missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCredential([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestIssue_BBS(t *testing.T) {
	kp, err := bbs.GenerateKeyPair()
	require.NoError(t, err)
	signer, err := bbs.NewSigner(kp.Private)
	require.NoError(t, err)
	issuer, err := NewIssuer(signer, issuerDID)
	require.NoError(t, err)

	cred, err := issuer.Issue(context.Background(), aliceSubject(), Validity{})
	require.NoError(t, err)
	assert.Equal(t, bbs.SuiteName, cred.Proof.Type)
	assert.NoError(t, cred.Verify(context.Background(), bbs.New(), kp.Public))
}

func TestHeader_Expired(t *testing.T) {
	h := Header{ValidUntil: fixedTime}
	assert.False(t, h.Expired(fixedTime, 0))
	assert.True(t, h.Expired(fixedTime.Add(time.Second), 0))
	assert.False(t, h.Expired(fixedTime.Add(time.Second), time.Minute))
	assert.False(t, (&Header{}).Expired(fixedTime.Add(100*365*24*time.Hour), 0))
}
