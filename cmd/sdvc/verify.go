package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/claims"
	credentialstatus "github.com/pilacorp/go-sdvc-sdk/credential/common/credential-status"
	"github.com/pilacorp/go-sdvc-sdk/credential/vp"
)

type verifyParameters struct {
	presentationFile string
	nonce            string
	domain           string
	issuerKeyFile    string
	resolverURL      string
	checkStatus      bool
	leeway           time.Duration
	out              string
}

type verifyOutput struct {
	Verified bool         `json:"verified"`
	Kind     string       `json:"kind,omitempty"`
	Error    string       `json:"error,omitempty"`
	Subject  *claims.Tree `json:"subject,omitempty"`
}

func newVerifyCmd() *cobra.Command {
	params := &verifyParameters{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a presentation against the expected challenge",
		Long: `Verify a presentation, given as JSON or in compact form, against the nonce and domain
the verifier issued. Exits with an error when verification fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return verify(cmd, params)
		},
	}

	cmd.Flags().StringVarP(&params.presentationFile, "presentation", "p", "", "presentation file, JSON or compact")
	cmd.Flags().StringVar(&params.nonce, "nonce", "", "expected challenge nonce")
	cmd.Flags().StringVar(&params.domain, "domain", "", "expected verifier domain")
	addResolverFlags(cmd, &params.issuerKeyFile, &params.resolverURL)
	cmd.Flags().BoolVar(&params.checkStatus, "check-status", false, "reject credentials revoked in their status list")
	cmd.Flags().DurationVar(&params.leeway, "leeway", 0, "clock skew tolerated when checking expiry")
	cmd.Flags().StringVarP(&params.out, "out", "o", "", "output file, stdout when empty")

	_ = cmd.MarkFlagRequired("presentation")
	_ = cmd.MarkFlagRequired("nonce")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}

func verify(cmd *cobra.Command, params *verifyParameters) error {
	data, err := os.ReadFile(params.presentationFile)
	if err != nil {
		return fmt.Errorf("failed to read presentation: %w", err)
	}
	p, err := vp.ParsePresentation(bytes.TrimSpace(data))
	if err != nil {
		return err
	}

	resolver, err := keyResolver(params.issuerKeyFile, params.resolverURL)
	if err != nil {
		return err
	}

	opts := []vp.VerifierOpt{vp.WithLeeway(params.leeway)}
	if params.checkStatus {
		opts = append(opts, vp.WithStatusChecker(credentialstatus.NewClient(nil)))
	}

	res := vp.NewVerifier(resolver, opts...).Verify(cmd.Context(), p, params.nonce, params.domain)

	out := verifyOutput{Verified: res.Verified}
	if res.Verified {
		out.Subject = &res.Subject
	} else {
		out.Kind = res.Kind.String()
		out.Error = res.Err.Error()
	}
	if err := writeJSON(cmd, params.out, out); err != nil {
		return err
	}

	if !res.Verified {
		return fmt.Errorf("presentation rejected: %s", res.Kind)
	}

	return nil
}
