package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pilacorp/go-sdvc-sdk/credential/vc"
	"github.com/pilacorp/go-sdvc-sdk/credential/vp"
)

type presentParameters struct {
	credentialFile string
	conceal        []string
	nonce          string
	domain         string
	issuerKeyFile  string
	resolverURL    string
	compact        bool
	out            string
}

func newPresentCmd() *cobra.Command {
	params := &presentParameters{}

	cmd := &cobra.Command{
		Use:   "present",
		Short: "Derive a presentation that conceals chosen subject claims",
		Example: `  sdvc present -c alice.json --conceal degree.name --conceal courses[0] \
    --nonce n-123 --domain verifier.example --issuer-key issuer.pub.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return present(cmd, params)
		},
	}

	cmd.Flags().StringVarP(&params.credentialFile, "credential", "c", "", "credential JSON file")
	cmd.Flags().StringSliceVar(&params.conceal, "conceal", nil, "subject paths to conceal")
	cmd.Flags().StringVar(&params.nonce, "nonce", "", "challenge nonce from the verifier")
	cmd.Flags().StringVar(&params.domain, "domain", "", "verifier domain the presentation is bound to")
	addResolverFlags(cmd, &params.issuerKeyFile, &params.resolverURL)
	cmd.Flags().BoolVar(&params.compact, "compact", false, "write the compact encoding instead of JSON")
	cmd.Flags().StringVarP(&params.out, "out", "o", "", "output file, stdout when empty")

	_ = cmd.MarkFlagRequired("credential")
	_ = cmd.MarkFlagRequired("nonce")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}

func addResolverFlags(cmd *cobra.Command, keyFile, resolverURL *string) {
	cmd.Flags().StringVar(keyFile, "issuer-key", "", "issuer key file; skips DID resolution when set")
	cmd.Flags().StringVar(resolverURL, "resolver-url", "", "DID resolver endpoint used to look up issuer keys")
}

func present(cmd *cobra.Command, params *presentParameters) error {
	data, err := os.ReadFile(params.credentialFile)
	if err != nil {
		return fmt.Errorf("failed to read credential: %w", err)
	}
	cred, err := vc.ParseCredential(data)
	if err != nil {
		return err
	}

	resolver, err := keyResolver(params.issuerKeyFile, params.resolverURL)
	if err != nil {
		return err
	}

	p, err := vp.NewHolder(resolver).BuildPresentation(cmd.Context(), cred, params.conceal, params.nonce, params.domain)
	if err != nil {
		return err
	}

	logger.Infof("built presentation %s revealing %d of %d subject leaves", p.ID, len(p.Revealed), p.TotalLeaves)

	if params.compact {
		s, err := vp.EncodeCompact(p)
		if err != nil {
			return err
		}

		return writeOutput(cmd, params.out, []byte(s))
	}

	raw, err := p.ToJSON()
	if err != nil {
		return err
	}

	return writeOutput(cmd, params.out, raw)
}
