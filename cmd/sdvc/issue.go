package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pilacorp/go-sdvc-sdk/credential/common/claims"
	credentialstatus "github.com/pilacorp/go-sdvc-sdk/credential/common/credential-status"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/schema"
	"github.com/pilacorp/go-sdvc-sdk/credential/vc"
)

type issueParameters struct {
	keyFile     string
	issuer      string
	subjectFile string
	schemaFile  string
	types       []string
	validFrom   string
	validUntil  string
	statusList  string
	statusIndex int
	out         string
}

func newIssueCmd() *cobra.Command {
	params := &issueParameters{}

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a credential over a JSON subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			return issue(cmd, params)
		},
	}

	cmd.Flags().StringVarP(&params.keyFile, "key", "k", "", "issuer key file written by keygen")
	cmd.Flags().StringVar(&params.issuer, "issuer", "", "issuer identifier")
	cmd.Flags().StringVarP(&params.subjectFile, "subject", "s", "", "JSON file holding the credential subject")
	cmd.Flags().StringVar(&params.schemaFile, "schema", "", "JSON schema the subject must satisfy")
	cmd.Flags().StringSliceVar(&params.types, "type", nil, "additional credential types")
	cmd.Flags().StringVar(&params.validFrom, "valid-from", "", "start of validity, RFC3339; now when empty")
	cmd.Flags().StringVar(&params.validUntil, "valid-until", "", "end of validity, RFC3339; no expiry when empty")
	cmd.Flags().StringVar(&params.statusList, "status-list", "", "status list credential URL for revocation")
	cmd.Flags().IntVar(&params.statusIndex, "status-index", 0, "index of the credential in the status list")
	cmd.Flags().StringVarP(&params.out, "out", "o", "", "output file, stdout when empty")

	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("issuer")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func issue(cmd *cobra.Command, params *issueParameters) error {
	kf, err := readKeyFile(params.keyFile)
	if err != nil {
		return err
	}
	signer, err := kf.signer()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(params.subjectFile)
	if err != nil {
		return fmt.Errorf("failed to read subject: %w", err)
	}
	subject, err := claims.ParseTreeJSON(data)
	if err != nil {
		return fmt.Errorf("failed to parse subject: %w", err)
	}

	var validity vc.Validity
	if validity.From, err = parseOptionalTime(params.validFrom); err != nil {
		return err
	}
	if validity.Until, err = parseOptionalTime(params.validUntil); err != nil {
		return err
	}

	var opts []vc.IssuerOpt
	if len(params.types) > 0 {
		opts = append(opts, vc.WithTypes(params.types...))
	}
	if params.schemaFile != "" {
		schemaJSON, err := os.ReadFile(params.schemaFile)
		if err != nil {
			return fmt.Errorf("failed to read schema: %w", err)
		}
		v, err := schema.NewValidator(schemaJSON)
		if err != nil {
			return err
		}
		opts = append(opts, vc.WithSubjectSchema(v))
	}
	if params.statusList != "" {
		index := strconv.Itoa(params.statusIndex)
		opts = append(opts, vc.WithStatus(vc.Status{
			ID:                   params.statusList + "#" + index,
			Type:                 "BitstringStatusListEntry",
			StatusPurpose:        credentialstatus.PurposeRevocation,
			StatusListIndex:      index,
			StatusListCredential: params.statusList,
		}))
	}

	issuer, err := vc.NewIssuer(signer, params.issuer, opts...)
	if err != nil {
		return err
	}
	cred, err := issuer.Issue(cmd.Context(), subject, validity)
	if err != nil {
		return err
	}

	logger.Infof("issued credential %s", cred.ID)

	return writeJSON(cmd, params.out, cred)
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}

	return t, nil
}
