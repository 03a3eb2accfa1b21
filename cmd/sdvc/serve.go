package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	credentialstatus "github.com/pilacorp/go-sdvc-sdk/credential/common/credential-status"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature/bbs"
	"github.com/pilacorp/go-sdvc-sdk/credential/common/signature/hashcommit"
	"github.com/pilacorp/go-sdvc-sdk/server"
)

const (
	hostFlagName  = "host"
	hostEnvKey    = "SDVC_HOST"
	hostFlagUsage = "Host Name:Port." +
		" Alternatively, this can be set with the following environment variable: " + hostEnvKey

	domainFlagName  = "domain"
	domainEnvKey    = "SDVC_DOMAIN"
	domainFlagUsage = "Default verifier domain challenges are bound to." +
		" Alternatively, this can be set with the following environment variable: " + domainEnvKey

	resolverURLFlagName  = "resolver-url"
	resolverURLEnvKey    = "SDVC_RESOLVER_URL"
	resolverURLFlagUsage = "DID resolver endpoint used to look up issuer keys." +
		" Alternatively, this can be set with the following environment variable: " + resolverURLEnvKey

	suitesFlagName  = "suites"
	suitesEnvKey    = "SDVC_SUITES"
	suitesFlagUsage = "Comma-separated signature suites to accept (bbs, hashcommit); all when empty." +
		" Alternatively, this can be set with the following environment variable: " + suitesEnvKey
)

type serveParameters struct {
	issuerKeyFile    string
	challengeKeyFile string
	challengeTTL     time.Duration
	checkStatus      bool
}

func newServeCmd() *cobra.Command {
	params := &serveParameters{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP verifier service",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := getUserSetVar(cmd, hostFlagName, hostEnvKey, false)
			if err != nil {
				return err
			}

			srv, err := newServer(cmd, params)
			if err != nil {
				return err
			}

			return srv.ListenAndServe(cmd.Context(), host)
		},
	}

	cmd.Flags().String(hostFlagName, "", hostFlagUsage)
	cmd.Flags().String(domainFlagName, "", domainFlagUsage)
	cmd.Flags().String(resolverURLFlagName, "", resolverURLFlagUsage)
	cmd.Flags().StringSlice(suitesFlagName, nil, suitesFlagUsage)
	cmd.Flags().StringVar(&params.issuerKeyFile, "issuer-key", "", "issuer key file; skips DID resolution when set")
	cmd.Flags().StringVar(&params.challengeKeyFile, "challenge-key", "",
		"hashcommit key file whose private key signs stateless challenge tokens")
	cmd.Flags().DurationVar(&params.challengeTTL, "challenge-ttl", 5*time.Minute, "lifetime of issued challenges")
	cmd.Flags().BoolVar(&params.checkStatus, "check-status", false, "reject credentials revoked in their status list")

	return cmd
}

func newServer(cmd *cobra.Command, params *serveParameters) (*server.Server, error) {
	domain, err := getUserSetVar(cmd, domainFlagName, domainEnvKey, true)
	if err != nil {
		return nil, err
	}
	resolverURL, err := getUserSetVar(cmd, resolverURLFlagName, resolverURLEnvKey, true)
	if err != nil {
		return nil, err
	}
	suites, err := getUserSetVars(cmd, suitesFlagName, suitesEnvKey)
	if err != nil {
		return nil, err
	}

	resolver, err := keyResolver(params.issuerKeyFile, resolverURL)
	if err != nil {
		return nil, err
	}

	config := &server.Config{
		Domain:       domain,
		ChallengeTTL: params.challengeTTL,
		Resolver:     resolver,
	}
	if len(suites) > 0 {
		if config.Registry, err = suiteRegistry(suites); err != nil {
			return nil, err
		}
	}
	if params.checkStatus {
		config.StatusChecker = credentialstatus.NewClient(nil)
	}
	if params.challengeKeyFile != "" {
		kf, err := readKeyFile(params.challengeKeyFile)
		if err != nil {
			return nil, err
		}
		if config.ChallengeKey, err = hex.DecodeString(kf.PrivateKeyHex); err != nil {
			return nil, fmt.Errorf("failed to decode challenge key: %w", err)
		}
	}

	return server.New(config)
}

func suiteRegistry(names []string) (*signature.Registry, error) {
	r := signature.NewRegistry()
	for _, name := range names {
		switch suiteAliases[name] {
		case "bbs":
			r.Register(bbs.New())
		case "hashcommit":
			r.Register(hashcommit.New())
		default:
			return nil, fmt.Errorf("unsupported suite %q", name)
		}
	}

	return r, nil
}
