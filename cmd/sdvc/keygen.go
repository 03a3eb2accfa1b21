package main

import (
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var suite, out string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an issuer key pair",
		Long:  `Generate an issuer key pair for the bbs or hashcommit suite and write it as a JSON key file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kf, err := generateKeyFile(suite)
			if err != nil {
				return err
			}

			logger.Infof("generated %s key pair", kf.Suite)

			return writeJSON(cmd, out, kf)
		},
	}

	cmd.Flags().StringVar(&suite, "suite", "bbs", "signature suite: bbs or hashcommit")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty")

	return cmd
}
