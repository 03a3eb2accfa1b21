package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/spf13/cobra"
)

const (
	logLevelFlagName  = "log-level"
	logLevelEnvKey    = "SDVC_LOG_LEVEL"
	logLevelFlagUsage = "Logging level: DEBUG, INFO, WARNING, ERROR, CRITICAL." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey
)

var logger = log.New("sdvc/cmd")

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sdvc",
		Short:         "Selective disclosure verifiable credentials",
		Long:          `Issue credentials, derive presentations that reveal only chosen claims, and verify them`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logLevel, err := getUserSetVar(cmd, logLevelFlagName, logLevelEnvKey, true)
			if err != nil {
				return err
			}

			return setLogLevel(logLevel)
		},
	}

	rootCmd.PersistentFlags().String(logLevelFlagName, "", logLevelFlagUsage)

	rootCmd.AddCommand(
		newKeygenCmd(),
		newIssueCmd(),
		newPresentCmd(),
		newVerifyCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Debugf("logger level set to %s", logLevel)
	}

	return nil
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getUserSetVars(cmd *cobra.Command, flagName, envKey string) ([]string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringSlice(flagName)
		if err != nil {
			return nil, fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)
	if !isSet || value == "" {
		return nil, nil
	}

	return strings.Split(value, ","), nil
}
